// SPDX-License-Identifier: GPL-3.0-or-later
package imapconnection

import (
	"context"
	"errors"
	"testing"

	"github.com/CrawX/go-imap-cleaner/domain"

	"github.com/emersion/go-imap"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
)

func TestImapConnection_Select(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	client := NewMockimapClient(ctrl)
	conn := testConnection(client)

	client.EXPECT().
		Select(gomock.Eq("INBOX"), gomock.Eq(true)).
		Return(&imap.MailboxStatus{Name: "INBOX", Messages: 3}, nil)

	count, err := conn.Select("INBOX")
	assert.NoError(t, err)
	assert.Equal(t, u32(3), count)
}

func TestImapConnection_SelectError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	client := NewMockimapClient(ctrl)
	conn := testConnection(client)

	client.EXPECT().
		Select(gomock.Eq("Missing"), gomock.Eq(true)).
		Return(nil, errors.New("no such mailbox"))

	_, err := conn.Select("Missing")
	assert.EqualError(t, err, "could not select folder: no such mailbox")
}

func TestImapConnection_ListUids(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	client := NewMockimapClient(ctrl)
	conn := testConnection(client)

	client.EXPECT().
		UidSearch(gomock.Eq(imap.NewSearchCriteria())).
		Return(u32a(4, 5, 9), nil)

	uids, err := conn.ListUids()
	assert.NoError(t, err)
	assert.Equal(t, u32a(4, 5, 9), uids)
}

func TestImapConnection_FetchMailsPartialFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	client := NewMockimapClient(ctrl)
	conn := testConnection(client)

	bodies := map[uint32]string{1: "Subject: one\r\n\r\n1", 3: "Subject: three\r\n\r\n3"}
	gomock.InOrder(
		client.EXPECT().UidFetch(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(fetchReply(bodies)),
		client.EXPECT().UidFetch(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ *imap.SeqSet, _ []imap.FetchItem, ch chan *imap.Message) error {
				close(ch)
				return errors.New("connection reset")
			},
		),
		client.EXPECT().UidFetch(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(fetchReply(bodies)),
		client.EXPECT().UidFetch(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(fetchReply(bodies)),
	)

	results := conn.FetchMails(context.Background(), u32a(1, 2, 3, 4))
	assert.Len(t, results, 4)

	assert.Equal(t, u32(1), results[0].Uid)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, "Subject: one\r\n\r\n1", string(results[0].RawMail))

	assert.Equal(t, u32(2), results[1].Uid)
	assert.True(t, errors.Is(results[1].Err, domain.ErrMessageFetch))
	assert.Contains(t, results[1].Err.Error(), "connection reset")
	assert.Nil(t, results[1].RawMail)

	assert.NoError(t, results[2].Err)
	assert.Equal(t, "Subject: three\r\n\r\n3", string(results[2].RawMail))

	// uid 4 vanished between search and fetch
	assert.True(t, errors.Is(results[3].Err, domain.ErrMessageFetch))
	assert.Contains(t, results[3].Err.Error(), "mail not found")
}

func TestImapConnection_FetchMailsCancelled(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	client := NewMockimapClient(ctrl)
	conn := testConnection(client)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := conn.FetchMails(ctx, u32a(1, 2))
	assert.Len(t, results, 2)
	for _, r := range results {
		assert.True(t, errors.Is(r.Err, domain.ErrMessageFetch))
	}
}

func TestImapConnection_Close(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	client := NewMockimapClient(ctrl)
	conn := testConnection(client)

	client.EXPECT().Logout().Return(nil)

	assert.NoError(t, conn.Close())
}

func TestImapConnection_CloseLogoutFails(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	client := NewMockimapClient(ctrl)
	conn := testConnection(client)

	gomock.InOrder(
		client.EXPECT().Logout().Return(errors.New("broken pipe")),
		client.EXPECT().Terminate().Return(nil),
	)

	assert.EqualError(t, conn.Close(), "could not logout: broken pipe")
}
