// SPDX-License-Identifier: GPL-3.0-or-later
package imapconnection

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/CrawX/go-imap-cleaner/domain"
	"github.com/CrawX/go-imap-cleaner/log"
	"github.com/CrawX/go-imap-cleaner/mail"

	"github.com/emersion/go-imap/backend/memory"
	"github.com/emersion/go-imap/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startServer runs an in-memory IMAP server with user "username"/"password" and one message in INBOX.
func startServer(t *testing.T) Options {
	t.Helper()
	log.InitLogging("error")

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := server.New(memory.New())
	s.AllowInsecureAuth = true
	go func() {
		_ = s.Serve(listener)
	}()
	t.Cleanup(func() { _ = s.Close() })

	addr := listener.Addr().(*net.TCPAddr)
	return Options{
		Host:           "127.0.0.1",
		Port:           addr.Port,
		User:           "username",
		Password:       "password",
		Security:       SecurityNone,
		DialTimeout:    time.Second,
		CommandTimeout: 5 * time.Second,
	}
}

func TestImapConnection_Session(t *testing.T) {
	opts := startServer(t)

	conn, err := NewImapConnection(context.Background(), opts)
	require.NoError(t, err)

	count, err := conn.Select("INBOX")
	require.NoError(t, err)
	assert.Equal(t, u32(1), count)

	uids, err := conn.ListUids()
	require.NoError(t, err)
	require.Len(t, uids, 1)

	results := conn.FetchMails(context.Background(), append(uids, uids[0]+1000))
	require.Len(t, results, 2)
	require.NoError(t, results[0].Err)
	assert.Equal(t, "A little message, just for you", mail.Decode(results[0].RawMail).Subject)
	assert.True(t, errors.Is(results[1].Err, domain.ErrMessageFetch))

	assert.NoError(t, conn.Close())
}

func TestImapConnection_SelectIsReadOnly(t *testing.T) {
	opts := startServer(t)

	for i := 0; i < 2; i++ {
		conn, err := NewImapConnection(context.Background(), opts)
		require.NoError(t, err)

		_, err = conn.Select("INBOX")
		require.NoError(t, err)
		uids, err := conn.ListUids()
		require.NoError(t, err)
		results := conn.FetchMails(context.Background(), uids)
		require.Len(t, results, 1)
		require.NoError(t, results[0].Err)

		assert.NoError(t, conn.Close())
	}
}

func TestImapConnection_Dialer(t *testing.T) {
	opts := startServer(t)

	conn, err := Dialer(opts)(context.Background())
	require.NoError(t, err)
	assert.NoError(t, conn.Close())
}

func TestNewImapConnection_Errors(t *testing.T) {
	opts := startServer(t)

	closed, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	closedPort := closed.Addr().(*net.TCPAddr).Port
	require.NoError(t, closed.Close())

	wrongPassword := opts
	wrongPassword.Password = "wrong"

	noStartTLS := opts
	noStartTLS.Security = SecurityStartTLS

	refused := opts
	refused.Port = closedPort

	tests := []struct {
		name string
		opts Options
		err  string
	}{
		{"wrongpassword", wrongPassword, "could not login to imap"},
		{"nostarttls", noStartTLS, ErrStartTLSUnsupported.Error()},
		{"refused", refused, "could not dial to imap"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			conn, err := NewImapConnection(context.Background(), tc.opts)
			assert.Nil(t, conn)
			assert.True(t, errors.Is(err, domain.ErrConnection))
			assert.Contains(t, err.Error(), tc.err)
		})
	}
}

func TestImapConnection_CancelTerminates(t *testing.T) {
	opts := startServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	conn, err := NewImapConnection(ctx, opts)
	require.NoError(t, err)

	cancel()

	assert.Eventually(t, func() bool {
		_, err := conn.Select("INBOX")
		return err != nil
	}, 2*time.Second, 10*time.Millisecond)

	assert.Error(t, conn.Close())
}
