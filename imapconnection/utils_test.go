// SPDX-License-Identifier: GPL-3.0-or-later
package imapconnection

import (
	"bytes"

	"github.com/CrawX/go-imap-cleaner/log"

	"github.com/emersion/go-imap"
)

func u32(val int) uint32 {
	return uint32(val)
}

func u32a(val ...int) []uint32 {
	a := []uint32{}
	for _, v := range val {
		a = append(a, u32(v))
	}

	return a
}

func testConnection(client imapClient) *ImapConnection {
	return &ImapConnection{
		connection:     client,
		stopAbort:      func() bool { return true },
		server:         "test:1143",
		selectedFolder: "INBOX",
		l:              log.NullLogger(),
	}
}

// fetchReply answers a UidFetch like the real client does: send the messages, close the channel.
func fetchReply(bodies map[uint32]string) func(*imap.SeqSet, []imap.FetchItem, chan *imap.Message) error {
	return func(seqset *imap.SeqSet, _ []imap.FetchItem, ch chan *imap.Message) error {
		defer close(ch)
		for uid, body := range bodies {
			if !seqset.Contains(uid) {
				continue
			}
			msg := imap.NewMessage(uid, nil)
			msg.Uid = uid
			msg.Body = map[*imap.BodySectionName]imap.Literal{
				{}: bytes.NewBufferString(body),
			}
			ch <- msg
		}
		return nil
	}
}
