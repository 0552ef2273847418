// SPDX-License-Identifier: GPL-3.0-or-later
package domain

import "context"

//go:generate mockgen -destination=mocks/imap.go -package=mocks . MailboxConnector

// FetchResult is the outcome of fetching a single message. Exactly one of RawMail and Err is set.
type FetchResult struct {
	Uid     uint32
	RawMail []byte
	Err     error
}

type MailboxConnector interface {
	Select(folder string) (uint32, error)
	ListUids() ([]uint32, error)
	FetchMails(ctx context.Context, uids []uint32) []*FetchResult

	Close() error
}

// MailboxDialer opens a new authenticated session. Every run dials its own session.
type MailboxDialer func(ctx context.Context) (MailboxConnector, error)
