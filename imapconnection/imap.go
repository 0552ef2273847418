// SPDX-License-Identifier: GPL-3.0-or-later
package imapconnection

//go:generate mockgen -destination=imap_mocks_test.go -package=imapconnection -source imap.go
import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io/ioutil"
	"net"
	"strconv"
	"time"

	"github.com/CrawX/go-imap-cleaner/domain"
	"github.com/CrawX/go-imap-cleaner/log"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/sirupsen/logrus"
)

const (
	SecurityStartTLS = "starttls"
	SecurityTLS      = "tls"
	SecurityNone     = "none"

	DefaultDialTimeout = 30 * time.Second
)

var ErrStartTLSUnsupported = errors.New("server does not support STARTTLS")

// Options configure a single mailbox session.
type Options struct {
	Host     string
	Port     int
	User     string
	Password string

	// Security is one of SecurityStartTLS (default), SecurityTLS or SecurityNone.
	Security           string
	InsecureSkipVerify bool

	DialTimeout time.Duration
	// CommandTimeout bounds every single IMAP command, zero disables it.
	CommandTimeout time.Duration
}

func (o Options) address() string {
	return net.JoinHostPort(o.Host, strconv.Itoa(o.Port))
}

// imapClient is the subset of *client.Client a session needs.
type imapClient interface {
	Select(name string, readOnly bool) (*imap.MailboxStatus, error)
	UidSearch(criteria *imap.SearchCriteria) ([]uint32, error)
	UidFetch(seqset *imap.SeqSet, items []imap.FetchItem, ch chan *imap.Message) error
	Logout() error
	Terminate() error
}

type ImapConnection struct {
	connection imapClient
	stopAbort  func() bool

	server         string
	selectedFolder string

	l *logrus.Logger
}

// Dialer returns a domain.MailboxDialer that opens a fresh session with the given options.
func Dialer(opts Options) domain.MailboxDialer {
	return func(ctx context.Context) (domain.MailboxConnector, error) {
		return NewImapConnection(ctx, opts)
	}
}

// NewImapConnection connects, secures and authenticates a session. The session is terminated when ctx
// is cancelled. Every error wraps domain.ErrConnection and leaves no open socket behind.
func NewImapConnection(ctx context.Context, opts Options) (*ImapConnection, error) {
	l := log.Logger(log.LOG_IMAP)
	baseLogger := l.WithFields(logrus.Fields{"server": opts.address(), "security": opts.Security})

	imapClient, err := dial(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: could not dial to imap: %w", domain.ErrConnection, err)
	}
	imapClient.ErrorLog = l
	imapClient.Timeout = opts.CommandTimeout

	abort := func() {
		baseLogger.Warn("Run cancelled, terminating connection")
		_ = imapClient.Terminate()
	}
	stopAbort := context.AfterFunc(ctx, abort)

	fail := func(format string, err error) (*ImapConnection, error) {
		if stopAbort() {
			_ = imapClient.Terminate()
		}
		return nil, fmt.Errorf("%w: "+format, domain.ErrConnection, err)
	}

	if opts.Security == SecurityStartTLS || len(opts.Security) == 0 {
		supported, err := imapClient.SupportStartTLS()
		if err != nil {
			return fail("could not check for STARTTLS support: %w", err)
		}
		if !supported {
			return fail("%w", ErrStartTLSUnsupported)
		}

		err = imapClient.StartTLS(tlsConfig(opts))
		if err != nil {
			return fail("could not upgrade to TLS: %w", err)
		}
		baseLogger.Debug("Upgraded connection to TLS")
	} else if opts.Security == SecurityNone {
		baseLogger.Warn("Connection is not encrypted, credentials are sent in plain text")
	}

	err = imapClient.Login(opts.User, opts.Password)
	if err != nil {
		return fail("could not login to imap: %w", err)
	}

	baseLogger.Debug("Logged in to server")

	return &ImapConnection{
		connection: imapClient,
		stopAbort:  stopAbort,
		server:     opts.address(),
		l:          l,
	}, nil
}

func dial(opts Options) (*client.Client, error) {
	timeout := opts.DialTimeout
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}
	dialer := &net.Dialer{Timeout: timeout}

	if opts.Security == SecurityTLS {
		return client.DialWithDialerTLS(dialer, opts.address(), tlsConfig(opts))
	}

	return client.DialWithDialer(dialer, opts.address())
}

func tlsConfig(opts Options) *tls.Config {
	return &tls.Config{
		ServerName:         opts.Host,
		InsecureSkipVerify: opts.InsecureSkipVerify,
	}
}

// Select opens the folder read-only and returns the number of messages in it.
func (ic *ImapConnection) Select(folder string) (uint32, error) {
	m, err := ic.connection.Select(folder, true)
	if err != nil {
		return 0, fmt.Errorf("could not select folder: %w", err)
	}

	ic.selectedFolder = folder
	return m.Messages, nil
}

func (ic *ImapConnection) ListUids() ([]uint32, error) {
	// Get all UIDs in folder (empty search criteria)
	criteria := imap.NewSearchCriteria()
	ids, err := ic.connection.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("could not list folder: %w", err)
	}

	return ids, nil
}

// FetchMails fetches every uid on its own so a broken message does not take the others down. The
// result has one entry per uid in the same order.
func (ic *ImapConnection) FetchMails(ctx context.Context, uids []uint32) []*domain.FetchResult {
	results := make([]*domain.FetchResult, 0, len(uids))
	for _, uid := range uids {
		if err := ctx.Err(); err != nil {
			results = append(results, &domain.FetchResult{Uid: uid, Err: fmt.Errorf("%w: %v", domain.ErrMessageFetch, err)})
			continue
		}

		rawMail, err := ic.fetchMail(uid)
		if err != nil {
			ic.l.WithFields(logrus.Fields{"folder": ic.selectedFolder, "uid": uid, "error": err}).Warn("Could not fetch mail")
			results = append(results, &domain.FetchResult{Uid: uid, Err: fmt.Errorf("%w: uid %d: %v", domain.ErrMessageFetch, uid, err)})
			continue
		}

		results = append(results, &domain.FetchResult{Uid: uid, RawMail: rawMail})
	}

	return results
}

func (ic *ImapConnection) fetchMail(uid uint32) ([]byte, error) {
	seqset := &imap.SeqSet{}
	seqset.AddNum(uid)

	fullBodySection := &imap.BodySectionName{
		Peek: true,
	}
	fetchItems := []imap.FetchItem{fullBodySection.FetchItem()}

	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- ic.connection.UidFetch(seqset, fetchItems, messages)
	}()

	var rawMail []byte
	var readErr error
	for msg := range messages {
		r := msg.GetBody(fullBodySection)
		if r == nil {
			readErr = fmt.Errorf("server returned no body")
			continue
		}
		rawMail, readErr = ioutil.ReadAll(r)
	}

	err := <-done
	if err != nil {
		return nil, fmt.Errorf("could not fetch mail: %w", err)
	}
	if readErr != nil {
		return nil, fmt.Errorf("could not read mail body: %w", readErr)
	}
	if rawMail == nil {
		return nil, fmt.Errorf("mail not found")
	}

	return rawMail, nil
}

// Close logs out. The socket is released even when the logout fails.
func (ic *ImapConnection) Close() error {
	ic.stopAbort()

	err := ic.connection.Logout()
	if err != nil {
		_ = ic.connection.Terminate()
		return fmt.Errorf("could not logout: %w", err)
	}

	ic.l.WithFields(logrus.Fields{"server": ic.server}).Debug("Logged out")
	return nil
}
