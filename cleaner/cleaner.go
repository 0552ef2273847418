// SPDX-License-Identifier: GPL-3.0-or-later
package cleaner

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/CrawX/go-imap-cleaner/classifier"
	"github.com/CrawX/go-imap-cleaner/domain"
	"github.com/CrawX/go-imap-cleaner/log"
	"github.com/CrawX/go-imap-cleaner/mail"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	DefaultWindow  = 50
	DefaultMailbox = "INBOX"
)

// Cleaner runs the fetch, classify and persist pipeline. Every run opens its own mailbox session.
type Cleaner struct {
	dialer     domain.MailboxDialer
	reports    domain.ReportStore
	classifier *classifier.ConcurrentClassifier

	configuration *configuration

	l *logrus.Logger
}

func NewCleaner(dialer domain.MailboxDialer, reports domain.ReportStore, configFunc ...ConfigFunc) (*Cleaner, error) {
	config := &configuration{
		Window:      DefaultWindow,
		Mailbox:     DefaultMailbox,
		Concurrency: classifier.DefaultConcurrency,
		Now:         time.Now,
	}
	for _, f := range configFunc {
		err := f(config)
		if err != nil {
			return nil, fmt.Errorf("error applying configuration: %w", err)
		}
	}

	return &Cleaner{
		dialer:        dialer,
		reports:       reports,
		classifier:    &classifier.ConcurrentClassifier{Concurrency: config.Concurrency},
		configuration: config,
		l:             log.Logger(log.LOG_CLEANER),
	}, nil
}

// Run executes one complete run. The mailbox session is closed before anything is written. A failed
// run leaves reports and status untouched, only a failing status write can leave a report without a
// matching status.
func (c *Cleaner) Run(ctx context.Context) (*domain.RunStatus, error) {
	run := &domain.RunRecord{
		Id:        uuid.NewString(),
		StartedAt: c.configuration.Now(),
	}
	baseLogger := c.l.WithFields(logrus.Fields{"run": run.Id, "mailbox": c.configuration.Mailbox})
	baseLogger.Info("Starting run")

	rawMails, err := c.fetch(ctx, baseLogger)
	if err != nil {
		return nil, c.fail(run, nil, baseLogger, err)
	}

	start := c.configuration.Now()
	messages := c.classifier.ClassifyAll(rawMails)
	baseLogger.WithFields(logrus.Fields{"messages": len(messages), "duration": c.configuration.Now().Sub(start)}).Debug("Classified mails")
	for _, m := range messages {
		baseLogger.WithFields(logrus.Fields{"subject": mail.ShortSubject(m.Subject), "category": m.Category, "action": m.Action, "size": m.SizeMB}).Debug("Classified mail")
	}

	at := c.configuration.Now()
	path, err := c.reports.WriteReport(at, messages)
	if err != nil {
		return nil, c.fail(run, messages, baseLogger, fmt.Errorf("could not write report: %w", err))
	}
	run.Report = path

	status := domain.NewRunStatus(at, messages, path)
	err = c.reports.WriteStatus(status)
	if err != nil {
		return nil, c.fail(run, messages, baseLogger, fmt.Errorf("could not write status: %w", err))
	}

	run.Total, run.Archived, run.Trashed = status.Total, status.Archived, status.Trashed
	c.record(run, messages, baseLogger)

	baseLogger.WithFields(logrus.Fields{"total": status.Total, "archived": status.Archived, "trashed": status.Trashed, "report": path}).Info("Run finished")
	return status, nil
}

// fetch returns the raw mails of the trailing window. Messages that cannot be fetched are skipped.
func (c *Cleaner) fetch(ctx context.Context, baseLogger *logrus.Entry) ([][]byte, error) {
	conn, err := c.dialer(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not connect: %w", err)
	}
	defer func() {
		err := conn.Close()
		if err != nil {
			baseLogger.WithField("error", err).Warn("Could not close mailbox session cleanly")
		}
	}()

	count, err := conn.Select(c.configuration.Mailbox)
	if err != nil {
		return nil, fmt.Errorf("%w: could not select mailbox %s: %w", domain.ErrConnection, c.configuration.Mailbox, err)
	}

	uids, err := conn.ListUids()
	if err != nil {
		return nil, fmt.Errorf("%w: could not list mailbox %s: %w", domain.ErrConnection, c.configuration.Mailbox, err)
	}

	uids = window(uids, c.configuration.Window)
	baseLogger.WithFields(logrus.Fields{"messages": count, "fetching": len(uids)}).Info("Fetching mails")

	start := c.configuration.Now()
	results := conn.FetchMails(ctx, uids)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("run aborted while fetching: %w", err)
	}

	rawMails := make([][]byte, 0, len(results))
	skipped := 0
	for _, r := range results {
		if r.Err != nil {
			skipped++
			baseLogger.WithFields(logrus.Fields{"uid": r.Uid, "error": r.Err}).Warn("Skipping mail")
			continue
		}
		rawMails = append(rawMails, r.RawMail)
	}

	baseLogger.WithFields(logrus.Fields{"fetched": len(rawMails), "skipped": skipped, "duration": c.configuration.Now().Sub(start)}).Info("Fetched mails")
	return rawMails, nil
}

func (c *Cleaner) fail(run *domain.RunRecord, messages []domain.CanonicalMessage, baseLogger *logrus.Entry, err error) error {
	run.Error = err.Error()
	c.record(run, messages, baseLogger)

	baseLogger.WithField("error", err).Error("Run failed")
	return err
}

// record is best effort, a run never fails because its history could not be written.
func (c *Cleaner) record(run *domain.RunRecord, messages []domain.CanonicalMessage, baseLogger *logrus.Entry) {
	if c.configuration.History == nil {
		return
	}

	run.FinishedAt = c.configuration.Now()
	err := c.configuration.History.SaveRun(run, messages)
	if err != nil {
		baseLogger.WithField("error", err).Warn("Could not record run in history")
	}
}

// window returns the n highest uids in ascending order.
func window(uids []uint32, n int) []uint32 {
	sorted := make([]uint32, len(uids))
	copy(sorted, uids)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	if len(sorted) > n {
		sorted = sorted[len(sorted)-n:]
	}
	return sorted
}
