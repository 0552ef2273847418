// SPDX-License-Identifier: GPL-3.0-or-later
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/CrawX/go-imap-cleaner/domain"
	"github.com/CrawX/go-imap-cleaner/log"

	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"
)

const (
	DefaultInterval   = 6 * time.Hour
	DefaultRunTimeout = 30 * time.Minute
)

type State int32

const (
	Idle State = iota
	Running
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	default:
		return fmt.Sprintf("unknown(%d)", int32(s))
	}
}

type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

// RunFunc executes a single run.
type RunFunc func(ctx context.Context) (*domain.RunStatus, error)

type Options struct {
	// Interval is the pause between the end of a run and the start of the next one.
	Interval time.Duration
	// RunTimeout bounds a single run, zero disables it.
	RunTimeout time.Duration
	Clock      Clock
}

type Stats struct {
	State        State
	Runs         int64
	Failures     int64
	LastFinished time.Time
	LastError    string
}

// Scheduler drives runs periodically and on demand. Only one run is active at any time: the periodic
// loop waits for a manual run to finish, a manual run is rejected while another run is active.
type Scheduler struct {
	run        RunFunc
	interval   time.Duration
	runTimeout time.Duration
	clock      Clock

	slot sync.Mutex

	running      atomic.Bool
	runs         atomic.Int64
	failures     atomic.Int64
	lastFinished atomic.Time
	lastError    atomic.String

	l *logrus.Logger
}

func NewScheduler(run RunFunc, opts Options) *Scheduler {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Clock == nil {
		opts.Clock = realClock{}
	}

	return &Scheduler{
		run:        run,
		interval:   opts.Interval,
		runTimeout: opts.RunTimeout,
		clock:      opts.Clock,
		l:          log.Logger(log.LOG_SCHEDULER),
	}
}

// Start runs immediately and then once per interval until ctx is done. A failed run is logged and
// does not stop the loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.l.WithFields(logrus.Fields{"interval": s.interval, "timeout": s.runTimeout}).Info("Scheduler started")
	for {
		if err := ctx.Err(); err != nil {
			s.l.Info("Scheduler stopped")
			return err
		}

		s.slot.Lock()
		_, _ = s.execute(ctx, "schedule")
		s.slot.Unlock()

		s.l.WithField("next", s.clock.Now().Add(s.interval).Format(time.RFC3339)).Debug("Waiting for next run")
		select {
		case <-ctx.Done():
			s.l.Info("Scheduler stopped")
			return ctx.Err()
		case <-s.clock.After(s.interval):
		}
	}
}

// RunNow runs synchronously outside the schedule, serve starts it on SIGUSR1. It returns
// domain.ErrRunInProgress without waiting when a run is active. The periodic loop keeps its timer.
func (s *Scheduler) RunNow(ctx context.Context) (*domain.RunStatus, error) {
	if !s.slot.TryLock() {
		s.l.Warn("Rejected manual run, a run is already in progress")
		return nil, domain.ErrRunInProgress
	}
	defer s.slot.Unlock()

	return s.execute(ctx, "manual")
}

func (s *Scheduler) State() State {
	if s.running.Load() {
		return Running
	}
	return Idle
}

func (s *Scheduler) Stats() Stats {
	return Stats{
		State:        s.State(),
		Runs:         s.runs.Load(),
		Failures:     s.failures.Load(),
		LastFinished: s.lastFinished.Load(),
		LastError:    s.lastError.Load(),
	}
}

// execute must be called with the slot held.
func (s *Scheduler) execute(ctx context.Context, source string) (status *domain.RunStatus, err error) {
	runCtx := ctx
	if s.runTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.runTimeout)
		defer cancel()
	}

	s.running.Store(true)
	defer s.running.Store(false)
	s.runs.Inc()

	baseLogger := s.l.WithField("source", source)
	start := s.clock.Now()
	defer func() {
		if r := recover(); r != nil {
			status, err = nil, fmt.Errorf("run panicked: %v", r)
		}

		s.lastFinished.Store(s.clock.Now())
		if err != nil {
			s.failures.Inc()
			s.lastError.Store(err.Error())
			baseLogger.WithFields(logrus.Fields{"error": err, "duration": s.clock.Now().Sub(start)}).Error("Run failed")
			return
		}

		s.lastError.Store("")
		entry := baseLogger.WithField("duration", s.clock.Now().Sub(start))
		if status != nil {
			entry = entry.WithFields(logrus.Fields{"total": status.Total, "report": status.Report})
		}
		entry.Info("Run succeeded")
	}()

	return s.run(runCtx)
}
