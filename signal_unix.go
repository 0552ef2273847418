// SPDX-License-Identifier: GPL-3.0-or-later
//go:build unix

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/CrawX/go-imap-cleaner/scheduler"

	"github.com/sirupsen/logrus"
)

// notifyManualRun starts a manual run on SIGUSR1. The returned func stops listening and waits for
// a manual run in flight.
func notifyManualRun(ctx context.Context, s *scheduler.Scheduler, logger *logrus.Logger) func() {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGUSR1)

	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		for {
			select {
			case <-signals:
				logger.Info("Received SIGUSR1, starting manual run")
				_ = manualRun(ctx, s, logger)
			case <-done:
				return
			}
		}
	}()

	return func() {
		signal.Stop(signals)
		close(done)
		<-stopped
	}
}
