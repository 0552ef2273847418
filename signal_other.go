// SPDX-License-Identifier: GPL-3.0-or-later
//go:build !unix

package main

import (
	"context"

	"github.com/CrawX/go-imap-cleaner/scheduler"

	"github.com/sirupsen/logrus"
)

func notifyManualRun(ctx context.Context, s *scheduler.Scheduler, logger *logrus.Logger) func() {
	logger.Debug("Manual runs by signal are not supported on this platform")
	return func() {}
}
