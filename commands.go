// SPDX-License-Identifier: GPL-3.0-or-later
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/CrawX/go-imap-cleaner/domain"
	"github.com/CrawX/go-imap-cleaner/log"
	"github.com/CrawX/go-imap-cleaner/persistence"
	"github.com/CrawX/go-imap-cleaner/report"
	"github.com/CrawX/go-imap-cleaner/scheduler"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run once and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := loadConfig()
			if err != nil {
				return err
			}
			logger := log.Logger(log.LOG_MAIN)

			store, err := openStore(conf)
			if err != nil {
				return err
			}
			history := openHistory(conf, logger)
			if history != nil {
				defer history.Close()
			}

			c, err := newCleaner(conf, store, history)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if conf.RunTimeout.Duration > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, conf.RunTimeout.Duration)
				defer cancel()
			}

			status, err := c.Run(ctx)
			if err != nil {
				return err
			}

			printStatus(cmd.OutOrStdout(), status)
			return nil
		},
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run periodically until interrupted, SIGUSR1 starts a manual run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := loadConfig()
			if err != nil {
				return err
			}
			logger := log.Logger(log.LOG_MAIN)

			store, err := openStore(conf)
			if err != nil {
				return err
			}
			history := openHistory(conf, logger)
			if history != nil {
				defer history.Close()
			}

			c, err := newCleaner(conf, store, history)
			if err != nil {
				return err
			}

			s := scheduler.NewScheduler(c.Run, scheduler.Options{
				Interval:   conf.Interval.Duration,
				RunTimeout: conf.RunTimeout.Duration,
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			stopManualRuns := notifyManualRun(ctx, s, logger)
			defer stopManualRuns()

			logger.WithFields(logrus.Fields{"server": conf.ImapHost, "mailbox": conf.Mailbox, "interval": conf.Interval.Duration}).Info("Serving")
			err = s.Start(ctx)
			if errors.Is(err, context.Canceled) {
				stats := s.Stats()
				logger.WithFields(logrus.Fields{"runs": stats.Runs, "failures": stats.Failures}).Info("Shut down")
				return nil
			}
			return err
		},
	}
}

// manualRun runs outside the schedule. A request while another run is active is rejected, not queued.
func manualRun(ctx context.Context, s *scheduler.Scheduler, logger *logrus.Logger) error {
	status, err := s.RunNow(ctx)
	if errors.Is(err, domain.ErrRunInProgress) {
		logger.WithField("state", s.State()).Warn("Ignoring manual run, a run is already in progress")
		return err
	}
	if err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{"total": status.Total, "report": status.Report}).Info("Manual run finished")
	return nil
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the result of the last successful run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := loadConfig()
			if err != nil {
				return err
			}

			store, err := openStore(conf)
			if err != nil {
				return err
			}

			status, err := store.ReadStatus()
			if errors.Is(err, domain.ErrCorruptStatus) {
				log.Logger(log.LOG_MAIN).WithField("error", err).Warn("Ignoring unreadable status")
				status, err = nil, nil
			}
			if err != nil {
				return err
			}
			if status == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "No status available")
				return nil
			}

			printStatus(cmd.OutOrStdout(), status)
			return nil
		},
	}
}

func resetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Delete the status, reports are kept",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := loadConfig()
			if err != nil {
				return err
			}

			store, err := openStore(conf)
			if err != nil {
				return err
			}

			err = store.ResetStatus()
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Status reset")
			return nil
		},
	}
}

func reportsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reports",
		Short: "List all reports, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := loadConfig()
			if err != nil {
				return err
			}

			store, err := openStore(conf)
			if err != nil {
				return err
			}

			reports, err := store.ListReports()
			if err != nil {
				return err
			}

			for _, r := range reports {
				fmt.Fprintln(cmd.OutOrStdout(), r)
			}
			return nil
		},
	}
}

func summaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Sum up all reports by action and category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := loadConfig()
			if err != nil {
				return err
			}

			store, err := openStore(conf)
			if err != nil {
				return err
			}

			summary, err := store.Summarize()
			if err != nil {
				return err
			}

			printSummary(cmd.OutOrStdout(), summary)
			return nil
		},
	}
}

func historyCmd() *cobra.Command {
	var limit int
	var prune time.Duration

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded runs, including failed ones",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := loadConfig()
			if err != nil {
				return err
			}

			p, err := persistence.NewPersistence(conf.Database)
			if err != nil {
				return err
			}
			defer p.Close()

			if prune > 0 {
				pruned, err := p.Prune(time.Now().Add(-prune))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d runs\n", pruned)
			}

			runs, err := p.Runs(limit)
			if err != nil {
				return err
			}
			totals, err := p.Totals()
			if err != nil {
				return err
			}
			categories, err := p.Categories()
			if err != nil {
				return err
			}

			printHistory(cmd.OutOrStdout(), runs, totals, categories)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to show, 0 shows all")
	cmd.Flags().DurationVar(&prune, "prune", 0, "delete runs older than this before showing the history")

	return cmd
}

func printStatus(w io.Writer, status *domain.RunStatus) {
	fmt.Fprintf(w, "Last run: %s (%s)\n", status.LastRun.Format(report.StatusTimeFormat), humanize.Time(status.LastRun))
	fmt.Fprintf(w, "Total:    %d\n", status.Total)
	fmt.Fprintf(w, "Archived: %d\n", status.Archived)
	fmt.Fprintf(w, "Trashed:  %d\n", status.Trashed)
	fmt.Fprintf(w, "Report:   %s\n", status.Report)
}

func printSummary(w io.Writer, summary *report.Summary) {
	fmt.Fprintf(w, "Reports:  %d\n", summary.Reports)
	fmt.Fprintf(w, "Total:    %d\n", summary.Total)
	fmt.Fprintf(w, "Archived: %d\n", summary.Archived)
	fmt.Fprintf(w, "Trashed:  %d\n", summary.Trashed)
	fmt.Fprintf(w, "Kept:     %d\n", summary.Kept)
	printCategories(w, summary.Categories)
}

func printHistory(w io.Writer, runs []*domain.RunRecord, totals *persistence.Totals, categories map[domain.Category]int) {
	for _, r := range runs {
		result := fmt.Sprintf("total=%d archived=%d trashed=%d", r.Total, r.Archived, r.Trashed)
		if len(r.Error) > 0 {
			result = "failed: " + r.Error
		}
		fmt.Fprintf(w, "%s  %s  %6s  %s\n", r.StartedAt.Format(report.StatusTimeFormat), r.Id, r.FinishedAt.Sub(r.StartedAt).Round(time.Second), result)
	}

	fmt.Fprintf(w, "\nRuns:     %d (%d failed)\n", totals.Runs, totals.FailedRuns)
	fmt.Fprintf(w, "Messages: %d (%d distinct)\n", totals.Messages, totals.DistinctMessages)
	fmt.Fprintf(w, "Archived: %d\n", totals.Archived)
	fmt.Fprintf(w, "Trashed:  %d\n", totals.Trashed)
	printCategories(w, categories)
}

func printCategories(w io.Writer, categories map[domain.Category]int) {
	names := make([]string, 0, len(categories))
	for c := range categories {
		names = append(names, string(c))
	}
	sort.Strings(names)

	for _, n := range names {
		fmt.Fprintf(w, "  %-10s %d\n", n, categories[domain.Category(n)])
	}
}
