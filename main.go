// SPDX-License-Identifier: GPL-3.0-or-later
package main

import (
	"fmt"
	"os"

	"github.com/CrawX/go-imap-cleaner/cleaner"
	"github.com/CrawX/go-imap-cleaner/config"
	"github.com/CrawX/go-imap-cleaner/imapconnection"
	"github.com/CrawX/go-imap-cleaner/log"
	"github.com/CrawX/go-imap-cleaner/persistence"
	"github.com/CrawX/go-imap-cleaner/report"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var (
	configFile string
	logLevel   string
	logFile    string
)

func main() {
	log.InitLogging("info")

	rootCmd := &cobra.Command{
		Use:           "go-imap-cleaner",
		Short:         "Classify the most recent mails of an IMAP mailbox and write a report per run",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "config.toml", "path to the configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "loglevel", "", "overrides Loglevel from the configuration file")
	rootCmd.PersistentFlags().StringVar(&logFile, "logfile", "", "append log output to this file instead of stderr")

	rootCmd.AddCommand(
		runCmd(),
		serveCmd(),
		statusCmd(),
		resetCmd(),
		reportsCmd(),
		summaryCmd(),
		historyCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		log.Logger(log.LOG_MAIN).WithField("error", err).Error("Command failed")
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	conf, err := config.ReadConfig(configFile)
	if err != nil {
		return nil, err
	}

	if conf.Loglevel != nil {
		log.SetLogLevel(*conf.Loglevel)
	}
	if len(logLevel) > 0 {
		log.SetLogLevel(logLevel)
	}
	if len(logFile) > 0 {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("could not open log file: %w", err)
		}
		log.SetOutput(f)
	}

	return conf, nil
}

func openStore(conf *config.Config) (*report.Store, error) {
	store, err := report.NewStore(afero.NewOsFs(), conf.ReportDir)
	if err != nil {
		return nil, fmt.Errorf("could not open report directory: %w", err)
	}
	return store, nil
}

// openHistory returns nil when the database cannot be opened, runs then go unrecorded.
func openHistory(conf *config.Config, logger *logrus.Logger) *persistence.Persistence {
	p, err := persistence.NewPersistence(conf.Database)
	if err != nil {
		logger.WithFields(logrus.Fields{"database": conf.Database, "error": err}).Warn("Could not open run history, runs will not be recorded")
		return nil
	}
	return p
}

func newCleaner(conf *config.Config, store *report.Store, history *persistence.Persistence) (*cleaner.Cleaner, error) {
	dialer := imapconnection.Dialer(imapconnection.Options{
		Host:               conf.ImapHost,
		Port:               conf.ImapPort,
		User:               conf.User,
		Password:           conf.Password,
		Security:           conf.Security,
		InsecureSkipVerify: conf.InsecureSkipVerify,
		DialTimeout:        conf.DialTimeout.Duration,
	})

	configs := []cleaner.ConfigFunc{
		cleaner.Mailbox(conf.Mailbox),
		cleaner.Window(conf.Window),
		cleaner.Concurrency(conf.Concurrency),
	}
	if history != nil {
		configs = append(configs, cleaner.RecordHistory(history))
	}

	c, err := cleaner.NewCleaner(dialer, store, configs...)
	if err != nil {
		return nil, fmt.Errorf("could not create cleaner: %w", err)
	}
	return c, nil
}
