// SPDX-License-Identifier: GPL-3.0-or-later
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/CrawX/go-imap-cleaner/imapconnection"

	"github.com/BurntSushi/toml"
)

// Duration reads a duration string like "6h" or "30m".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}

	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

type Config struct {
	ImapHost           string
	ImapPort           int
	User               string
	Password           string
	Security           string
	InsecureSkipVerify bool
	Mailbox            string

	Window      int
	Concurrency int

	ReportDir string
	Database  string

	Interval    Duration
	RunTimeout  Duration
	DialTimeout Duration

	Loglevel *string
}

func defaults() *Config {
	return &Config{
		ImapPort:    1143,
		Security:    imapconnection.SecurityStartTLS,
		Mailbox:     "INBOX",
		Window:      50,
		Concurrency: 4,
		ReportDir:   "reports",
		Database:    "history.db",
		Interval:    Duration{6 * time.Hour},
		RunTimeout:  Duration{30 * time.Minute},
		DialTimeout: Duration{imapconnection.DefaultDialTimeout},
	}
}

func ReadConfig(filename string) (*Config, error) {
	config := defaults()

	_, err := toml.DecodeFile(filename, config)
	if err != nil {
		return nil, fmt.Errorf("could not read config file: %w", err)
	}

	err = config.validate()
	if err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) validate() error {
	if err := validateNonEmptyStringField(c.ImapHost, "ImapHost must not be empty, set to the hostname of the imap server"); err != nil {
		return err
	}

	if c.ImapPort <= 0 || c.ImapPort > 65535 {
		return fmt.Errorf("ImapPort %d is not a valid port", c.ImapPort)
	}

	if err := validateNonEmptyStringField(c.User, "User must not be empty, set to username on the imap server"); err != nil {
		return err
	}

	if err := validateNonEmptyStringField(c.Password, "Password must not be empty, set to password of User on the imap server"); err != nil {
		return err
	}

	switch c.Security {
	case imapconnection.SecurityStartTLS, imapconnection.SecurityTLS, imapconnection.SecurityNone:
	default:
		return fmt.Errorf("Security must be one of %s, %s or %s, got %q",
			imapconnection.SecurityStartTLS, imapconnection.SecurityTLS, imapconnection.SecurityNone, c.Security)
	}

	if err := validateNonEmptyStringField(c.Mailbox, "Mailbox must not be empty, set to the folder to scan"); err != nil {
		return err
	}

	if c.Window <= 0 {
		return fmt.Errorf("Window must be greater than 0")
	}

	if c.Concurrency <= 0 {
		return fmt.Errorf("Concurrency must be greater than 0")
	}

	if err := validateNonEmptyStringField(c.ReportDir, "ReportDir must not be empty, set to the directory for reports and the status file"); err != nil {
		return err
	}

	if err := validateNonEmptyStringField(c.Database, "Database must not be empty, set to a filename for the sqlite database"); err != nil {
		return err
	}

	if c.Interval.Duration <= 0 {
		return fmt.Errorf("Interval must be greater than 0")
	}

	if c.RunTimeout.Duration < 0 || c.DialTimeout.Duration < 0 {
		return fmt.Errorf("RunTimeout and DialTimeout must not be negative")
	}

	return nil
}

func validateNonEmptyStringField(field string, err string) error {
	if len(strings.TrimSpace(field)) == 0 {
		return errors.New(err)
	}

	return nil
}
