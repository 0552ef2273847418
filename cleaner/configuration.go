// SPDX-License-Identifier: GPL-3.0-or-later
package cleaner

import (
	"fmt"
	"time"

	"github.com/CrawX/go-imap-cleaner/domain"
)

type ConfigFunc func(c *configuration) error

// Window limits a run to the n most recent messages.
func Window(n int) ConfigFunc {
	return func(c *configuration) error {
		if n <= 0 {
			return fmt.Errorf("Window must be greater than 0")
		}

		c.Window = n
		return nil
	}
}

func Mailbox(name string) ConfigFunc {
	return func(c *configuration) error {
		if len(name) == 0 {
			return fmt.Errorf("Mailbox cannot be empty")
		}

		c.Mailbox = name
		return nil
	}
}

func Concurrency(n int) ConfigFunc {
	return func(c *configuration) error {
		if n <= 0 {
			return fmt.Errorf("Concurrency must be greater than 0")
		}

		c.Concurrency = n
		return nil
	}
}

// RecordHistory stores every run in the given history.
func RecordHistory(history domain.History) ConfigFunc {
	return func(c *configuration) error {
		if history == nil {
			return fmt.Errorf("History cannot be nil")
		}

		c.History = history
		return nil
	}
}

func Clock(now func() time.Time) ConfigFunc {
	return func(c *configuration) error {
		if now == nil {
			return fmt.Errorf("Clock cannot be nil")
		}

		c.Now = now
		return nil
	}
}

type configuration struct {
	Window      int
	Mailbox     string
	Concurrency int

	History domain.History
	Now     func() time.Time
}
