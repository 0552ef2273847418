// SPDX-License-Identifier: GPL-3.0-or-later
package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/CrawX/go-imap-cleaner/domain"

	"github.com/sirupsen/logrus"
)

// Summary aggregates all reports.
type Summary struct {
	Reports  int
	Total    int
	Archived int
	Trashed  int
	Kept     int

	Categories map[domain.Category]int
}

// LoadReport parses a report. An empty file is a report without rows. Rows with an unparsable date or
// size keep the zero value for that field.
func (s *Store) LoadReport(path string) ([]domain.CanonicalMessage, error) {
	f, err := s.fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open report: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(Columns)

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("could not read report header: %w", err)
	}
	for i, c := range Columns {
		if header[i] != c {
			return nil, fmt.Errorf("unexpected report column %q, expected %q", header[i], c)
		}
	}

	messages := []domain.CanonicalMessage{}
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("could not read report row: %w", err)
		}

		msg := domain.CanonicalMessage{
			From:        record[1],
			Subject:     record[2],
			Category:    domain.Category(record[3]),
			Action:      domain.Action(record[4]),
			Unsubscribe: record[6],
		}
		if date, err := time.Parse(time.RFC3339, record[0]); err == nil {
			msg.Date = &date
		}
		if size, err := strconv.ParseFloat(record[5], 64); err == nil {
			msg.SizeMB = size
		}

		messages = append(messages, msg)
	}

	return messages, nil
}

// Summarize counts the rows of all reports by action and category. Reports that cannot be read are
// skipped.
func (s *Store) Summarize() (*Summary, error) {
	paths, err := s.ListReports()
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		Categories: map[domain.Category]int{},
	}
	for _, p := range paths {
		messages, err := s.LoadReport(p)
		if err != nil {
			s.l.WithFields(logrus.Fields{"report": p, "error": err}).Warn("Skipping unreadable report")
			continue
		}

		summary.Reports++
		for _, m := range messages {
			summary.Total++
			summary.Categories[m.Category]++
			switch m.Action {
			case domain.Archive:
				summary.Archived++
			case domain.Trash:
				summary.Trashed++
			case domain.Keep:
				summary.Kept++
			}
		}
	}

	return summary, nil
}
