// SPDX-License-Identifier: GPL-3.0-or-later
package report

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/CrawX/go-imap-cleaner/domain"
	"github.com/CrawX/go-imap-cleaner/log"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

const (
	StatusFile = "status.json"

	StatusTimeFormat = "2006-01-02 15:04:05"
	reportTimeFormat = "20060102_150405"
	reportGlob       = "report_*.csv"
)

var Columns = []string{"Date", "From", "Subject", "Category", "Action", "SizeMB", "Unsubscribe"}

type statusFile struct {
	LastRun  string `json:"last_run"`
	Total    int    `json:"total"`
	Archived int    `json:"archived"`
	Trashed  int    `json:"trashed"`
	Report   string `json:"report"`
}

// Store keeps one immutable CSV report per run and the status of the latest successful run in dir.
type Store struct {
	fs  afero.Fs
	dir string

	l *logrus.Logger
}

func NewStore(fs afero.Fs, dir string) (*Store, error) {
	err := fs.MkdirAll(dir, 0755)
	if err != nil {
		return nil, fmt.Errorf("could not create report directory: %w", err)
	}

	return &Store{
		fs:  fs,
		dir: dir,
		l:   log.Logger(log.LOG_REPORT),
	}, nil
}

func (s *Store) StatusPath() string {
	return filepath.Join(s.dir, StatusFile)
}

// WriteReport writes the messages to a new report file named after at and returns its path. Existing
// reports are never touched, a report of the same second gets a numbered suffix.
func (s *Store) WriteReport(at time.Time, messages []domain.CanonicalMessage) (string, error) {
	tmp, err := afero.TempFile(s.fs, s.dir, ".report-*.tmp")
	if err != nil {
		return "", fmt.Errorf("%w: could not create report file: %w", domain.ErrPersist, err)
	}

	err = writeCSV(tmp, messages)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return "", s.discard(tmp.Name(), fmt.Errorf("%w: could not write report: %w", domain.ErrPersist, err))
	}

	err = s.fs.Chmod(tmp.Name(), 0644)
	if err != nil {
		return "", s.discard(tmp.Name(), fmt.Errorf("%w: could not set report permissions: %w", domain.ErrPersist, err))
	}

	path, err := s.reserveReportPath(at)
	if err != nil {
		return "", s.discard(tmp.Name(), fmt.Errorf("%w: %w", domain.ErrPersist, err))
	}

	err = s.fs.Rename(tmp.Name(), path)
	if err != nil {
		err = s.discard(path, fmt.Errorf("%w: could not move report into place: %w", domain.ErrPersist, err))
		return "", s.discard(tmp.Name(), err)
	}

	s.l.WithFields(logrus.Fields{"report": path, "rows": len(messages)}).Info("Wrote report")
	return path, nil
}

func writeCSV(f afero.File, messages []domain.CanonicalMessage) error {
	w := csv.NewWriter(f)
	err := w.Write(Columns)
	if err != nil {
		return err
	}

	for _, m := range messages {
		date := ""
		if m.Date != nil {
			date = m.Date.Format(time.RFC3339)
		}

		err = w.Write([]string{
			date,
			m.From,
			m.Subject,
			string(m.Category),
			string(m.Action),
			strconv.FormatFloat(m.SizeMB, 'f', 2, 64),
			m.Unsubscribe,
		})
		if err != nil {
			return err
		}
	}

	w.Flush()
	err = w.Error()
	if err != nil {
		return err
	}

	return f.Sync()
}

// reserveReportPath creates an empty report file named after at and returns its path. The file is
// created exclusively, so a second writer in the same second moves on to the next suffix instead of
// replacing a report.
func (s *Store) reserveReportPath(at time.Time) (string, error) {
	base := filepath.Join(s.dir, "report_"+at.Format(reportTimeFormat))
	path := base + ".csv"
	for i := 1; ; i++ {
		f, err := s.fs.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0644)
		if err == nil {
			err = f.Close()
			if err != nil {
				return "", s.discard(path, fmt.Errorf("could not reserve report name: %w", err))
			}
			return path, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return "", fmt.Errorf("could not reserve report name: %w", err)
		}
		path = fmt.Sprintf("%s_%d.csv", base, i)
	}
}

// WriteStatus replaces the status file atomically: the new status is written to a temporary file in
// the same directory and renamed over the old one. On failure the previous status stays in place.
func (s *Store) WriteStatus(status *domain.RunStatus) error {
	data, err := json.Marshal(&statusFile{
		LastRun:  status.LastRun.Format(StatusTimeFormat),
		Total:    status.Total,
		Archived: status.Archived,
		Trashed:  status.Trashed,
		Report:   status.Report,
	})
	if err != nil {
		return fmt.Errorf("%w: could not serialize status: %w", domain.ErrPersist, err)
	}

	tmp, err := afero.TempFile(s.fs, s.dir, ".status-*.tmp")
	if err != nil {
		return fmt.Errorf("%w: could not create status file: %w", domain.ErrPersist, err)
	}

	_, err = tmp.Write(data)
	if err == nil {
		err = tmp.Sync()
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return s.discard(tmp.Name(), fmt.Errorf("%w: could not write status: %w", domain.ErrPersist, err))
	}

	err = s.fs.Chmod(tmp.Name(), 0644)
	if err != nil {
		return s.discard(tmp.Name(), fmt.Errorf("%w: could not set status permissions: %w", domain.ErrPersist, err))
	}

	err = s.fs.Rename(tmp.Name(), s.StatusPath())
	if err != nil {
		return s.discard(tmp.Name(), fmt.Errorf("%w: could not replace status: %w", domain.ErrPersist, err))
	}

	s.l.WithFields(logrus.Fields{"total": status.Total, "archived": status.Archived, "trashed": status.Trashed}).Debug("Updated status")
	return nil
}

func (s *Store) discard(tmpName string, err error) error {
	removeErr := s.fs.Remove(tmpName)
	if removeErr != nil && !os.IsNotExist(removeErr) {
		s.l.WithFields(logrus.Fields{"file": tmpName, "error": removeErr}).Warn("Could not remove temporary file")
	}
	return err
}

// ReadStatus returns nil without error when there is no status. A status that cannot be parsed yields
// an error wrapping domain.ErrCorruptStatus, callers treat it like a missing status.
func (s *Store) ReadStatus() (*domain.RunStatus, error) {
	data, err := afero.ReadFile(s.fs, s.StatusPath())
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: could not read status: %w", domain.ErrCorruptStatus, err)
	}

	sf := &statusFile{}
	err = json.Unmarshal(data, sf)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrCorruptStatus, err)
	}

	lastRun, err := time.ParseInLocation(StatusTimeFormat, sf.LastRun, time.Local)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid last_run: %w", domain.ErrCorruptStatus, err)
	}

	return &domain.RunStatus{
		LastRun:  lastRun,
		Total:    sf.Total,
		Archived: sf.Archived,
		Trashed:  sf.Trashed,
		Report:   sf.Report,
	}, nil
}

// ResetStatus removes the status file. Reports are left alone, a missing status is not an error.
func (s *Store) ResetStatus() error {
	err := s.fs.Remove(s.StatusPath())
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("could not remove status: %w", err)
	}

	s.l.Info("Status reset")
	return nil
}

// ListReports returns the paths of all reports, oldest first.
func (s *Store) ListReports() ([]string, error) {
	paths, err := afero.Glob(s.fs, filepath.Join(s.dir, reportGlob))
	if err != nil {
		return nil, fmt.Errorf("could not list reports: %w", err)
	}

	sort.Strings(paths)
	return paths, nil
}
