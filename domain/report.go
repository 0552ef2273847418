// SPDX-License-Identifier: GPL-3.0-or-later
package domain

import "time"

//go:generate mockgen -destination=mocks/report.go -package=mocks . ReportStore,History

type RunStatus struct {
	LastRun  time.Time
	Total    int
	Archived int
	Trashed  int
	Report   string
}

// NewRunStatus tallies the actions of a finished run.
func NewRunStatus(lastRun time.Time, messages []CanonicalMessage, report string) *RunStatus {
	status := &RunStatus{
		LastRun: lastRun,
		Total:   len(messages),
		Report:  report,
	}
	for _, m := range messages {
		switch m.Action {
		case Archive:
			status.Archived++
		case Trash:
			status.Trashed++
		}
	}

	return status
}

type RunRecord struct {
	Id         string
	StartedAt  time.Time
	FinishedAt time.Time
	Total      int
	Archived   int
	Trashed    int
	Report     string
	Error      string
}

type ReportStore interface {
	WriteReport(at time.Time, messages []CanonicalMessage) (string, error)
	WriteStatus(status *RunStatus) error
}

type History interface {
	SaveRun(run *RunRecord, messages []CanonicalMessage) error
}
