// SPDX-License-Identifier: GPL-3.0-or-later
package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/CrawX/go-imap-cleaner/domain"
	"github.com/CrawX/go-imap-cleaner/log"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rubenv/sql-migrate"
	"github.com/sirupsen/logrus"
)

var migrations = &migrate.MemoryMigrationSource{
	Migrations: []*migrate.Migration{
		{
			Id: "1_runs",
			Up: []string{
				`CREATE TABLE runs (
					id TEXT PRIMARY KEY,
					started_at DATETIME NOT NULL,
					finished_at DATETIME NOT NULL,
					total INTEGER NOT NULL,
					archived INTEGER NOT NULL,
					trashed INTEGER NOT NULL,
					report TEXT NOT NULL,
					error TEXT NOT NULL
				)`,
				`CREATE INDEX runs_started_at ON runs (started_at)`,
				`CREATE TABLE messages (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					run_id TEXT NOT NULL REFERENCES runs (id) ON DELETE CASCADE,
					date DATETIME,
					sender TEXT NOT NULL,
					subject TEXT NOT NULL,
					category TEXT NOT NULL,
					action TEXT NOT NULL,
					size_mb REAL NOT NULL,
					unsubscribe TEXT NOT NULL,
					message_key TEXT NOT NULL
				)`,
				`CREATE INDEX messages_run_id ON messages (run_id)`,
				`CREATE INDEX messages_message_key ON messages (message_key)`,
			},
			Down: []string{
				`DROP TABLE messages`,
				`DROP TABLE runs`,
			},
		},
	},
}

// Totals aggregates the whole history.
type Totals struct {
	Runs             int `db:"runs"`
	FailedRuns       int `db:"failed_runs"`
	Messages         int `db:"messages"`
	DistinctMessages int `db:"distinct_messages"`
	Archived         int `db:"archived"`
	Trashed          int `db:"trashed"`
}

// Persistence is the run history. Every run is stored with the messages it classified, failed runs
// with their error.
type Persistence struct {
	db *sqlx.DB
	l  *logrus.Logger
}

func NewPersistence(datasource string) (*Persistence, error) {
	db, err := sqlx.Connect("sqlite3", datasource)
	if err != nil {
		return nil, fmt.Errorf("could not open db: %w", err)
	}
	db.SetMaxOpenConns(1)

	l := log.Logger(log.LOG_PERSISTENCE)
	l.WithField("file", datasource).Info("Connected")

	_, err = db.Exec(`PRAGMA journal_mode=WAL`)
	if err != nil {
		return nil, closeOnErr(db, fmt.Errorf("could not set journal mode: %w", err))
	}
	_, err = db.Exec(`PRAGMA synchronous=normal`)
	if err != nil {
		return nil, closeOnErr(db, fmt.Errorf("could not set synchronous mode: %w", err))
	}
	_, err = db.Exec(`PRAGMA foreign_keys=on`)
	if err != nil {
		return nil, closeOnErr(db, fmt.Errorf("could not enable foreign keys: %w", err))
	}

	appliedMigrations, err := migrate.Exec(db.DB, "sqlite3", migrations, migrate.Up)
	if err != nil {
		return nil, closeOnErr(db, fmt.Errorf("could not migrate to newest version: %w", err))
	}

	l.WithField("migrations", appliedMigrations).Debug("Executed migrations")

	return &Persistence{
		db: db,
		l:  l,
	}, nil
}

func closeOnErr(db *sqlx.DB, err error) error {
	_ = db.Close()
	return err
}

func (p *Persistence) Close() error {
	err := p.db.Close()
	if err != nil {
		return fmt.Errorf("could not close db: %w", err)
	}
	p.l.Info("Disconnected")
	return nil
}

// SaveRun stores the run and its messages in one transaction. A run without an id gets a new one.
func (p *Persistence) SaveRun(run *domain.RunRecord, messages []domain.CanonicalMessage) error {
	if len(run.Id) == 0 {
		run.Id = uuid.New().String()
	}

	tx, err := p.db.BeginTxx(context.TODO(), nil)
	if err != nil {
		return fmt.Errorf("could not start transaction: %w", err)
	}

	_, err = tx.Exec(
		"INSERT INTO runs (id, started_at, finished_at, total, archived, trashed, report, error) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		run.Id, run.StartedAt.UTC(), run.FinishedAt.UTC(), run.Total, run.Archived, run.Trashed, run.Report, run.Error,
	)
	if err != nil {
		return txEnd(tx, fmt.Errorf("could not save run: %w", err))
	}

	stmt, err := tx.Prepare(
		"INSERT INTO messages (run_id, date, sender, subject, category, action, size_mb, unsubscribe, message_key) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
	)
	if err != nil {
		return txEnd(tx, fmt.Errorf("could not prepare statement: %w", err))
	}
	defer stmt.Close()

	for _, m := range messages {
		date := sql.NullTime{}
		if m.Date != nil {
			date = sql.NullTime{Time: m.Date.UTC(), Valid: true}
		}

		_, err := stmt.Exec(
			run.Id, date, m.From, m.Subject, string(m.Category), string(m.Action), m.SizeMB, m.Unsubscribe, m.MessageKey,
		)
		if err != nil {
			return txEnd(tx, fmt.Errorf("could not save message: %w", err))
		}
	}

	err = txEnd(tx, nil)
	if err != nil {
		return err
	}

	p.l.WithFields(logrus.Fields{"run": run.Id, "messages": len(messages), "failed": len(run.Error) > 0}).Debug("Persisted run")
	return nil
}

// Runs returns the latest runs, newest first. A limit <= 0 returns all runs.
func (p *Persistence) Runs(limit int) ([]*domain.RunRecord, error) {
	if limit <= 0 {
		limit = -1
	}

	dbRuns := []struct {
		Id         string    `db:"id"`
		StartedAt  time.Time `db:"started_at"`
		FinishedAt time.Time `db:"finished_at"`
		Total      int       `db:"total"`
		Archived   int       `db:"archived"`
		Trashed    int       `db:"trashed"`
		Report     string    `db:"report"`
		Error      string    `db:"error"`
	}{}

	err := p.db.Select(
		&dbRuns,
		`SELECT id, started_at, finished_at, total, archived, trashed, report, error FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("could not query db: %w", err)
	}

	runs := []*domain.RunRecord{}
	for _, r := range dbRuns {
		runs = append(
			runs,
			&domain.RunRecord{
				Id:         r.Id,
				StartedAt:  r.StartedAt.Local(),
				FinishedAt: r.FinishedAt.Local(),
				Total:      r.Total,
				Archived:   r.Archived,
				Trashed:    r.Trashed,
				Report:     r.Report,
				Error:      r.Error,
			},
		)
	}

	return runs, nil
}

// Totals counts runs and messages over the whole history. DistinctMessages counts messages seen in
// several runs once.
func (p *Persistence) Totals() (*Totals, error) {
	totals := &Totals{}

	err := p.db.Get(
		totals,
		`SELECT
			COUNT(*) AS runs,
			COALESCE(SUM(CASE WHEN error != '' THEN 1 ELSE 0 END), 0) AS failed_runs,
			0 AS messages, 0 AS distinct_messages, 0 AS archived, 0 AS trashed
		FROM runs`,
	)
	if err != nil {
		return nil, fmt.Errorf("could not query runs: %w", err)
	}

	messages := &Totals{}
	err = p.db.Get(
		messages,
		`SELECT
			0 AS runs, 0 AS failed_runs,
			COUNT(*) AS messages,
			COUNT(DISTINCT NULLIF(message_key, '')) AS distinct_messages,
			COALESCE(SUM(CASE WHEN action = ? THEN 1 ELSE 0 END), 0) AS archived,
			COALESCE(SUM(CASE WHEN action = ? THEN 1 ELSE 0 END), 0) AS trashed
		FROM messages`,
		string(domain.Archive),
		string(domain.Trash),
	)
	if err != nil {
		return nil, fmt.Errorf("could not query messages: %w", err)
	}

	totals.Messages = messages.Messages
	totals.DistinctMessages = messages.DistinctMessages
	totals.Archived = messages.Archived
	totals.Trashed = messages.Trashed

	return totals, nil
}

// Categories counts the stored messages per category.
func (p *Persistence) Categories() (map[domain.Category]int, error) {
	rows := []struct {
		Category string `db:"category"`
		Count    int    `db:"count"`
	}{}

	err := p.db.Select(&rows, `SELECT category, COUNT(*) AS count FROM messages GROUP BY category`)
	if err != nil {
		return nil, fmt.Errorf("could not query db: %w", err)
	}

	result := map[domain.Category]int{}
	for _, r := range rows {
		result[domain.Category(r.Category)] = r.Count
	}

	return result, nil
}

// Prune deletes runs started before the given time together with their messages.
func (p *Persistence) Prune(before time.Time) (int64, error) {
	result, err := p.db.Exec("DELETE FROM runs WHERE started_at < ?", before.UTC())
	if err != nil {
		return 0, fmt.Errorf("could not prune runs: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("could not get num of affected rows: %w", err)
	}

	p.l.WithFields(logrus.Fields{"before": before, "runs": affected}).Info("Pruned history")
	return affected, nil
}

func txEnd(tx *sqlx.Tx, err error) error {
	if err == nil {
		err = tx.Commit()
		if err != nil {
			return fmt.Errorf("could not commit tx: %w", err)
		}
	} else {
		rollbackErr := tx.Rollback()
		if rollbackErr != nil {
			errStr := err.Error()
			return fmt.Errorf("%s, could not rollback tx: %w", errStr, rollbackErr)
		} else {
			return err
		}
	}

	return nil
}
