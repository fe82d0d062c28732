// Package journal records parse, build and merge runs in a SQLite
// database so finished outputs can be traced back to their inputs.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/FocuswithJustin/hwpxkit/core/errors"
	"github.com/FocuswithJustin/hwpxkit/core/sqlite"
)

// Status of a journal entry.
type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Entry is one recorded run.
type Entry struct {
	ID         string    `json:"id" yaml:"id"`
	Session    string    `json:"session" yaml:"session"`
	Kind       string    `json:"kind" yaml:"kind"`
	Source     string    `json:"source" yaml:"source"`
	Selection  string    `json:"selection,omitempty" yaml:"selection,omitempty"`
	Output     string    `json:"output,omitempty" yaml:"output,omitempty"`
	Units      int       `json:"units" yaml:"units"`
	Digest     string    `json:"digest,omitempty" yaml:"digest,omitempty"`
	Status     Status    `json:"status" yaml:"status"`
	Error      string    `json:"error,omitempty" yaml:"error,omitempty"`
	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`
}

// Outcome is what Finish records about a completed run.
type Outcome struct {
	Output string
	Units  int
	Digest string
	Err    error
}

// Journal is a SQLite-backed run log.
type Journal struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
	now  func() time.Time
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	session TEXT NOT NULL,
	kind TEXT NOT NULL,
	source TEXT NOT NULL,
	selection TEXT NOT NULL DEFAULT '',
	output TEXT NOT NULL DEFAULT '',
	units INTEGER NOT NULL DEFAULT 0,
	digest TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	error TEXT NOT NULL DEFAULT '',
	started_at INTEGER NOT NULL,
	finished_at INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
CREATE INDEX IF NOT EXISTS idx_runs_session ON runs(session);
`

// Open opens or creates the journal at path. ":memory:" keeps it in
// memory.
func Open(path string) (*Journal, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, errors.NewIO("mkdir", filepath.Dir(path), err)
		}
	}
	db, err := sqlite.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "journal")
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "journal schema")
	}
	return &Journal{db: db, path: path, now: time.Now}, nil
}

// Path returns the database location.
func (j *Journal) Path() string {
	return j.path
}

// Close closes the database.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

// FormatSelection renders unit ids for the selection column.
func FormatSelection(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprint(id)
	}
	return strings.Join(parts, ",")
}

// Begin records a running entry and returns its id. An empty e.ID gets a
// fresh UUID.
func (j *Journal) Begin(ctx context.Context, e Entry) (string, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Kind == "" {
		return "", errors.NewValidation("kind", "journal entry needs a kind")
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	started := j.now().UTC()
	err := sqlite.RetryOnBusy(ctx, func() error {
		_, err := j.db.ExecContext(ctx,
			`INSERT INTO runs (id, session, kind, source, selection, status, started_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			e.ID, e.Session, e.Kind, e.Source, e.Selection, string(StatusRunning), started.UnixNano())
		return err
	})
	if err != nil {
		return "", errors.Wrap(err, "journal insert")
	}
	return e.ID, nil
}

// Finish marks entry id succeeded, or failed when o.Err is set.
func (j *Journal) Finish(ctx context.Context, id string, o Outcome) error {
	status, msg := StatusSucceeded, ""
	if o.Err != nil {
		status, msg = StatusFailed, o.Err.Error()
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	finished := j.now().UTC()
	var res sql.Result
	err := sqlite.RetryOnBusy(ctx, func() error {
		var err error
		res, err = j.db.ExecContext(ctx,
			`UPDATE runs SET output = ?, units = ?, digest = ?, status = ?, error = ?, finished_at = ?
			 WHERE id = ?`,
			o.Output, o.Units, o.Digest, string(status), msg, finished.UnixNano(), id)
		return err
	})
	if err != nil {
		return errors.Wrap(err, "journal update")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.NewNotFound("journal entry", id)
	}
	return nil
}

const columns = `id, session, kind, source, selection, output, units, digest, status, error, started_at, finished_at`

func scan(row interface{ Scan(...any) error }) (Entry, error) {
	var e Entry
	var status string
	var started, finished int64
	if err := row.Scan(&e.ID, &e.Session, &e.Kind, &e.Source, &e.Selection, &e.Output,
		&e.Units, &e.Digest, &status, &e.Error, &started, &finished); err != nil {
		return e, err
	}
	e.Status = Status(status)
	e.StartedAt = time.Unix(0, started).UTC()
	if finished != 0 {
		e.FinishedAt = time.Unix(0, finished).UTC()
	}
	return e, nil
}

// Get returns entry id.
func (j *Journal) Get(ctx context.Context, id string) (Entry, error) {
	e, err := scan(j.db.QueryRowContext(ctx, `SELECT `+columns+` FROM runs WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return e, errors.NewNotFound("journal entry", id)
	}
	if err != nil {
		return e, errors.Wrap(err, "journal get")
	}
	return e, nil
}

// Filter narrows List.
type Filter struct {
	Session string
	Status  Status
	Limit   int // 0 means no limit
}

// List returns entries newest first.
func (j *Journal) List(ctx context.Context, f Filter) ([]Entry, error) {
	query := `SELECT ` + columns + ` FROM runs`
	var where []string
	var args []any
	if f.Session != "" {
		where = append(where, "session = ?")
		args = append(args, f.Session)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY started_at DESC, rowid DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "journal list")
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scan(rows)
		if err != nil {
			return nil, errors.Wrap(err, "journal scan")
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Prune deletes finished entries that started before cutoff and returns
// how many were removed.
func (j *Journal) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	res, err := j.db.ExecContext(ctx,
		`DELETE FROM runs WHERE status != ? AND started_at < ?`,
		string(StatusRunning), cutoff.UnixNano())
	if err != nil {
		return 0, errors.Wrap(err, "journal prune")
	}
	return res.RowsAffected()
}
