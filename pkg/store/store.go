package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"aidr-hq/bastion/pkg/notify"
	"aidr-hq/bastion/pkg/verdict"
)

// Options configures the store.
type Options struct {
	// Path of the database file. Parent directories are created.
	Path string

	// BusyTimeout is how long to wait on a locked database. Default: 5s
	BusyTimeout time.Duration
}

// Record is one stored verdict.
type Record struct {
	ID        string                   `json:"id"`
	TaskID    string                   `json:"task_id"`
	Flow      string                   `json:"flow"`
	Status    verdict.Status           `json:"status"`
	Pipelines []verdict.PipelineResult `json:"pipelines"`
	Prompt    string                   `json:"prompt,omitempty"`
	Service   notify.Service           `json:"service"`
	CreatedAt time.Time                `json:"created_at"`
}

// Query filters List results. Zero fields do not filter.
type Query struct {
	TaskID string
	Flow   string
	Status verdict.Status
	Since  time.Time

	// Limit caps the number of records, newest first. Default: 100
	Limit int
}

// Store is a sqlite-backed verdict store.
type Store struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// Open opens or creates the database and applies the schema.
func Open(opts Options, logger *slog.Logger) (*Store, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("store path is required")
	}
	if opts.BusyTimeout <= 0 {
		opts.BusyTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	if dir := filepath.Dir(opts.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", opts.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	// sqlite allows a single writer.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, path: opts.Path, logger: logger.With("component", "store")}
	if err := s.initialize(opts.BusyTimeout); err != nil {
		db.Close()
		return nil, err
	}

	s.logger.Info("verdict store opened", "path", opts.Path)
	return s, nil
}

func (s *Store) initialize(busyTimeout time.Duration) error {
	if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return fmt.Errorf("failed to enable WAL: %w", err)
	}
	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", busyTimeout.Milliseconds())); err != nil {
		return fmt.Errorf("failed to set busy timeout: %w", err)
	}
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	if _, err := s.db.Exec(insertSchemaVersion, schemaVersion); err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}

	var version int
	if err := s.db.QueryRow(getSchemaVersion).Scan(&version); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("schema version mismatch: expected %d, got %d", schemaVersion, version)
	}
	return nil
}

// Name returns "store".
func (s *Store) Name() string { return "store" }

// Deliver records ev.
func (s *Store) Deliver(ctx context.Context, ev *notify.Event) error {
	pipelines, err := json.Marshal(ev.Pipelines)
	if err != nil {
		return fmt.Errorf("failed to encode pipelines: %w", err)
	}
	created := ev.Timestamp
	if created.IsZero() {
		created = time.Now()
	}

	_, err = s.db.ExecContext(ctx, insertVerdict,
		uuid.NewString(),
		ev.TaskID,
		ev.Flow,
		string(ev.Status),
		string(pipelines),
		nullString(ev.Prompt),
		ev.Service.Name,
		ev.Service.Version,
		created.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert verdict: %w", err)
	}
	return nil
}

// List returns matching records, newest first.
func (s *Store) List(ctx context.Context, q Query) ([]Record, error) {
	if q.Limit <= 0 {
		q.Limit = 100
	}

	var (
		where []string
		args  []any
	)
	if q.TaskID != "" {
		where = append(where, "task_id = ?")
		args = append(args, q.TaskID)
	}
	if q.Flow != "" {
		where = append(where, "flow = ?")
		args = append(args, q.Flow)
	}
	if q.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(q.Status))
	}
	if !q.Since.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, q.Since.UnixNano())
	}

	query := "SELECT id, task_id, flow, status, pipelines, prompt, service_name, service_version, created_at FROM verdicts"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, rowid DESC LIMIT ?"
	args = append(args, q.Limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query verdicts: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			r         Record
			status    string
			pipelines string
			prompt    sql.NullString
			svcName   sql.NullString
			svcVer    sql.NullString
			created   int64
		)
		if err := rows.Scan(&r.ID, &r.TaskID, &r.Flow, &status, &pipelines, &prompt, &svcName, &svcVer, &created); err != nil {
			return nil, fmt.Errorf("failed to scan verdict: %w", err)
		}
		if err := json.Unmarshal([]byte(pipelines), &r.Pipelines); err != nil {
			return nil, fmt.Errorf("failed to decode pipelines of %s: %w", r.ID, err)
		}
		r.Status = verdict.Status(status)
		r.Prompt = prompt.String
		r.Service = notify.Service{Name: svcName.String, Version: svcVer.String}
		r.CreatedAt = time.Unix(0, created).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

// Count returns the number of stored records.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM verdicts").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count verdicts: %w", err)
	}
	return n, nil
}

// DeleteBefore deletes records created before t and returns how many were removed.
func (s *Store) DeleteBefore(ctx context.Context, t time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM verdicts WHERE created_at < ?", t.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to delete verdicts: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the database.
func (s *Store) Close(context.Context) error {
	return s.db.Close()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
