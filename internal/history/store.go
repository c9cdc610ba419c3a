// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package history persists ConversionRecords in a SQLite database so past
// conversions can be listed, summarized and pruned.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/oklog/ulid/v2"

	"github.com/pdiddy/office2pdf/pkg/types"
)

// ErrNotFound is returned by Get when no record has the requested ID.
var ErrNotFound = errors.New("record not found")

const defaultLimit = 50

// Store manages the conversion history database.
type Store struct {
	db *sql.DB
}

// NewStore opens or creates the history database at path and creates the
// schema if it does not exist.
func NewStore(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS conversions (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			output TEXT,
			kind TEXT NOT NULL,
			engine TEXT,
			status TEXT NOT NULL,
			attempts TEXT,
			pages INTEGER,
			output_size INTEGER,
			started_at INTEGER NOT NULL,
			finished_at INTEGER,
			error TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_conversions_started ON conversions(started_at)`,
		`CREATE INDEX IF NOT EXISTS idx_conversions_status ON conversions(status)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Record inserts or replaces rec. A record without an ID gets a new ULID,
// and the stored record is returned.
func (s *Store) Record(ctx context.Context, rec types.ConversionRecord) (types.ConversionRecord, error) {
	if rec.ID == "" {
		rec.ID = ulid.Make().String()
	}
	if rec.StartedAt.IsZero() {
		rec.StartedAt = time.Now()
	}

	attempts, err := json.Marshal(rec.Attempts)
	if err != nil {
		return rec, fmt.Errorf("encoding attempts: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO conversions
			(id, source, output, kind, engine, status, attempts, pages, output_size, started_at, finished_at, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Source, rec.Output, string(rec.Kind), rec.Engine, string(rec.Status),
		string(attempts), rec.Pages, rec.OutputSize,
		rec.StartedAt.UnixNano(), unixNano(rec.FinishedAt), rec.Error,
	)
	if err != nil {
		return rec, fmt.Errorf("inserting record %s: %w", rec.ID, err)
	}
	return rec, nil
}

func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

// Filter narrows List results.
type Filter struct {
	// Limit caps the number of records; 0 means 50.
	Limit int

	// Status keeps only records with this status when non-empty.
	Status types.ConversionStatus

	// Source keeps only records whose source path contains this substring.
	Source string
}

const selectColumns = `SELECT id, source, output, kind, engine, status, attempts, pages, output_size, started_at, finished_at, error FROM conversions`

// List returns the most recent records first.
func (s *Store) List(ctx context.Context, f Filter) ([]types.ConversionRecord, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	var where []string
	var args []any
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.Source != "" {
		where = append(where, "instr(source, ?) > 0")
		args = append(args, f.Source)
	}

	query := selectColumns
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY started_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	var out []types.ConversionRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Get returns the record with the given ID.
func (s *Store) Get(ctx context.Context, id string) (types.ConversionRecord, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+" WHERE id = ?", id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.ConversionRecord{}, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return rec, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (types.ConversionRecord, error) {
	var (
		rec                     types.ConversionRecord
		output, engine, errMsg  sql.NullString
		attempts                sql.NullString
		pages, size, finishedAt sql.NullInt64
		kind, status            string
		startedAt               int64
	)
	err := sc.Scan(&rec.ID, &rec.Source, &output, &kind, &engine, &status,
		&attempts, &pages, &size, &startedAt, &finishedAt, &errMsg)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rec, err
		}
		return rec, fmt.Errorf("scanning record: %w", err)
	}

	rec.Output = output.String
	rec.Kind = types.DocumentKind(kind)
	rec.Engine = engine.String
	rec.Status = types.ConversionStatus(status)
	rec.Pages = int(pages.Int64)
	rec.OutputSize = size.Int64
	rec.StartedAt = time.Unix(0, startedAt)
	if finishedAt.Int64 != 0 {
		rec.FinishedAt = time.Unix(0, finishedAt.Int64)
	}
	rec.Error = errMsg.String
	if attempts.Valid && attempts.String != "" && attempts.String != "null" {
		if err := json.Unmarshal([]byte(attempts.String), &rec.Attempts); err != nil {
			return rec, fmt.Errorf("decoding attempts for %s: %w", rec.ID, err)
		}
	}
	return rec, nil
}

// Stats summarizes the whole history.
type Stats struct {
	Total      int            `json:"total" yaml:"total"`
	Converted  int            `json:"converted" yaml:"converted"`
	Skipped    int            `json:"skipped" yaml:"skipped"`
	Failed     int            `json:"failed" yaml:"failed"`
	Pages      int            `json:"pages" yaml:"pages"`
	OutputSize int64          `json:"output_size" yaml:"output_size"`
	ByEngine   map[string]int `json:"by_engine" yaml:"by_engine"`
	ByKind     map[string]int `json:"by_kind" yaml:"by_kind"`
	Last       time.Time      `json:"last,omitempty" yaml:"last,omitempty"`
}

// Stats counts records by status, engine and kind.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	st := Stats{ByEngine: map[string]int{}, ByKind: map[string]int{}}

	byStatus := map[string]int{}
	if err := s.countInto(ctx, `SELECT status, count(*) FROM conversions GROUP BY status`, byStatus); err != nil {
		return st, fmt.Errorf("counting by status: %w", err)
	}
	for status, n := range byStatus {
		st.Total += n
		switch types.ConversionStatus(status) {
		case types.ConversionDone:
			st.Converted = n
		case types.ConversionSkipped:
			st.Skipped = n
		case types.ConversionFailed:
			st.Failed = n
		}
	}

	if err := s.countInto(ctx, `SELECT engine, count(*) FROM conversions WHERE status = 'converted' GROUP BY engine`, st.ByEngine); err != nil {
		return st, fmt.Errorf("counting by engine: %w", err)
	}
	if err := s.countInto(ctx, `SELECT kind, count(*) FROM conversions GROUP BY kind`, st.ByKind); err != nil {
		return st, fmt.Errorf("counting by kind: %w", err)
	}

	var last sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT coalesce(sum(pages), 0), coalesce(sum(output_size), 0), max(started_at) FROM conversions`,
	).Scan(&st.Pages, &st.OutputSize, &last)
	if err != nil {
		return st, fmt.Errorf("summing output: %w", err)
	}
	if last.Valid {
		st.Last = time.Unix(0, last.Int64)
	}
	return st, nil
}

func (s *Store) countInto(ctx context.Context, query string, m map[string]int) error {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var key sql.NullString
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return err
		}
		m[key.String] = n
	}
	return rows.Err()
}

// Prune deletes records started before the cutoff and returns how many
// were removed.
func (s *Store) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM conversions WHERE started_at < ?`, before.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("pruning history: %w", err)
	}
	return res.RowsAffected()
}
