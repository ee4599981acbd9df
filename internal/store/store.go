// Package store records capture runs in a sqlite database: the filter
// configs sent to the instrument, status changes, and every peak received.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/danmuck/peaklink/internal/protocol"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

var ErrUnknownRun = errors.New("store: unknown run")

const schema = `
	CREATE TABLE IF NOT EXISTS runs (
		run_id            TEXT PRIMARY KEY,
		link              TEXT NOT NULL,
		started_at        INTEGER NOT NULL,
		ended_at          INTEGER
	);
	CREATE TABLE IF NOT EXISTS peaks (
		peak_id           INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id            TEXT NOT NULL,
		timestamp         INTEGER NOT NULL,
		peak_height       INTEGER NOT NULL,
		speed             INTEGER NOT NULL,
		cycle             INTEGER NOT NULL,
		FOREIGN KEY(run_id) REFERENCES runs(run_id)
	);
	CREATE INDEX IF NOT EXISTS peaks_run ON peaks(run_id);
	CREATE TABLE IF NOT EXISTS configs (
		config_id         INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id            TEXT NOT NULL,
		pthresh           INTEGER NOT NULL,
		tdead             INTEGER NOT NULL,
		k                 INTEGER NOT NULL,
		l                 INTEGER NOT NULL,
		m                 INTEGER NOT NULL,
		sent_at           INTEGER NOT NULL,
		FOREIGN KEY(run_id) REFERENCES runs(run_id)
	);
	CREATE TABLE IF NOT EXISTS statuses (
		status_id         INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id            TEXT NOT NULL,
		status            INTEGER NOT NULL,
		direction         TEXT NOT NULL,
		at                INTEGER NOT NULL,
		FOREIGN KEY(run_id) REFERENCES runs(run_id)
	);
`

// Store is safe for concurrent use.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Run is one capture session.
type Run struct {
	ID        string
	Link      string
	StartedAt time.Time
	EndedAt   time.Time
}

// Open creates or opens the database at path. ":memory:" works for tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One connection keeps pragmas and in-memory databases consistent.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: enable foreign keys: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create schema: %w", err)
	}
	log.Debug().Str("path", path).Msg("store open")
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// BeginRun starts a run for the named link.
func (s *Store) BeginRun(ctx context.Context, link string) (Run, error) {
	run := Run{
		ID:        uuid.NewString(),
		Link:      link,
		StartedAt: s.now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO runs (run_id, link, started_at) VALUES (?, ?, ?)",
		run.ID, run.Link, run.StartedAt.UnixNano())
	if err != nil {
		return Run{}, fmt.Errorf("store: begin run: %w", err)
	}
	log.Info().Str("run", run.ID).Str("link", link).Msg("run started")
	return run, nil
}

// EndRun stamps the end time of runID.
func (s *Store) EndRun(ctx context.Context, runID string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE runs SET ended_at = ? WHERE run_id = ?",
		s.now().UTC().UnixNano(), runID)
	if err != nil {
		return fmt.Errorf("store: end run: %w", err)
	}
	if err := requireRow(res, runID); err != nil {
		return err
	}
	log.Info().Str("run", runID).Msg("run ended")
	return nil
}

func (s *Store) RecordConfig(ctx context.Context, runID string, cfg protocol.FilterConfig) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO configs (run_id, pthresh, tdead, k, l, m, sent_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		runID, toInt(cfg.PThresh), toInt(cfg.TDead), toInt(cfg.K), toInt(cfg.L), toInt(cfg.M),
		s.now().UTC().UnixNano())
	if err != nil {
		return fmt.Errorf("store: record config: %w", err)
	}
	return nil
}

func (s *Store) RecordStatus(ctx context.Context, runID string, status protocol.Status, direction string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO statuses (run_id, status, direction, at) VALUES (?, ?, ?, ?)",
		runID, int64(status), direction, s.now().UTC().UnixNano())
	if err != nil {
		return fmt.Errorf("store: record status: %w", err)
	}
	return nil
}

// RecordPeaks inserts peaks in one transaction, preserving their order.
func (s *Store) RecordPeaks(ctx context.Context, runID string, peaks []protocol.MeasuredPeak) error {
	if len(peaks) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: record peaks: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO peaks (run_id, timestamp, peak_height, speed, cycle) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("store: record peaks: %w", err)
	}
	defer stmt.Close()

	for _, p := range peaks {
		if _, err := stmt.ExecContext(ctx, runID, toInt(p.Timestamp), int64(p.PeakHeight), int64(p.Speed), int64(p.Cycle)); err != nil {
			return fmt.Errorf("store: record peaks: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: record peaks: %w", err)
	}
	return nil
}

// Record persists whatever m carries. Direction labels status messages.
func (s *Store) Record(ctx context.Context, runID, direction string, m protocol.Message) error {
	switch v := m.(type) {
	case protocol.DataMessage:
		return s.RecordPeaks(ctx, runID, v.Peaks)
	case protocol.StatusMessage:
		return s.RecordStatus(ctx, runID, v.Status, direction)
	case protocol.ConfigMessage:
		return s.RecordConfig(ctx, runID, v.Config)
	default:
		return fmt.Errorf("store: unsupported message %T", m)
	}
}

func (s *Store) Run(ctx context.Context, runID string) (Run, error) {
	var (
		run   Run
		start int64
		end   sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT run_id, link, started_at, ended_at FROM runs WHERE run_id = ?", runID).
		Scan(&run.ID, &run.Link, &start, &end)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrUnknownRun, runID)
	}
	if err != nil {
		return Run{}, fmt.Errorf("store: load run: %w", err)
	}
	run.StartedAt = time.Unix(0, start).UTC()
	if end.Valid {
		run.EndedAt = time.Unix(0, end.Int64).UTC()
	}
	return run, nil
}

// Runs lists every run, newest first.
func (s *Store) Runs(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT run_id, link, started_at, ended_at FROM runs ORDER BY started_at DESC, run_id")
	if err != nil {
		return nil, fmt.Errorf("store: list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run   Run
			start int64
			end   sql.NullInt64
		)
		if err := rows.Scan(&run.ID, &run.Link, &start, &end); err != nil {
			return nil, fmt.Errorf("store: list runs: %w", err)
		}
		run.StartedAt = time.Unix(0, start).UTC()
		if end.Valid {
			run.EndedAt = time.Unix(0, end.Int64).UTC()
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Peaks returns the peaks of runID in arrival order.
func (s *Store) Peaks(ctx context.Context, runID string) ([]protocol.MeasuredPeak, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT timestamp, peak_height, speed, cycle FROM peaks WHERE run_id = ? ORDER BY peak_id", runID)
	if err != nil {
		return nil, fmt.Errorf("store: load peaks: %w", err)
	}
	defer rows.Close()

	var peaks []protocol.MeasuredPeak
	for rows.Next() {
		var ts, height, speed, cycle int64
		if err := rows.Scan(&ts, &height, &speed, &cycle); err != nil {
			return nil, fmt.Errorf("store: load peaks: %w", err)
		}
		peaks = append(peaks, protocol.MeasuredPeak{
			Timestamp:  uint64(ts),
			PeakHeight: uint32(height),
			Speed:      uint16(speed),
			Cycle:      uint32(cycle),
		})
	}
	return peaks, rows.Err()
}

// Configs returns the filter configs sent during runID, oldest first.
func (s *Store) Configs(ctx context.Context, runID string) ([]protocol.FilterConfig, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT pthresh, tdead, k, l, m FROM configs WHERE run_id = ? ORDER BY config_id", runID)
	if err != nil {
		return nil, fmt.Errorf("store: load configs: %w", err)
	}
	defer rows.Close()

	var cfgs []protocol.FilterConfig
	for rows.Next() {
		var pthresh, tdead, k, l, m int64
		if err := rows.Scan(&pthresh, &tdead, &k, &l, &m); err != nil {
			return nil, fmt.Errorf("store: load configs: %w", err)
		}
		cfgs = append(cfgs, protocol.FilterConfig{
			PThresh: uint64(pthresh),
			TDead:   uint64(tdead),
			K:       uint64(k),
			L:       uint64(l),
			M:       uint64(m),
		})
	}
	return cfgs, rows.Err()
}

// PeakCount returns how many peaks runID holds.
func (s *Store) PeakCount(ctx context.Context, runID string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM peaks WHERE run_id = ?", runID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("store: count peaks: %w", err)
	}
	return n, nil
}

func requireRow(res sql.Result, runID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrUnknownRun, runID)
	}
	return nil
}

// sqlite integers are signed; uint64 values are stored bit for bit.
func toInt(v uint64) int64 {
	return int64(v)
}
