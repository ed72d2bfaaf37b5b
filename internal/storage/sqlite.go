package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"plasmaLedger/internal/model"
)

// SQLiteRecorder persists ledger events and reward snapshots to SQLite.
type SQLiteRecorder struct {
	db     *sql.DB
	mu     sync.Mutex
	logger *zap.Logger
}

// NewSQLiteRecorder opens (or creates) the database and runs migrations.
func NewSQLiteRecorder(dbPath string, logger *zap.Logger) (*SQLiteRecorder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, logger: logger}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	logger.Info("sqlite recorder opened", zap.String("path", dbPath))
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ledger_events (
			pool               TEXT NOT NULL,
			seq                INTEGER NOT NULL,
			event_name         TEXT NOT NULL,
			timestamp          INTEGER NOT NULL,
			staker             TEXT,
			payer              TEXT,
			recipient          TEXT,
			request_id         INTEGER,
			month              INTEGER,
			amount             TEXT,
			weighted_timestamp INTEGER,
			unlock_at          INTEGER,
			asset              TEXT,
			buffer_duration    INTEGER,
			PRIMARY KEY (pool, seq)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_ts ON ledger_events(timestamp)`,

		`CREATE TABLE IF NOT EXISTS reward_snapshots (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			pool           TEXT NOT NULL,
			staker         TEXT NOT NULL,
			at             INTEGER NOT NULL,
			month          INTEGER NOT NULL,
			locked_amount  TEXT NOT NULL,
			pending_amount TEXT NOT NULL,
			reward         TEXT NOT NULL,
			taken_at       TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_at ON reward_snapshots(at)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

// PublishEvents inserts events in one transaction. Replayed events with an
// already stored (pool, seq) are ignored.
func (r *SQLiteRecorder) PublishEvents(ctx context.Context, events []model.Event) error {
	if len(events) == 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO ledger_events
		(pool, seq, event_name, timestamp, staker, payer, recipient, request_id,
		 month, amount, weighted_timestamp, unlock_at, asset, buffer_duration)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, ev := range events {
		if _, err := stmt.ExecContext(ctx,
			ev.Pool, ev.Seq, string(ev.Name), ev.Timestamp,
			nullString(ev.Staker), nullString(ev.Payer), nullString(ev.Recipient),
			ev.RequestID, nullUint(ev.Month), nullString(ev.Amount),
			ev.WeightedTimestamp, ev.UnlockAt, nullString(ev.Asset), nullUint(ev.BufferDuration),
		); err != nil {
			return fmt.Errorf("insert event %s/%d: %w", ev.Pool, ev.Seq, err)
		}
	}
	return tx.Commit()
}

// RecordRewardSnapshots stores point-in-time reward readings.
func (r *SQLiteRecorder) RecordRewardSnapshots(ctx context.Context, snaps []model.RewardSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, s := range snaps {
		if _, err := tx.ExecContext(ctx, `INSERT INTO reward_snapshots
			(pool, staker, at, month, locked_amount, pending_amount, reward, taken_at)
			VALUES (?,?,?,?,?,?,?,?)`,
			s.Pool, s.Staker, s.At, s.Month, s.LockedAmount, s.PendingAmount, s.Reward, s.TakenAt,
		); err != nil {
			return fmt.Errorf("insert snapshot %s/%s: %w", s.Pool, s.Staker, err)
		}
	}
	return tx.Commit()
}

// Events reads back a pool's events in sequence order.
func (r *SQLiteRecorder) Events(ctx context.Context, pool string) ([]model.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.db.QueryContext(ctx, `SELECT pool, seq, event_name, timestamp,
		COALESCE(staker, ''), COALESCE(payer, ''), COALESCE(recipient, ''), request_id,
		month, COALESCE(amount, ''), weighted_timestamp, unlock_at, COALESCE(asset, ''), buffer_duration
		FROM ledger_events WHERE pool = ? ORDER BY seq`, pool)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []model.Event
	for rows.Next() {
		var (
			ev     model.Event
			name   string
			month  sql.NullInt64
			buffer sql.NullInt64
		)
		if err := rows.Scan(&ev.Pool, &ev.Seq, &name, &ev.Timestamp,
			&ev.Staker, &ev.Payer, &ev.Recipient, &ev.RequestID,
			&month, &ev.Amount, &ev.WeightedTimestamp, &ev.UnlockAt, &ev.Asset, &buffer,
		); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Name = model.EventName(name)
		if month.Valid {
			m := uint64(month.Int64)
			ev.Month = &m
		}
		if buffer.Valid {
			b := uint64(buffer.Int64)
			ev.BufferDuration = &b
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// CountSnapshots returns the number of stored reward snapshots.
func (r *SQLiteRecorder) CountSnapshots(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reward_snapshots`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count snapshots: %w", err)
	}
	return n, nil
}

func (r *SQLiteRecorder) Close() error {
	r.logger.Info("closing sqlite recorder")
	return r.db.Close()
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullUint(v *uint64) interface{} {
	if v == nil {
		return nil
	}
	return int64(*v)
}
