package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"plasmaLedger/internal/model"
)

// Store provides Postgres persistence for pool snapshots, events and reports.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS pool_snapshots (
		pool_id    TEXT PRIMARY KEY,
		last_time  BIGINT NOT NULL,
		seq        BIGINT NOT NULL,
		snapshot   JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS ledger_events (
		pool_id    TEXT NOT NULL,
		seq        BIGINT NOT NULL,
		event_name TEXT NOT NULL,
		event_ts   BIGINT NOT NULL,
		staker     TEXT,
		recipient  TEXT,
		month      BIGINT,
		amount     NUMERIC,
		payload    JSONB NOT NULL,
		PRIMARY KEY (pool_id, seq)
	)`,
	`CREATE INDEX IF NOT EXISTS ledger_events_name_ts ON ledger_events (event_name, event_ts)`,
	`CREATE TABLE IF NOT EXISTS pool_monthly_rewards (
		pool_id         TEXT NOT NULL,
		month           BIGINT NOT NULL,
		window_start_ts TIMESTAMPTZ NOT NULL,
		window_end_ts   TIMESTAMPTZ NOT NULL,
		claim_count     BIGINT NOT NULL,
		recipients      BIGINT NOT NULL,
		claimed         NUMERIC NOT NULL,
		budget          NUMERIC,
		utilization     NUMERIC,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (pool_id, month)
	)`,
	`CREATE TABLE IF NOT EXISTS ledger_state (
		name              TEXT PRIMARY KEY,
		last_processed_ts BIGINT NOT NULL,
		updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

// EnsureSchema creates the tables the store writes to.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// SavePoolSnapshots upserts the latest snapshot of each pool.
func (s *Store) SavePoolSnapshots(ctx context.Context, snaps []model.PoolSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, snap := range snaps {
		data, err := json.Marshal(snap)
		if err != nil {
			return fmt.Errorf("marshal snapshot %s: %w", snap.Config.ID, err)
		}
		batch.Queue(`
			INSERT INTO pool_snapshots (pool_id, last_time, seq, snapshot, updated_at)
			VALUES ($1, $2, $3, $4, now())
			ON CONFLICT (pool_id)
			DO UPDATE SET
				last_time = EXCLUDED.last_time,
				seq = EXCLUDED.seq,
				snapshot = EXCLUDED.snapshot,
				updated_at = now()
			WHERE pool_snapshots.seq <= EXCLUDED.seq
		`,
			snap.Config.ID,
			int64(snap.LastTime),
			int64(snap.Seq),
			data,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range snaps {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// LoadPoolSnapshots returns every stored snapshot ordered by pool id.
func (s *Store) LoadPoolSnapshots(ctx context.Context) ([]model.PoolSnapshot, error) {
	rows, err := s.pool.Query(ctx, `SELECT snapshot FROM pool_snapshots ORDER BY pool_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.PoolSnapshot
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var snap model.PoolSnapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			return nil, fmt.Errorf("parse snapshot: %w", err)
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

// PublishEvents appends events; replayed (pool, seq) pairs are ignored.
func (s *Store) PublishEvents(ctx context.Context, events []model.Event) error {
	if len(events) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, ev := range events {
		data, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("marshal event %s/%d: %w", ev.Pool, ev.Seq, err)
		}
		var month *int64
		if ev.Month != nil {
			m := int64(*ev.Month)
			month = &m
		}
		batch.Queue(`
			INSERT INTO ledger_events (
				pool_id, seq, event_name, event_ts, staker, recipient, month, amount, payload
			) VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), $7, NULLIF($8, '')::numeric, $9)
			ON CONFLICT (pool_id, seq) DO NOTHING
		`,
			ev.Pool,
			int64(ev.Seq),
			string(ev.Name),
			int64(ev.Timestamp),
			ev.Staker,
			ev.Recipient,
			month,
			ev.Amount,
			data,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range events {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// LoadEvents returns events with the given name in [fromTs, toTs).
func (s *Store) LoadEvents(ctx context.Context, name model.EventName, fromTs, toTs uint64) ([]model.Event, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT payload FROM ledger_events
		WHERE event_name = $1 AND event_ts >= $2 AND event_ts < $3
		ORDER BY event_ts, pool_id, seq
	`, string(name), int64(fromTs), int64(toTs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Event
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var ev model.Event
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("parse event: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// UpsertMonthlyRewards inserts or updates monthly reward rows.
func (s *Store) UpsertMonthlyRewards(ctx context.Context, rows []model.MonthlyReward) error {
	if len(rows) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`
			INSERT INTO pool_monthly_rewards (
				pool_id, month, window_start_ts, window_end_ts, claim_count, recipients,
				claimed, budget, utilization, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,now(),now())
			ON CONFLICT (pool_id, month)
			DO UPDATE SET
				window_start_ts = EXCLUDED.window_start_ts,
				window_end_ts = EXCLUDED.window_end_ts,
				claim_count = EXCLUDED.claim_count,
				recipients = EXCLUDED.recipients,
				claimed = EXCLUDED.claimed,
				budget = EXCLUDED.budget,
				utilization = EXCLUDED.utilization,
				updated_at = now()
		`,
			r.PoolID,
			int64(r.Month),
			r.WindowStart,
			r.WindowEnd,
			int64(r.ClaimCount),
			int64(r.Recipients),
			r.Claimed,
			r.Budget,
			r.Utilization,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range rows {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// LoadState returns last_processed_ts for a name.
func (s *Store) LoadState(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var ts int64
	row := s.pool.QueryRow(ctx, `SELECT last_processed_ts FROM ledger_state WHERE name=$1`, name)
	if err := row.Scan(&ts); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return uint64(ts), true, nil
}

// SaveState upserts last_processed_ts for a name.
func (s *Store) SaveState(ctx context.Context, name string, ts uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO ledger_state (name, last_processed_ts, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_processed_ts = EXCLUDED.last_processed_ts, updated_at = now()
	`, name, int64(ts))
	return err
}
