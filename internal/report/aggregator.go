// Package report folds Claimed events into per pool month totals and
// compares them to each month's reward budget.
package report

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"go.uber.org/zap"

	"plasmaLedger/internal/model"
	"plasmaLedger/internal/storage"
)

// Writer persists monthly reward rows.
type Writer interface {
	UpsertMonthlyRewards(ctx context.Context, rows []model.MonthlyReward) error
}

// Config controls aggregation behavior.
type Config struct {
	BatchSize     int
	RecomputeFrom uint64
	StateStore    StateStore
}

// Aggregator aggregates ledger events into monthly reward rows.
type Aggregator struct {
	cfg          Config
	pools        map[string]model.PoolSnapshot
	writer       Writer
	decimals     *DecimalsResolver
	logger       *zap.Logger
	accumulators map[string]*Accumulator
}

// NewAggregator builds an aggregator over the given pools. Snapshots supply
// each pool's origin, reward asset and budgets.
func NewAggregator(cfg Config, pools []model.PoolSnapshot, writer Writer, decimals *DecimalsResolver, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if decimals == nil {
		decimals = NewDecimalsResolver(nil, 18, logger)
	}
	byID := make(map[string]model.PoolSnapshot, len(pools))
	for _, snap := range pools {
		byID[snap.Config.ID] = snap
	}
	return &Aggregator{
		cfg:          cfg,
		pools:        byID,
		writer:       writer,
		decimals:     decimals,
		logger:       logger,
		accumulators: make(map[string]*Accumulator),
	}
}

// Run executes aggregation over an events JSONL file.
func (a *Aggregator) Run(ctx context.Context, inputPath string) error {
	if a.writer == nil {
		return fmt.Errorf("writer is nil")
	}
	if a.cfg.BatchSize <= 0 {
		a.cfg.BatchSize = 500
	}

	startTs, err := a.loadStartTimestamp(ctx)
	if err != nil {
		return err
	}

	file, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	batch := make([]model.MonthlyReward, 0, a.cfg.BatchSize)
	var total, claims, skipped, failed int

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		total++

		var ev model.Event
		if err := json.Unmarshal(line, &ev); err != nil {
			failed++
			a.logger.Warn("decode event", zap.Error(err))
			continue
		}
		if ev.Name != model.EventClaimed {
			skipped++
			continue
		}
		snap, ok := a.pools[ev.Pool]
		if !ok {
			failed++
			a.logger.Warn("event for unknown pool", zap.String("pool", ev.Pool), zap.Uint64("seq", ev.Seq))
			continue
		}

		month := eventMonth(ev, snap.Config.Origin)
		// months that began at or before the resume point were written in full
		if startTs > 0 && monthStart(snap.Config.Origin, month) <= startTs {
			skipped++
			continue
		}
		acc := a.accumulators[ev.Pool]
		if acc == nil {
			acc = NewAccumulator(ev.Pool, snap.Config.Origin, month)
			a.accumulators[ev.Pool] = acc
		} else if acc.Month != month {
			row, err := a.flushAccumulator(ctx, acc)
			if err != nil {
				return err
			}
			batch = append(batch, row)
			acc = NewAccumulator(ev.Pool, snap.Config.Origin, month)
			a.accumulators[ev.Pool] = acc
		}

		if err := acc.AddEvent(ev); err != nil {
			failed++
			a.logger.Warn("aggregate event", zap.Error(err), zap.String("pool", ev.Pool), zap.Uint64("seq", ev.Seq))
			continue
		}
		claims++

		if len(batch) >= a.cfg.BatchSize {
			if err := a.writer.UpsertMonthlyRewards(ctx, batch); err != nil {
				return err
			}
			batch = batch[:0]
			if err := a.saveState(ctx, a.resumePoint(startTs)); err != nil {
				return err
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan input: %w", err)
	}

	resumeTs := a.resumePoint(startTs)
	for _, id := range sortedKeys(a.accumulators) {
		row, err := a.flushAccumulator(ctx, a.accumulators[id])
		if err != nil {
			return err
		}
		batch = append(batch, row)
	}
	a.accumulators = make(map[string]*Accumulator)

	if len(batch) > 0 {
		if err := a.writer.UpsertMonthlyRewards(ctx, batch); err != nil {
			return err
		}
	}

	if err := a.saveState(ctx, resumeTs); err != nil {
		return err
	}

	a.logger.Info("report complete",
		zap.Int("total", total),
		zap.Int("claims", claims),
		zap.Int("skipped", skipped),
		zap.Int("failed", failed),
	)
	return nil
}

func (a *Aggregator) loadStartTimestamp(ctx context.Context) (uint64, error) {
	if a.cfg.RecomputeFrom > 0 {
		return a.cfg.RecomputeFrom - 1, nil
	}
	if a.cfg.StateStore == nil {
		return 0, nil
	}
	last, ok, err := a.cfg.StateStore.Load(ctx)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return last, nil
}

func (a *Aggregator) saveState(ctx context.Context, ts uint64) error {
	if a.cfg.StateStore == nil {
		return nil
	}
	return a.cfg.StateStore.Save(ctx, ts)
}

// resumePoint is the time just before the oldest month still open, so a
// rerun rebuilds that month from all of its claims. Month 0 resumes from
// the start because it also holds claims made before the origin.
func (a *Aggregator) resumePoint(fallback uint64) uint64 {
	if len(a.accumulators) == 0 {
		return fallback
	}
	first := true
	var resume uint64
	for _, acc := range a.accumulators {
		ts := uint64(0)
		if acc.Month > 0 {
			ts = acc.WindowStart - 1
		}
		if first || ts < resume {
			resume = ts
			first = false
		}
	}
	return resume
}

func (a *Aggregator) flushAccumulator(ctx context.Context, acc *Accumulator) (model.MonthlyReward, error) {
	snap := a.pools[acc.PoolID]
	decimals := a.decimals.Decimals(ctx, snap.Config.RewardAsset)

	row := model.MonthlyReward{
		PoolID:      acc.PoolID,
		Month:       acc.Month,
		WindowStart: time.Unix(int64(acc.WindowStart), 0).UTC(),
		WindowEnd:   time.Unix(int64(acc.WindowEnd), 0).UTC(),
		ClaimCount:  acc.ClaimCount,
		Recipients:  acc.Recipients(),
		Claimed:     formatTokenAmount(acc.Claimed, decimals),
	}

	budget, err := monthBudget(snap, acc.Month)
	if err != nil {
		return row, fmt.Errorf("budget %s/%d: %w", acc.PoolID, acc.Month, err)
	}
	if budget != nil {
		val := formatTokenAmount(budget, decimals)
		row.Budget = &val
		row.Utilization = computeUtilization(acc.Claimed, budget)
	}
	return row, nil
}

func sortedKeys(acc map[string]*Accumulator) []string {
	keys := make([]string, 0, len(acc))
	for k := range acc {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// FileWriter keeps monthly reward rows in a JSONL file, one row per pool
// month. Rows for a known pool month replace the stored one.
type FileWriter struct {
	Path string
}

func (w *FileWriter) UpsertMonthlyRewards(_ context.Context, rows []model.MonthlyReward) error {
	existing, err := loadRows(w.Path)
	if err != nil {
		return err
	}
	index := make(map[rowKey]int, len(existing))
	for i, row := range existing {
		index[rowKey{row.PoolID, row.Month}] = i
	}
	for _, row := range rows {
		key := rowKey{row.PoolID, row.Month}
		if i, ok := index[key]; ok {
			existing[i] = row
			continue
		}
		index[key] = len(existing)
		existing = append(existing, row)
	}

	out, err := storage.NewJSONLWriter(w.Path, false)
	if err != nil {
		return err
	}
	for _, row := range existing {
		if err := out.Write(row); err != nil {
			out.Close()
			return err
		}
	}
	return out.Close()
}

type rowKey struct {
	pool  string
	month uint64
}

func loadRows(path string) ([]model.MonthlyReward, error) {
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open rows: %w", err)
	}
	defer file.Close()

	var rows []model.MonthlyReward
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var row model.MonthlyReward
		if err := json.Unmarshal(line, &row); err != nil {
			return nil, fmt.Errorf("decode row: %w", err)
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan rows: %w", err)
	}
	return rows, nil
}
