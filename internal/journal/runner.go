package journal

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"plasmaLedger/internal/model"
	"plasmaLedger/internal/plasma"
	"plasmaLedger/internal/staking"
	"plasmaLedger/internal/storage"
)

// RunConfig holds runtime settings for a replay.
type RunConfig struct {
	JournalPath       string
	RejectsPath       string
	CheckpointPath    string
	CheckpointEnabled bool
	CheckpointEvery   uint64
	MaxRetries        int
	RetryBackoff      time.Duration
	StopOnReject      bool
}

// Stats summarises one replay.
type Stats struct {
	Lines    uint64
	Applied  uint64
	Rejected uint64
	Skipped  uint64
	LastLine uint64
}

// Runner streams journal lines into the registry.
type Runner struct {
	cfg        RunConfig
	registry   *plasma.Registry
	dispatcher *Dispatcher
	bank       Bank
	store      storage.SnapshotStore
	logger     *zap.Logger
	checkpoint *CheckpointStore
}

// NewRunner builds a Runner. bank and store may be nil.
func NewRunner(cfg RunConfig, registry *plasma.Registry, bank Bank, store storage.SnapshotStore, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		cfg:        cfg,
		registry:   registry,
		dispatcher: NewDispatcher(registry, bank, logger),
		bank:       bank,
		store:      store,
		logger:     logger,
		checkpoint: NewCheckpointStore(cfg.CheckpointPath, cfg.CheckpointEnabled),
	}
}

// Checkpoints returns the runner's checkpoint store.
func (r *Runner) Checkpoints() *CheckpointStore {
	return r.checkpoint
}

// Run applies every journal line after startLine. Rejected ops are written to
// the rejects file and, unless StopOnReject is set, skipped.
func (r *Runner) Run(ctx context.Context, startLine uint64) (Stats, error) {
	stats := Stats{LastLine: startLine}
	if r.registry == nil {
		return stats, fmt.Errorf("registry is nil")
	}
	if r.cfg.JournalPath == "" {
		return stats, fmt.Errorf("journal path is required")
	}

	file, err := os.Open(r.cfg.JournalPath)
	if err != nil {
		return stats, fmt.Errorf("open journal: %w", err)
	}
	defer file.Close()

	var rejects *storage.JSONLWriter
	if r.cfg.RejectsPath != "" {
		rejects, err = storage.NewJSONLWriter(r.cfg.RejectsPath, true)
		if err != nil {
			return stats, fmt.Errorf("open rejects: %w", err)
		}
		defer rejects.Close()
	}

	scanner := bufio.NewScanner(file)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	var line uint64
	var sinceCheckpoint uint64
	for scanner.Scan() {
		line++
		if line <= startLine {
			continue
		}
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		default:
		}

		stats.Lines++
		stats.LastLine = line
		if len(scanner.Bytes()) == 0 {
			stats.Skipped++
			continue
		}

		op, err := Decode(scanner.Bytes())
		if err == nil {
			err = r.applyWithRetry(ctx, op)
		}
		if err != nil {
			stats.Rejected++
			if werr := r.writeReject(rejects, line, op, err); werr != nil {
				return stats, werr
			}
			if r.cfg.StopOnReject {
				return stats, fmt.Errorf("line %d: %w", line, err)
			}
		} else {
			stats.Applied++
		}

		sinceCheckpoint++
		if r.cfg.CheckpointEvery > 0 && sinceCheckpoint >= r.cfg.CheckpointEvery {
			if err := r.saveCheckpoint(line); err != nil {
				return stats, err
			}
			sinceCheckpoint = 0
		}
	}
	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("scan journal: %w", err)
	}

	if err := r.saveCheckpoint(stats.LastLine); err != nil {
		return stats, err
	}
	if r.store != nil {
		if err := r.store.SavePoolSnapshots(ctx, r.snapshots()); err != nil {
			return stats, fmt.Errorf("save snapshots: %w", err)
		}
	}

	r.logger.Info("replay complete",
		zap.Uint64("lines", stats.Lines),
		zap.Uint64("applied", stats.Applied),
		zap.Uint64("rejected", stats.Rejected),
		zap.Uint64("last_line", stats.LastLine),
	)
	return stats, nil
}

// A failed transfer leaves the ledger untouched, so the op can be retried.
// Transfers that were sent but never confirmed are not retried.
func (r *Runner) applyWithRetry(ctx context.Context, op *Op) error {
	return withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, isTransferFailure, func(ctx context.Context) error {
		_, err := r.dispatcher.Apply(ctx, op)
		if err != nil && isTransferFailure(err) {
			r.logger.Warn("apply failed", zap.Error(err), zap.String("action", string(op.Action)), zap.String("pool", op.Pool))
		}
		return err
	})
}

func isTransferFailure(err error) bool {
	return errors.Is(err, staking.ErrTransferFailed) && !errors.Is(err, staking.ErrTransferUnconfirmed)
}

func (r *Runner) writeReject(w *storage.JSONLWriter, line uint64, op *Op, cause error) error {
	rec := model.RejectedOp{Line: line, Error: cause.Error()}
	if op != nil {
		rec.Action = string(op.Action)
		rec.Pool = op.Pool
		rec.Time = op.Time
		rec.Caller = op.Caller
	}
	r.logger.Debug("op rejected", zap.Uint64("line", line), zap.String("action", rec.Action), zap.Error(cause))
	if w == nil {
		return nil
	}
	if err := w.Write(rec); err != nil {
		return fmt.Errorf("write reject: %w", err)
	}
	return w.Flush()
}

func (r *Runner) saveCheckpoint(line uint64) error {
	cp := Checkpoint{LastLine: line, Pools: r.snapshots()}
	if r.bank != nil {
		cp.Bank = r.bank.Snapshot()
	}
	if err := r.checkpoint.Save(cp); err != nil {
		return err
	}
	return nil
}

func (r *Runner) snapshots() []model.PoolSnapshot {
	pools := r.registry.Pools()
	out := make([]model.PoolSnapshot, 0, len(pools))
	for _, pool := range pools {
		out = append(out, pool.Snapshot())
	}
	return out
}

// RestoreRegistry rebuilds a registry from pool snapshots. options supplies
// the collaborators of each pool.
func RestoreRegistry(snaps []model.PoolSnapshot, options func(model.PoolConfig) staking.Options, logger *zap.Logger) (*plasma.Registry, error) {
	registry := plasma.NewRegistry(logger)
	for _, snap := range snaps {
		var opts staking.Options
		if options != nil {
			opts = options(snap.Config)
		}
		pool, err := staking.Restore(snap, opts)
		if err != nil {
			return nil, fmt.Errorf("restore pool %s: %w", snap.Config.ID, err)
		}
		if err := registry.Add(pool); err != nil {
			return nil, err
		}
	}
	return registry, nil
}
