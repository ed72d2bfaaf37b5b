package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"plasmaLedger/internal/chain"
	"plasmaLedger/internal/config"
	"plasmaLedger/internal/journal"
	"plasmaLedger/internal/storage"
	"plasmaLedger/internal/storage/postgres"
)

type rewardsExporter struct {
	cfg      config.RewardsConfig
	chain    *chain.Client
	pg       *postgres.Store
	recorder *storage.SQLiteRecorder
	logger   *zap.Logger
}

func runRewards(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadRewards(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	exp := &rewardsExporter{cfg: cfg, logger: logger}
	if cfg.RPCURL != "" {
		exp.chain, err = chain.NewClient(ctx, cfg.RPCURL)
		if err != nil {
			return fmt.Errorf("connect rpc: %w", err)
		}
		defer exp.chain.Close()
	}
	if cfg.PGDSN != "" {
		exp.pg, err = postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer exp.pg.Close()
	}
	if cfg.SQLite != "" {
		exp.recorder, err = storage.NewSQLiteRecorder(cfg.SQLite, logger)
		if err != nil {
			return err
		}
		defer exp.recorder.Close()
	}

	logger.Info("rewards start",
		zap.String("at", cfg.At),
		zap.String("schedule", cfg.Schedule),
		zap.Strings("pools", cfg.Pools),
		zap.String("out", cfg.Out),
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
	)

	if cfg.Schedule == "" {
		return exp.export(ctx)
	}

	c := cron.New(cron.WithSeconds())
	if _, err := c.AddFunc(cfg.Schedule, func() {
		if err := exp.export(ctx); err != nil {
			logger.Error("reward export failed", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("parse schedule %q: %w", cfg.Schedule, err)
	}
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	logger.Info("rewards stopped")
	return nil
}

// export reloads pool state on every call so scheduled runs see the latest
// replay.
func (e *rewardsExporter) export(ctx context.Context) error {
	at, err := e.readingTime(ctx)
	if err != nil {
		return err
	}
	snaps, err := loadPoolState(ctx, e.pg, e.cfg.Checkpoint)
	if err != nil {
		return err
	}
	registry, err := journal.RestoreRegistry(snaps, nil, e.logger)
	if err != nil {
		return err
	}
	readings, err := registry.RewardSnapshots(at, e.cfg.Pools)
	if err != nil {
		return err
	}

	if e.cfg.Out != "" {
		w, err := storage.NewJSONLWriter(e.cfg.Out, true)
		if err != nil {
			return err
		}
		for _, r := range readings {
			if err := w.Write(r); err != nil {
				w.Close()
				return err
			}
		}
		if err := w.Close(); err != nil {
			return fmt.Errorf("flush output: %w", err)
		}
	}
	if e.recorder != nil {
		if err := e.recorder.RecordRewardSnapshots(ctx, readings); err != nil {
			return err
		}
	}

	e.logger.Info("rewards exported", zap.Uint64("at", at), zap.Int("readings", len(readings)))
	return nil
}

func (e *rewardsExporter) readingTime(ctx context.Context) (uint64, error) {
	switch strings.ToLower(strings.TrimSpace(e.cfg.At)) {
	case "", "now":
		return uint64(time.Now().Unix()), nil
	case "chain":
		if e.chain == nil {
			return 0, fmt.Errorf("rpc url is required for --at=chain")
		}
		ts, err := e.chain.LatestTimestamp(ctx)
		if err != nil {
			return 0, fmt.Errorf("latest block timestamp: %w", err)
		}
		return ts, nil
	}
	if number, ok := strings.CutPrefix(strings.TrimSpace(e.cfg.At), "block:"); ok {
		if e.chain == nil {
			return 0, fmt.Errorf("rpc url is required for --at=block:N")
		}
		n, err := strconv.ParseUint(number, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parse block number: %w", err)
		}
		return e.chain.BlockTimestamp(ctx, n)
	}
	ts, err := config.ParseTimestamp(e.cfg.At)
	if err != nil {
		return 0, fmt.Errorf("parse at: %w", err)
	}
	return ts, nil
}
