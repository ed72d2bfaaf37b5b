package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"plasmaLedger/internal/asset"
	"plasmaLedger/internal/chain"
	"plasmaLedger/internal/config"
	"plasmaLedger/internal/journal"
	"plasmaLedger/internal/model"
	"plasmaLedger/internal/staking"
	"plasmaLedger/internal/storage"
	"plasmaLedger/internal/storage/postgres"
)

func runReplay(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadReplay(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Journal == "" {
		return fmt.Errorf("journal path is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var sinks storage.Multi
	var store storage.SnapshotStore
	if cfg.Events != "" {
		sinks = append(sinks, storage.NewJsonlStorage(cfg.Events))
	}
	if cfg.SQLite != "" {
		recorder, err := storage.NewSQLiteRecorder(cfg.SQLite, logger)
		if err != nil {
			return err
		}
		defer recorder.Close()
		sinks = append(sinks, recorder)
	}
	if cfg.PGDSN != "" {
		pg, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pg.Close()
		if err := pg.EnsureSchema(ctx); err != nil {
			return err
		}
		sinks = append(sinks, pg)
		store = pg
	}

	checkpoints := journal.NewCheckpointStore(cfg.Checkpoint, cfg.CheckpointEnabled)
	cp, resumed, err := checkpoints.Load()
	if err != nil {
		return err
	}
	snaps, err := mergePools(cp.Pools, cfg.Pools)
	if err != nil {
		return err
	}
	var startLine uint64
	if resumed {
		startLine = cp.LastLine
		logger.Info("resume from checkpoint", zap.Uint64("last_line", cp.LastLine), zap.Int("pools", len(cp.Pools)))
	}

	var bank journal.Bank
	var tokens func(custody common.Address) staking.TokenSource
	switch cfg.Tokens {
	case "chain":
		if cfg.RPCURL == "" {
			return fmt.Errorf("rpc url is required for chain tokens")
		}
		chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
		if err != nil {
			return fmt.Errorf("connect rpc: %w", err)
		}
		defer chainClient.Close()
		source, err := asset.NewERC20Source(chainClient, cfg.PrivateKey, logger)
		if err != nil {
			return err
		}
		tokens = func(custody common.Address) staking.TokenSource {
			if custody != source.Holder() {
				logger.Warn("pool custody differs from signing key", zap.String("custody", custody.Hex()), zap.String("holder", source.Holder().Hex()))
			}
			return source
		}
	default:
		memBank := asset.NewBank()
		if resumed && len(cp.Bank) > 0 {
			if memBank, err = asset.RestoreBank(cp.Bank); err != nil {
				return err
			}
		}
		for _, spec := range cfg.Pools {
			if spec.MintReward && common.IsHexAddress(spec.RewardAsset) {
				memBank.AddMinter(common.HexToAddress(spec.RewardAsset), common.HexToAddress(spec.Address))
			}
		}
		bank = memBank
		tokens = memBank.Source
	}

	registry, err := journal.RestoreRegistry(snaps, func(pc model.PoolConfig) staking.Options {
		return staking.Options{
			Tokens: tokens(common.HexToAddress(pc.Address)),
			Sink:   sinks,
			Logger: logger,
		}
	}, logger)
	if err != nil {
		return err
	}

	runner := journal.NewRunner(journal.RunConfig{
		JournalPath:       cfg.Journal,
		RejectsPath:       cfg.Rejects,
		CheckpointPath:    cfg.Checkpoint,
		CheckpointEnabled: cfg.CheckpointEnabled,
		CheckpointEvery:   cfg.CheckpointEvery,
		MaxRetries:        cfg.MaxRetries,
		RetryBackoff:      cfg.RetryBackoff,
		StopOnReject:      cfg.StopOnReject,
	}, registry, bank, store, logger)

	logger.Info("replay start",
		zap.String("journal", cfg.Journal),
		zap.Int("pools", len(snaps)),
		zap.String("tokens", cfg.Tokens),
		zap.Uint64("start_line", startLine),
		zap.String("events", cfg.Events),
		zap.String("sqlite", cfg.SQLite),
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
		zap.Bool("checkpoint_enabled", cfg.CheckpointEnabled),
	)

	_, err = runner.Run(ctx, startLine)
	return err
}

// mergePools keeps checkpointed pool state and adds configured pools that
// the checkpoint does not know yet.
func mergePools(saved []model.PoolSnapshot, specs []config.PoolSpec) ([]model.PoolSnapshot, error) {
	known := make(map[string]struct{}, len(saved))
	out := make([]model.PoolSnapshot, 0, len(saved)+len(specs))
	for _, snap := range saved {
		known[snap.Config.ID] = struct{}{}
		out = append(out, snap)
	}
	for _, spec := range specs {
		if _, ok := known[spec.ID]; ok {
			continue
		}
		snap, err := spec.Snapshot()
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no pools configured")
	}
	return out, nil
}
