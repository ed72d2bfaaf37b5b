package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "ledger",
		Short:        "Time-weighted staking ledger",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	replayCmd := &cobra.Command{
		Use:   "replay",
		Short: "Apply a journal of ledger operations",
		RunE:  runReplay,
	}

	replayCmd.Flags().String("journal", "", "input operations JSONL")
	replayCmd.Flags().String("rejects", "./data/rejects.jsonl", "rejected operations JSONL")
	replayCmd.Flags().String("events", "./data/events.jsonl", "ledger events JSONL, empty to disable")
	replayCmd.Flags().String("sqlite", "", "optional SQLite database for ledger events")
	replayCmd.Flags().String("pg-dsn", "", "optional Postgres DSN for events and pool snapshots")
	replayCmd.Flags().String("checkpoint", "./data/checkpoint.json", "checkpoint file path")
	replayCmd.Flags().Bool("checkpoint-enabled", true, "enable checkpointing")
	replayCmd.Flags().Uint64("checkpoint-every", 1000, "journal lines between checkpoints")
	replayCmd.Flags().Int("max-retries", 0, "retry attempts for failed asset transfers")
	replayCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	replayCmd.Flags().Bool("stop-on-reject", false, "stop at the first rejected operation")
	replayCmd.Flags().String("tokens", "bank", "asset backend (bank, chain)")
	replayCmd.Flags().String("rpc", "", "RPC URL for the chain asset backend")
	replayCmd.Flags().String("private-key", "", "custody signing key for the chain asset backend")
	replayCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(replayCmd)

	rewardsCmd := &cobra.Command{
		Use:   "rewards",
		Short: "Export owed rewards per staker",
		RunE:  runRewards,
	}

	rewardsCmd.Flags().String("checkpoint", "./data/checkpoint.json", "checkpoint file holding pool state")
	rewardsCmd.Flags().String("pg-dsn", "", "load pool state from Postgres instead of the checkpoint")
	rewardsCmd.Flags().String("out", "./data/reward_snapshots.jsonl", "output JSONL path")
	rewardsCmd.Flags().String("sqlite", "", "optional SQLite database for reward snapshots")
	rewardsCmd.Flags().StringSlice("pool", nil, "pool ids (comma-separated), empty means all")
	rewardsCmd.Flags().String("at", "now", "reading time: now, chain, block:N, unix seconds or RFC3339")
	rewardsCmd.Flags().String("schedule", "", "cron spec with seconds; export repeatedly until interrupted")
	rewardsCmd.Flags().String("rpc", "", "RPC URL, required for --at=chain and --at=block:N")
	rewardsCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(rewardsCmd)

	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "Aggregate claims into monthly reward rows",
		RunE:  runReport,
	}

	reportCmd.Flags().String("in", "./data/events.jsonl", "input ledger events JSONL")
	reportCmd.Flags().String("checkpoint", "./data/checkpoint.json", "checkpoint file holding pool state")
	reportCmd.Flags().String("pg-dsn", "", "Postgres DSN; rows and state go to the database when set")
	reportCmd.Flags().String("out", "./data/monthly_rewards.jsonl", "output JSONL path when no Postgres DSN is set")
	reportCmd.Flags().String("state-file", "", "optional local state file for progress tracking")
	reportCmd.Flags().String("recompute-from", "", "recompute from timestamp (unix seconds or RFC3339)")
	reportCmd.Flags().Int("batch-size", 500, "rows per write")
	reportCmd.Flags().Uint8("decimals", 18, "reward decimals when they can not be read on chain")
	reportCmd.Flags().String("rpc", "", "optional RPC URL to read reward token decimals")
	reportCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(reportCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

func redactDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}
	return "***"
}
