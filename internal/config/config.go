// Package config loads command settings from flags, LEDGER_* environment
// variables and an optional config file.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "LEDGER"

func newViper(cfgFile string, flags *pflag.FlagSet, defaults map[string]interface{}) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("log-level", "info")
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}
	return v, nil
}

// ReplayConfig holds configuration for the replay command.
type ReplayConfig struct {
	Journal           string
	Rejects           string
	Events            string
	SQLite            string
	PGDSN             string
	Checkpoint        string
	CheckpointEnabled bool
	CheckpointEvery   uint64
	MaxRetries        int
	RetryBackoff      time.Duration
	StopOnReject      bool
	Tokens            string
	RPCURL            string
	PrivateKey        string
	Pools             []PoolSpec
	LogLevel          string
}

// LoadReplay merges config file, environment variables, and flags into ReplayConfig.
func LoadReplay(cfgFile string, flags *pflag.FlagSet) (ReplayConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"rejects":            "./data/rejects.jsonl",
		"events":             "./data/events.jsonl",
		"checkpoint":         "./data/checkpoint.json",
		"checkpoint-enabled": true,
		"checkpoint-every":   uint64(1000),
		"max-retries":        0,
		"retry-backoff":      500 * time.Millisecond,
		"tokens":             "bank",
	})
	if err != nil {
		return ReplayConfig{}, err
	}

	pools, err := loadPools(v)
	if err != nil {
		return ReplayConfig{}, err
	}

	cfg := ReplayConfig{
		Journal:           v.GetString("journal"),
		Rejects:           v.GetString("rejects"),
		Events:            v.GetString("events"),
		SQLite:            v.GetString("sqlite"),
		PGDSN:             v.GetString("pg-dsn"),
		Checkpoint:        v.GetString("checkpoint"),
		CheckpointEnabled: v.GetBool("checkpoint-enabled"),
		CheckpointEvery:   v.GetUint64("checkpoint-every"),
		MaxRetries:        v.GetInt("max-retries"),
		RetryBackoff:      v.GetDuration("retry-backoff"),
		StopOnReject:      v.GetBool("stop-on-reject"),
		Tokens:            strings.ToLower(v.GetString("tokens")),
		RPCURL:            v.GetString("rpc"),
		PrivateKey:        v.GetString("private-key"),
		Pools:             pools,
		LogLevel:          v.GetString("log-level"),
	}
	if cfg.Tokens != "bank" && cfg.Tokens != "chain" {
		return ReplayConfig{}, fmt.Errorf("tokens must be bank or chain, got %q", cfg.Tokens)
	}
	return cfg, nil
}

// RewardsConfig holds configuration for the rewards command.
type RewardsConfig struct {
	Checkpoint string
	PGDSN      string
	Out        string
	SQLite     string
	Pools      []string
	At         string
	Schedule   string
	RPCURL     string
	LogLevel   string
}

// LoadRewards merges config file, environment variables, and flags into RewardsConfig.
func LoadRewards(cfgFile string, flags *pflag.FlagSet) (RewardsConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"checkpoint": "./data/checkpoint.json",
		"out":        "./data/reward_snapshots.jsonl",
		"at":         "now",
	})
	if err != nil {
		return RewardsConfig{}, err
	}

	return RewardsConfig{
		Checkpoint: v.GetString("checkpoint"),
		PGDSN:      v.GetString("pg-dsn"),
		Out:        v.GetString("out"),
		SQLite:     v.GetString("sqlite"),
		Pools:      getStringSlice(v, "pool"),
		At:         v.GetString("at"),
		Schedule:   v.GetString("schedule"),
		RPCURL:     v.GetString("rpc"),
		LogLevel:   v.GetString("log-level"),
	}, nil
}

// ReportConfig holds configuration for the report command.
type ReportConfig struct {
	Input         string
	Checkpoint    string
	PGDSN         string
	Out           string
	StateFile     string
	RecomputeFrom string
	BatchSize     int
	Decimals      uint8
	RPCURL        string
	LogLevel      string
}

// LoadReport merges config file, environment variables, and flags into ReportConfig.
func LoadReport(cfgFile string, flags *pflag.FlagSet) (ReportConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"in":         "./data/events.jsonl",
		"checkpoint": "./data/checkpoint.json",
		"out":        "./data/monthly_rewards.jsonl",
		"batch-size": 500,
		"decimals":   18,
	})
	if err != nil {
		return ReportConfig{}, err
	}

	decimals := v.GetUint("decimals")
	if decimals > 77 {
		return ReportConfig{}, fmt.Errorf("decimals out of range: %d", decimals)
	}

	return ReportConfig{
		Input:         v.GetString("in"),
		Checkpoint:    v.GetString("checkpoint"),
		PGDSN:         v.GetString("pg-dsn"),
		Out:           v.GetString("out"),
		StateFile:     v.GetString("state-file"),
		RecomputeFrom: v.GetString("recompute-from"),
		BatchSize:     v.GetInt("batch-size"),
		Decimals:      uint8(decimals),
		RPCURL:        v.GetString("rpc"),
		LogLevel:      v.GetString("log-level"),
	}, nil
}

// ParseTimestamp parses a timestamp value (unix seconds or RFC3339).
func ParseTimestamp(input string) (uint64, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return 0, nil
	}
	if isNumeric(input) {
		return strconv.ParseUint(input, 10, 64)
	}
	tm, err := time.Parse(time.RFC3339, input)
	if err != nil {
		return 0, err
	}
	if tm.Unix() < 0 {
		return 0, fmt.Errorf("timestamp before epoch: %s", input)
	}
	return uint64(tm.Unix()), nil
}

// ParseSeconds parses a duration given as whole seconds or a Go duration.
func ParseSeconds(input string) (uint64, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return 0, nil
	}
	if isNumeric(input) {
		return strconv.ParseUint(input, 10, 64)
	}
	d, err := time.ParseDuration(input)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration: %s", input)
	}
	return uint64(d / time.Second), nil
}

func isNumeric(input string) bool {
	for _, r := range input {
		if r < '0' || r > '9' {
			return false
		}
	}
	return input != ""
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	return cleanStrings(strings.Split(input, ","))
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
