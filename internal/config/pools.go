package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/viper"

	"plasmaLedger/internal/model"
	"plasmaLedger/internal/staking"
)

// PoolSpec declares a pool in the config file under `pools:`.
type PoolSpec struct {
	ID             string       `mapstructure:"id"`
	Mode           string       `mapstructure:"mode"`
	Admin          string       `mapstructure:"admin"`
	Address        string       `mapstructure:"address"`
	Asset          string       `mapstructure:"asset"`
	RewardAsset    string       `mapstructure:"reward_asset"`
	BufferDuration string       `mapstructure:"buffer_duration"`
	Origin         string       `mapstructure:"origin"`
	Rate           string       `mapstructure:"rate"`
	MintReward     bool         `mapstructure:"mint_reward"`
	Budgets        []BudgetSpec `mapstructure:"budgets"`
}

// BudgetSpec is an initial month budget.
type BudgetSpec struct {
	Month  uint64 `mapstructure:"month"`
	Amount string `mapstructure:"amount"`
}

func loadPools(v *viper.Viper) ([]PoolSpec, error) {
	if !v.IsSet("pools") {
		return nil, nil
	}
	var specs []PoolSpec
	if err := v.UnmarshalKey("pools", &specs); err != nil {
		return nil, fmt.Errorf("parse pools: %w", err)
	}
	seen := make(map[string]struct{}, len(specs))
	for _, spec := range specs {
		if _, ok := seen[spec.ID]; ok {
			return nil, fmt.Errorf("duplicate pool id %q", spec.ID)
		}
		seen[spec.ID] = struct{}{}
	}
	return specs, nil
}

// Record converts the spec to a stored pool configuration and validates it.
func (s PoolSpec) Record() (model.PoolConfig, error) {
	buffer, err := ParseSeconds(s.BufferDuration)
	if err != nil {
		return model.PoolConfig{}, fmt.Errorf("pool %s buffer_duration: %w", s.ID, err)
	}
	origin, err := ParseTimestamp(s.Origin)
	if err != nil {
		return model.PoolConfig{}, fmt.Errorf("pool %s origin: %w", s.ID, err)
	}
	rec := model.PoolConfig{
		ID:             s.ID,
		Mode:           model.PoolMode(strings.ToLower(s.Mode)),
		Admin:          s.Admin,
		Address:        s.Address,
		Asset:          s.Asset,
		RewardAsset:    s.RewardAsset,
		BufferDuration: buffer,
		Origin:         origin,
		Rate:           s.Rate,
	}
	if _, err := staking.ConfigFromRecord(rec); err != nil {
		return model.PoolConfig{}, fmt.Errorf("pool %s: %w", s.ID, err)
	}
	return rec, nil
}

// Snapshot returns the empty initial state of the pool with its budgets.
func (s PoolSpec) Snapshot() (model.PoolSnapshot, error) {
	rec, err := s.Record()
	if err != nil {
		return model.PoolSnapshot{}, err
	}
	if len(s.Budgets) > 0 && rec.Mode != model.PoolModeMonthly {
		return model.PoolSnapshot{}, fmt.Errorf("pool %s: budgets need monthly mode", s.ID)
	}
	snap := model.PoolSnapshot{Config: rec}
	months := make(map[uint64]struct{}, len(s.Budgets))
	for _, b := range s.Budgets {
		if _, ok := months[b.Month]; ok {
			return model.PoolSnapshot{}, fmt.Errorf("pool %s: duplicate budget for month %d", s.ID, b.Month)
		}
		months[b.Month] = struct{}{}
		snap.Budgets = append(snap.Budgets, model.MonthBudget{Month: b.Month, Amount: strings.TrimSpace(b.Amount)})
	}
	sort.Slice(snap.Budgets, func(i, j int) bool { return snap.Budgets[i].Month < snap.Budgets[j].Month })
	return snap, nil
}

// PoolSnapshots converts every spec to its initial snapshot.
func PoolSnapshots(specs []PoolSpec) ([]model.PoolSnapshot, error) {
	out := make([]model.PoolSnapshot, 0, len(specs))
	for _, spec := range specs {
		snap, err := spec.Snapshot()
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, nil
}
