package staking

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"plasmaLedger/internal/model"
)

// MonthDuration is the length of a pool month in seconds.
const MonthDuration uint64 = 30 * 24 * 60 * 60

var monthSeconds = new(big.Int).SetUint64(MonthDuration)

// Mode selects between a fixed emission rate and per-month budgets.
type Mode uint8

const (
	ModeContinuous Mode = iota + 1
	ModeMonthly
)

func (m Mode) String() string {
	switch m {
	case ModeContinuous:
		return string(model.PoolModeContinuous)
	case ModeMonthly:
		return string(model.PoolModeMonthly)
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

// ParseMode converts a stored mode name.
func ParseMode(name model.PoolMode) (Mode, error) {
	switch name {
	case model.PoolModeContinuous:
		return ModeContinuous, nil
	case model.PoolModeMonthly:
		return ModeMonthly, nil
	default:
		return 0, fmt.Errorf("%w: unknown mode %q", ErrInvalidPoolConfig, name)
	}
}

// Config describes one locked-asset stream.
type Config struct {
	ID             string
	Mode           Mode
	Admin          common.Address
	Address        common.Address // custody account holding locked asset
	Asset          common.Address
	RewardAsset    common.Address
	BufferDuration uint64
	Origin         uint64
	Rate           *big.Int // reward units per second, continuous mode only
}

func (c Config) validate() error {
	if c.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidPoolConfig)
	}
	if c.Mode != ModeContinuous && c.Mode != ModeMonthly {
		return fmt.Errorf("%w: unknown mode %d", ErrInvalidPoolConfig, c.Mode)
	}
	if c.Admin == (common.Address{}) {
		return fmt.Errorf("%w: admin is required", ErrInvalidPoolConfig)
	}
	if c.Address == (common.Address{}) {
		return fmt.Errorf("%w: custody address is required", ErrInvalidPoolConfig)
	}
	if c.Asset == (common.Address{}) {
		return fmt.Errorf("%w: asset is required", ErrInvalidPoolConfig)
	}
	if c.Rate != nil && c.Rate.Sign() < 0 {
		return fmt.Errorf("%w: negative rate", ErrInvalidPoolConfig)
	}
	return nil
}

// Record converts the config to its stored form.
func (c Config) Record() model.PoolConfig {
	rec := model.PoolConfig{
		ID:             c.ID,
		Mode:           model.PoolMode(c.Mode.String()),
		Admin:          c.Admin.Hex(),
		Address:        c.Address.Hex(),
		Asset:          c.Asset.Hex(),
		BufferDuration: c.BufferDuration,
		Origin:         c.Origin,
	}
	if c.RewardAsset != (common.Address{}) {
		rec.RewardAsset = c.RewardAsset.Hex()
	}
	if c.Rate != nil {
		rec.Rate = c.Rate.String()
	}
	return rec
}

// ConfigFromRecord parses a stored pool configuration.
func ConfigFromRecord(rec model.PoolConfig) (Config, error) {
	mode, err := ParseMode(rec.Mode)
	if err != nil {
		return Config{}, err
	}
	cfg := Config{
		ID:             rec.ID,
		Mode:           mode,
		BufferDuration: rec.BufferDuration,
		Origin:         rec.Origin,
	}
	fields := []struct {
		name   string
		value  string
		target *common.Address
		opt    bool
	}{
		{"admin", rec.Admin, &cfg.Admin, false},
		{"address", rec.Address, &cfg.Address, false},
		{"asset", rec.Asset, &cfg.Asset, false},
		{"reward_asset", rec.RewardAsset, &cfg.RewardAsset, true},
	}
	for _, f := range fields {
		if f.value == "" && f.opt {
			continue
		}
		if !common.IsHexAddress(f.value) {
			return Config{}, fmt.Errorf("%w: invalid %s %q", ErrInvalidPoolConfig, f.name, f.value)
		}
		*f.target = common.HexToAddress(f.value)
	}
	if rec.Rate != "" {
		rate, ok := new(big.Int).SetString(rec.Rate, 10)
		if !ok {
			return Config{}, fmt.Errorf("%w: invalid rate %q", ErrInvalidPoolConfig, rec.Rate)
		}
		cfg.Rate = rate
	}
	return cfg, cfg.validate()
}
