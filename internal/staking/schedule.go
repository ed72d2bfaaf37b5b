package staking

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"plasmaLedger/internal/model"
)

// CurrentMonth returns the pool month that contains now.
func (p *Pool) CurrentMonth(now uint64) uint64 {
	return MonthIndex(p.cfg.Origin, now)
}

// Budget returns the budget set for month, or zero when none was set.
func (p *Pool) Budget(month uint64) *big.Int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return new(big.Int).Set(p.budgetFor(month))
}

func (p *Pool) budgetFor(month uint64) *big.Int {
	if b, ok := p.budgets[month]; ok {
		return b
	}
	return new(big.Int)
}

// UpdateBudget overwrites the budget of a month. Any month may be set,
// including elapsed ones; the new value applies to every later reward
// computation.
func (p *Pool) UpdateBudget(ctx context.Context, now uint64, caller common.Address, month uint64, amount *big.Int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	err := p.adminOp(now, caller, ModeMonthly, func() error {
		if amount == nil || amount.Sign() < 0 {
			return fmt.Errorf("%w: budget must not be negative", ErrInvalidAmount)
		}
		return nil
	})
	if err != nil {
		p.logger.Debug("budget update rejected", zap.Uint64("month", month), zap.Error(err))
		return err
	}

	p.budgets[month] = new(big.Int).Set(amount)
	p.logger.Debug("budget update", zap.Uint64("month", month), zap.String("amount", amount.String()))
	p.commit(ctx, now, model.Event{
		Name:   model.EventBudgetUpdated,
		Month:  monthPtr(month),
		Amount: amount.String(),
	})
	return nil
}

// SetRewardRate replaces the emission rate of a continuous pool. Accrual
// is computed lazily, so the new rate applies to unclaimed time as well.
func (p *Pool) SetRewardRate(ctx context.Context, now uint64, caller common.Address, rate *big.Int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	err := p.adminOp(now, caller, ModeContinuous, func() error {
		if rate == nil || rate.Sign() < 0 {
			return fmt.Errorf("%w: rate must not be negative", ErrInvalidAmount)
		}
		return nil
	})
	if err != nil {
		p.logger.Debug("reward rate rejected", zap.Error(err))
		return err
	}

	p.cfg.Rate = new(big.Int).Set(rate)
	p.logger.Debug("reward rate", zap.String("rate", rate.String()))
	p.commit(ctx, now, model.Event{
		Name:   model.EventRewardRateUpdated,
		Amount: rate.String(),
	})
	return nil
}

// SetRewardAsset binds the asset paid out by claims.
func (p *Pool) SetRewardAsset(ctx context.Context, now uint64, caller common.Address, asset common.Address) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	err := p.adminOp(now, caller, 0, func() error {
		return validIdentity(asset, "reward asset")
	})
	if err != nil {
		p.logger.Debug("reward asset rejected", zap.Error(err))
		return err
	}

	p.cfg.RewardAsset = asset
	p.logger.Debug("reward asset", zap.String("asset", asset.Hex()))
	p.commit(ctx, now, model.Event{
		Name:  model.EventRewardAssetUpdated,
		Asset: asset.Hex(),
	})
	return nil
}

// SetBufferDuration changes the delay applied to requests placed afterwards.
// Existing requests keep their unlock time.
func (p *Pool) SetBufferDuration(ctx context.Context, now uint64, caller common.Address, seconds uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.adminOp(now, caller, 0, nil); err != nil {
		p.logger.Debug("buffer duration rejected", zap.Error(err))
		return err
	}

	p.cfg.BufferDuration = seconds
	p.logger.Debug("buffer duration", zap.Uint64("seconds", seconds))
	p.commit(ctx, now, model.Event{
		Name:           model.EventBufferDurationUpdated,
		BufferDuration: &seconds,
	})
	return nil
}

// adminOp runs the shared admin checks. A zero mode accepts either mode.
func (p *Pool) adminOp(now uint64, caller common.Address, mode Mode, check func() error) error {
	if err := p.checkAdmin(caller); err != nil {
		return err
	}
	if mode != 0 && p.cfg.Mode != mode {
		return fmt.Errorf("%w: pool %s is %s", ErrModeMismatch, p.cfg.ID, p.cfg.Mode)
	}
	if check != nil {
		if err := check(); err != nil {
			return err
		}
	}
	return p.checkClock(now)
}
