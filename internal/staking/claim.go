package staking

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"plasmaLedger/internal/model"
)

// Claim pays the whole accrued reward to recipient and moves the staker's
// baseline to now. A second claim at the same instant pays zero.
func (p *Pool) Claim(ctx context.Context, now uint64, staker, recipient common.Address) (*big.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	amount, err := p.claim(ctx, now, staker, recipient)
	if err != nil {
		p.logger.Debug("claim rejected", zap.String("staker", staker.Hex()), zap.Error(err))
		return nil, err
	}
	return amount, nil
}

// WithdrawReward claims to the staker's own address.
func (p *Pool) WithdrawReward(ctx context.Context, now uint64, staker common.Address) (*big.Int, error) {
	return p.Claim(ctx, now, staker, staker)
}

func (p *Pool) claim(ctx context.Context, now uint64, staker, recipient common.Address) (*big.Int, error) {
	if err := validIdentity(staker, "staker"); err != nil {
		return nil, err
	}
	if err := validIdentity(recipient, "recipient"); err != nil {
		return nil, err
	}
	if err := p.checkClock(now); err != nil {
		return nil, err
	}

	amount := p.rewardAmount(staker, now)
	if amount.Sign() > 0 {
		if p.cfg.RewardAsset == (common.Address{}) {
			return nil, fmt.Errorf("%w: pool %s", ErrRewardAssetNotSet, p.cfg.ID)
		}
		tok, err := p.token(p.cfg.RewardAsset)
		if err != nil {
			return nil, err
		}
		if err := tok.Transfer(ctx, recipient, amount); err != nil {
			return nil, wrapTransfer("pay reward", err)
		}
	}

	pos := p.positions[staker]
	if pos == nil {
		p.commit(ctx, now)
		return amount, nil
	}
	pos.weightedTs = now

	p.logger.Debug("claim",
		zap.String("staker", staker.Hex()),
		zap.String("recipient", recipient.Hex()),
		zap.String("amount", amount.String()),
	)

	p.commit(ctx, now, model.Event{
		Name:      model.EventClaimed,
		Staker:    staker.Hex(),
		Recipient: recipient.Hex(),
		Month:     p.claimMonth(now),
		Amount:    amount.String(),
	})
	return amount, nil
}

func (p *Pool) claimMonth(now uint64) *uint64 {
	if p.cfg.Mode != ModeMonthly {
		return nil
	}
	return monthPtr(p.CurrentMonth(now))
}
