package staking

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"plasmaLedger/internal/model"
)

// Deposit locks amount of the pool asset pulled from the staker.
func (p *Pool) Deposit(ctx context.Context, now uint64, staker common.Address, amount *big.Int) error {
	return p.DepositFor(ctx, now, staker, staker, amount)
}

// DepositFor pulls amount from payer and credits it to staker's position.
//
// Accrued reward is not settled. The weighted timestamp becomes the
// amount-weighted average of the old timestamp and now. A position drained
// to zero by releases keeps its previous weighted timestamp, so a later
// deposit accrues from that stale baseline.
func (p *Pool) DepositFor(ctx context.Context, now uint64, payer, staker common.Address, amount *big.Int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.deposit(ctx, now, payer, staker, amount); err != nil {
		p.logger.Debug("deposit rejected", zap.String("staker", staker.Hex()), zap.Error(err))
		return err
	}
	return nil
}

func (p *Pool) deposit(ctx context.Context, now uint64, payer, staker common.Address, amount *big.Int) error {
	if err := validIdentity(staker, "staker"); err != nil {
		return err
	}
	if err := validIdentity(payer, "payer"); err != nil {
		return err
	}
	if err := validAmount(amount); err != nil {
		return err
	}
	if err := p.checkClock(now); err != nil {
		return err
	}

	tok, err := p.token(p.cfg.Asset)
	if err != nil {
		return err
	}
	if err := tok.TransferFrom(ctx, payer, p.cfg.Address, amount); err != nil {
		return wrapTransfer("pull deposit", err)
	}

	pos := p.positions[staker]
	if pos == nil {
		pos = &position{locked: new(big.Int), pending: new(big.Int)}
		p.positions[staker] = pos
	}
	pos.weightedTs = blendTimestamp(pos.locked, pos.weightedTs, amount, now)
	pos.locked.Add(pos.locked, amount)
	p.totalLocked.Add(p.totalLocked, amount)

	p.logger.Debug("deposit",
		zap.String("staker", staker.Hex()),
		zap.String("payer", payer.Hex()),
		zap.String("amount", amount.String()),
		zap.String("locked", pos.locked.String()),
		zap.Uint64("weighted_ts", pos.weightedTs),
	)

	p.commit(ctx, now, model.Event{
		Name:              model.EventDeposited,
		Staker:            staker.Hex(),
		Payer:             payer.Hex(),
		Amount:            amount.String(),
		WeightedTimestamp: pos.weightedTs,
	})
	return nil
}

// blendTimestamp returns the weighted timestamp after adding amount at now.
func blendTimestamp(locked *big.Int, ts uint64, amount *big.Int, now uint64) uint64 {
	if locked.Sign() == 0 {
		if ts == 0 {
			return now
		}
		// drained position: baseline is left stale
		return ts
	}
	weighted := new(big.Int).Mul(locked, new(big.Int).SetUint64(ts))
	weighted.Add(weighted, new(big.Int).Mul(amount, new(big.Int).SetUint64(now)))
	weighted.Quo(weighted, new(big.Int).Add(locked, amount))
	return weighted.Uint64()
}
