package staking

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// RewardAmount returns the reward accrued by staker and not yet claimed at
// now. It never mutates the pool.
//
// The staker's share is its eligible amount (locked minus in-flight
// requests) over the pool's eligible total, both taken at their current
// values for the whole interval. Each month piece is floored separately.
func (p *Pool) RewardAmount(staker common.Address, now uint64) *big.Int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rewardAmount(staker, now)
}

func (p *Pool) rewardAmount(staker common.Address, now uint64) *big.Int {
	reward := new(big.Int)

	pos := p.positions[staker]
	if pos == nil || now <= pos.weightedTs {
		return reward
	}
	eligible := pos.eligible()
	if eligible.Sign() <= 0 {
		return reward
	}
	total := p.totalEligible()
	if total.Sign() <= 0 {
		return reward
	}

	switch p.cfg.Mode {
	case ModeContinuous:
		if p.cfg.Rate == nil {
			return reward
		}
		elapsed := new(big.Int).SetUint64(now - pos.weightedTs)
		reward.Mul(p.cfg.Rate, elapsed)
		reward.Mul(reward, eligible)
		reward.Quo(reward, total)
	case ModeMonthly:
		spans, err := SplitMonths(p.cfg.Origin, pos.weightedTs, now)
		if err != nil {
			return reward
		}
		denom := new(big.Int).Mul(monthSeconds, total)
		piece := new(big.Int)
		for _, span := range spans {
			budget := p.budgetFor(span.Month)
			if budget.Sign() == 0 {
				continue
			}
			piece.Mul(budget, new(big.Int).SetUint64(span.Len()))
			piece.Mul(piece, eligible)
			piece.Quo(piece, denom)
			reward.Add(reward, piece)
		}
	}
	return reward
}
