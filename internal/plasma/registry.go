// Package plasma aggregates independent pools that feed one reward asset.
package plasma

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"plasmaLedger/internal/model"
	"plasmaLedger/internal/staking"
)

var (
	ErrUnknownPool   = errors.New("unknown pool")
	ErrDuplicatePool = errors.New("duplicate pool")
)

// Registry holds pools by id. Each pool keeps its own ledger and lock.
type Registry struct {
	mu     sync.RWMutex
	pools  map[string]*staking.Pool
	logger *zap.Logger
}

func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{pools: make(map[string]*staking.Pool), logger: logger}
}

// Add registers a pool under its id.
func (r *Registry) Add(pool *staking.Pool) error {
	if pool == nil {
		return fmt.Errorf("pool is nil")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.pools[pool.ID()]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicatePool, pool.ID())
	}
	r.pools[pool.ID()] = pool
	return nil
}

// Pool returns the pool registered under id.
func (r *Registry) Pool(id string) (*staking.Pool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	pool, ok := r.pools[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPool, id)
	}
	return pool, nil
}

// Pools returns every pool ordered by id.
func (r *Registry) Pools() []*staking.Pool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.pools))
	for id := range r.pools {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]*staking.Pool, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.pools[id])
	}
	return out
}

// RewardAll sums the staker's unclaimed reward over every pool.
func (r *Registry) RewardAll(staker common.Address, now uint64) *big.Int {
	total := new(big.Int)
	for _, pool := range r.Pools() {
		total.Add(total, pool.RewardAmount(staker, now))
	}
	return total
}

// PoolReward is one pool's share of a multi-pool claim.
type PoolReward struct {
	Pool   string
	Amount *big.Int
}

// ClaimAll claims from every pool in id order. Pools are independent, so a
// failure stops the walk but keeps the claims already made; the partial sum
// and the per-pool breakdown are returned with the error.
func (r *Registry) ClaimAll(ctx context.Context, now uint64, staker, recipient common.Address) (*big.Int, []PoolReward, error) {
	total := new(big.Int)
	var parts []PoolReward
	for _, pool := range r.Pools() {
		amount, err := pool.Claim(ctx, now, staker, recipient)
		if err != nil {
			r.logger.Warn("claim failed", zap.String("pool", pool.ID()), zap.String("staker", staker.Hex()), zap.Error(err))
			return total, parts, fmt.Errorf("claim pool %s: %w", pool.ID(), err)
		}
		total.Add(total, amount)
		parts = append(parts, PoolReward{Pool: pool.ID(), Amount: amount})
	}
	r.logger.Debug("claim all", zap.String("staker", staker.Hex()), zap.String("amount", total.String()), zap.Int("pools", len(parts)))
	return total, parts, nil
}

// RewardSnapshots reads every staker's owed reward at now. An empty ids list
// selects all pools. Nothing is mutated.
func (r *Registry) RewardSnapshots(now uint64, ids []string) ([]model.RewardSnapshot, error) {
	pools := r.Pools()
	if len(ids) > 0 {
		pools = pools[:0:0]
		for _, id := range ids {
			pool, err := r.Pool(id)
			if err != nil {
				return nil, err
			}
			pools = append(pools, pool)
		}
	}

	takenAt := time.Now().UTC().Format(time.RFC3339)
	var out []model.RewardSnapshot
	for _, pool := range pools {
		month := pool.CurrentMonth(now)
		for _, staker := range pool.Stakers() {
			pos := pool.Position(staker)
			out = append(out, model.RewardSnapshot{
				Pool:          pool.ID(),
				Staker:        staker.Hex(),
				At:            now,
				Month:         month,
				LockedAmount:  pos.LockedAmount.String(),
				PendingAmount: pos.PendingAmount.String(),
				Reward:        pool.RewardAmount(staker, now).String(),
				TakenAt:       takenAt,
			})
		}
	}
	return out, nil
}
