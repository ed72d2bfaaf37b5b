package staking

import (
	"context"
	"fmt"
	"math"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"plasmaLedger/internal/model"
)

// PlaceRequest queues amount for release after the buffer duration. The
// amount stops earning reward immediately but stays locked until released.
func (p *Pool) PlaceRequest(ctx context.Context, now uint64, staker common.Address, amount *big.Int) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	id, err := p.placeRequest(ctx, now, staker, amount)
	if err != nil {
		p.logger.Debug("withdraw request rejected", zap.String("staker", staker.Hex()), zap.Error(err))
		return 0, err
	}
	return id, nil
}

func (p *Pool) placeRequest(ctx context.Context, now uint64, staker common.Address, amount *big.Int) (uint64, error) {
	if err := validIdentity(staker, "staker"); err != nil {
		return 0, err
	}
	if err := validAmount(amount); err != nil {
		return 0, err
	}
	if err := p.checkClock(now); err != nil {
		return 0, err
	}

	pos := p.positions[staker]
	available := new(big.Int)
	if pos != nil {
		available = pos.eligible()
	}
	if amount.Cmp(available) > 0 {
		return 0, fmt.Errorf("%w: requested %s, available %s", ErrInsufficientUnlockedBalance, amount, available)
	}

	req := &withdrawRequest{
		id:       uint64(len(pos.requests)) + 1,
		amount:   new(big.Int).Set(amount),
		unlockAt: unlockTime(now, p.cfg.BufferDuration),
	}
	pos.requests = append(pos.requests, req)
	pos.pending.Add(pos.pending, amount)
	p.totalPending.Add(p.totalPending, amount)

	p.logger.Debug("withdraw request",
		zap.String("staker", staker.Hex()),
		zap.Uint64("id", req.id),
		zap.String("amount", amount.String()),
		zap.Uint64("unlock_at", req.unlockAt),
	)

	p.commit(ctx, now, model.Event{
		Name:      model.EventRequestCreated,
		Staker:    staker.Hex(),
		RequestID: req.id,
		Amount:    amount.String(),
		UnlockAt:  req.unlockAt,
	})
	return req.id, nil
}

// Release pays out a matured request to recipient and reduces the locked
// amount. Each request is released at most once.
func (p *Pool) Release(ctx context.Context, now uint64, staker common.Address, id uint64, recipient common.Address) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.release(ctx, now, staker, id, recipient); err != nil {
		p.logger.Debug("release rejected", zap.String("staker", staker.Hex()), zap.Uint64("id", id), zap.Error(err))
		return err
	}
	return nil
}

func (p *Pool) release(ctx context.Context, now uint64, staker common.Address, id uint64, recipient common.Address) error {
	if err := validIdentity(recipient, "recipient"); err != nil {
		return err
	}
	if err := p.checkClock(now); err != nil {
		return err
	}

	pos := p.positions[staker]
	if pos == nil || id == 0 || id > uint64(len(pos.requests)) {
		return fmt.Errorf("%w: %s has no request %d", ErrRequestNotFound, staker.Hex(), id)
	}
	req := pos.requests[id-1]
	if req.consumed {
		return fmt.Errorf("%w: request %d", ErrRequestAlreadyConsumed, id)
	}
	if now < req.unlockAt {
		return fmt.Errorf("%w: request %d unlocks at %d", ErrLockPeriodNotElapsed, id, req.unlockAt)
	}

	tok, err := p.token(p.cfg.Asset)
	if err != nil {
		return err
	}
	if err := tok.Transfer(ctx, recipient, req.amount); err != nil {
		return wrapTransfer("pay release", err)
	}

	req.consumed = true
	pos.locked.Sub(pos.locked, req.amount)
	pos.pending.Sub(pos.pending, req.amount)
	p.totalLocked.Sub(p.totalLocked, req.amount)
	p.totalPending.Sub(p.totalPending, req.amount)

	p.logger.Debug("release",
		zap.String("staker", staker.Hex()),
		zap.String("recipient", recipient.Hex()),
		zap.Uint64("id", id),
		zap.String("amount", req.amount.String()),
		zap.String("locked", pos.locked.String()),
	)

	p.commit(ctx, now, model.Event{
		Name:      model.EventReleased,
		Staker:    staker.Hex(),
		Recipient: recipient.Hex(),
		RequestID: id,
		Amount:    req.amount.String(),
	})
	return nil
}

// OpenRequests lists the staker's requests that have not been released.
func (p *Pool) OpenRequests(staker common.Address) []RequestInfo {
	return p.requests(staker, false)
}

// Requests lists every request the staker ever placed, in id order.
func (p *Pool) Requests(staker common.Address) []RequestInfo {
	return p.requests(staker, true)
}

func (p *Pool) requests(staker common.Address, includeConsumed bool) []RequestInfo {
	p.mu.Lock()
	defer p.mu.Unlock()

	pos := p.positions[staker]
	if pos == nil {
		return nil
	}
	out := make([]RequestInfo, 0, len(pos.requests))
	for _, req := range pos.requests {
		if req.consumed && !includeConsumed {
			continue
		}
		out = append(out, RequestInfo{
			ID:       req.id,
			Amount:   new(big.Int).Set(req.amount),
			UnlockAt: req.unlockAt,
			Consumed: req.consumed,
		})
	}
	return out
}

// unlockTime saturates at math.MaxUint64 instead of wrapping.
func unlockTime(now, buffer uint64) uint64 {
	if buffer > math.MaxUint64-now {
		return math.MaxUint64
	}
	return now + buffer
}

func wrapTransfer(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrTransferFailed, op, err)
}
