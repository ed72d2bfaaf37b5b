package staking

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"plasmaLedger/internal/model"
)

// Options carries a pool's collaborators.
type Options struct {
	Tokens TokenSource
	Sink   EventSink
	Logger *zap.Logger
}

// Pool is an isolated accrual engine for one locked asset and one reward policy.
// Every operation holds the pool mutex end to end, so operations are applied
// one at a time and a rejected operation leaves no trace.
type Pool struct {
	mu sync.Mutex

	cfg    Config
	tokens TokenSource
	sink   EventSink
	logger *zap.Logger

	positions    map[common.Address]*position
	budgets      map[uint64]*big.Int
	totalLocked  *big.Int
	totalPending *big.Int
	lastTime     uint64
	seq          uint64
}

type position struct {
	locked     *big.Int
	pending    *big.Int
	weightedTs uint64
	requests   []*withdrawRequest
}

type withdrawRequest struct {
	id       uint64
	amount   *big.Int
	unlockAt uint64
	consumed bool
}

// PositionInfo is a read-only view of a staker's position.
type PositionInfo struct {
	Staker            common.Address
	LockedAmount      *big.Int
	PendingAmount     *big.Int
	EligibleAmount    *big.Int
	WeightedTimestamp uint64
}

// RequestInfo is a read-only view of a withdraw request.
type RequestInfo struct {
	ID       uint64
	Amount   *big.Int
	UnlockAt uint64
	Consumed bool
}

// Totals reports pool-wide locked and in-flight amounts.
type Totals struct {
	Locked   *big.Int
	Pending  *big.Int
	Eligible *big.Int
	Stakers  int
}

// NewPool validates cfg and returns an empty pool.
func NewPool(cfg Config, opts Options) (*Pool, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Rate != nil {
		cfg.Rate = new(big.Int).Set(cfg.Rate)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{
		cfg:          cfg,
		tokens:       opts.Tokens,
		sink:         opts.Sink,
		logger:       logger.With(zap.String("pool", cfg.ID)),
		positions:    make(map[common.Address]*position),
		budgets:      make(map[uint64]*big.Int),
		totalLocked:  new(big.Int),
		totalPending: new(big.Int),
	}, nil
}

// ID returns the pool identifier.
func (p *Pool) ID() string {
	return p.cfg.ID
}

// Config returns a copy of the current configuration.
func (p *Pool) Config() Config {
	p.mu.Lock()
	defer p.mu.Unlock()
	cfg := p.cfg
	if cfg.Rate != nil {
		cfg.Rate = new(big.Int).Set(cfg.Rate)
	}
	return cfg
}

// LastTime returns the time of the last applied operation.
func (p *Pool) LastTime() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastTime
}

// Position returns the staker's position. The zero view is returned for
// stakers that never deposited.
func (p *Pool) Position(staker common.Address) PositionInfo {
	p.mu.Lock()
	defer p.mu.Unlock()

	info := PositionInfo{
		Staker:         staker,
		LockedAmount:   new(big.Int),
		PendingAmount:  new(big.Int),
		EligibleAmount: new(big.Int),
	}
	pos := p.positions[staker]
	if pos == nil {
		return info
	}
	info.LockedAmount.Set(pos.locked)
	info.PendingAmount.Set(pos.pending)
	info.EligibleAmount.Set(pos.eligible())
	info.WeightedTimestamp = pos.weightedTs
	return info
}

// Stakers lists every address that ever held a position, in byte order.
func (p *Pool) Stakers() []common.Address {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sortedStakers()
}

// Totals returns pool-wide amounts.
func (p *Pool) Totals() Totals {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Totals{
		Locked:   new(big.Int).Set(p.totalLocked),
		Pending:  new(big.Int).Set(p.totalPending),
		Eligible: p.totalEligible(),
		Stakers:  len(p.positions),
	}
}

// Snapshot captures the pool's complete state.
func (p *Pool) Snapshot() model.PoolSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	snap := model.PoolSnapshot{
		Config:       p.cfg.Record(),
		LastTime:     p.lastTime,
		Seq:          p.seq,
		TotalLocked:  p.totalLocked.String(),
		TotalPending: p.totalPending.String(),
	}

	months := make([]uint64, 0, len(p.budgets))
	for month := range p.budgets {
		months = append(months, month)
	}
	sort.Slice(months, func(i, j int) bool { return months[i] < months[j] })
	for _, month := range months {
		snap.Budgets = append(snap.Budgets, model.MonthBudget{Month: month, Amount: p.budgets[month].String()})
	}

	for _, staker := range p.sortedStakers() {
		pos := p.positions[staker]
		rec := model.PositionRecord{
			Staker:            staker.Hex(),
			LockedAmount:      pos.locked.String(),
			PendingAmount:     pos.pending.String(),
			WeightedTimestamp: pos.weightedTs,
		}
		for _, req := range pos.requests {
			rec.Requests = append(rec.Requests, model.WithdrawRequest{
				ID:       req.id,
				Amount:   req.amount.String(),
				UnlockAt: req.unlockAt,
				Consumed: req.consumed,
			})
		}
		snap.Positions = append(snap.Positions, rec)
	}
	return snap
}

// Restore rebuilds a pool from a snapshot. Totals are recomputed from the
// positions and checked against the recorded values.
func Restore(snap model.PoolSnapshot, opts Options) (*Pool, error) {
	cfg, err := ConfigFromRecord(snap.Config)
	if err != nil {
		return nil, err
	}
	p, err := NewPool(cfg, opts)
	if err != nil {
		return nil, err
	}
	p.lastTime = snap.LastTime
	p.seq = snap.Seq

	for _, b := range snap.Budgets {
		amount, err := parseAmount(b.Amount)
		if err != nil {
			return nil, fmt.Errorf("restore budget %d: %w", b.Month, err)
		}
		p.budgets[b.Month] = amount
	}

	for _, rec := range snap.Positions {
		if !common.IsHexAddress(rec.Staker) {
			return nil, fmt.Errorf("restore position: invalid staker %q", rec.Staker)
		}
		locked, err := parseAmount(rec.LockedAmount)
		if err != nil {
			return nil, fmt.Errorf("restore position %s: %w", rec.Staker, err)
		}
		pos := &position{locked: locked, pending: new(big.Int), weightedTs: rec.WeightedTimestamp}
		for i, r := range rec.Requests {
			if r.ID != uint64(i+1) {
				return nil, fmt.Errorf("restore position %s: request id %d out of sequence", rec.Staker, r.ID)
			}
			amount, err := parseAmount(r.Amount)
			if err != nil {
				return nil, fmt.Errorf("restore request %d: %w", r.ID, err)
			}
			pos.requests = append(pos.requests, &withdrawRequest{id: r.ID, amount: amount, unlockAt: r.UnlockAt, consumed: r.Consumed})
			if !r.Consumed {
				pos.pending.Add(pos.pending, amount)
			}
		}
		if pos.pending.Cmp(pos.locked) > 0 {
			return nil, fmt.Errorf("restore position %s: open requests exceed locked amount", rec.Staker)
		}
		p.positions[common.HexToAddress(rec.Staker)] = pos
		p.totalLocked.Add(p.totalLocked, pos.locked)
		p.totalPending.Add(p.totalPending, pos.pending)
	}

	if snap.TotalLocked != "" && snap.TotalLocked != p.totalLocked.String() {
		return nil, fmt.Errorf("restore pool %s: total locked %s does not match positions %s", cfg.ID, snap.TotalLocked, p.totalLocked)
	}
	if snap.TotalPending != "" && snap.TotalPending != p.totalPending.String() {
		return nil, fmt.Errorf("restore pool %s: total pending %s does not match requests %s", cfg.ID, snap.TotalPending, p.totalPending)
	}
	return p, nil
}

func (pos *position) eligible() *big.Int {
	return new(big.Int).Sub(pos.locked, pos.pending)
}

func (p *Pool) totalEligible() *big.Int {
	return new(big.Int).Sub(p.totalLocked, p.totalPending)
}

func (p *Pool) sortedStakers() []common.Address {
	stakers := make([]common.Address, 0, len(p.positions))
	for staker := range p.positions {
		stakers = append(stakers, staker)
	}
	sort.Slice(stakers, func(i, j int) bool {
		return stakers[i].Cmp(stakers[j]) < 0
	})
	return stakers
}

// checkClock rejects operations stamped earlier than the last applied one.
func (p *Pool) checkClock(now uint64) error {
	if now < p.lastTime {
		return fmt.Errorf("%w: %d < %d", ErrClockRegression, now, p.lastTime)
	}
	return nil
}

func (p *Pool) checkAdmin(caller common.Address) error {
	if caller != p.cfg.Admin {
		return fmt.Errorf("%w: %s is not the pool admin", ErrUnauthorized, caller.Hex())
	}
	return nil
}

func (p *Pool) token(asset common.Address) (Token, error) {
	if p.tokens == nil {
		return nil, fmt.Errorf("%w: no token source configured", ErrTransferFailed)
	}
	tok, err := p.tokens.Token(asset)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve %s: %v", ErrTransferFailed, asset.Hex(), err)
	}
	return tok, nil
}

// commit stamps the operation time and publishes events. Sink failures are
// logged; the ledger mutation has already happened.
func (p *Pool) commit(ctx context.Context, now uint64, events ...model.Event) {
	p.lastTime = now
	if len(events) == 0 {
		return
	}
	for i := range events {
		p.seq++
		events[i].Pool = p.cfg.ID
		events[i].Seq = p.seq
		events[i].Timestamp = now
	}
	if p.sink == nil {
		return
	}
	if err := p.sink.PublishEvents(ctx, events); err != nil {
		p.logger.Warn("publish events", zap.Error(err), zap.Int("events", len(events)))
	}
}

func validAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("%w: must be greater than 0", ErrInvalidAmount)
	}
	return nil
}

func validIdentity(addr common.Address, role string) error {
	if addr == (common.Address{}) {
		return fmt.Errorf("%w: %s can not be the zero address", ErrInvalidRecipient, role)
	}
	return nil
}

func parseAmount(value string) (*big.Int, error) {
	if value == "" {
		return new(big.Int), nil
	}
	amount, ok := new(big.Int).SetString(value, 10)
	if !ok || amount.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	return amount, nil
}

func monthPtr(month uint64) *uint64 {
	return &month
}
