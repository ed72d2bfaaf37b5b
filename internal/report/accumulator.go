package report

import (
	"fmt"
	"math/big"
	"strings"

	"plasmaLedger/internal/model"
	"plasmaLedger/internal/staking"
)

// Accumulator holds claim totals for one pool month.
type Accumulator struct {
	PoolID      string
	Month       uint64
	WindowStart uint64
	WindowEnd   uint64
	ClaimCount  uint64
	Claimed     *big.Int
	recipients  map[string]struct{}
}

func NewAccumulator(poolID string, origin, month uint64) *Accumulator {
	start := monthStart(origin, month)
	return &Accumulator{
		PoolID:      poolID,
		Month:       month,
		WindowStart: start,
		WindowEnd:   start + staking.MonthDuration,
		Claimed:     big.NewInt(0),
		recipients:  make(map[string]struct{}),
	}
}

// AddEvent folds a ledger event into the totals. Only Claimed events count.
func (a *Accumulator) AddEvent(ev model.Event) error {
	if ev.Name != model.EventClaimed {
		return nil
	}
	amount, err := parseBigInt(ev.Amount)
	if err != nil {
		return err
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("negative claim amount: %s", ev.Amount)
	}
	a.Claimed.Add(a.Claimed, amount)
	a.ClaimCount++
	if ev.Recipient != "" {
		a.recipients[strings.ToLower(ev.Recipient)] = struct{}{}
	}
	return nil
}

func (a *Accumulator) Recipients() uint64 {
	return uint64(len(a.recipients))
}

// eventMonth is the stamped month of monthly pools, otherwise the month the
// event time falls in.
func eventMonth(ev model.Event, origin uint64) uint64 {
	if ev.Month != nil {
		return *ev.Month
	}
	return staking.MonthIndex(origin, ev.Timestamp)
}

func monthStart(origin, month uint64) uint64 {
	return origin + month*staking.MonthDuration
}

func parseBigInt(value string) (*big.Int, error) {
	if value == "" {
		return big.NewInt(0), nil
	}
	parsed, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("invalid int: %s", value)
	}
	return parsed, nil
}
