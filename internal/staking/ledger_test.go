package staking

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plasmaLedger/internal/model"
)

func TestDepositFirstSetsTimestamp(t *testing.T) {
	f := newFixture(t, ModeMonthly, 0)
	ctx := context.Background()

	require.NoError(t, f.pool.Deposit(ctx, origin+10, alice, e18(100)))

	pos := f.pool.Position(alice)
	assertAmount(t, e18(100), pos.LockedAmount)
	assert.Equal(t, origin+10, pos.WeightedTimestamp)
	assertAmount(t, e18(100), f.balance(lockedAsset, custodyAddr))
	assertAmount(t, e18(999_900), f.balance(lockedAsset, alice))
	assertAmount(t, e18(100), f.pool.Totals().Locked)
}

func TestDepositBlendsTimestamp(t *testing.T) {
	f := newFixture(t, ModeMonthly, 0)
	ctx := context.Background()

	require.NoError(t, f.pool.Deposit(ctx, origin, alice, e18(100)))
	require.NoError(t, f.pool.Deposit(ctx, origin+3*day, alice, e18(200)))

	// (100*t0 + 200*(t0+3d)) / 300 = t0 + 2d
	assert.Equal(t, origin+2*day, f.pool.Position(alice).WeightedTimestamp)

	require.NoError(t, f.pool.Deposit(ctx, origin+3*day+7, alice, big.NewInt(1)))
	pos := f.pool.Position(alice)
	// the one-wei deposit cannot move the floor-divided average
	assert.Equal(t, origin+2*day, pos.WeightedTimestamp)
	assertAmount(t, new(big.Int).Add(e18(300), big.NewInt(1)), pos.LockedAmount)
}

func TestDepositForCreditsStaker(t *testing.T) {
	f := newFixture(t, ModeMonthly, 0)
	ctx := context.Background()

	require.NoError(t, f.pool.DepositFor(ctx, origin, bob, alice, e18(5)))

	assertAmount(t, e18(5), f.pool.Position(alice).LockedAmount)
	assert.Zero(t, f.pool.Position(bob).LockedAmount.Sign())
	assertAmount(t, e18(999_995), f.balance(lockedAsset, bob))

	require.Len(t, f.sink.events, 1)
	ev := f.sink.events[0]
	assert.Equal(t, model.EventDeposited, ev.Name)
	assert.Equal(t, alice.Hex(), ev.Staker)
	assert.Equal(t, bob.Hex(), ev.Payer)
	assert.Equal(t, origin, ev.WeightedTimestamp)
}

func TestDepositRejections(t *testing.T) {
	f := newFixture(t, ModeMonthly, 0)
	ctx := context.Background()

	err := f.pool.Deposit(ctx, origin, alice, big.NewInt(0))
	assert.ErrorIs(t, err, ErrInvalidAmount)

	err = f.pool.Deposit(ctx, origin, alice, big.NewInt(-5))
	assert.ErrorIs(t, err, ErrInvalidAmount)

	err = f.pool.Deposit(ctx, origin, common.Address{}, e18(1))
	assert.ErrorIs(t, err, ErrInvalidRecipient)

	require.NoError(t, f.pool.Deposit(ctx, origin+day, alice, e18(1)))
	err = f.pool.Deposit(ctx, origin, alice, e18(1))
	assert.ErrorIs(t, err, ErrClockRegression)

	assertAmount(t, e18(1), f.pool.Position(alice).LockedAmount)
}

func TestDepositTransferFailureLeavesStateUnchanged(t *testing.T) {
	f := newFixture(t, ModeMonthly, 0)
	ctx := context.Background()

	require.NoError(t, f.pool.Deposit(ctx, origin, alice, e18(1)))
	before := f.pool.Snapshot()

	f.tokens[lockedAsset].fail = errors.New("paused")
	err := f.pool.Deposit(ctx, origin+day, alice, e18(1))
	require.ErrorIs(t, err, ErrTransferFailed)

	assert.Equal(t, before, f.pool.Snapshot())

	f.tokens[lockedAsset].fail = nil
	err = f.pool.Deposit(ctx, origin+day, alice, e18(2_000_000))
	require.ErrorIs(t, err, ErrTransferFailed)
	assert.ErrorIs(t, err, errNoFunds)
	assert.Equal(t, before, f.pool.Snapshot())

	f.tokens[lockedAsset].fail = fmt.Errorf("%w: tx 0x01", ErrTransferUnconfirmed)
	err = f.pool.Deposit(ctx, origin+day, alice, e18(1))
	require.ErrorIs(t, err, ErrTransferFailed)
	assert.ErrorIs(t, err, ErrTransferUnconfirmed)
	assert.Equal(t, before, f.pool.Snapshot())
}

func TestBlendTimestamp(t *testing.T) {
	cases := []struct {
		name   string
		locked *big.Int
		ts     uint64
		amount *big.Int
		now    uint64
		want   uint64
	}{
		{"first deposit", big.NewInt(0), 0, big.NewInt(10), 500, 500},
		{"equal halves", big.NewInt(10), 100, big.NewInt(10), 200, 150},
		{"floors", big.NewInt(2), 100, big.NewInt(1), 101, 100},
		{"drained keeps baseline", big.NewInt(0), 100, big.NewInt(10), 900, 100},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := blendTimestamp(tc.locked, tc.ts, tc.amount, tc.now)
			if got != tc.want {
				t.Fatalf("blend = %d, want %d", got, tc.want)
			}
		})
	}
}
