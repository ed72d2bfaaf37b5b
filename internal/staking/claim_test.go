package staking

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plasmaLedger/internal/model"
)

func TestClaimIsIdempotent(t *testing.T) {
	f := newMonthlyFixture(t, 0, e18(10_000))
	ctx := context.Background()

	require.NoError(t, f.pool.Deposit(ctx, origin, alice, e18(100)))

	first, err := f.pool.Claim(ctx, origin+day, alice, bob)
	require.NoError(t, err)
	assert.Equal(t, oneDayReward, first.String())
	assert.Equal(t, oneDayReward, f.balance(rewardAsset, bob).String())

	second, err := f.pool.Claim(ctx, origin+day, alice, bob)
	require.NoError(t, err)
	assert.Zero(t, second.Sign())
	assert.Equal(t, oneDayReward, f.balance(rewardAsset, bob).String())

	assert.Equal(t, origin+day, f.pool.Position(alice).WeightedTimestamp)
}

func TestClaimThenAccrueAgain(t *testing.T) {
	f := newMonthlyFixture(t, 0, e18(10_000))
	ctx := context.Background()

	require.NoError(t, f.pool.Deposit(ctx, origin, alice, e18(100)))
	_, err := f.pool.WithdrawReward(ctx, origin+day, alice)
	require.NoError(t, err)
	assert.Equal(t, oneDayReward, f.balance(rewardAsset, alice).String())

	assert.Equal(t, oneDayReward, f.pool.RewardAmount(alice, origin+2*day).String())
}

func TestClaimInterleavedWithDeposit(t *testing.T) {
	f := newMonthlyFixture(t, 0, e18(10_000))
	ctx := context.Background()

	require.NoError(t, f.pool.Deposit(ctx, origin, alice, e18(100)))
	_, err := f.pool.Claim(ctx, origin+day, alice, alice)
	require.NoError(t, err)
	require.NoError(t, f.pool.Deposit(ctx, origin+day, alice, e18(100)))

	assert.Equal(t, origin+day, f.pool.Position(alice).WeightedTimestamp)
	assert.Equal(t, oneDayReward, f.pool.RewardAmount(alice, origin+2*day).String())
}

func TestClaimEmitsEventEvenForZero(t *testing.T) {
	f := newMonthlyFixture(t, 0, e18(10_000))
	ctx := context.Background()

	require.NoError(t, f.pool.Deposit(ctx, origin, alice, e18(100)))
	amount, err := f.pool.Claim(ctx, origin, alice, alice)
	require.NoError(t, err)
	assert.Zero(t, amount.Sign())

	last := f.sink.events[len(f.sink.events)-1]
	assert.Equal(t, model.EventClaimed, last.Name)
	assert.Equal(t, "0", last.Amount)
	require.NotNil(t, last.Month)
	assert.Equal(t, uint64(0), *last.Month)
}

func TestClaimWithoutPosition(t *testing.T) {
	f := newMonthlyFixture(t, 0, e18(10_000))
	ctx := context.Background()

	amount, err := f.pool.Claim(ctx, origin+day, carol, carol)
	require.NoError(t, err)
	assert.Zero(t, amount.Sign())
	assert.Equal(t, 0, f.pool.Totals().Stakers)
	assert.Equal(t, origin+day, f.pool.LastTime())
}

func TestClaimTransferFailureKeepsBaseline(t *testing.T) {
	f := newMonthlyFixture(t, 0, e18(10_000))
	ctx := context.Background()

	require.NoError(t, f.pool.Deposit(ctx, origin, alice, e18(100)))
	f.tokens[rewardAsset].fail = errors.New("paused")

	_, err := f.pool.Claim(ctx, origin+day, alice, alice)
	require.ErrorIs(t, err, ErrTransferFailed)
	assert.Equal(t, origin, f.pool.Position(alice).WeightedTimestamp)
	assert.Equal(t, origin, f.pool.LastTime())

	f.tokens[rewardAsset].fail = nil
	amount, err := f.pool.Claim(ctx, origin+day, alice, alice)
	require.NoError(t, err)
	assert.Equal(t, oneDayReward, amount.String())
}

func TestClaimRequiresRewardAsset(t *testing.T) {
	f := newMonthlyFixture(t, 0, e18(10_000))
	ctx := context.Background()
	f.pool.cfg.RewardAsset = common.Address{}

	require.NoError(t, f.pool.Deposit(ctx, origin, alice, e18(100)))
	_, err := f.pool.Claim(ctx, origin+day, alice, alice)
	assert.ErrorIs(t, err, ErrRewardAssetNotSet)

	require.NoError(t, f.pool.SetRewardAsset(ctx, origin+day, adminAddr, rewardAsset))
	amount, err := f.pool.Claim(ctx, origin+day, alice, alice)
	require.NoError(t, err)
	assert.Equal(t, oneDayReward, amount.String())
}

func TestClaimRejectsZeroRecipient(t *testing.T) {
	f := newMonthlyFixture(t, 0, e18(10_000))
	ctx := context.Background()

	require.NoError(t, f.pool.Deposit(ctx, origin, alice, e18(100)))
	_, err := f.pool.Claim(ctx, origin+day, alice, common.Address{})
	assert.ErrorIs(t, err, ErrInvalidRecipient)
	assert.Equal(t, origin, f.pool.Position(alice).WeightedTimestamp)
}

func TestSinkFailureDoesNotRejectOperation(t *testing.T) {
	f := newMonthlyFixture(t, 0, e18(10_000))
	ctx := context.Background()
	f.sink.err = errors.New("disk full")

	require.NoError(t, f.pool.Deposit(ctx, origin, alice, e18(100)))
	assertAmount(t, e18(100), f.pool.Position(alice).LockedAmount)
}
