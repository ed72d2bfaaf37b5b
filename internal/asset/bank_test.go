package asset

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"plasmaLedger/internal/model"
	"plasmaLedger/internal/staking"
)

var (
	lpToken     = common.HexToAddress("0x0000000000000000000000000000000000001001")
	plasma      = common.HexToAddress("0x0000000000000000000000000000000000002002")
	custody     = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	admin       = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	staker      = common.HexToAddress("0x000000000000000000000000000000000000a11c")
	beneficiary = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
)

func TestBankTransferFromNeedsAllowance(t *testing.T) {
	bank := NewBank()
	ctx := context.Background()
	require.NoError(t, bank.Mint(lpToken, staker, big.NewInt(100)))

	tok, err := bank.Source(custody).Token(lpToken)
	require.NoError(t, err)

	err = tok.TransferFrom(ctx, staker, custody, big.NewInt(10))
	assert.ErrorIs(t, err, ErrInsufficientAllowance)

	require.NoError(t, bank.Approve(lpToken, staker, custody, big.NewInt(60)))
	require.NoError(t, tok.TransferFrom(ctx, staker, custody, big.NewInt(40)))

	assert.Equal(t, "60", bank.BalanceOf(lpToken, staker).String())
	assert.Equal(t, "40", bank.BalanceOf(lpToken, custody).String())
	assert.Equal(t, "20", bank.Allowance(lpToken, staker, custody).String())

	err = tok.TransferFrom(ctx, staker, custody, big.NewInt(21))
	assert.ErrorIs(t, err, ErrInsufficientAllowance)
}

func TestBankTransferNeedsBalance(t *testing.T) {
	bank := NewBank()
	ctx := context.Background()
	require.NoError(t, bank.Mint(lpToken, custody, big.NewInt(5)))

	tok, err := bank.Source(custody).Token(lpToken)
	require.NoError(t, err)

	err = tok.Transfer(ctx, beneficiary, big.NewInt(6))
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	require.NoError(t, tok.Transfer(ctx, beneficiary, big.NewInt(5)))
	assert.Equal(t, "5", bank.BalanceOf(lpToken, beneficiary).String())
	assert.Zero(t, bank.BalanceOf(lpToken, custody).Sign())

	err = tok.Transfer(ctx, beneficiary, big.NewInt(0))
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestBankMinterCreatesSupply(t *testing.T) {
	bank := NewBank()
	ctx := context.Background()
	bank.AddMinter(plasma, custody)
	assert.True(t, bank.IsMinter(plasma, custody))
	assert.False(t, bank.IsMinter(lpToken, custody))

	tok, err := bank.Source(custody).Token(plasma)
	require.NoError(t, err)
	require.NoError(t, tok.Transfer(ctx, beneficiary, big.NewInt(1_000)))

	assert.Equal(t, "1000", bank.BalanceOf(plasma, beneficiary).String())
	assert.Zero(t, bank.BalanceOf(plasma, custody).Sign())
}

func TestBankBacksPool(t *testing.T) {
	bank := NewBank()
	ctx := context.Background()
	bank.AddMinter(plasma, custody)

	amount, _ := new(big.Int).SetString("100000000000000000000", 10)
	budget, _ := new(big.Int).SetString("10000000000000000000000", 10)
	require.NoError(t, bank.Mint(lpToken, staker, amount))
	require.NoError(t, bank.Approve(lpToken, staker, custody, amount))

	pool, err := staking.NewPool(staking.Config{
		ID:          "lp-7d",
		Mode:        staking.ModeMonthly,
		Admin:       admin,
		Address:     custody,
		Asset:       lpToken,
		RewardAsset: plasma,
		Origin:      1_000,
	}, staking.Options{Tokens: bank.Source(custody), Logger: zap.NewNop()})
	require.NoError(t, err)

	require.NoError(t, pool.UpdateBudget(ctx, 1_000, admin, 0, budget))
	require.NoError(t, pool.Deposit(ctx, 1_000, staker, amount))
	assert.Equal(t, amount.String(), bank.BalanceOf(lpToken, custody).String())

	err = pool.Deposit(ctx, 1_000, staker, big.NewInt(1))
	assert.ErrorIs(t, err, staking.ErrTransferFailed)

	paid, err := pool.Claim(ctx, 1_000+86_400, staker, beneficiary)
	require.NoError(t, err)
	assert.Equal(t, "333333333333333333333", paid.String())
	assert.Equal(t, paid.String(), bank.BalanceOf(plasma, beneficiary).String())

	id, err := pool.PlaceRequest(ctx, 1_000+86_400, staker, amount)
	require.NoError(t, err)
	require.NoError(t, pool.Release(ctx, 1_000+86_400, staker, id, staker))
	assert.Equal(t, amount.String(), bank.BalanceOf(lpToken, staker).String())
	assert.Zero(t, bank.BalanceOf(lpToken, custody).Sign())
}

func TestBankSnapshotRestore(t *testing.T) {
	bank := NewBank()
	bank.AddMinter(plasma, custody)
	require.NoError(t, bank.Mint(lpToken, staker, big.NewInt(70)))
	require.NoError(t, bank.Approve(lpToken, staker, custody, big.NewInt(30)))
	require.NoError(t, bank.Mint(plasma, beneficiary, big.NewInt(9)))

	snap := bank.Snapshot()
	require.Len(t, snap, 2)

	restored, err := RestoreBank(snap)
	require.NoError(t, err)
	assert.Equal(t, "70", restored.BalanceOf(lpToken, staker).String())
	assert.Equal(t, "30", restored.Allowance(lpToken, staker, custody).String())
	assert.Equal(t, "9", restored.BalanceOf(plasma, beneficiary).String())
	assert.True(t, restored.IsMinter(plasma, custody))
	assert.Equal(t, snap, restored.Snapshot())

	_, err = RestoreBank([]model.AssetBalances{{Asset: "nope"}})
	assert.Error(t, err)
}
