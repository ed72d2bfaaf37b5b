package journal

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"plasmaLedger/internal/model"
	"plasmaLedger/internal/plasma"
	"plasmaLedger/internal/staking"
)

// ErrNoBank is returned for asset bank actions when replaying against chain tokens.
var ErrNoBank = errors.New("asset bank actions need the in-memory bank")

// Bank is the asset surface the FUND and APPROVE actions drive. Its
// snapshot is stored with each checkpoint.
type Bank interface {
	Mint(asset, holder common.Address, amount *big.Int) error
	Approve(asset, owner, spender common.Address, amount *big.Int) error
	Snapshot() []model.AssetBalances
}

// Result describes an applied op.
type Result struct {
	Action    ActionKind
	Pool      string
	RequestID uint64
	Amount    *big.Int
}

// Dispatcher applies ops to a pool registry.
type Dispatcher struct {
	registry *plasma.Registry
	bank     Bank
	logger   *zap.Logger
}

// NewDispatcher builds a dispatcher. bank may be nil.
func NewDispatcher(registry *plasma.Registry, bank Bank, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{registry: registry, bank: bank, logger: logger}
}

// Apply executes one op.
func (d *Dispatcher) Apply(ctx context.Context, op *Op) (Result, error) {
	res := Result{Action: op.Action, Pool: op.Pool}
	caller, err := ParseAddress(op.Caller)
	if err != nil {
		return res, err
	}

	switch op.Action {
	case ActionFund:
		return res, d.fund(op)
	case ActionClaimAll:
		var p ClaimPayload
		if err := DecodePayload(op, &p); err != nil {
			return res, err
		}
		recipient, err := recipientOr(p.Recipient, caller)
		if err != nil {
			return res, err
		}
		res.Amount, _, err = d.registry.ClaimAll(ctx, op.Time, caller, recipient)
		return res, err
	}

	pool, err := d.registry.Pool(op.Pool)
	if err != nil {
		return res, err
	}

	switch op.Action {
	case ActionDeposit:
		var p AmountPayload
		amount, err := decodeAmount(op, &p, &p.Amount)
		if err != nil {
			return res, err
		}
		return res, pool.Deposit(ctx, op.Time, caller, amount)

	case ActionDepositFor:
		var p DepositForPayload
		amount, err := decodeAmount(op, &p, &p.Amount)
		if err != nil {
			return res, err
		}
		staker, err := ParseAddress(p.Staker)
		if err != nil {
			return res, err
		}
		return res, pool.DepositFor(ctx, op.Time, caller, staker, amount)

	case ActionPlaceRequest:
		var p AmountPayload
		amount, err := decodeAmount(op, &p, &p.Amount)
		if err != nil {
			return res, err
		}
		res.RequestID, err = pool.PlaceRequest(ctx, op.Time, caller, amount)
		return res, err

	case ActionRelease:
		var p ReleasePayload
		if err := DecodePayload(op, &p); err != nil {
			return res, err
		}
		recipient, err := recipientOr(p.Recipient, caller)
		if err != nil {
			return res, err
		}
		res.RequestID = p.RequestID
		return res, pool.Release(ctx, op.Time, caller, p.RequestID, recipient)

	case ActionUpdateBudget:
		var p BudgetPayload
		amount, err := decodeAmount(op, &p, &p.Amount)
		if err != nil {
			return res, err
		}
		return res, pool.UpdateBudget(ctx, op.Time, caller, p.Month, amount)

	case ActionSetRewardRate:
		var p RatePayload
		rate, err := decodeAmount(op, &p, &p.Rate)
		if err != nil {
			return res, err
		}
		return res, pool.SetRewardRate(ctx, op.Time, caller, rate)

	case ActionSetRewardAsset:
		var p AssetPayload
		if err := DecodePayload(op, &p); err != nil {
			return res, err
		}
		asset, err := ParseAddress(p.Asset)
		if err != nil {
			return res, err
		}
		return res, pool.SetRewardAsset(ctx, op.Time, caller, asset)

	case ActionSetBufferDuration:
		var p BufferPayload
		if err := DecodePayload(op, &p); err != nil {
			return res, err
		}
		return res, pool.SetBufferDuration(ctx, op.Time, caller, p.Seconds)

	case ActionClaim:
		var p ClaimPayload
		if err := DecodePayload(op, &p); err != nil {
			return res, err
		}
		recipient, err := recipientOr(p.Recipient, caller)
		if err != nil {
			return res, err
		}
		res.Amount, err = pool.Claim(ctx, op.Time, caller, recipient)
		return res, err

	case ActionApprove:
		return res, d.approve(op, caller, pool)
	}

	return res, fmt.Errorf("%w: unknown action %q", ErrInvalidOp, op.Action)
}

func (d *Dispatcher) fund(op *Op) error {
	if d.bank == nil {
		return ErrNoBank
	}
	var p FundPayload
	amount, err := decodeAmount(op, &p, &p.Amount)
	if err != nil {
		return err
	}
	asset, err := ParseAddress(p.Asset)
	if err != nil {
		return err
	}
	holder, err := ParseAddress(p.Holder)
	if err != nil {
		return err
	}
	return d.bank.Mint(asset, holder, amount)
}

func (d *Dispatcher) approve(op *Op, owner common.Address, pool *staking.Pool) error {
	if d.bank == nil {
		return ErrNoBank
	}
	var p ApprovePayload
	amount, err := decodeAmount(op, &p, &p.Amount)
	if err != nil {
		return err
	}
	cfg := pool.Config()
	asset := cfg.Asset
	if p.Asset != "" {
		if asset, err = ParseAddress(p.Asset); err != nil {
			return err
		}
	}
	spender := cfg.Address
	if p.Spender != "" {
		if spender, err = ParseAddress(p.Spender); err != nil {
			return err
		}
	}
	return d.bank.Approve(asset, owner, spender, amount)
}

func decodeAmount(op *Op, dst interface{}, field *string) (*big.Int, error) {
	if err := DecodePayload(op, dst); err != nil {
		return nil, err
	}
	return ParseAmount(*field)
}

func recipientOr(value string, fallback common.Address) (common.Address, error) {
	if value == "" {
		return fallback, nil
	}
	return ParseAddress(value)
}
