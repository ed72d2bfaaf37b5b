package staking

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"plasmaLedger/internal/model"
)

// Token moves a fungible asset on behalf of the pool's custody account.
type Token interface {
	TransferFrom(ctx context.Context, from, to common.Address, amount *big.Int) error
	Transfer(ctx context.Context, to common.Address, amount *big.Int) error
}

// TokenSource resolves the token contract bound to the pool's custody account.
type TokenSource interface {
	Token(asset common.Address) (Token, error)
}

// EventSink receives events after an operation has committed.
type EventSink interface {
	PublishEvents(ctx context.Context, events []model.Event) error
}
