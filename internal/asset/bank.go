package asset

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"plasmaLedger/internal/staking"
)

var (
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrInvalidAmount         = errors.New("invalid amount")
)

type ledger struct {
	balances   map[common.Address]*big.Int
	allowances map[common.Address]map[common.Address]*big.Int
	minters    map[common.Address]struct{}
}

// Bank is an in-memory set of fungible asset ledgers with ERC-20 style
// balances and allowances. Registered minters create supply on transfer.
type Bank struct {
	mu     sync.Mutex
	assets map[common.Address]*ledger
}

func NewBank() *Bank {
	return &Bank{assets: make(map[common.Address]*ledger)}
}

func (b *Bank) ledger(asset common.Address) *ledger {
	l, ok := b.assets[asset]
	if !ok {
		l = &ledger{
			balances:   make(map[common.Address]*big.Int),
			allowances: make(map[common.Address]map[common.Address]*big.Int),
			minters:    make(map[common.Address]struct{}),
		}
		b.assets[asset] = l
	}
	return l
}

func (l *ledger) balance(holder common.Address) *big.Int {
	bal, ok := l.balances[holder]
	if !ok {
		bal = new(big.Int)
		l.balances[holder] = bal
	}
	return bal
}

func (l *ledger) allowance(owner, spender common.Address) *big.Int {
	byOwner, ok := l.allowances[owner]
	if !ok {
		byOwner = make(map[common.Address]*big.Int)
		l.allowances[owner] = byOwner
	}
	allowance, ok := byOwner[spender]
	if !ok {
		allowance = new(big.Int)
		byOwner[spender] = allowance
	}
	return allowance
}

// Mint credits amount of asset to holder.
func (b *Bank) Mint(asset, holder common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("%w: mint %v", ErrInvalidAmount, amount)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	bal := b.ledger(asset).balance(holder)
	bal.Add(bal, amount)
	return nil
}

// Approve sets the amount spender may pull from owner.
func (b *Bank) Approve(asset, owner, spender common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("%w: approve %v", ErrInvalidAmount, amount)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ledger(asset).allowance(owner, spender).Set(amount)
	return nil
}

// AddMinter lets minter create supply of asset when it transfers.
func (b *Bank) AddMinter(asset, minter common.Address) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ledger(asset).minters[minter] = struct{}{}
}

// IsMinter reports whether minter may create supply of asset.
func (b *Bank) IsMinter(asset, minter common.Address) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.ledger(asset).minters[minter]
	return ok
}

func (b *Bank) BalanceOf(asset, holder common.Address) *big.Int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return new(big.Int).Set(b.ledger(asset).balance(holder))
}

func (b *Bank) Allowance(asset, owner, spender common.Address) *big.Int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return new(big.Int).Set(b.ledger(asset).allowance(owner, spender))
}

func (b *Bank) transfer(asset, from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("%w: transfer %v", ErrInvalidAmount, amount)
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	l := b.ledger(asset)
	if _, ok := l.minters[from]; ok {
		bal := l.balance(to)
		bal.Add(bal, amount)
		return nil
	}
	src := l.balance(from)
	if src.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s holds %s of %s, needs %s", ErrInsufficientBalance, from.Hex(), src, asset.Hex(), amount)
	}
	src.Sub(src, amount)
	dst := l.balance(to)
	dst.Add(dst, amount)
	return nil
}

func (b *Bank) transferFrom(asset, spender, from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("%w: transfer %v", ErrInvalidAmount, amount)
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	l := b.ledger(asset)
	allowance := l.allowance(from, spender)
	if allowance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s allows %s to pull %s, needs %s", ErrInsufficientAllowance, from.Hex(), spender.Hex(), allowance, amount)
	}
	src := l.balance(from)
	if src.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s holds %s of %s, needs %s", ErrInsufficientBalance, from.Hex(), src, asset.Hex(), amount)
	}
	allowance.Sub(allowance, amount)
	src.Sub(src, amount)
	dst := l.balance(to)
	dst.Add(dst, amount)
	return nil
}

// Source returns the token view of holder, typically a pool's custody account.
func (b *Bank) Source(holder common.Address) staking.TokenSource {
	return &bankSource{bank: b, holder: holder}
}

type bankSource struct {
	bank   *Bank
	holder common.Address
}

func (s *bankSource) Token(asset common.Address) (staking.Token, error) {
	return &bankToken{bank: s.bank, holder: s.holder, asset: asset}, nil
}

type bankToken struct {
	bank   *Bank
	holder common.Address
	asset  common.Address
}

// TransferFrom pulls from an owner that approved the holder.
func (t *bankToken) TransferFrom(_ context.Context, from, to common.Address, amount *big.Int) error {
	return t.bank.transferFrom(t.asset, t.holder, from, to, amount)
}

func (t *bankToken) Transfer(_ context.Context, to common.Address, amount *big.Int) error {
	return t.bank.transfer(t.asset, t.holder, to, amount)
}
