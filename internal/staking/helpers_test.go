package staking

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"plasmaLedger/internal/model"
)

const day uint64 = 86_400

var (
	adminAddr   = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	custodyAddr = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	lockedAsset = common.HexToAddress("0x0000000000000000000000000000000000001001")
	rewardAsset = common.HexToAddress("0x0000000000000000000000000000000000002002")
	alice       = common.HexToAddress("0x000000000000000000000000000000000000a11c")
	bob         = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
	carol       = common.HexToAddress("0x000000000000000000000000000000000000ca01")
)

const origin uint64 = 1_700_000_000

var errNoFunds = errors.New("insufficient balance")

type fakeToken struct {
	holder   common.Address
	balances map[common.Address]*big.Int
	fail     error
}

func (t *fakeToken) TransferFrom(_ context.Context, from, to common.Address, amount *big.Int) error {
	if t.fail != nil {
		return t.fail
	}
	return t.move(from, to, amount)
}

func (t *fakeToken) Transfer(_ context.Context, to common.Address, amount *big.Int) error {
	if t.fail != nil {
		return t.fail
	}
	return t.move(t.holder, to, amount)
}

func (t *fakeToken) move(from, to common.Address, amount *big.Int) error {
	bal := t.balance(from)
	if bal.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s has %s", errNoFunds, from.Hex(), bal)
	}
	bal.Sub(bal, amount)
	t.balance(to).Add(t.balance(to), amount)
	return nil
}

func (t *fakeToken) balance(addr common.Address) *big.Int {
	bal, ok := t.balances[addr]
	if !ok {
		bal = new(big.Int)
		t.balances[addr] = bal
	}
	return bal
}

type fakeTokens map[common.Address]*fakeToken

func newFakeTokens() fakeTokens {
	tokens := fakeTokens{}
	for _, asset := range []common.Address{lockedAsset, rewardAsset} {
		tokens[asset] = &fakeToken{holder: custodyAddr, balances: map[common.Address]*big.Int{}}
	}
	return tokens
}

func (f fakeTokens) Token(asset common.Address) (Token, error) {
	tok, ok := f[asset]
	if !ok {
		return nil, fmt.Errorf("unknown asset %s", asset.Hex())
	}
	return tok, nil
}

func (f fakeTokens) fund(asset, holder common.Address, amount *big.Int) {
	tok := f[asset]
	tok.balance(holder).Add(tok.balance(holder), amount)
}

type recordingSink struct {
	mu     sync.Mutex
	events []model.Event
	err    error
}

func (s *recordingSink) PublishEvents(_ context.Context, events []model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, events...)
	return s.err
}

func (s *recordingSink) names() []model.EventName {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.EventName, 0, len(s.events))
	for _, ev := range s.events {
		out = append(out, ev.Name)
	}
	return out
}

type fixture struct {
	pool   *Pool
	tokens fakeTokens
	sink   *recordingSink
}

func newFixture(t *testing.T, mode Mode, buffer uint64) *fixture {
	t.Helper()
	tokens := newFakeTokens()
	sink := &recordingSink{}
	cfg := Config{
		ID:             "lp-7d",
		Mode:           mode,
		Admin:          adminAddr,
		Address:        custodyAddr,
		Asset:          lockedAsset,
		RewardAsset:    rewardAsset,
		BufferDuration: buffer,
		Origin:         origin,
	}
	pool, err := NewPool(cfg, Options{Tokens: tokens, Sink: sink, Logger: zap.NewNop()})
	require.NoError(t, err)

	for _, staker := range []common.Address{alice, bob, carol} {
		tokens.fund(lockedAsset, staker, e18(1_000_000))
	}
	tokens.fund(rewardAsset, custodyAddr, e18(1_000_000_000))
	return &fixture{pool: pool, tokens: tokens, sink: sink}
}

func newMonthlyFixture(t *testing.T, buffer uint64, budget *big.Int) *fixture {
	t.Helper()
	f := newFixture(t, ModeMonthly, buffer)
	require.NoError(t, f.pool.UpdateBudget(context.Background(), origin, adminAddr, 0, budget))
	return f
}

func (f *fixture) balance(asset, holder common.Address) *big.Int {
	return new(big.Int).Set(f.tokens[asset].balance(holder))
}

func e18(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

func mustBig(t *testing.T, s string) *big.Int {
	t.Helper()
	v, ok := new(big.Int).SetString(s, 10)
	require.True(t, ok, "parse %q", s)
	return v
}

// requireClose asserts |a-b| * 1e18 / max(a,b) <= 1e14, i.e. within 0.01%.
func requireClose(t *testing.T, a, b *big.Int) {
	t.Helper()
	hi, lo := a, b
	if hi.Cmp(lo) < 0 {
		hi, lo = lo, hi
	}
	require.Positive(t, hi.Sign(), "both values are zero")
	diff := new(big.Int).Sub(hi, lo)
	diff.Mul(diff, new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
	diff.Quo(diff, hi)
	require.LessOrEqual(t, diff.Cmp(big.NewInt(100_000_000_000_000)), 0, "%s and %s differ by more than 0.01%%", a, b)
}

func assertAmount(t *testing.T, want, got *big.Int, msgAndArgs ...interface{}) {
	t.Helper()
	assert.Equal(t, want.String(), got.String(), msgAndArgs...)
}
