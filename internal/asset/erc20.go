package asset

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"plasmaLedger/internal/chain"
	"plasmaLedger/internal/model"
	"plasmaLedger/internal/staking"
)

// ERC20Source moves on-chain ERC-20 tokens from the custody account whose
// key it holds.
type ERC20Source struct {
	chain  *chain.Client
	key    *ecdsa.PrivateKey
	holder common.Address
	logger *zap.Logger

	mu     sync.Mutex
	tokens map[common.Address]*erc20Token
}

// NewERC20Source builds a source that signs with the hex-encoded key.
func NewERC20Source(chainClient *chain.Client, hexKey string, logger *zap.Logger) (*ERC20Source, error) {
	if chainClient == nil {
		return nil, fmt.Errorf("chain client is nil")
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse custody key: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ERC20Source{
		chain:  chainClient,
		key:    key,
		holder: crypto.PubkeyToAddress(key.PublicKey),
		logger: logger,
		tokens: make(map[common.Address]*erc20Token),
	}, nil
}

// Holder returns the custody address derived from the signing key.
func (s *ERC20Source) Holder() common.Address {
	return s.holder
}

func (s *ERC20Source) Token(asset common.Address) (staking.Token, error) {
	return s.token(asset)
}

func (s *ERC20Source) token(asset common.Address) (*erc20Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tok, ok := s.tokens[asset]; ok {
		return tok, nil
	}
	parsed, err := ERC20ABI()
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	backend := s.chain.Backend()
	tok := &erc20Token{
		source:   s,
		address:  asset,
		contract: bind.NewBoundContract(asset, parsed, backend, backend, backend),
	}
	s.tokens[asset] = tok
	return tok, nil
}

// BalanceOf reads the holder balance of asset.
func (s *ERC20Source) BalanceOf(ctx context.Context, asset, holder common.Address) (*big.Int, error) {
	parsed, err := ERC20ABI()
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	values, err := callMethod(ctx, s.chain, asset, parsed, "balanceOf", holder)
	if err != nil {
		return nil, err
	}
	return asBigInt(values[0])
}

type erc20Token struct {
	source   *ERC20Source
	address  common.Address
	contract *bind.BoundContract
}

func (t *erc20Token) TransferFrom(ctx context.Context, from, to common.Address, amount *big.Int) error {
	return t.transact(ctx, "transferFrom", from, to, amount)
}

func (t *erc20Token) Transfer(ctx context.Context, to common.Address, amount *big.Int) error {
	return t.transact(ctx, "transfer", to, amount)
}

// transact sends the call and waits for a successful receipt.
func (t *erc20Token) transact(ctx context.Context, method string, args ...interface{}) error {
	chainID, err := t.source.chain.GetChainID(ctx)
	if err != nil {
		return fmt.Errorf("get chain id: %w", err)
	}
	opts, err := bind.NewKeyedTransactorWithChainID(t.source.key, chainID)
	if err != nil {
		return fmt.Errorf("build transactor: %w", err)
	}
	opts.Context = ctx

	tx, err := t.contract.Transact(opts, method, args...)
	if err != nil {
		return fmt.Errorf("send %s: %w", method, err)
	}
	t.source.logger.Debug("token tx sent", zap.String("token", t.address.Hex()), zap.String("method", method), zap.String("tx", tx.Hash().Hex()))

	receipt, err := bind.WaitMined(ctx, t.source.chain.Backend(), tx)
	if err != nil {
		return fmt.Errorf("%w: %s in tx %s: %v", staking.ErrTransferUnconfirmed, method, tx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return fmt.Errorf("%s reverted in tx %s", method, tx.Hash().Hex())
	}
	return nil
}

// TokenMetaCache caches token metadata by address.
type TokenMetaCache struct {
	mu   sync.RWMutex
	data map[common.Address]model.TokenMeta
}

func NewTokenMetaCache() *TokenMetaCache {
	return &TokenMetaCache{data: make(map[common.Address]model.TokenMeta)}
}

func (c *TokenMetaCache) Get(address common.Address) (model.TokenMeta, bool) {
	c.mu.RLock()
	meta, ok := c.data[address]
	c.mu.RUnlock()
	return meta, ok
}

func (c *TokenMetaCache) Set(address common.Address, meta model.TokenMeta) {
	c.mu.Lock()
	c.data[address] = meta
	c.mu.Unlock()
}

// FetchTokenMeta loads token metadata via ERC20 calls. Symbol and name fall
// back to the bytes32 encoding used by older tokens.
func FetchTokenMeta(ctx context.Context, chainClient *chain.Client, token common.Address, logger *zap.Logger) (model.TokenMeta, error) {
	meta := model.TokenMeta{Address: token.Hex()}
	if chainClient == nil {
		return meta, fmt.Errorf("chain client is nil")
	}

	stringABI, err := ERC20ABI()
	if err != nil {
		return meta, fmt.Errorf("parse erc20 abi: %w", err)
	}
	bytes32ABI, err := erc20ABIBytes32Instance()
	if err != nil {
		return meta, fmt.Errorf("parse erc20 bytes32 abi: %w", err)
	}

	values, err := callMethod(ctx, chainClient, token, stringABI, "decimals")
	if err != nil {
		return meta, err
	}
	decimals, err := asUint8(values[0])
	if err != nil {
		return meta, err
	}
	meta.Decimals = decimals

	for _, field := range []struct {
		method string
		target *string
	}{
		{"symbol", &meta.Symbol},
		{"name", &meta.Name},
	} {
		if values, err := callMethod(ctx, chainClient, token, stringABI, field.method); err == nil {
			if s, ok := values[0].(string); ok {
				*field.target = s
			}
		} else if values, err := callMethod(ctx, chainClient, token, bytes32ABI, field.method); err == nil {
			if s, ok := bytes32ToString(values[0]); ok {
				*field.target = s
			}
		} else if logger != nil {
			logger.Debug(field.method+" call failed", zap.String("token", token.Hex()), zap.Error(err))
		}
	}

	return meta, nil
}

func callMethod(ctx context.Context, chainClient *chain.Client, to common.Address, parsed abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	msg := ethereum.CallMsg{To: &to, Data: data}
	resp, err := chainClient.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("unpack %s: empty result", method)
	}
	return values, nil
}

func bytes32ToString(value interface{}) (string, bool) {
	switch v := value.(type) {
	case [32]byte:
		return string(bytes.TrimRight(v[:], "\x00")), true
	case []byte:
		return string(bytes.TrimRight(v, "\x00")), true
	default:
		return "", false
	}
}

func asBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case big.Int:
		return new(big.Int).Set(&v), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	default:
		return nil, fmt.Errorf("unsupported int type %T", value)
	}
}

func asUint8(value interface{}) (uint8, error) {
	switch v := value.(type) {
	case uint8:
		return v, nil
	case *big.Int:
		if !v.IsUint64() || v.Uint64() > 255 {
			return 0, fmt.Errorf("decimals out of range: %s", v)
		}
		return uint8(v.Uint64()), nil
	default:
		return 0, fmt.Errorf("unsupported uint8 type %T", value)
	}
}
