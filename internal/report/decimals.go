package report

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"plasmaLedger/internal/asset"
	"plasmaLedger/internal/chain"
	"plasmaLedger/internal/model"
)

// DecimalsResolver looks up token decimals over RPC and caches them. Without
// a chain client every token uses the fallback.
type DecimalsResolver struct {
	chain    *chain.Client
	cache    *asset.TokenMetaCache
	fallback uint8
	logger   *zap.Logger
}

func NewDecimalsResolver(chainClient *chain.Client, fallback uint8, logger *zap.Logger) *DecimalsResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DecimalsResolver{
		chain:    chainClient,
		cache:    asset.NewTokenMetaCache(),
		fallback: fallback,
		logger:   logger,
	}
}

// Seed records known metadata so no RPC call is made for it.
func (r *DecimalsResolver) Seed(meta model.TokenMeta) {
	if common.IsHexAddress(meta.Address) {
		r.cache.Set(common.HexToAddress(meta.Address), meta)
	}
}

func (r *DecimalsResolver) Decimals(ctx context.Context, token string) uint8 {
	if !common.IsHexAddress(token) {
		return r.fallback
	}
	addr := common.HexToAddress(token)
	if meta, ok := r.cache.Get(addr); ok {
		return meta.Decimals
	}
	if r.chain == nil {
		return r.fallback
	}
	meta, err := asset.FetchTokenMeta(ctx, r.chain, addr, r.logger)
	if err != nil {
		r.logger.Warn("token decimals", zap.String("token", token), zap.Error(err))
		return r.fallback
	}
	r.cache.Set(addr, meta)
	return meta.Decimals
}
