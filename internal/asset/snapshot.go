package asset

import (
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"plasmaLedger/internal/model"
)

// Snapshot captures every asset ledger, ordered by asset address.
func (b *Bank) Snapshot() []model.AssetBalances {
	b.mu.Lock()
	defer b.mu.Unlock()

	assets := make([]common.Address, 0, len(b.assets))
	for addr := range b.assets {
		assets = append(assets, addr)
	}
	sort.Slice(assets, func(i, j int) bool { return assets[i].Cmp(assets[j]) < 0 })

	out := make([]model.AssetBalances, 0, len(assets))
	for _, addr := range assets {
		l := b.assets[addr]
		rec := model.AssetBalances{Asset: addr.Hex()}
		for holder, bal := range l.balances {
			if bal.Sign() == 0 {
				continue
			}
			if rec.Balances == nil {
				rec.Balances = make(map[string]string)
			}
			rec.Balances[holder.Hex()] = bal.String()
		}
		for owner, bySpender := range l.allowances {
			for spender, allowance := range bySpender {
				if allowance.Sign() == 0 {
					continue
				}
				if rec.Allowances == nil {
					rec.Allowances = make(map[string]map[string]string)
				}
				if rec.Allowances[owner.Hex()] == nil {
					rec.Allowances[owner.Hex()] = make(map[string]string)
				}
				rec.Allowances[owner.Hex()][spender.Hex()] = allowance.String()
			}
		}
		for minter := range l.minters {
			rec.Minters = append(rec.Minters, minter.Hex())
		}
		sort.Strings(rec.Minters)
		out = append(out, rec)
	}
	return out
}

// RestoreBank rebuilds a bank from a snapshot.
func RestoreBank(records []model.AssetBalances) (*Bank, error) {
	b := NewBank()
	for _, rec := range records {
		asset, err := parseAddress(rec.Asset)
		if err != nil {
			return nil, fmt.Errorf("restore asset: %w", err)
		}
		l := b.ledger(asset)
		for holder, value := range rec.Balances {
			addr, err := parseAddress(holder)
			if err != nil {
				return nil, fmt.Errorf("restore balance: %w", err)
			}
			amount, ok := new(big.Int).SetString(value, 10)
			if !ok || amount.Sign() < 0 {
				return nil, fmt.Errorf("restore balance of %s: invalid amount %q", holder, value)
			}
			l.balance(addr).Set(amount)
		}
		for owner, bySpender := range rec.Allowances {
			ownerAddr, err := parseAddress(owner)
			if err != nil {
				return nil, fmt.Errorf("restore allowance: %w", err)
			}
			for spender, value := range bySpender {
				spenderAddr, err := parseAddress(spender)
				if err != nil {
					return nil, fmt.Errorf("restore allowance: %w", err)
				}
				amount, ok := new(big.Int).SetString(value, 10)
				if !ok || amount.Sign() < 0 {
					return nil, fmt.Errorf("restore allowance %s/%s: invalid amount %q", owner, spender, value)
				}
				l.allowance(ownerAddr, spenderAddr).Set(amount)
			}
		}
		for _, minter := range rec.Minters {
			addr, err := parseAddress(minter)
			if err != nil {
				return nil, fmt.Errorf("restore minter: %w", err)
			}
			l.minters[addr] = struct{}{}
		}
	}
	return b, nil
}

func parseAddress(value string) (common.Address, error) {
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("invalid address %q", value)
	}
	return common.HexToAddress(value), nil
}
