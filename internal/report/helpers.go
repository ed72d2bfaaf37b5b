package report

import (
	"math/big"

	"plasmaLedger/internal/model"
	"plasmaLedger/internal/staking"
)

const ratioScale = 18

func formatTokenAmount(value *big.Int, decimals uint8) string {
	if value == nil {
		return "0"
	}
	if decimals == 0 {
		return value.String()
	}
	sign := value.Sign()
	abs := new(big.Int).Abs(value)
	denom := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	rat := new(big.Rat).SetFrac(abs, denom)
	text := rat.FloatString(int(decimals))
	if sign < 0 {
		return "-" + text
	}
	return text
}

func computeUtilization(claimed, budget *big.Int) *string {
	if claimed == nil || budget == nil || budget.Sign() == 0 {
		return nil
	}
	rat := new(big.Rat).SetFrac(claimed, budget)
	val := rat.FloatString(ratioScale)
	return &val
}

// monthBudget returns the reward available to a pool month: the stored
// budget for monthly pools, rate times month length for continuous ones.
func monthBudget(snap model.PoolSnapshot, month uint64) (*big.Int, error) {
	if snap.Config.Mode == model.PoolModeContinuous {
		if snap.Config.Rate == "" {
			return nil, nil
		}
		rate, err := parseBigInt(snap.Config.Rate)
		if err != nil {
			return nil, err
		}
		return rate.Mul(rate, new(big.Int).SetUint64(staking.MonthDuration)), nil
	}
	for _, b := range snap.Budgets {
		if b.Month == month {
			return parseBigInt(b.Amount)
		}
	}
	return nil, nil
}
