package model

// PoolSnapshot captures the complete state of a pool at its last operation.
type PoolSnapshot struct {
	Config       PoolConfig       `json:"config"`
	LastTime     uint64           `json:"last_time"`
	Seq          uint64           `json:"seq"`
	TotalLocked  string           `json:"total_locked"`
	TotalPending string           `json:"total_pending"`
	Budgets      []MonthBudget    `json:"budgets,omitempty"`
	Positions    []PositionRecord `json:"positions,omitempty"`
}

// AssetBalances is the stored state of one in-memory asset ledger.
type AssetBalances struct {
	Asset      string                       `json:"asset"`
	Balances   map[string]string            `json:"balances,omitempty"`
	Allowances map[string]map[string]string `json:"allowances,omitempty"`
	Minters    []string                     `json:"minters,omitempty"`
}
