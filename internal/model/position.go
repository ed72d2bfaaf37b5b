package model

// WithdrawRequest is a buffered unlock request as stored.
type WithdrawRequest struct {
	ID       uint64 `json:"id"`
	Amount   string `json:"amount"`
	UnlockAt uint64 `json:"unlock_at"`
	Consumed bool   `json:"consumed"`
}

// PositionRecord is one staker's position inside a pool.
type PositionRecord struct {
	Staker            string            `json:"staker"`
	LockedAmount      string            `json:"locked_amount"`
	PendingAmount     string            `json:"pending_amount"`
	WeightedTimestamp uint64            `json:"weighted_timestamp"`
	Requests          []WithdrawRequest `json:"requests,omitempty"`
}

// MonthBudget is the reward budget configured for one pool month.
type MonthBudget struct {
	Month  uint64 `json:"month"`
	Amount string `json:"amount"`
}
