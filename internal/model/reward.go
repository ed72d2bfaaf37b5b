package model

import "time"

// MonthlyReward stores aggregated claim totals for a pool month. Amounts are
// decimal strings scaled by the reward asset's decimals.
type MonthlyReward struct {
	PoolID      string    `json:"pool_id"`
	Month       uint64    `json:"month"`
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`
	ClaimCount  uint64    `json:"claim_count"`
	Recipients  uint64    `json:"recipients"`
	Claimed     string    `json:"claimed"`
	Budget      *string   `json:"budget,omitempty"`
	Utilization *string   `json:"utilization,omitempty"`
}

// RewardSnapshot is a point-in-time reading of a staker's owed reward.
type RewardSnapshot struct {
	Pool          string `json:"pool"`
	Staker        string `json:"staker"`
	At            uint64 `json:"at"`
	Month         uint64 `json:"month"`
	LockedAmount  string `json:"locked_amount"`
	PendingAmount string `json:"pending_amount"`
	Reward        string `json:"reward"`
	TakenAt       string `json:"taken_at"`
}
