// Package journal replays externally ordered ledger operations.
//
// A journal is a JSONL file. Each line is an Op envelope carrying the action
// kind, the target pool, the operation time and caller, and an action
// specific JSON payload. Times must be non-decreasing per pool; the
// dispatcher applies each op to the pool registry and the asset bank.
package journal

import "encoding/json"

// ActionKind identifies the type of ledger operation.
type ActionKind string

const (
	// Position ledger
	ActionDeposit    ActionKind = "DEPOSIT"
	ActionDepositFor ActionKind = "DEPOSIT_FOR"

	// Withdrawal queue
	ActionPlaceRequest ActionKind = "PLACE_REQUEST"
	ActionRelease      ActionKind = "RELEASE"

	// Admin configuration
	ActionUpdateBudget      ActionKind = "UPDATE_BUDGET"
	ActionSetRewardRate     ActionKind = "SET_REWARD_RATE"
	ActionSetRewardAsset    ActionKind = "SET_REWARD_ASSET"
	ActionSetBufferDuration ActionKind = "SET_BUFFER_DURATION"

	// Claims
	ActionClaim    ActionKind = "CLAIM"
	ActionClaimAll ActionKind = "CLAIM_ALL"

	// Asset bank
	ActionFund    ActionKind = "FUND"
	ActionApprove ActionKind = "APPROVE"
)

// Op is the envelope stored on each journal line.
type Op struct {
	Action  ActionKind      `json:"action"`
	Pool    string          `json:"pool,omitempty"`
	Time    uint64          `json:"time"`
	Caller  string          `json:"caller,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// AmountPayload is the payload for DEPOSIT and PLACE_REQUEST.
type AmountPayload struct {
	Amount string `json:"amount"`
}

// DepositForPayload is the payload for DEPOSIT_FOR. The caller pays.
type DepositForPayload struct {
	Staker string `json:"staker"`
	Amount string `json:"amount"`
}

// ReleasePayload is the payload for RELEASE.
type ReleasePayload struct {
	RequestID uint64 `json:"request_id"`
	Recipient string `json:"recipient,omitempty"`
}

// BudgetPayload is the payload for UPDATE_BUDGET.
type BudgetPayload struct {
	Month  uint64 `json:"month"`
	Amount string `json:"amount"`
}

// RatePayload is the payload for SET_REWARD_RATE.
type RatePayload struct {
	Rate string `json:"rate"`
}

// AssetPayload is the payload for SET_REWARD_ASSET.
type AssetPayload struct {
	Asset string `json:"asset"`
}

// BufferPayload is the payload for SET_BUFFER_DURATION.
type BufferPayload struct {
	Seconds uint64 `json:"seconds"`
}

// ClaimPayload is the payload for CLAIM and CLAIM_ALL.
type ClaimPayload struct {
	Recipient string `json:"recipient,omitempty"`
}

// FundPayload is the payload for FUND: it mints into the asset bank.
type FundPayload struct {
	Asset  string `json:"asset"`
	Holder string `json:"holder"`
	Amount string `json:"amount"`
}

// ApprovePayload is the payload for APPROVE. When Spender is empty the
// custody account of the op's pool is approved.
type ApprovePayload struct {
	Asset   string `json:"asset,omitempty"`
	Spender string `json:"spender,omitempty"`
	Amount  string `json:"amount"`
}
