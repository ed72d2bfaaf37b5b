package model

// EventName identifies a ledger event.
type EventName string

const (
	EventDeposited             EventName = "Deposited"
	EventRequestCreated        EventName = "WithdrawRequestCreated"
	EventReleased              EventName = "Released"
	EventBudgetUpdated         EventName = "BudgetUpdated"
	EventRewardRateUpdated     EventName = "RewardRateUpdated"
	EventRewardAssetUpdated    EventName = "RewardAssetUpdated"
	EventBufferDurationUpdated EventName = "BufferDurationUpdated"
	EventClaimed               EventName = "Claimed"
)

// Event is an observable ledger event. Amounts are base-10 strings.
type Event struct {
	Pool              string    `json:"pool"`
	Seq               uint64    `json:"seq"`
	Name              EventName `json:"event_name"`
	Timestamp         uint64    `json:"timestamp"`
	Staker            string    `json:"staker,omitempty"`
	Payer             string    `json:"payer,omitempty"`
	Recipient         string    `json:"recipient,omitempty"`
	RequestID         uint64    `json:"request_id,omitempty"`
	Month             *uint64   `json:"month,omitempty"`
	Amount            string    `json:"amount,omitempty"`
	WeightedTimestamp uint64    `json:"weighted_timestamp,omitempty"`
	UnlockAt          uint64    `json:"unlock_at,omitempty"`
	Asset             string    `json:"asset,omitempty"`
	BufferDuration    *uint64   `json:"buffer_duration,omitempty"`
}
