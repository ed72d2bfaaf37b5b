package model

// RejectedOp records a journal operation the ledger refused.
type RejectedOp struct {
	Line   uint64 `json:"line"`
	Action string `json:"action"`
	Pool   string `json:"pool,omitempty"`
	Time   uint64 `json:"time"`
	Caller string `json:"caller,omitempty"`
	Error  string `json:"error"`
}
