package model

// PoolMode selects how a pool emits reward.
type PoolMode string

const (
	PoolModeContinuous PoolMode = "continuous"
	PoolModeMonthly    PoolMode = "monthly"
)

// PoolConfig is the stored representation of a pool's configuration.
type PoolConfig struct {
	ID             string   `json:"id"`
	Mode           PoolMode `json:"mode"`
	Admin          string   `json:"admin"`
	Address        string   `json:"address"`
	Asset          string   `json:"asset"`
	RewardAsset    string   `json:"reward_asset"`
	BufferDuration uint64   `json:"buffer_duration"`
	Origin         uint64   `json:"origin"`
	Rate           string   `json:"rate,omitempty"`
}
