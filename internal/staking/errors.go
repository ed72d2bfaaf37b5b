package staking

import "errors"

var (
	ErrInvalidAmount               = errors.New("invalid amount")
	ErrInvalidRecipient            = errors.New("invalid recipient")
	ErrUnauthorized                = errors.New("unauthorized")
	ErrInsufficientUnlockedBalance = errors.New("insufficient unlocked balance")
	ErrRequestNotFound             = errors.New("withdraw request not found")
	ErrRequestAlreadyConsumed      = errors.New("withdraw request already consumed")
	ErrLockPeriodNotElapsed        = errors.New("lock period not elapsed")

	ErrClockRegression   = errors.New("operation time precedes last operation")
	ErrModeMismatch      = errors.New("operation not supported by pool mode")
	ErrRewardAssetNotSet = errors.New("reward asset not set")
	ErrTransferFailed    = errors.New("asset transfer failed")
	ErrInvalidPoolConfig = errors.New("invalid pool config")

	// ErrTransferUnconfirmed marks a transfer that was sent but whose outcome
	// is unknown. Sending it again may move the funds twice.
	ErrTransferUnconfirmed = errors.New("asset transfer sent but not confirmed")
)
