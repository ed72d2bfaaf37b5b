package staking

import "fmt"

// MonthSpan is the half-open interval [From, To) that falls inside one pool month.
type MonthSpan struct {
	Month uint64
	From  uint64
	To    uint64
}

// Len returns the span length in seconds.
func (s MonthSpan) Len() uint64 {
	return s.To - s.From
}

// MonthIndex returns the pool month containing ts. Times before origin
// belong to month 0.
func MonthIndex(origin, ts uint64) uint64 {
	if ts <= origin {
		return 0
	}
	return (ts - origin) / MonthDuration
}

// SplitMonths splits [from, to) at month boundaries measured from origin.
func SplitMonths(origin, from, to uint64) ([]MonthSpan, error) {
	if to < from {
		return nil, fmt.Errorf("interval end must be >= start")
	}

	spans := make([]MonthSpan, 0)
	start := from
	for start < to {
		month := MonthIndex(origin, start)
		boundary := origin + (month+1)*MonthDuration
		end := to
		if boundary < to {
			end = boundary
		}
		spans = append(spans, MonthSpan{Month: month, From: start, To: end})
		start = end
	}

	return spans, nil
}
