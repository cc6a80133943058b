// Package countdown computes and broadcasts remaining-time values for
// target timestamps. A target is in exactly one of three states at any
// instant: future (counting down), live (within the grace window after
// the target passes) and past.
package countdown

import "time"

// DefaultGrace is how long a target counts as live after it passes.
const DefaultGrace = time.Hour

// CountdownTime is the remaining-time snapshot delivered to
// subscribers. It is always recomputed from the target and the clock,
// never stored.
type CountdownTime struct {
	Days                  int   `json:"days"`
	Hours                 int   `json:"hours"`
	Minutes               int   `json:"minutes"`
	Seconds               int   `json:"seconds"`
	TotalSecondsRemaining int64 `json:"total_seconds_remaining"`
	IsLive                bool  `json:"is_live"`
	IsPast                bool  `json:"is_past"`
}

// Compute splits target-now into days/hours/minutes/seconds. Once the
// target passes, the remaining fields are zero and the value reports
// live for DefaultGrace, past afterwards.
func Compute(target, now time.Time) CountdownTime {
	return compute(target, now, DefaultGrace)
}

func compute(target, now time.Time, grace time.Duration) CountdownTime {
	remaining := target.Sub(now)
	if remaining <= 0 {
		if now.Before(target.Add(grace)) {
			return CountdownTime{IsLive: true}
		}
		return CountdownTime{IsPast: true}
	}

	total := int64(remaining / time.Second)
	return CountdownTime{
		Days:                  int(total / 86400),
		Hours:                 int(total % 86400 / 3600),
		Minutes:               int(total % 3600 / 60),
		Seconds:               int(total % 60),
		TotalSecondsRemaining: total,
	}
}
