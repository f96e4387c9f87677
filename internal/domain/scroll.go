package domain

import (
	"math"
	"time"
)

type ScrollState string

const (
	ScrollIdle         ScrollState = "idle"
	ScrollCountingDown ScrollState = "countdown"
	ScrollScrolling    ScrollState = "scrolling"
)

// Countdown is a deadline, not a ticking counter. Clients re-derive the
// remaining seconds from EndsAt; Left is that value as of the snapshot.
type Countdown struct {
	Seconds   int       `json:"seconds"`
	StartedAt time.Time `json:"startedAt"`
	EndsAt    time.Time `json:"endsAt"`
	Left      int       `json:"remaining"`
}

func NewCountdown(seconds int, now time.Time) Countdown {
	return Countdown{
		Seconds:   seconds,
		StartedAt: now,
		EndsAt:    now.Add(time.Duration(seconds) * time.Second),
		Left:      seconds,
	}
}

// Remaining returns whole seconds left, rounded up, never negative.
func (c Countdown) Remaining(now time.Time) int {
	left := c.EndsAt.Sub(now)
	if left <= 0 {
		return 0
	}
	return int(math.Ceil(left.Seconds()))
}
