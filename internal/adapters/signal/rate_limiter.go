package signal

import (
	"sync"
	"time"

	"github.com/dkeye/Prompter/internal/domain"
)

// window holds the last limit accepted frame times of one connection as a
// ring. next is the slot of the oldest stamp once the ring is full.
type window struct {
	stamps []time.Time
	next   int
}

// RateLimiter is a sliding-window limit on inbound frames per connection:
// at most limit frames are accepted in any interval. Rejected frames do
// not count. A non-positive limit disables it.
type RateLimiter struct {
	mu       sync.Mutex
	windows  map[domain.SessionID]*window
	limit    int
	interval time.Duration
	now      func() time.Time
}

func NewRateLimiter(limit int, interval time.Duration) *RateLimiter {
	return &RateLimiter{
		windows:  make(map[domain.SessionID]*window),
		limit:    limit,
		interval: interval,
		now:      time.Now,
	}
}

func (rl *RateLimiter) Allow(sid domain.SessionID) bool {
	if rl.limit <= 0 || rl.interval <= 0 {
		return true
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	w, ok := rl.windows[sid]
	if !ok {
		w = &window{stamps: make([]time.Time, 0, rl.limit)}
		rl.windows[sid] = w
	}
	if len(w.stamps) < rl.limit {
		w.stamps = append(w.stamps, now)
		return true
	}
	if now.Sub(w.stamps[w.next]) < rl.interval {
		return false
	}
	w.stamps[w.next] = now
	w.next = (w.next + 1) % rl.limit
	return true
}

func (rl *RateLimiter) Forget(sid domain.SessionID) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.windows, sid)
}
