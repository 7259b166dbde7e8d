package kafka

import (
	"sync"
	"time"
)

// commitPolicy decides *when* acknowledged offsets are flushed to the broker.
// Marks are cheap and happen on every ack; commits happen every N marks, once
// the interval has elapsed, and on session cleanup.
type commitPolicy struct {
	every    int
	interval time.Duration
	now      func() time.Time

	mu      sync.Mutex
	pending int
	last    time.Time
}

func newCommitPolicy(every int, interval time.Duration) *commitPolicy {
	p := &commitPolicy{every: every, interval: interval, now: time.Now}
	p.last = p.now()
	return p
}

// mark records one acknowledged record and reports whether a commit is due.
func (p *commitPolicy) mark() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending++
	if p.every > 0 && p.pending >= p.every {
		return true
	}
	return p.interval > 0 && p.now().Sub(p.last) >= p.interval
}

func (p *commitPolicy) committed() {
	p.mu.Lock()
	p.pending = 0
	p.last = p.now()
	p.mu.Unlock()
}

func (p *commitPolicy) outstanding() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pending
}
