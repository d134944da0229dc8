package ledger

import (
	"sync"
	"time"
)

// Clock gives the ledger time, in unix seconds, of the next round.
type Clock interface {
	Now() uint64
}

// SystemClock follows the wall clock of the machine.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() uint64 {
	return uint64(time.Now().Unix())
}

// ManualClock only moves when told to. Tests use it to step over auction
// windows.
type ManualClock struct {
	sync.Mutex
	now uint64
}

// NewManualClock returns a clock stopped at now.
func NewManualClock(now uint64) *ManualClock {
	return &ManualClock{now: now}
}

// Now implements Clock.
func (c *ManualClock) Now() uint64 {
	c.Lock()
	defer c.Unlock()
	return c.now
}

// Set moves the clock to now.
func (c *ManualClock) Set(now uint64) {
	c.Lock()
	c.now = now
	c.Unlock()
}

// Advance moves the clock forward by d, rounded down to the second.
func (c *ManualClock) Advance(d time.Duration) {
	c.Lock()
	c.now += uint64(d / time.Second)
	c.Unlock()
}
