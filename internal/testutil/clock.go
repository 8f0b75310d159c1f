package testutil

import (
	"sync/atomic"
	"time"
)

// Epoch is the default Clock time, 2025-01-01 00:00:00 UTC.
var Epoch = time.UnixMilli(1735689600000).UTC()

// Clock is a controllable time source with millisecond resolution, the
// resolution verdicts and device timestamps are stored in. Safe for
// concurrent use.
type Clock struct {
	ms atomic.Int64
}

// NewClock returns a Clock set to now, or to Epoch when now is omitted.
func NewClock(now ...time.Time) *Clock {
	c := &Clock{}
	if len(now) > 0 {
		c.Set(now[0])
	} else {
		c.Set(Epoch)
	}
	return c
}

// Now returns the clock's current time in UTC.
func (c *Clock) Now() time.Time {
	return time.UnixMilli(c.ms.Load()).UTC()
}

// NowMillis returns the clock's current time as epoch milliseconds.
func (c *Clock) NowMillis() int64 {
	return c.ms.Load()
}

// Advance moves the clock by d, truncated to whole milliseconds.
func (c *Clock) Advance(d time.Duration) {
	c.ms.Add(d.Milliseconds())
}

// Set moves the clock to t, truncated to whole milliseconds.
func (c *Clock) Set(t time.Time) {
	c.ms.Store(t.UnixMilli())
}
