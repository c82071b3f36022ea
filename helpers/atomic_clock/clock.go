// Package atomic_clock is atomic int64 wall clock in nanoseconds.
// Use for time accounting, zero value means "never".
package atomic_clock

import (
	"sync/atomic"
	"time"
)

type Clock struct{ v int64 }

func source() int64 { return time.Now().UnixNano() }

func (c *Clock) get() int64    { return atomic.LoadInt64(&c.v) }
func (c *Clock) set(new int64) { atomic.StoreInt64(&c.v, new) }

func (c *Clock) IsZero() bool { return c.get() == 0 }

func (c *Clock) Set(new int64)       { c.set(new) }
func (c *Clock) SetNow()             { c.set(source()) }
func (c *Clock) SetTime(t time.Time) { c.set(t.UnixNano()) }

func (c *Clock) Time() time.Time {
	if v := c.get(); v != 0 {
		return time.Unix(0, v)
	}
	return time.Time{}
}

func (c *Clock) Unix() int64      { return c.get() / int64(time.Second) }
func (c *Clock) UnixMicro() int64 { return c.get() / int64(time.Microsecond) }
func (c *Clock) UnixNano() int64  { return c.get() }

func New(v int64) *Clock { return &Clock{v: v} }
func Now() *Clock        { return New(source()) }

// Since returns 0 for zero clock.
func Since(begin *Clock) time.Duration {
	if begin.IsZero() {
		return 0
	}
	return time.Duration(source() - begin.get())
}
