package tele

import (
	"sync/atomic"
	"time"
)

// Stamper issues microsecond Unix timestamps that never decrease,
// even if wall clock is stepped back.
type Stamper struct {
	last uint64
	Now  func() time.Time // nil means time.Now
}

func (s *Stamper) Stamp() uint64 {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	t := uint64(now().UnixMicro())
	for {
		last := atomic.LoadUint64(&s.last)
		if t < last {
			return last
		}
		if atomic.CompareAndSwapUint64(&s.last, last, t) {
			return t
		}
	}
}
