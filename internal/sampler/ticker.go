package sampler

import (
	"time"

	"github.com/juju/errors"
)

const (
	ClockTimerFD = "timerfd"
	ClockTicker  = "ticker"

	MinInterval = time.Millisecond
	MaxInterval = 10 * time.Second
)

// Ticker is periodic tick source.
// Wait blocks until at least one period elapsed and returns number of
// expirations since previous Wait. Missed expirations are coalesced.
type Ticker interface {
	Wait() (uint64, error)
	Close() error
}

// NewClock returns Ticker by name, "timerfd" or "ticker".
func NewClock(kind string, interval time.Duration) (Ticker, error) {
	if interval < MinInterval || interval > MaxInterval {
		return nil, errors.NotValidf("sampler interval=%s must be %s..%s", interval, MinInterval, MaxInterval)
	}
	switch kind {
	case "", ClockTimerFD:
		return NewTimerFD(interval)
	case ClockTicker:
		return NewTicker(interval), nil
	}
	return nil, errors.NotValidf("sampler clock=%s", kind)
}

type goTicker struct {
	t *time.Ticker
}

// NewTicker is portable Ticker on time.Ticker. Runtime drops ticks
// for slow receiver, so count is always 1.
func NewTicker(interval time.Duration) Ticker {
	return &goTicker{t: time.NewTicker(interval)}
}

func (g *goTicker) Wait() (uint64, error) {
	<-g.t.C
	return 1, nil
}

func (g *goTicker) Close() error {
	g.t.Stop()
	return nil
}
