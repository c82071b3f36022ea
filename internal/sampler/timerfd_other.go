//go:build !linux

package sampler

import (
	"time"

	"github.com/graspkit/touchfwd/internal/fault"
	"github.com/juju/errors"
)

func NewTimerFD(interval time.Duration) (Ticker, error) {
	return nil, fault.New(fault.TimerFailure, errors.NotSupportedf("timerfd on this OS, use clock=ticker"))
}
