// Package sampler reads touch controllers on every tick and publishes
// touched bitmap (on change) and filtered values (every tick).
package sampler

import (
	"encoding/binary"
	"expvar"
	"fmt"

	"github.com/graspkit/touchfwd/internal/fault"
	"github.com/graspkit/touchfwd/internal/mpr121"
	"github.com/graspkit/touchfwd/internal/tele"
	"github.com/graspkit/touchfwd/log2"
	"github.com/juju/errors"
	"github.com/temoto/alive/v2"
)

type Sensor interface {
	Touched() (uint16, error)
	Filtered(k int) (uint16, error)
}

var _ Sensor = &mpr121.Device{}

type Publisher interface {
	Probe() bool
	Publish(name string, dtype tele.DataType, payload []byte) error
	ByteOrder() binary.ByteOrder
}

// Channel binds one controller to its pair of record names.
type Channel struct {
	Sensor     Sensor
	Touched    string
	Vals       string
	Electrodes int

	last    uint16
	hasLast bool
}

// NewChannel names records "<prefix>/<name>/touched" and "<prefix>/<name>/vals".
func NewChannel(prefix, name string, s Sensor, electrodes int) *Channel {
	return &Channel{
		Sensor:     s,
		Touched:    prefix + "/" + name + "/touched",
		Vals:       prefix + "/" + name + "/vals",
		Electrodes: electrodes,
	}
}

type Stat struct {
	Cycle     expvar.Int
	Overrun   expvar.Int // expirations coalesced into one cycle
	ReadError expvar.Int
	Published expvar.Int
	Dropped   expvar.Int
}

func (s *Stat) String() string {
	return fmt.Sprintf(`{"cycle":%d,"overrun":%d,"read_error":%d,"published":%d,"dropped":%d}`,
		s.Cycle.Value(), s.Overrun.Value(), s.ReadError.Value(), s.Published.Value(), s.Dropped.Value())
}

type Sampler struct {
	Log *log2.Log

	channels []*Channel
	pub      Publisher
	ticker   Ticker
	stat     Stat
	vals     []uint16
}

func New(pub Publisher, ticker Ticker, log *log2.Log, channels ...*Channel) *Sampler {
	max := 0
	for _, c := range channels {
		if c.Electrodes > max {
			max = c.Electrodes
		}
	}
	return &Sampler{
		Log:      log,
		channels: channels,
		pub:      pub,
		ticker:   ticker,
		vals:     make([]uint16, max),
	}
}

func (s *Sampler) Stat() *Stat { return &s.stat }

// Run performs one cycle per tick until a is stopped.
// Stop is observed at tick boundary, in-flight cycle completes.
// Returns error only on ticker failure.
func (s *Sampler) Run(a *alive.Alive) error {
	for a.IsRunning() {
		n, err := s.ticker.Wait()
		if err != nil {
			return errors.Annotate(err, "sampler")
		}
		if !a.IsRunning() {
			break
		}
		if n == 0 {
			continue
		}
		if n > 1 {
			s.stat.Overrun.Add(int64(n - 1))
		}
		s.Cycle()
	}
	return nil
}

// Cycle order: every touched (if changed), then every vals.
func (s *Sampler) Cycle() {
	s.stat.Cycle.Add(1)
	for _, c := range s.channels {
		t, err := c.Sensor.Touched()
		if err != nil {
			s.stat.ReadError.Add(1)
			s.Log.Errorf("%s read touched err=%v", c.Touched, err)
			t = 0
		}
		if c.hasLast && t == c.last {
			continue
		}
		if s.pub.Probe() {
			s.publish(c.Touched, tele.Shorts(s.pub.ByteOrder(), t))
		} else {
			s.stat.Dropped.Add(1)
		}
		c.last, c.hasLast = t, true
	}

	if !s.pub.Probe() {
		s.stat.Dropped.Add(int64(len(s.channels)))
		return
	}
	for _, c := range s.channels {
		vs := s.vals[:c.Electrodes]
		for k := range vs {
			v, err := c.Sensor.Filtered(k)
			if err != nil {
				s.stat.ReadError.Add(1)
				s.Log.Errorf("%s read electrode=%d err=%v", c.Vals, k, err)
				v = 0
			}
			vs[k] = v
		}
		s.publish(c.Vals, tele.Shorts(s.pub.ByteOrder(), vs...))
	}
}

func (s *Sampler) publish(name string, payload []byte) {
	err := s.pub.Publish(name, tele.TypeShort, payload)
	if err == nil {
		s.stat.Published.Add(1)
		return
	}
	s.stat.Dropped.Add(1)
	err = errors.Annotatef(err, "channel=%s", name)
	switch fault.KindOf(err) {
	case fault.FrameTooLarge, fault.SendOther:
		s.Log.Error(err)
	default:
		s.Log.Debug(err)
	}
}
