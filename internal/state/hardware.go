package state

import (
	"sync"
	"sync/atomic"

	"github.com/graspkit/touchfwd/helpers"
	"github.com/graspkit/touchfwd/internal/mpr121"
	"github.com/graspkit/touchfwd/internal/sampler"
	telenet "github.com/graspkit/touchfwd/internal/tele/net"
	"github.com/juju/errors"
)

type hardware struct {
	sensors struct {
		once
		list []*mpr121.Device
	}
	link struct {
		once
		l *telenet.Link
	}
}

// Sensors opens and configures every controller in config order.
// First failure closes already opened devices and is remembered.
func (g *Global) Sensors() ([]*mpr121.Device, error) {
	x := &g.Hardware.sensors // short alias
	_ = x.do(func() error {
		cfg := g.Config
		list := make([]*mpr121.Device, 0, len(cfg.Sensors))
		closeAll := func() {
			for _, d := range list {
				_ = d.Close()
			}
		}
		for _, sc := range cfg.Sensors {
			d, err := mpr121.Open(cfg.I2C.Transport, cfg.I2C.Bus, uint16(sc.Address), g.Log)
			if err != nil {
				closeAll()
				return errors.Annotatef(err, "sensor=%s", sc.Name)
			}
			list = append(list, d)
			if err = d.Configure(cfg.Mpr121()); err != nil {
				closeAll()
				return errors.Annotatef(err, "sensor=%s configure", sc.Name)
			}
			g.Log.Infof("sensor=%s %s found", sc.Name, d)
		}
		x.list = list
		return nil
	})
	return x.list, x.err
}

func (g *Global) Link() (*telenet.Link, error) {
	x := &g.Hardware.link // short alias
	_ = x.do(func() error {
		cfg := g.Config
		x.l, x.err = telenet.NewLink(telenet.Options{
			Host:           cfg.Collector.Host,
			Port:           cfg.Collector.Port,
			ConnectTimeout: cfg.ConnectTimeout(),
			ReconnectDelay: cfg.ReconnectDelay(),
			ByteOrder:      cfg.ByteOrder(),
			Log:            g.Log,
		})
		return x.err
	})
	return x.l, x.err
}

// Ticker returns new tick source, caller must Close it.
func (g *Global) Ticker() (sampler.Ticker, error) {
	return sampler.NewClock(g.Config.Sampler.Clock, g.Config.Interval())
}

// CloseHardware shuts down link and closes controllers opened so far.
func (g *Global) CloseHardware() error {
	errs := make([]error, 0, 4)
	if x := &g.Hardware.link; x.done() && x.l != nil {
		errs = append(errs, x.l.Shutdown())
	}
	if x := &g.Hardware.sensors; x.done() {
		for _, d := range x.list {
			if err := d.Close(); err != nil {
				errs = append(errs, errors.Annotatef(err, "close %s", d))
			}
		}
	}
	return helpers.FoldErrors(errs)
}

type once struct {
	sync.Mutex
	called uint32 // atomic bool
	err    error
}

func (o *once) done() bool {
	return atomic.LoadUint32(&o.called) == 1
}

func (o *once) do(f func() error) error {
	if o.done() { // fast path
		return o.err
	}
	o.Lock()
	defer o.Unlock()
	if o.done() {
		return o.err
	}
	o.err = f()
	atomic.StoreUint32(&o.called, 1)
	return o.err
}
