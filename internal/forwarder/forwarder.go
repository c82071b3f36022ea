// Package forwarder composes touch controllers, telemetry link and sampler
// into the running service.
package forwarder

import (
	"context"

	"github.com/graspkit/touchfwd/internal/sampler"
	"github.com/graspkit/touchfwd/internal/state"
	"github.com/juju/errors"
)

// Run configures controllers (any failure is fatal), starts link reconnect
// worker, tries initial connect and samples until global Alive is stopped.
// ready is called once the sampling loop is about to start.
// Hardware is closed before return.
func Run(ctx context.Context, ready func()) error {
	g := state.GetGlobal(ctx)
	defer func() {
		if err := g.CloseHardware(); err != nil {
			g.Log.Errorf("close hardware err=%v", err)
		}
	}()

	sensors, err := g.Sensors()
	if err != nil {
		return errors.Annotate(err, "forwarder")
	}
	ticker, err := g.Ticker()
	if err != nil {
		return errors.Annotate(err, "forwarder")
	}
	defer ticker.Close()

	link, err := g.Link()
	if err != nil {
		return errors.Annotate(err, "forwarder")
	}
	link.Start()
	if err = link.Connect(ctx); err != nil {
		g.Log.Infof("initial connect failed, reconnect every %s: %v", g.Config.ReconnectDelay(), err)
	}

	cfg := g.Config
	channels := make([]*sampler.Channel, len(sensors))
	for i, d := range sensors {
		channels[i] = sampler.NewChannel(cfg.Sampler.Prefix, cfg.Sensors[i].Name, d, cfg.Touch.Electrodes)
	}
	s := sampler.New(link, ticker, g.Log, channels...)

	if !g.Alive.Add(1) {
		return nil
	}
	defer g.Alive.Done()
	g.Log.Infof("sampling every %s clock=%s", cfg.Interval(), cfg.Sampler.Clock)
	if ready != nil {
		ready()
	}
	err = s.Run(g.Alive)
	g.Log.Infof("stopped link=%s sampler=%s", link, s.Stat())
	return err
}
