package forwarder

import (
	"context"
	"testing"
	"time"

	"github.com/graspkit/touchfwd/helpers"
	"github.com/graspkit/touchfwd/internal/fault"
	"github.com/graspkit/touchfwd/internal/mpr121"
	"github.com/graspkit/touchfwd/internal/sampler"
	"github.com/graspkit/touchfwd/internal/state"
	"github.com/graspkit/touchfwd/internal/tele"
	telenet "github.com/graspkit/touchfwd/internal/tele/net"
	"github.com/graspkit/touchfwd/log2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestContext(t testing.TB, port int, modify func(*state.Config)) (context.Context, *state.Global) {
	log := log2.NewTest(t, log2.LDebug)
	ctx, g := state.NewContext(log)
	cfg := &state.Config{}
	cfg.ApplyDefaults()
	cfg.Collector.Host = "127.0.0.1"
	cfg.Collector.Port = port
	cfg.Collector.ReconnectDelayMs = 50
	cfg.Sampler.Clock = sampler.ClockTicker
	cfg.Sampler.IntervalMs = 5
	cfg.I2C.Transport = mpr121.TransportMock
	if modify != nil {
		modify(cfg)
	}
	require.NoError(t, g.Init(ctx, cfg))
	return ctx, g
}

func runAsync(ctx context.Context) (<-chan error, <-chan struct{}) {
	done := make(chan error, 1)
	ready := make(chan struct{})
	go func() { done <- Run(ctx, func() { close(ready) }) }()
	return done, ready
}

func waitDone(t testing.TB, done <-chan error) error {
	select {
	case err := <-done:
		return err
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return")
	}
	return nil
}

func TestRunForwards(t *testing.T) {
	t.Parallel()

	c := telenet.NewTestCollector(t, "127.0.0.1:0")
	ctx, g := newTestContext(t, c.Port(), nil)
	sensors, err := g.Sensors()
	require.NoError(t, err)
	require.Len(t, sensors, 2)
	m0 := sensors[0].Transport().(*mpr121.MockTransport)
	m0.SetTouched(0x0005)
	m0.SetFiltered(100, 200, 300, 400, 500, 600)
	ecr, err := sensors[1].ReadRegister(mpr121.ECR)
	require.NoError(t, err)
	assert.Equal(t, uint8(6), ecr)

	done, ready := runAsync(ctx)
	<-ready

	r := c.Next(3 * time.Second)
	assert.Equal(t, "grasp/sensor0/touched", r.Name)
	assert.Equal(t, tele.TypeShort, r.Type)
	assert.Equal(t, []byte{0x05, 0x00}, r.Payload)
	assert.Equal(t, "grasp/sensor1/touched", c.Next(time.Second).Name)
	r = c.Next(time.Second)
	assert.Equal(t, "grasp/sensor0/vals", r.Name)
	assert.Equal(t, helpers.MustHex("6400c8002c019001f4015802"), r.Payload)
	assert.Equal(t, "grasp/sensor1/vals", c.Next(time.Second).Name)
	// next cycle, bitmap unchanged
	assert.Equal(t, "grasp/sensor0/vals", c.Next(time.Second).Name)

	assert.True(t, g.StopWait(3*time.Second))
	require.NoError(t, waitDone(t, done))
	link, err := g.Link()
	require.NoError(t, err)
	assert.Equal(t, telenet.Disconnected, link.State())
	assert.True(t, m0.Closed)
}

func TestRunLateCollector(t *testing.T) {
	t.Parallel()

	probe := telenet.NewTestCollector(t, "127.0.0.1:0")
	port := probe.Port()
	probe.Close()

	ctx, g := newTestContext(t, port, nil)
	done, ready := runAsync(ctx)
	<-ready
	time.Sleep(30 * time.Millisecond)

	c := telenet.NewTestCollector(t, probe.Addr())
	r := c.Next(3 * time.Second)
	assert.Contains(t, []string{"grasp/sensor0/vals", "grasp/sensor1/vals"}, r.Name)

	g.Stop()
	require.NoError(t, waitDone(t, done))
}

func TestRunControllerFailure(t *testing.T) {
	t.Parallel()

	ctx, g := newTestContext(t, 4620, func(c *state.Config) {
		c.I2C.Transport = mpr121.TransportDev
		c.I2C.Bus = "/nonexistent/i2c-9"
	})
	err := Run(ctx, func() { t.Error("ready must not be called") })
	require.Error(t, err)
	assert.True(t, fault.Is(err, fault.BusOpen), "err=%v", err)
	assert.Contains(t, err.Error(), "sensor=sensor0")
	assert.True(t, g.Alive.IsRunning())
}
