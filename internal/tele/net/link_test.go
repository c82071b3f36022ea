package telenet

import (
	"context"
	"encoding/binary"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/graspkit/touchfwd/internal/fault"
	"github.com/graspkit/touchfwd/internal/tele"
	"github.com/graspkit/touchfwd/log2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTimeout = 3 * time.Second

func newTestLink(t testing.TB, port int) *Link {
	l, err := NewLink(Options{
		Host:           "127.0.0.1",
		Port:           port,
		ConnectTimeout: time.Second,
		ReconnectDelay: 50 * time.Millisecond,
		Log:            log2.NewTest(t, log2.LDebug),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Shutdown() })
	return l
}

func freePort(t testing.TB) int {
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

func TestNewLinkInvalid(t *testing.T) {
	t.Parallel()

	_, err := NewLink(Options{Port: 4620})
	assert.Error(t, err)
	_, err = NewLink(Options{Host: "localhost", Port: 65536})
	assert.Error(t, err)
	l, err := NewLink(Options{Host: "192.168.88.40", Port: 4620})
	require.NoError(t, err)
	assert.Equal(t, "192.168.88.40:4620", l.Addr())
	assert.Equal(t, binary.LittleEndian, l.ByteOrder())
	assert.Equal(t, Disconnected, l.State())
}

func TestPublish(t *testing.T) {
	t.Parallel()

	c := NewTestCollector(t, "127.0.0.1:0")
	l := newTestLink(t, c.Port())
	require.NoError(t, l.Connect(context.Background()))
	assert.Equal(t, Connected, l.State())
	assert.True(t, l.Probe())

	require.NoError(t, l.Publish("grasp/sensor0/touched", tele.TypeShort, tele.Shorts(binary.LittleEndian, 0x0005)))
	require.NoError(t, l.Publish("grasp/sensor0/vals", tele.TypeShort, tele.Shorts(binary.LittleEndian, 100, 200, 300, 400, 500, 600)))

	r1 := c.Next(testTimeout)
	assert.Equal(t, "grasp/sensor0/touched", r1.Name)
	assert.Equal(t, tele.TypeShort, r1.Type)
	assert.Equal(t, []byte{0x05, 0x00}, r1.Payload)
	r2 := c.Next(testTimeout)
	assert.Equal(t, "grasp/sensor0/vals", r2.Name)
	assert.Equal(t, []byte{0x64, 0x00, 0xC8, 0x00, 0x2C, 0x01, 0x90, 0x01, 0xF4, 0x01, 0x58, 0x02}, r2.Payload)
	assert.LessOrEqual(t, r1.Timestamp, r2.Timestamp)
	assert.InDelta(t, uint64(time.Now().UnixMicro()), r2.Timestamp, float64(time.Minute/time.Microsecond))

	assert.Equal(t, int64(2), l.Stat().SendCount.Value())
	assert.Equal(t, int64(2*tele.FrameSize), l.Stat().SendSize.Value())
	assert.False(t, l.Stat().LastSend.IsZero())
}

func TestConnectIdempotent(t *testing.T) {
	t.Parallel()

	c := NewTestCollector(t, "127.0.0.1:0")
	l := newTestLink(t, c.Port())
	for i := 0; i < 3; i++ {
		require.NoError(t, l.Connect(context.Background()))
	}
	assert.Equal(t, int64(1), l.Stat().Connect.Value())
	require.Eventually(t, func() bool { return len(c.Conns) == 1 }, testTimeout, 10*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, len(c.Conns))
}

func TestShutdownIdempotent(t *testing.T) {
	t.Parallel()

	c := NewTestCollector(t, "127.0.0.1:0")
	l := newTestLink(t, c.Port())
	l.Start()
	l.Start()
	require.NoError(t, l.Connect(context.Background()))
	require.NoError(t, l.Shutdown())
	require.NoError(t, l.Shutdown())
	assert.Equal(t, Disconnected, l.State())
	assert.Equal(t, ErrClosing, l.Connect(context.Background()))
	assert.True(t, fault.Is(l.Publish("x", tele.TypeShort, nil), fault.Disconnected))
}

func TestPublishDisconnectedDrops(t *testing.T) {
	t.Parallel()

	l := newTestLink(t, freePort(t))
	err := l.Publish("grasp/sensor0/vals", tele.TypeShort, []byte{1, 0})
	assert.True(t, fault.Is(err, fault.Disconnected))
	assert.False(t, l.Probe())
	assert.Equal(t, int64(1), l.Stat().DropDisconnected.Value())
}

func TestPublishFrameTooLarge(t *testing.T) {
	t.Parallel()

	c := NewTestCollector(t, "127.0.0.1:0")
	l := newTestLink(t, c.Port())
	require.NoError(t, l.Connect(context.Background()))

	err := l.Publish(strings.Repeat("n", 100), tele.TypeByte, make([]byte, 10))
	assert.True(t, fault.Is(err, fault.FrameTooLarge))
	assert.Equal(t, Connected, l.State())
	assert.Equal(t, int64(0), l.Stat().SendSize.Value())

	require.NoError(t, l.Publish("grasp/sensor1/touched", tele.TypeShort, []byte{0, 0}))
	r := c.Next(testTimeout)
	assert.Equal(t, "grasp/sensor1/touched", r.Name)
	c.ExpectNone(50 * time.Millisecond)
	assert.Equal(t, int64(1), l.Stat().DropTooLarge.Value())
}

func TestMidStreamDisconnect(t *testing.T) {
	t.Parallel()

	c := NewTestCollector(t, "127.0.0.1:0")
	l := newTestLink(t, c.Port())
	require.NoError(t, l.Connect(context.Background()))
	require.NoError(t, l.Publish("grasp/sensor0/touched", tele.TypeShort, []byte{1, 0}))
	c.Next(testTimeout)
	(<-c.Conns).Close()

	// remote half-close is seen by probe, or by write once kernel gets RST
	require.Eventually(t, func() bool {
		if !l.Probe() {
			return true
		}
		_ = l.Publish("grasp/sensor0/vals", tele.TypeShort, []byte{1, 0})
		return l.State() == Disconnected
	}, testTimeout, 10*time.Millisecond)
	err := l.Publish("grasp/sensor0/vals", tele.TypeShort, []byte{1, 0})
	assert.True(t, fault.Is(err, fault.Disconnected))
	assert.Equal(t, int64(1), l.Stat().Disconnect.Value())

	l.Start()
	require.Eventually(t, func() bool { return l.State() == Connected }, testTimeout, 10*time.Millisecond)
	require.NoError(t, l.Publish("grasp/sensor0/vals", tele.TypeShort, []byte{2, 0}))
	r := c.Next(testTimeout)
	assert.Equal(t, "grasp/sensor0/vals", r.Name)
	assert.Equal(t, []byte{2, 0}, r.Payload)
	assert.Equal(t, int64(2), l.Stat().Connect.Value())
}

func TestLateStart(t *testing.T) {
	t.Parallel()

	port := freePort(t)
	l := newTestLink(t, port)
	l.Start()
	err := l.Connect(context.Background())
	require.Error(t, err)
	assert.True(t, fault.Is(err, fault.ConnectRefused), "err=%v", err)
	assert.True(t, fault.Is(l.Publish("x", tele.TypeShort, nil), fault.Disconnected))

	c := NewTestCollector(t, net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	require.Eventually(t, func() bool { return l.State() == Connected }, testTimeout, 10*time.Millisecond)
	require.NoError(t, l.Publish("grasp/sensor1/vals", tele.TypeShort, []byte{3, 0}))
	assert.Equal(t, "grasp/sensor1/vals", c.Next(testTimeout).Name)
}

func TestConnectNameResolution(t *testing.T) {
	t.Parallel()

	l, err := NewLink(Options{Host: "collector.invalid", Port: 4620, ConnectTimeout: time.Second})
	require.NoError(t, err)
	defer l.Shutdown()
	err = l.Connect(context.Background())
	require.Error(t, err)
	assert.True(t, fault.Is(err, fault.NameResolution), "err=%v", err)
	assert.Equal(t, int64(1), l.Stat().ConnectError.Value())
}

func TestStateString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "connected", Connected.String())
	assert.Equal(t, "disconnected", Disconnected.String())
}
