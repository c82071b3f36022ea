package telenet

import (
	"encoding/binary"
	"io"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/graspkit/touchfwd/internal/tele"
)

// TestCollector is loopback stand-in for telemetry collector.
type TestCollector struct {
	Frames chan []byte
	Conns  chan net.Conn

	t  testing.TB
	ln net.Listener
	wg sync.WaitGroup
}

// NewTestCollector listens on addr, use "127.0.0.1:0" for random port.
func NewTestCollector(t testing.TB, addr string) *TestCollector {
	ln, err := net.Listen("tcp4", addr)
	if err != nil {
		t.Fatalf("collector listen addr=%s err=%v", addr, err)
	}
	c := &TestCollector{
		Frames: make(chan []byte, 256),
		Conns:  make(chan net.Conn, 16),
		t:      t,
		ln:     ln,
	}
	c.wg.Add(1)
	go c.acceptLoop()
	t.Cleanup(c.Close)
	return c
}

func (c *TestCollector) Addr() string { return c.ln.Addr().String() }

func (c *TestCollector) Port() int {
	_, p, _ := net.SplitHostPort(c.Addr())
	port, _ := strconv.Atoi(p)
	return port
}

func (c *TestCollector) Close() {
	_ = c.ln.Close()
	c.wg.Wait()
}

// Next waits for one frame and decodes it as little endian.
func (c *TestCollector) Next(timeout time.Duration) *tele.Record {
	c.t.Helper()
	select {
	case b := <-c.Frames:
		if len(b) != tele.FrameSize {
			c.t.Fatalf("frame length=%d", len(b))
		}
		r, err := tele.UnmarshalFrame(binary.LittleEndian, b)
		if err != nil {
			c.t.Fatalf("frame=%x err=%v", b, err)
		}
		return r
	case <-time.After(timeout):
		c.t.Fatalf("no frame within %s", timeout)
	}
	return nil
}

// ExpectNone fails if any frame arrives within d.
func (c *TestCollector) ExpectNone(d time.Duration) {
	c.t.Helper()
	select {
	case b := <-c.Frames:
		c.t.Fatalf("unexpected frame=%x", b)
	case <-time.After(d):
	}
}

func (c *TestCollector) acceptLoop() {
	defer c.wg.Done()
	for {
		conn, err := c.ln.Accept()
		if err != nil {
			return
		}
		select {
		case c.Conns <- conn:
		default:
		}
		go c.readLoop(conn)
	}
}

func (c *TestCollector) readLoop(conn net.Conn) {
	defer conn.Close()
	for {
		b := make([]byte, tele.FrameSize)
		if _, err := io.ReadFull(conn, b); err != nil {
			return
		}
		c.Frames <- b
	}
}
