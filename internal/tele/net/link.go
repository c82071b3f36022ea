// Package telenet keeps single outbound TCP session to telemetry collector
// and writes fixed size frames into it.
//
// Roles are partitioned by link state:
// - foreground (Publish, Probe) is the only writer to socket and the only
// producer of Connected->Disconnected
// - reconnect worker is the only producer of Disconnected->Connected
// Publish while Disconnected drops the record, nothing is buffered.
package telenet

import (
	"context"
	"encoding/binary"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/graspkit/touchfwd/helpers"
	"github.com/graspkit/touchfwd/internal/fault"
	"github.com/graspkit/touchfwd/internal/tele"
	"github.com/graspkit/touchfwd/log2"
	"github.com/juju/errors"
	"github.com/temoto/alive/v2"
)

const (
	DefaultConnectTimeout = 5 * time.Second
	DefaultReconnectDelay = 5 * time.Second
)

var ErrClosing = fmt.Errorf("closing")

type State uint32

const (
	Disconnected State = iota
	Connected
)

func (s State) String() string {
	if s == Connected {
		return "connected"
	}
	return "disconnected"
}

type Options struct {
	Host           string
	Port           int
	ConnectTimeout time.Duration
	ReconnectDelay time.Duration
	ByteOrder      binary.ByteOrder
	Log            *log2.Log
}

type Link struct {
	alive     *alive.Alive
	addr      string
	connectLk sync.Mutex // serializes dial
	connected atomic.Bool
	opt       Options
	started   atomic.Bool
	stamper   tele.Stamper
	stat      Stat

	lk   sync.Mutex // protects conn and w
	conn *net.TCPConn
	w    io.Writer

	// scratch frame, only touched by Publish
	frame tele.Frame
}

func NewLink(opt Options) (*Link, error) {
	if opt.Host == "" {
		return nil, errors.NotValidf("collector host empty")
	}
	if opt.Port < 1 || opt.Port > 65535 {
		return nil, errors.NotValidf("collector port=%d", opt.Port)
	}
	if opt.ConnectTimeout == 0 {
		opt.ConnectTimeout = DefaultConnectTimeout
	}
	if opt.ReconnectDelay == 0 {
		opt.ReconnectDelay = DefaultReconnectDelay
	}
	if opt.ByteOrder == nil {
		opt.ByteOrder = binary.LittleEndian
	}
	l := &Link{
		alive: alive.NewAlive(),
		addr:  net.JoinHostPort(opt.Host, strconv.Itoa(opt.Port)),
		opt:   opt,
	}
	return l, nil
}

func (l *Link) Addr() string                { return l.addr }
func (l *Link) ByteOrder() binary.ByteOrder { return l.opt.ByteOrder }
func (l *Link) Stat() *Stat                 { return &l.stat }

func (l *Link) State() State {
	if l.connected.Load() {
		return Connected
	}
	return Disconnected
}

// Connect is no-op while connected.
func (l *Link) Connect(ctx context.Context) error {
	l.connectLk.Lock()
	defer l.connectLk.Unlock()

	if l.connected.Load() {
		return nil
	}
	if !l.alive.IsRunning() {
		return ErrClosing
	}

	// net.Dialer does non-blocking connect and waits for writability
	// up to Timeout, socket is returned in Go's usual blocking mode.
	dialer := net.Dialer{Timeout: l.opt.ConnectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp4", l.addr)
	if err != nil {
		l.stat.ConnectError.Add(1)
		return errors.Annotatef(classifyDial(err), "connect collector=%s", l.addr)
	}
	tcp, ok := conn.(*net.TCPConn)
	if !ok {
		_ = conn.Close()
		return errors.Errorf("code error dial returned %T", conn)
	}
	if err = tcp.SetNoDelay(true); err != nil {
		l.opt.Log.Errorf("collector=%s TCP_NODELAY err=%v", l.addr, err)
	}

	l.lk.Lock()
	l.conn = tcp
	l.w = helpers.NewStatWriter(tcp, &l.stat.SendSize, 0)
	l.lk.Unlock()
	l.connected.Store(true)
	l.stat.Connect.Add(1)
	l.stat.LastConnect.SetNow()
	l.opt.Log.Infof("connected to collector %s local=%s", l.addr, tcp.LocalAddr())
	return nil
}

// Publish serializes one record and writes exactly one frame.
// Not safe for concurrent use.
func (l *Link) Publish(name string, dtype tele.DataType, payload []byte) error {
	if !l.connected.Load() {
		l.stat.DropDisconnected.Add(1)
		return fault.New(fault.Disconnected, nil)
	}
	r := tele.Record{
		Name:      name,
		Type:      dtype,
		Timestamp: l.stamper.Stamp(),
		Payload:   payload,
	}
	if err := tele.MarshalFrame(&l.frame, l.opt.ByteOrder, &r); err != nil {
		l.stat.DropTooLarge.Add(1)
		return err
	}

	conn, w := l.getConn()
	if conn == nil {
		l.stat.DropDisconnected.Add(1)
		return fault.New(fault.Disconnected, nil)
	}
	if err := helpers.WriteAll(w, l.frame[:]); err != nil {
		if isBroken(err) {
			l.disconnect(err)
			return fault.New(fault.SendBroken, err)
		}
		l.stat.SendError.Add(1)
		return fault.New(fault.SendOther, err)
	}
	l.stat.SendCount.Add(1)
	l.stat.LastSend.SetNow()
	return nil
}

// Probe checks liveness without consuming input.
// Remote half-close or socket error demotes link to Disconnected.
func (l *Link) Probe() bool {
	if !l.connected.Load() {
		return false
	}
	conn, _ := l.getConn()
	if conn == nil {
		return false
	}
	closed, err := peek(conn)
	switch {
	case err != nil:
		l.disconnect(errors.Annotate(err, "probe"))
		return false
	case closed:
		l.disconnect(io.EOF)
		return false
	}
	return true
}

// Start launches reconnect worker. Second call is no-op.
func (l *Link) Start() {
	if !l.started.CompareAndSwap(false, true) {
		return
	}
	if !l.alive.Add(1) {
		return
	}
	go l.reconnectLoop()
}

// Shutdown stops reconnect worker and closes socket. Safe to call many times.
func (l *Link) Shutdown() error {
	l.alive.Stop()
	l.alive.Wait()
	l.disconnect(ErrClosing)
	return nil
}

func (l *Link) String() string {
	return fmt.Sprintf("link(collector=%s state=%s stat=%s)", l.addr, l.State(), l.stat.String())
}

func (l *Link) reconnectLoop() {
	defer l.alive.Done()

	ctx, cancel := helpers.AliveContext(context.Background(), l.alive)
	defer cancel()

	stopch := l.alive.StopChan()
	for {
		select {
		case <-time.After(l.opt.ReconnectDelay):
		case <-stopch:
			return
		}
		if l.connected.Load() {
			continue
		}
		l.opt.Log.Debugf("reconnecting to collector %s", l.addr)
		if err := l.Connect(ctx); err != nil {
			if err == ErrClosing || ctx.Err() != nil {
				return
			}
			l.opt.Log.Infof("collector=%s reconnect failed, retry in %s: %v", l.addr, l.opt.ReconnectDelay, err)
		}
	}
}

func (l *Link) getConn() (*net.TCPConn, io.Writer) {
	l.lk.Lock()
	defer l.lk.Unlock()
	return l.conn, l.w
}

func (l *Link) disconnect(reason error) {
	l.lk.Lock()
	conn := l.conn
	l.conn, l.w = nil, nil
	l.lk.Unlock()
	was := l.connected.Swap(false)
	if conn != nil {
		_ = conn.Close()
	}
	if was {
		l.stat.Disconnect.Add(1)
		if reason == ErrClosing {
			l.opt.Log.Debugf("collector=%s closed", l.addr)
		} else {
			l.opt.Log.Infof("collector=%s connection lost, will reconnect: %v", l.addr, reason)
		}
	}
}

func classifyDial(err error) error {
	var dnsErr *net.DNSError
	var netErr net.Error
	switch {
	case stderrors.As(err, &dnsErr):
		return fault.New(fault.NameResolution, err)
	case stderrors.Is(err, context.DeadlineExceeded):
		return fault.New(fault.ConnectTimeout, err)
	case stderrors.As(err, &netErr) && netErr.Timeout():
		return fault.New(fault.ConnectTimeout, err)
	}
	return fault.New(fault.ConnectRefused, err)
}

func isBroken(err error) bool {
	return stderrors.Is(err, syscall.EPIPE) ||
		stderrors.Is(err, syscall.ECONNRESET) ||
		stderrors.Is(err, syscall.ENOTCONN) ||
		stderrors.Is(err, net.ErrClosed)
}
