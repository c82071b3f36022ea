package mpr121

import (
	"fmt"
	"sync"
	"time"

	"github.com/juju/errors"
)

type OpKind uint8

const (
	OpWrite OpKind = iota + 1
	OpRead
	OpSleep
)

type Op struct {
	Kind  OpKind
	Reg   uint8
	Data  []byte
	Delay time.Duration
}

func (o Op) String() string {
	switch o.Kind {
	case OpWrite:
		return fmt.Sprintf("w%02x=%x", o.Reg, o.Data)
	case OpRead:
		return fmt.Sprintf("r%02x:%d", o.Reg, len(o.Data))
	case OpSleep:
		return fmt.Sprintf("s%s", o.Delay)
	}
	return "?"
}

// MockTransport emulates register file with auto-increment addressing
// and records every access. Used by tests and transport "mock".
type MockTransport struct {
	sync.Mutex
	Regs   [256]byte
	Ops    []Op
	Errors map[uint8]error // any access to register fails
	Closed bool
	Record bool // append to Ops
}

var _ Transport = &MockTransport{}

func NewMockTransport() *MockTransport {
	return &MockTransport{Errors: make(map[uint8]error)}
}

// NewMockDevice returns device with sleeps recorded instead of performed.
func NewMockDevice(addr uint16) (*Device, *MockTransport) {
	m := NewMockTransport()
	m.Record = true
	d := NewDevice(m, addr, nil)
	d.Sleep = m.Sleep
	return d, m
}

func (m *MockTransport) Tx(w, r []byte) error {
	m.Lock()
	defer m.Unlock()
	if m.Closed {
		return errors.New("mock transport closed")
	}
	if len(w) == 0 {
		return errors.New("mock transport expects register address")
	}
	reg := w[0]
	if err := m.Errors[reg]; err != nil {
		return err
	}
	if len(w) > 1 {
		for i, b := range w[1:] {
			m.Regs[reg+uint8(i)] = b
		}
		m.record(Op{Kind: OpWrite, Reg: reg, Data: append([]byte(nil), w[1:]...)})
	}
	if len(r) != 0 {
		for i := range r {
			r[i] = m.Regs[reg+uint8(i)]
		}
		m.record(Op{Kind: OpRead, Reg: reg, Data: append([]byte(nil), r...)})
	}
	return nil
}

func (m *MockTransport) Close() error {
	m.Lock()
	m.Closed = true
	m.Unlock()
	return nil
}

func (m *MockTransport) String() string { return "mock" }

func (m *MockTransport) Sleep(d time.Duration) {
	m.Lock()
	m.record(Op{Kind: OpSleep, Delay: d})
	m.Unlock()
}

// must be called with lock
func (m *MockTransport) record(op Op) {
	if m.Record {
		m.Ops = append(m.Ops, op)
	}
}

func (m *MockTransport) SetTouched(v uint16) {
	m.Lock()
	m.Regs[TOUCHSTATUS_L] = byte(v)
	m.Regs[TOUCHSTATUS_H] = byte(v >> 8)
	m.Unlock()
}

func (m *MockTransport) SetFiltered(vs ...uint16) {
	m.Lock()
	for k, v := range vs {
		m.Regs[FILTDATA_0L+2*k] = byte(v)
		m.Regs[FILTDATA_0H+2*k] = byte(v >> 8)
	}
	m.Unlock()
}

func (m *MockTransport) SetError(reg uint8, err error) {
	m.Lock()
	if err == nil {
		delete(m.Errors, reg)
	} else {
		m.Errors[reg] = err
	}
	m.Unlock()
}

// TakeOps returns recorded operations and resets the log.
func (m *MockTransport) TakeOps() []Op {
	m.Lock()
	ops := m.Ops
	m.Ops = nil
	m.Unlock()
	return ops
}
