// Package mpr121 drives MPR121 capacitive touch controller over Linux I2C.
//
// Datasheet: https://www.nxp.com/docs/en/data-sheet/MPR121.pdf
package mpr121

import (
	"fmt"
	"time"

	"github.com/graspkit/touchfwd/internal/fault"
	"github.com/graspkit/touchfwd/log2"
	"github.com/juju/errors"
)

const (
	StopDelay   = 10 * time.Millisecond
	SettleDelay = 100 * time.Millisecond
)

// Transport is I2C connection bound to single slave address.
// Tx writes w (if any) then reads len(r) bytes (if any).
type Transport interface {
	Tx(w, r []byte) error
	Close() error
	String() string
}

type Config struct {
	TouchThreshold   uint8
	ReleaseThreshold uint8
	Electrodes       uint8
}

func DefaultConfig() Config {
	return Config{
		TouchThreshold:   DefaultTouchThreshold,
		ReleaseThreshold: DefaultReleaseThreshold,
		Electrodes:       DefaultElectrodes,
	}
}

func (c Config) Validate() error {
	if c.Electrodes < 1 || c.Electrodes > MaxElectrodes {
		return errors.NotValidf("electrodes=%d must be 1..%d", c.Electrodes, MaxElectrodes)
	}
	return nil
}

type Device struct {
	Log   *log2.Log
	Sleep func(time.Duration) // nil means time.Sleep

	t    Transport
	addr uint16
	buf  [2]byte
}

func NewDevice(t Transport, addr uint16, log *log2.Log) *Device {
	return &Device{
		Log:  log,
		t:    t,
		addr: addr,
	}
}

// Open binds to controller at addr. transport is "dev", "periph" or "mock".
func Open(transport, bus string, addr uint16, log *log2.Log) (*Device, error) {
	var t Transport
	var err error
	switch transport {
	case "", TransportDev:
		t, err = OpenDev(bus, addr)
	case TransportPeriph:
		t, err = OpenPeriph(bus, addr)
	case TransportMock:
		t = NewMockTransport()
	default:
		return nil, errors.NotValidf("i2c transport=%s", transport)
	}
	if err != nil {
		return nil, errors.Annotatef(err, "mpr121 addr=%#02x", addr)
	}
	return NewDevice(t, addr, log), nil
}

func (d *Device) Addr() uint16         { return d.addr }
func (d *Device) Close() error         { return d.t.Close() }
func (d *Device) Transport() Transport { return d.t }
func (d *Device) String() string       { return fmt.Sprintf("mpr121(%s addr=%#02x)", d.t, d.addr) }

// Configure stops scanning, programs thresholds for enabled electrodes,
// then enters run mode. Thresholds are only accepted while in stop mode;
// filtered data is unusable until settle delay passes.
func (d *Device) Configure(c Config) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if err := d.WriteRegister(ECR, 0x00); err != nil {
		return errors.Annotate(err, "stop")
	}
	d.sleep(StopDelay)
	for k := uint8(0); k < c.Electrodes; k++ {
		if err := d.WriteRegister(TOUCHTH_0+2*k, c.TouchThreshold); err != nil {
			return errors.Annotatef(err, "touch threshold electrode=%d", k)
		}
		if err := d.WriteRegister(RELEASETH_0+2*k, c.ReleaseThreshold); err != nil {
			return errors.Annotatef(err, "release threshold electrode=%d", k)
		}
	}
	if err := d.WriteRegister(ECR, c.Electrodes&0x0f); err != nil {
		return errors.Annotate(err, "run")
	}
	d.sleep(SettleDelay)

	if ecr, err := d.ReadRegister(ECR); err != nil {
		d.Log.Errorf("%s ecr readback err=%v", d, err)
	} else {
		d.Log.Debugf("%s configured ecr=%02x", d, ecr)
	}
	return nil
}

// Touched returns bitmap of touched electrodes, bit k = electrode k.
func (d *Device) Touched() (uint16, error) {
	lo, err := d.ReadRegister(TOUCHSTATUS_L)
	if err != nil {
		return 0, err
	}
	hi, err := d.ReadRegister(TOUCHSTATUS_H)
	if err != nil {
		return 0, err
	}
	return uint16(hi)<<8 | uint16(lo), nil
}

func (d *Device) Filtered(k int) (uint16, error) {
	if k < 0 || k >= MaxElectrodes {
		return 0, errors.NotValidf("electrode=%d", k)
	}
	b := d.buf[:2]
	if err := d.tx(uint8(FILTDATA_0L+2*k), b); err != nil {
		return 0, err
	}
	return uint16(b[1])<<8 | uint16(b[0]), nil
}

// FilteredAll reads len(dst) electrodes starting at 0 in single burst.
func (d *Device) FilteredAll(dst []uint16) error {
	if len(dst) > MaxElectrodes {
		return errors.NotValidf("electrodes=%d", len(dst))
	}
	if len(dst) == 0 {
		return nil
	}
	b := make([]byte, 2*len(dst))
	if err := d.tx(FILTDATA_0L, b); err != nil {
		return err
	}
	for i := range dst {
		dst[i] = uint16(b[2*i+1])<<8 | uint16(b[2*i])
	}
	return nil
}

func (d *Device) ReadRegister(reg uint8) (uint8, error) {
	b := d.buf[:1]
	if err := d.tx(reg, b); err != nil {
		return 0, err
	}
	return b[0], nil
}

func (d *Device) ReadRegisters(reg uint8, dst []byte) error { return d.tx(reg, dst) }

func (d *Device) WriteRegister(reg, value uint8) error {
	if err := d.t.Tx([]byte{reg, value}, nil); err != nil {
		return fault.New(fault.IoError, errors.Annotatef(err, "write reg=%02x value=%02x", reg, value))
	}
	return nil
}

func (d *Device) tx(reg uint8, r []byte) error {
	if err := d.t.Tx([]byte{reg}, r); err != nil {
		return fault.New(fault.IoError, errors.Annotatef(err, "read reg=%02x len=%d", reg, len(r)))
	}
	return nil
}

func (d *Device) sleep(td time.Duration) {
	if d.Sleep != nil {
		d.Sleep(td)
		return
	}
	time.Sleep(td)
}
