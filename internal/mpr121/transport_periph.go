package mpr121

import (
	"strings"

	"github.com/graspkit/touchfwd/internal/fault"
	"github.com/juju/errors"
	"periph.io/x/periph/conn/i2c"
	"periph.io/x/periph/conn/i2c/i2creg"
	"periph.io/x/periph/host"
)

const (
	TransportDev    = "dev"
	TransportPeriph = "periph"
	TransportMock   = "mock"
)

type periphTransport struct {
	bus i2c.BusCloser
	dev *i2c.Dev
}

// OpenPeriph uses periph.io bus registry. bus accepts registry names
// ("1", "I2C1") and character device paths ("/dev/i2c-1").
func OpenPeriph(bus string, addr uint16) (Transport, error) {
	if _, err := host.Init(); err != nil {
		return nil, fault.New(fault.BusOpen, errors.Annotate(err, "periph/init"))
	}
	name := strings.TrimPrefix(bus, "/dev/i2c-")
	b, err := i2creg.Open(name)
	if err != nil {
		return nil, fault.New(fault.BusOpen, errors.Annotatef(err, "periph bus=%s", name))
	}
	return &periphTransport{bus: b, dev: &i2c.Dev{Bus: b, Addr: addr}}, nil
}

func (t *periphTransport) Tx(w, r []byte) error { return t.dev.Tx(w, r) }
func (t *periphTransport) Close() error         { return t.bus.Close() }
func (t *periphTransport) String() string       { return t.dev.String() }
