package mpr121

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/graspkit/touchfwd/internal/fault"
	"github.com/juju/errors"
	"golang.org/x/sys/unix"
)

const i2cSlave = 0x0703 // linux/i2c-dev.h

// devTransport talks to /dev/i2c-N character device with slave address
// bound once by I2C_SLAVE ioctl. Register pointer write and data read are
// separate transfers, same as i2c-tools.
type devTransport struct {
	lk   sync.Mutex
	f    *os.File
	path string
	addr uint16
}

func OpenDev(path string, addr uint16) (Transport, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fault.New(fault.BusOpen, errors.Annotatef(err, "path=%s", path))
	}
	if err = unix.IoctlSetInt(int(f.Fd()), i2cSlave, int(addr)); err != nil {
		_ = f.Close()
		return nil, fault.New(fault.SlaveBind, errors.Annotatef(err, "path=%s addr=%#02x", path, addr))
	}
	return &devTransport{f: f, path: path, addr: addr}, nil
}

func (t *devTransport) Tx(w, r []byte) error {
	t.lk.Lock()
	defer t.lk.Unlock()

	if len(w) != 0 {
		n, err := t.f.Write(w)
		if err != nil {
			return err
		}
		if n != len(w) {
			return io.ErrShortWrite
		}
	}
	if len(r) != 0 {
		n, err := t.f.Read(r)
		if err != nil {
			return err
		}
		if n != len(r) {
			return io.ErrUnexpectedEOF
		}
	}
	return nil
}

func (t *devTransport) Close() error {
	t.lk.Lock()
	defer t.lk.Unlock()
	if t.f == nil {
		return nil
	}
	err := t.f.Close()
	t.f = nil
	return err
}

func (t *devTransport) String() string { return fmt.Sprintf("%s@%#02x", t.path, t.addr) }
