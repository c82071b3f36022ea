//go:build !linux

package mpr121

import (
	"github.com/graspkit/touchfwd/internal/fault"
	"github.com/juju/errors"
)

func OpenDev(path string, addr uint16) (Transport, error) {
	return nil, fault.New(fault.BusOpen, errors.NotSupportedf("i2c character device path=%s", path))
}
