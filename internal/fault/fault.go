// Package fault classifies forwarder errors into a fixed set of kinds.
// Kinded errors survive any number of juju errors.Annotate/Trace layers:
// classification uses errors.Cause.
package fault

import (
	"fmt"

	"github.com/juju/errors"
)

type Kind uint8

const (
	Unknown Kind = iota
	BusOpen
	SlaveBind
	IoError
	NameResolution
	ConnectTimeout
	ConnectRefused
	SendBroken
	SendOther
	FrameTooLarge
	TimerFailure
	Disconnected
	Config
)

var kindNames = [...]string{
	Unknown:        "unknown",
	BusOpen:        "i2c bus open",
	SlaveBind:      "i2c slave bind",
	IoError:        "i2c io",
	NameResolution: "name resolution",
	ConnectTimeout: "connect timeout",
	ConnectRefused: "connect refused",
	SendBroken:     "connection lost",
	SendOther:      "send failed",
	FrameTooLarge:  "frame too large",
	TimerFailure:   "timer",
	Disconnected:   "not connected",
	Config:         "config",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// New returns err tagged with kind. err may be nil.
func New(kind Kind, err error) error {
	return errors.Trace(&Error{Kind: kind, Err: err})
}

func Newf(kind Kind, format string, args ...interface{}) error {
	return errors.Trace(&Error{Kind: kind, Err: fmt.Errorf(format, args...)})
}

// KindOf returns Unknown for nil and unclassified errors.
func KindOf(err error) Kind {
	if err == nil {
		return Unknown
	}
	if e, ok := errors.Cause(err).(*Error); ok {
		return e.Kind
	}
	return Unknown
}

func Is(err error, kind Kind) bool { return err != nil && KindOf(err) == kind }
