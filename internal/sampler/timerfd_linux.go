package sampler

import (
	"os"
	"sync"
	"time"
	"unsafe"

	"github.com/graspkit/touchfwd/internal/fault"
	"golang.org/x/sys/unix"
)

type timerFD struct {
	fd        int
	closeOnce sync.Once
}

// NewTimerFD arms CLOCK_MONOTONIC timerfd with first expiration one
// interval from now.
func NewTimerFD(interval time.Duration) (Ticker, error) {
	fd, err := unix.TimerfdCreate(unix.CLOCK_MONOTONIC, unix.TFD_CLOEXEC)
	if err != nil {
		return nil, fault.New(fault.TimerFailure, os.NewSyscallError("timerfd_create", err))
	}
	ts := unix.NsecToTimespec(int64(interval))
	spec := unix.ItimerSpec{Interval: ts, Value: ts}
	if err = unix.TimerfdSettime(fd, 0, &spec, nil); err != nil {
		_ = unix.Close(fd)
		return nil, fault.New(fault.TimerFailure, os.NewSyscallError("timerfd_settime", err))
	}
	return &timerFD{fd: fd}, nil
}

func (t *timerFD) Wait() (uint64, error) {
	var count uint64
	b := (*[8]byte)(unsafe.Pointer(&count))[:]
	for {
		n, err := unix.Read(t.fd, b)
		switch {
		case err == unix.EINTR:
			continue
		case err != nil:
			return 0, fault.New(fault.TimerFailure, os.NewSyscallError("read timerfd", err))
		case n != len(b):
			return 0, fault.Newf(fault.TimerFailure, "timerfd short read=%d", n)
		}
		return count, nil
	}
}

func (t *timerFD) Close() error {
	var err error
	t.closeOnce.Do(func() { err = unix.Close(t.fd) })
	return err
}
