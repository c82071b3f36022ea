//go:build unix

package telenet

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// peek reports remote half-close without consuming received data.
// EAGAIN means nothing to read and connection is fine.
func peek(c syscall.Conn) (closed bool, err error) {
	rc, err := c.SyscallConn()
	if err != nil {
		return false, err
	}
	var n int
	var rerr error
	var b [1]byte
	err = rc.Read(func(fd uintptr) bool {
		n, _, rerr = unix.Recvfrom(int(fd), b[:], unix.MSG_PEEK|unix.MSG_DONTWAIT)
		return true
	})
	if err != nil {
		return false, err
	}
	switch rerr {
	case nil:
		return n == 0, nil
	case unix.EAGAIN, unix.EINTR:
		return false, nil
	}
	return false, rerr
}
