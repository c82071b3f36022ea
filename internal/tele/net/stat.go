package telenet

// Values are read and modified atomically, but not consistently.

import (
	"expvar"
	"fmt"

	"github.com/graspkit/touchfwd/helpers/atomic_clock"
)

type Stat struct {
	Connect          expvar.Int
	ConnectError     expvar.Int
	Disconnect       expvar.Int
	SendCount        expvar.Int
	SendSize         expvar.Int
	SendError        expvar.Int
	DropDisconnected expvar.Int
	DropTooLarge     expvar.Int

	LastConnect atomic_clock.Clock
	LastSend    atomic_clock.Clock
}

func (s *Stat) String() string {
	return fmt.Sprintf(`{"connect":%d,"connect_error":%d,"disconnect":%d,"send.count":%d,"send.size":%d,"send.error":%d,"drop.disconnected":%d,"drop.too_large":%d,"last_send":%d}`,
		s.Connect.Value(), s.ConnectError.Value(), s.Disconnect.Value(),
		s.SendCount.Value(), s.SendSize.Value(), s.SendError.Value(),
		s.DropDisconnected.Value(), s.DropTooLarge.Value(),
		s.LastSend.Unix())
}
