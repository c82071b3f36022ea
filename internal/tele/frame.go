package tele

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/graspkit/touchfwd/internal/fault"
	"github.com/juju/errors"
)

// Fixed length frame understood by the collector:
//
//	offset      size      field
//	0           1         marker '>'
//	1           2         name_len
//	3           name_len  name, ASCII, no terminator
//	3+n         8         timestamp, microseconds
//	11+n        4         data type
//	15+n        4         payload_len
//	19+n        len       payload
//	...                   zero up to FrameSize
const (
	FrameSize   = 128
	FrameMarker = byte('>')
	// marker + name_len + timestamp + type + payload_len
	HeaderSize = 1 + 2 + 8 + 4 + 4
)

var ErrFrameInvalid = fmt.Errorf("frame is invalid")

type Frame [FrameSize]byte

type Record struct {
	Name      string
	Type      DataType
	Timestamp uint64 // microseconds
	Payload   []byte
}

// Len is logical length of serialized record, may exceed FrameSize.
func (r *Record) Len() int { return HeaderSize + len(r.Name) + len(r.Payload) }

func (r *Record) String() string {
	return fmt.Sprintf("(name=%s type=%s time=%d payload=%x)", r.Name, r.Type, r.Timestamp, r.Payload)
}

// MarshalFrame writes r into f and zeroes the rest of f.
// f is left untouched on error.
func MarshalFrame(f *Frame, order binary.ByteOrder, r *Record) error {
	if len(r.Name) > math.MaxUint16 || r.Len() > FrameSize {
		return fault.Newf(fault.FrameTooLarge, "name=%.32s len=%d max=%d", r.Name, r.Len(), FrameSize)
	}
	nameLen := len(r.Name)
	f[0] = FrameMarker
	order.PutUint16(f[1:], uint16(nameLen))
	copy(f[3:], r.Name)
	pos := 3 + nameLen
	order.PutUint64(f[pos:], r.Timestamp)
	order.PutUint32(f[pos+8:], uint32(r.Type))
	order.PutUint32(f[pos+12:], uint32(len(r.Payload)))
	pos += 16
	pos += copy(f[pos:], r.Payload)
	for i := pos; i < FrameSize; i++ {
		f[i] = 0
	}
	return nil
}

// UnmarshalFrame parses one frame. Payload is a copy, b may be reused.
func UnmarshalFrame(order binary.ByteOrder, b []byte) (*Record, error) {
	if len(b) != FrameSize {
		return nil, errors.Annotatef(ErrFrameInvalid, "length=%d expected=%d", len(b), FrameSize)
	}
	if b[0] != FrameMarker {
		return nil, errors.Annotatef(ErrFrameInvalid, "marker=%02x", b[0])
	}
	nameLen := int(order.Uint16(b[1:]))
	if HeaderSize+nameLen > FrameSize {
		return nil, errors.Annotatef(ErrFrameInvalid, "name_len=%d", nameLen)
	}
	r := &Record{Name: string(b[3 : 3+nameLen])}
	pos := 3 + nameLen
	r.Timestamp = order.Uint64(b[pos:])
	r.Type = DataType(order.Uint32(b[pos+8:]))
	payloadLen := order.Uint32(b[pos+12:])
	pos += 16
	if uint32(FrameSize-pos) < payloadLen {
		return nil, errors.Annotatef(ErrFrameInvalid, "name_len=%d payload_len=%d", nameLen, payloadLen)
	}
	r.Payload = append([]byte(nil), b[pos:pos+int(payloadLen)]...)
	return r, nil
}

func ParseByteOrder(s string) (binary.ByteOrder, error) {
	switch strings.ToLower(s) {
	case "", "little", "le":
		return binary.LittleEndian, nil
	case "big", "be":
		return binary.BigEndian, nil
	}
	return nil, errors.NotValidf("byte order=%s", s)
}

// Shorts encodes 16-bit values as contiguous payload.
func Shorts(order binary.ByteOrder, vs ...uint16) []byte {
	b := make([]byte, 2*len(vs))
	for i, v := range vs {
		order.PutUint16(b[2*i:], v)
	}
	return b
}

func ParseShorts(order binary.ByteOrder, b []byte) ([]uint16, error) {
	if len(b)%2 != 0 {
		return nil, errors.NotValidf("short payload length=%d", len(b))
	}
	vs := make([]uint16, len(b)/2)
	for i := range vs {
		vs[i] = order.Uint16(b[2*i:])
	}
	return vs, nil
}
