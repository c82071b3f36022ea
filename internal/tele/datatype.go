package tele

import "fmt"

// DataType ordinals are part of the collector protocol. Never reorder.
type DataType uint32

const (
	TypeByte DataType = iota
	TypeString
	TypeFloat
	TypeDouble
	TypeShort
	TypeInt
	TypeDG
	TypeScript
	TypeTriggerScript
	TypeEvt
	TypeNone
	TypeUnknown
)

var dataTypeNames = [...]string{
	TypeByte:          "BYTE",
	TypeString:        "STRING",
	TypeFloat:         "FLOAT",
	TypeDouble:        "DOUBLE",
	TypeShort:         "SHORT",
	TypeInt:           "INT",
	TypeDG:            "DG",
	TypeScript:        "SCRIPT",
	TypeTriggerScript: "TRIGGER_SCRIPT",
	TypeEvt:           "EVT",
	TypeNone:          "NONE",
	TypeUnknown:       "UNKNOWN",
}

func (t DataType) String() string {
	if int(t) < len(dataTypeNames) {
		return dataTypeNames[t]
	}
	return fmt.Sprintf("DataType(%d)", uint32(t))
}
