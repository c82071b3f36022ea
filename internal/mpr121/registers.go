package mpr121

// Default I2C addresses, selected by ADDR pin.
const (
	AddressGND = 0x5A
	AddressVDD = 0x5B
	AddressSDA = 0x5C
	AddressSCL = 0x5D
)

// Registers. Names follow the datasheet.
const (
	TOUCHSTATUS_L = 0x00
	TOUCHSTATUS_H = 0x01
	FILTDATA_0L   = 0x04
	FILTDATA_0H   = 0x05
	BASELINE_0    = 0x1E
	TOUCHTH_0     = 0x41
	RELEASETH_0   = 0x42
	CONFIG1       = 0x5C
	CONFIG2       = 0x5D
	ECR           = 0x5E
	SOFTRESET     = 0x80
)

const (
	MaxElectrodes = 12

	DefaultTouchThreshold   = 12
	DefaultReleaseThreshold = 6
	DefaultElectrodes       = 6
)
