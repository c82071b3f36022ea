package helpers

import (
	"encoding/hex"
	"strings"
)

// MustHex decodes hex string, ignoring spaces. Panics on invalid input.
func MustHex(s string) []byte {
	b, err := hex.DecodeString(strings.ReplaceAll(s, " ", ""))
	if err != nil {
		panic(err)
	}
	return b
}
