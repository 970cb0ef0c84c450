package common

import (
	"encoding/hex"
	"fmt"
)

// EncodeToString returns the uppercase hex representation of hexBytes with a
// 0x prefix. This is the format used for author and entry identifiers
// throughout the codebase.
func EncodeToString(hexBytes []byte) string {
	return fmt.Sprintf("0x%X", hexBytes)
}

// DecodeFromString converts a hex string with a 0x prefix, as produced by
// EncodeToString, back to a byte slice.
func DecodeFromString(hexString string) ([]byte, error) {
	if len(hexString) < 2 {
		return nil, fmt.Errorf("hex string too short: %q", hexString)
	}
	return hex.DecodeString(hexString[2:])
}
