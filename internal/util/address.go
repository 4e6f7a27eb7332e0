package util

import (
	"encoding/hex"
	"regexp"
	"strings"

	"golang.org/x/crypto/sha3"
)

var hexAddressPattern = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)

// IsHexAddress checks if s is a syntactically valid 20-byte hex address.
// Purely syntactic, no chain lookup; callers must reject before any fetch.
func IsHexAddress(s string) bool {
	return hexAddressPattern.MatchString(s)
}

// ShortAddress returns the 0x1234...abcd display form of an address
func ShortAddress(address string) string {
	if len(address) < 10 {
		return address
	}
	return address[:6] + "..." + address[len(address)-4:]
}

// ChecksumAddress returns the EIP-55 mixed-case form of a hex address.
// Invalid input is returned unchanged.
func ChecksumAddress(address string) string {
	if !IsHexAddress(address) {
		return address
	}

	lower := strings.ToLower(address[2:])

	hash := sha3.NewLegacyKeccak256()
	hash.Write([]byte(lower))
	digest := hex.EncodeToString(hash.Sum(nil))

	var b strings.Builder
	b.WriteString("0x")
	for i, c := range lower {
		if c >= 'a' && c <= 'f' && digest[i] >= '8' {
			b.WriteByte(byte(c) - 'a' + 'A')
		} else {
			b.WriteByte(byte(c))
		}
	}
	return b.String()
}
