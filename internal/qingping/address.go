package qingping

import (
	"fmt"
	"regexp"
	"strings"
)

// macLength is the number of hex digits in a normalised MAC address.
const macLength = 12

// macPattern matches a normalised MAC: exactly 12 uppercase hex digits.
var macPattern = regexp.MustCompile(`^[0-9A-F]{12}$`)

// NormalizeMAC canonicalises a MAC address to 12 uppercase hex digits.
//
// Accepted input may contain ":", "-" or "." separators and mixed case.
// Normalisation is idempotent: normalising an already-normalised MAC
// returns it unchanged.
//
// Parameters:
//   - raw: MAC address in any common notation
//
// Returns:
//   - string: Normalised MAC (e.g., "AABBCCDDEEFF")
//   - error: ErrInvalidMAC if the result is not 12 hex digits
func NormalizeMAC(raw string) (string, error) {
	mac := strings.TrimSpace(raw)
	mac = strings.NewReplacer(":", "", "-", "", ".", "").Replace(mac)
	mac = strings.ToUpper(mac)

	if !macPattern.MatchString(mac) {
		return "", fmt.Errorf("%w: %q", ErrInvalidMAC, raw)
	}
	return mac, nil
}

// FormatMAC renders a normalised MAC in colon notation for display.
//
// Example: "AABBCCDDEEFF" -> "AA:BB:CC:DD:EE:FF"
//
// The input must already be normalised; use NormalizeMAC first for
// untrusted input.
func FormatMAC(mac string) string {
	if len(mac) != macLength {
		return mac
	}
	var b strings.Builder
	for i := 0; i < macLength; i += 2 {
		if i > 0 {
			b.WriteByte(':')
		}
		b.WriteString(mac[i : i+2])
	}
	return b.String()
}

// ValidMAC reports whether mac is a normalised 12-hex-digit MAC.
func ValidMAC(mac string) bool {
	return macPattern.MatchString(mac)
}
