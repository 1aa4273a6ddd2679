package chain

import "strings"

// IsAddress reports whether s looks like a 20-byte hex chain address.
func IsAddress(s string) bool {
	if len(s) != 42 || !strings.HasPrefix(s, "0x") {
		return false
	}
	for _, c := range s[2:] {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

// NormalizeAddress lower-cases an address so it can be compared and stored
// consistently. Non-addresses are returned unchanged.
func NormalizeAddress(s string) string {
	if !IsAddress(s) {
		return s
	}
	return strings.ToLower(s)
}

// ShortAddress renders the usual 0x1234...abcd abbreviation for messages.
func ShortAddress(s string) string {
	if len(s) < 10 {
		return s
	}
	return s[:6] + "..." + s[len(s)-4:]
}
