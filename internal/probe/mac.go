package probe

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidMAC = errors.New("invalid MAC address")

// Second hex digit of the first octet for which the locally administered bit
// is set and the multicast bit is clear.
const randomNibbles = "26AE"

// IsRandomMAC reports whether mac is a locally administered (randomized)
// address. mac must be six hex octets, colon-delimited or bare.
func IsRandomMAC(mac string) (bool, error) {
	digits, err := normalizeMAC(mac)
	if err != nil {
		return false, err
	}
	second := strings.ToUpper(digits[1:2])
	return strings.Contains(randomNibbles, second), nil
}

func normalizeMAC(mac string) (string, error) {
	var digits string
	switch len(mac) {
	case 12:
		digits = mac
	case 17:
		var b strings.Builder
		for i := 0; i < 6; i++ {
			if i > 0 && mac[i*3-1] != ':' {
				return "", fmt.Errorf("%w: %q", ErrInvalidMAC, mac)
			}
			b.WriteString(mac[i*3 : i*3+2])
		}
		digits = b.String()
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMAC, mac)
	}

	if _, err := hex.DecodeString(digits); err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidMAC, mac)
	}
	return digits, nil
}
