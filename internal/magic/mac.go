// Package magic implements Wake-on-LAN MAC address handling and magic
// packet construction.
package magic

import (
	"encoding/hex"
	"fmt"
	"net"
	"strings"
)

// MAC is a 6-byte hardware address.
type MAC [6]byte

// ParseMAC parses a MAC address given in colon-separated, hyphen-separated
// or bare hexadecimal notation, case-insensitive. Mixing colon and hyphen
// separators within one address is rejected, as is anything that does not
// reduce to exactly 12 hex digits.
func ParseMAC(s string) (MAC, error) {
	var mac MAC

	if s == "" {
		return mac, fmt.Errorf("empty MAC address")
	}

	hasColon := strings.ContainsRune(s, ':')
	hasHyphen := strings.ContainsRune(s, '-')
	if hasColon && hasHyphen {
		return mac, fmt.Errorf("mixed separators in MAC address %q", s)
	}

	clean := strings.NewReplacer(":", "", "-", "").Replace(s)
	if len(clean) != 12 {
		return mac, fmt.Errorf("MAC address %q must contain 12 hex digits, got %d", s, len(clean))
	}

	raw, err := hex.DecodeString(clean)
	if err != nil {
		return mac, fmt.Errorf("invalid hex digits in MAC address %q", s)
	}

	copy(mac[:], raw)
	return mac, nil
}

// String returns the canonical uppercase colon-separated form. It is the
// inverse of ParseMAC for any address round-tripped through canonical form.
func (m MAC) String() string {
	return fmt.Sprintf("%02X:%02X:%02X:%02X:%02X:%02X", m[0], m[1], m[2], m[3], m[4], m[5])
}

// HardwareAddr returns the address as a net.HardwareAddr.
func (m MAC) HardwareAddr() net.HardwareAddr {
	return net.HardwareAddr(m[:])
}

// IsDegenerate reports whether the address is all-zero or the broadcast
// address FF:FF:FF:FF:FF:FF. The codec accepts both; rejecting them is a
// policy decision for the relay boundary, not the parser.
func IsDegenerate(m MAC) bool {
	allZero := true
	allFF := true
	for _, b := range m {
		if b != 0x00 {
			allZero = false
		}
		if b != 0xFF {
			allFF = false
		}
	}
	return allZero || allFF
}
