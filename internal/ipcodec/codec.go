// File: internal/ipcodec/codec.go (complete file)

package ipcodec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net/netip"
	"strconv"
	"strings"
)

var (
	ErrInvalidV4 = errors.New("ipcodec: invalid ipv4 address")
	ErrInvalidV6 = errors.New("ipcodec: invalid ipv6 address")
)

// IsV4 classifies by syntax only: dotted and colon-free.
func IsV4(s string) bool {
	return !strings.Contains(s, ":") && strings.Contains(s, ".")
}

func ParseV4(s string) (uint32, error) {
	a, err := netip.ParseAddr(strings.TrimSpace(s))
	if err != nil || !a.Is4() {
		return 0, fmt.Errorf("%w: %q", ErrInvalidV4, s)
	}
	b := a.As4()
	return binary.BigEndian.Uint32(b[:]), nil
}

func FormatV4(v uint32) string {
	var b strings.Builder
	b.Grow(15)
	for i := 3; i >= 0; i-- {
		b.WriteString(strconv.Itoa(int(v >> (8 * i) & 0xff)))
		if i > 0 {
			b.WriteByte('.')
		}
	}
	return b.String()
}

// ParseV6 accepts any textual IPv6 form the standard parser understands,
// except zoned addresses, which have no 16-byte representation.
func ParseV6(s string) ([16]byte, error) {
	s = strings.TrimSpace(s)
	if IsV4(s) || strings.Contains(s, "%") {
		return [16]byte{}, fmt.Errorf("%w: %q", ErrInvalidV6, s)
	}
	a, err := netip.ParseAddr(s)
	if err != nil || !a.Is6() {
		return [16]byte{}, fmt.Errorf("%w: %q", ErrInvalidV6, s)
	}
	return a.As16(), nil
}

// FormatV6 renders lowercase hex groups with leading zeros trimmed. The longest
// run of two or more zero groups becomes "::"; the earliest run wins a tie.
func FormatV6(b [16]byte) string {
	var groups [8]uint16
	for i := range groups {
		groups[i] = binary.BigEndian.Uint16(b[2*i:])
	}

	bestStart, bestLen := -1, 1
	for i := 0; i < len(groups); {
		if groups[i] != 0 {
			i++
			continue
		}
		j := i
		for j < len(groups) && groups[j] == 0 {
			j++
		}
		if j-i > bestLen {
			bestStart, bestLen = i, j-i
		}
		i = j
	}

	var sb strings.Builder
	sb.Grow(39)
	for i := 0; i < len(groups); i++ {
		if i == bestStart {
			sb.WriteString("::")
			i += bestLen - 1
			continue
		}
		if i > 0 && i != bestStart+bestLen {
			sb.WriteByte(':')
		}
		sb.WriteString(strconv.FormatUint(uint64(groups[i]), 16))
	}
	return sb.String()
}
