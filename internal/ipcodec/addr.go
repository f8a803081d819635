// File: internal/ipcodec/addr.go (complete file)

package ipcodec

import "fmt"

type Kind uint8

const (
	KindNone Kind = iota
	KindV4
	KindV6
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindV4:
		return "v4"
	case KindV6:
		return "v6"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Addr is a tagged address: absent, a 32-bit IPv4 value or 16 IPv6 bytes.
// The zero value is the absent address.
type Addr struct {
	kind Kind
	v4   uint32
	v6   [16]byte
}

func V4(v uint32) Addr   { return Addr{kind: KindV4, v4: v} }
func V6(b [16]byte) Addr { return Addr{kind: KindV6, v6: b} }

func (a Addr) Kind() Kind { return a.kind }

func (a Addr) V4() (uint32, bool) { return a.v4, a.kind == KindV4 }

func (a Addr) V6() ([16]byte, bool) { return a.v6, a.kind == KindV6 }

func (a Addr) IsValid() bool { return a.kind != KindNone }

// Equal compares the case first, then the value of that case.
func (a Addr) Equal(b Addr) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNone:
		return true
	case KindV4:
		return a.v4 == b.v4
	case KindV6:
		return a.v6 == b.v6
	default:
		return false
	}
}

func (a Addr) String() string {
	switch a.kind {
	case KindNone:
		return ""
	case KindV4:
		return FormatV4(a.v4)
	case KindV6:
		return FormatV6(a.v6)
	default:
		return ""
	}
}

// Parse classifies s by syntax and converts it to its binary form.
func Parse(s string) (Addr, error) {
	if IsV4(s) {
		v, err := ParseV4(s)
		if err != nil {
			return Addr{}, err
		}
		return V4(v), nil
	}
	b, err := ParseV6(s)
	if err != nil {
		return Addr{}, err
	}
	return V6(b), nil
}

// Set holds discovered addresses in discovery order, one sequence per family.
type Set struct {
	V4 []uint32
	V6 [][16]byte
}

// Add appends a unless an identical value is already present. It reports
// whether the set changed.
func (s *Set) Add(a Addr) bool {
	switch a.kind {
	case KindV4:
		for _, v := range s.V4 {
			if v == a.v4 {
				return false
			}
		}
		s.V4 = append(s.V4, a.v4)
		return true
	case KindV6:
		for _, v := range s.V6 {
			if v == a.v6 {
				return false
			}
		}
		s.V6 = append(s.V6, a.v6)
		return true
	case KindNone:
		return false
	default:
		return false
	}
}

func (s Set) Len() int { return len(s.V4) + len(s.V6) }

func (s Set) Clone() Set {
	out := Set{}
	if len(s.V4) > 0 {
		out.V4 = append([]uint32(nil), s.V4...)
	}
	if len(s.V6) > 0 {
		out.V6 = append([][16]byte(nil), s.V6...)
	}
	return out
}

// Equal compares both sequences position by position.
func (s Set) Equal(o Set) bool {
	if len(s.V4) != len(o.V4) || len(s.V6) != len(o.V6) {
		return false
	}
	for i := range s.V4 {
		if s.V4[i] != o.V4[i] {
			return false
		}
	}
	for i := range s.V6 {
		if s.V6[i] != o.V6[i] {
			return false
		}
	}
	return true
}

// Strings renders v4 first, then v6, each in discovery order.
func (s Set) Strings() []string {
	out := make([]string, 0, s.Len())
	for _, v := range s.V4 {
		out = append(out, FormatV4(v))
	}
	for _, v := range s.V6 {
		out = append(out, FormatV6(v))
	}
	return out
}
