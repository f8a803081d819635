// File: internal/conninfo/share.go (complete file)

package conninfo

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// ShareParam is the fragment key carrying a share token ("#conn=<token>").
const ShareParam = "conn"

func EncodeBytes(b []byte) string {
	return base64.URLEncoding.EncodeToString(b)
}

// DecodeBytes accepts url-safe base64 with or without padding.
func DecodeBytes(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, "=") {
		return base64.URLEncoding.DecodeString(s)
	}
	return base64.RawURLEncoding.DecodeString(s)
}

func ShareToken(r Repr) string {
	return EncodeBytes(EncodeRepr(r))
}

// ParseShareToken accepts a bare token, "conn=<token>" or a full link whose
// fragment carries the token.
func ParseShareToken(s string) (Repr, error) {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '#'); i >= 0 {
		s = s[i+1:]
	}
	for _, part := range strings.Split(s, "&") {
		if v, ok := strings.CutPrefix(part, ShareParam+"="); ok {
			s = v
			break
		}
	}

	b, err := DecodeBytes(s)
	if err != nil {
		return Repr{}, fmt.Errorf("%w: share token: %v", ErrMalformed, err)
	}
	return DecodeRepr(b)
}

func ShareFragment(r Repr) string {
	return "#" + ShareParam + "=" + ShareToken(r)
}
