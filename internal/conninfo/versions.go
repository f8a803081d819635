// File: internal/conninfo/versions.go (complete file)

package conninfo

import "strings"

type HTTPVersion int32

const (
	HTTPUnspecified HTTPVersion = iota
	HTTP10
	HTTP11
	HTTP2
	HTTP3
)

type TLSVersion int32

const (
	TLSUnspecified TLSVersion = iota
	TLS10
	TLS11
	TLS12
	TLS13
)

func (v HTTPVersion) String() string {
	switch v {
	case HTTP10:
		return "1.0"
	case HTTP11:
		return "1.1"
	case HTTP2:
		return "2"
	case HTTP3:
		return "3"
	default:
		return "?"
	}
}

func (v TLSVersion) String() string {
	switch v {
	case TLS10:
		return "1.0"
	case TLS11:
		return "1.1"
	case TLS12:
		return "1.2"
	case TLS13:
		return "1.3"
	default:
		return "?"
	}
}

// Label renders the compact "H2/T1.3" form.
func Label(h HTTPVersion, t TLSVersion) string {
	return "H" + h.String() + "/T" + t.String()
}

// ParseHTTPVersion maps protocol strings such as "HTTP/2" or net/http's
// Request.Proto.
func ParseHTTPVersion(s string) HTTPVersion {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "HTTP/1.0":
		return HTTP10
	case "HTTP/1.1":
		return HTTP11
	case "HTTP/2", "HTTP/2.0":
		return HTTP2
	case "HTTP/3", "HTTP/3.0":
		return HTTP3
	default:
		return HTTPUnspecified
	}
}

// ParseTLSVersion maps "TLSv1.3" style names.
func ParseTLSVersion(s string) TLSVersion {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TLSV1.0", "TLSV1":
		return TLS10
	case "TLSV1.1":
		return TLS11
	case "TLSV1.2":
		return TLS12
	case "TLSV1.3":
		return TLS13
	default:
		return TLSUnspecified
	}
}
