// File: internal/metadata/origin.go (complete file)

package metadata

import (
	"crypto/tls"
	"encoding/json"
	"net"
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"

	"github.com/baptistax/connscope/internal/conninfo"
	"github.com/baptistax/connscope/internal/ipcodec"
)

// Describer builds the record for one request. Returning nil (or an error)
// makes the origin answer with an empty message, the soft-failure shape.
type Describer func(r *http.Request) (*conninfo.Snapshot, error)

// Origin serves the metadata, airport and version endpoints. It is a local
// stand-in for the real origin and a fixture for tests.
type Origin struct {
	Describe Describer
	Airports map[string][2]float64
	Version  func() string

	MetadataPath string
	AirportPath  string
	VersionPath  string
}

func (o *Origin) Handler() http.Handler {
	r := httprouter.New()
	r.GET(o.MetadataPath, o.serveInfo)
	r.GET(o.AirportPath, o.serveAirport)
	r.GET(o.VersionPath, o.serveVersion)
	return r
}

func (o *Origin) serveInfo(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var msg conninfo.Message

	describe := o.Describe
	if describe == nil {
		describe = DescribeRequest
	}
	info, err := describe(r)
	if err != nil {
		log.Warn("describe request failed, answering empty", "err", err)
	} else if info != nil {
		msg.Info = info
		if _, ok := r.URL.Query()[HeadersParam]; ok {
			h := conninfo.HeadersFromRequest(r.Header)
			msg.Headers = &h
		}
	}

	w.Header().Set("Content-Type", ContentType)
	_, _ = w.Write(conninfo.EncodeMessage(msg))
}

func (o *Origin) serveAirport(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	pair := [2]float64{}
	if v, ok := o.Airports[strings.ToUpper(r.URL.Query().Get("code"))]; ok {
		pair = v
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(pair)
}

func (o *Origin) serveVersion(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	v := ""
	if o.Version != nil {
		v = o.Version()
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write([]byte(v))
}

// DescribeRequest fills what a plain HTTP server can observe: the client
// address (X-Real-IP first, then the peer address) and the HTTP and TLS
// versions. An address that does not parse is logged and left absent.
func DescribeRequest(r *http.Request) (*conninfo.Snapshot, error) {
	s := &conninfo.Snapshot{
		HTTP: conninfo.ParseHTTPVersion(r.Proto),
		TLS:  tlsVersion(r.TLS),
	}

	ip := strings.TrimSpace(r.Header.Get("X-Real-IP"))
	if ip == "" {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err == nil {
			ip = host
		}
	}
	if ip != "" {
		a, err := ipcodec.Parse(ip)
		if err != nil {
			log.Warn("undecodable client address", "ip", ip, "err", err)
		} else {
			s.ServerAddr = a
		}
	}
	return s, nil
}

func tlsVersion(cs *tls.ConnectionState) conninfo.TLSVersion {
	if cs == nil {
		return conninfo.TLSUnspecified
	}
	switch cs.Version {
	case tls.VersionTLS10:
		return conninfo.TLS10
	case tls.VersionTLS11:
		return conninfo.TLS11
	case tls.VersionTLS12:
		return conninfo.TLS12
	case tls.VersionTLS13:
		return conninfo.TLS13
	default:
		return conninfo.TLSUnspecified
	}
}
