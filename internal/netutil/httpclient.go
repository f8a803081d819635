// File: internal/netutil/httpclient.go (complete file)

package netutil

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"strings"
	"time"
)

type ClientOptions struct {
	// Family pins dials to "ipv4" or "ipv6"; anything else lets the dialer pick.
	Family string
	// Timeout bounds a whole request. Zero means no client-side timeout; a hung
	// fetch then only ends when its context does.
	Timeout time.Duration
}

func NewHTTPClient(opt ClientOptions) *http.Client {
	dialer := &net.Dialer{
		Timeout:   6 * time.Second,
		KeepAlive: 15 * time.Second,
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialer.DialContext(ctx, DialNetwork(opt.Family, network), addr)
		},
		TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS12},
		ForceAttemptHTTP2:   true,
		MaxIdleConns:        16,
		IdleConnTimeout:     30 * time.Second,
		TLSHandshakeTimeout: 6 * time.Second,
	}

	return &http.Client{
		Timeout:   opt.Timeout,
		Transport: transport,
	}
}

// DialNetwork narrows a generic network ("tcp", "udp") to the pinned family.
func DialNetwork(family, network string) string {
	base := strings.TrimRight(network, "46")
	switch strings.ToLower(family) {
	case "ipv4":
		return base + "4"
	case "ipv6":
		return base + "6"
	default:
		return network
	}
}
