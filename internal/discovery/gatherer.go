// File: internal/discovery/gatherer.go (complete file)

package discovery

import (
	"context"
	"strings"
)

type CandidateType string

const (
	TypeHost  CandidateType = "host"
	TypeSrflx CandidateType = "srflx"
	TypePrflx CandidateType = "prflx"
	TypeRelay CandidateType = "relay"
)

// Candidate is one gathered connectivity candidate. Only server-reflexive
// candidates carry the caller's public address.
type Candidate struct {
	Type    CandidateType
	Address string
	Port    int
	Server  string
}

// Gatherer runs one candidate-gathering session against servers. It calls
// emit for each candidate and returns once gathering reports end of
// candidates, or when ctx is done. emit is never called after Gather returns.
type Gatherer interface {
	Gather(ctx context.Context, servers []string, emit func(Candidate)) error
}

// GathererFunc adapts a plain function to Gatherer.
type GathererFunc func(ctx context.Context, servers []string, emit func(Candidate)) error

func (f GathererFunc) Gather(ctx context.Context, servers []string, emit func(Candidate)) error {
	return f(ctx, servers, emit)
}

// hostPort strips a "stun:" / "stuns:" scheme and any query from a
// reflection server URL, leaving host:port.
func hostPort(server string) string {
	s := strings.TrimSpace(server)
	for _, p := range []string{"stun:", "stuns:"} {
		if strings.HasPrefix(strings.ToLower(s), p) {
			s = s[len(p):]
			break
		}
	}
	if i := strings.IndexByte(s, '?'); i >= 0 {
		s = s[:i]
	}
	return s
}

// stunURL is the inverse of hostPort for gatherers that want URLs.
func stunURL(server string) string {
	s := strings.TrimSpace(server)
	l := strings.ToLower(s)
	if strings.HasPrefix(l, "stun:") || strings.HasPrefix(l, "stuns:") {
		return s
	}
	return "stun:" + s
}
