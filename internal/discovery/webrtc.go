// File: internal/discovery/webrtc.go (complete file)

package discovery

import (
	"context"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"
)

// WebRTCGatherer harvests candidates by opening a peer connection that is
// never connected: an unused data channel plus a local offer is enough to
// start ICE gathering against the configured servers.
type WebRTCGatherer struct {
	// API lets callers supply a configured webrtc.API (setting engine,
	// network types). Nil uses the package defaults.
	API *webrtc.API
}

func (g *WebRTCGatherer) newPeerConnection(cfg webrtc.Configuration) (*webrtc.PeerConnection, error) {
	if g.API != nil {
		return g.API.NewPeerConnection(cfg)
	}
	return webrtc.NewPeerConnection(cfg)
}

func (g *WebRTCGatherer) Gather(ctx context.Context, servers []string, emit func(Candidate)) error {
	urls := make([]string, 0, len(servers))
	for _, s := range servers {
		urls = append(urls, stunURL(s))
	}

	pc, err := g.newPeerConnection(webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{{URLs: urls}},
	})
	if err != nil {
		return fmt.Errorf("discovery: new peer connection: %w", err)
	}

	var (
		mu      sync.Mutex
		stopped bool
		done    = make(chan struct{})
		once    sync.Once
	)
	// After shut, late callbacks are inert and the connection is closed.
	shut := func() {
		once.Do(func() {
			mu.Lock()
			stopped = true
			mu.Unlock()
			_ = pc.Close()
		})
	}
	defer shut()

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		mu.Lock()
		defer mu.Unlock()
		if stopped {
			return
		}
		if c == nil {
			stopped = true
			close(done)
			return
		}
		emit(Candidate{
			Type:    candidateType(c.Typ),
			Address: c.Address,
			Port:    int(c.Port),
		})
	})

	if _, err := pc.CreateDataChannel("", nil); err != nil {
		return fmt.Errorf("discovery: data channel: %w", err)
	}
	offer, err := pc.CreateOffer(nil)
	if err != nil {
		return fmt.Errorf("discovery: create offer: %w", err)
	}
	if err := pc.SetLocalDescription(offer); err != nil {
		return fmt.Errorf("discovery: set local description: %w", err)
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func candidateType(t webrtc.ICECandidateType) CandidateType {
	switch t {
	case webrtc.ICECandidateTypeHost:
		return TypeHost
	case webrtc.ICECandidateTypeSrflx:
		return TypeSrflx
	case webrtc.ICECandidateTypePrflx:
		return TypePrflx
	case webrtc.ICECandidateTypeRelay:
		return TypeRelay
	default:
		return CandidateType(t.String())
	}
}
