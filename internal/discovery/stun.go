// File: internal/discovery/stun.go (complete file)

package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/pion/stun"
	"golang.org/x/sync/errgroup"
)

// STUNGatherer sends one binding request per server and address family and
// reports each XOR-MAPPED-ADDRESS as a server-reflexive candidate. It needs
// no ICE stack, which makes it the lighter choice on headless hosts.
type STUNGatherer struct {
	// Timeout bounds one request. Zero uses 5s.
	Timeout time.Duration
	// Networks to query, e.g. "udp4" and "udp6". Empty queries both.
	Networks []string
}

var errNoMapping = errors.New("discovery: no mapped address in response")

func (g *STUNGatherer) Gather(ctx context.Context, servers []string, emit func(Candidate)) error {
	networks := g.Networks
	if len(networks) == 0 {
		networks = []string{"udp4", "udp6"}
	}

	var (
		mu      sync.Mutex
		stopped bool
	)
	safeEmit := func(c Candidate) {
		mu.Lock()
		defer mu.Unlock()
		if !stopped {
			emit(c)
		}
	}
	defer func() {
		mu.Lock()
		stopped = true
		mu.Unlock()
	}()

	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(8)
	for _, server := range servers {
		addr := hostPort(server)
		if addr == "" {
			continue
		}
		for _, network := range networks {
			network := network
			eg.Go(func() error {
				c, err := g.query(gctx, network, addr)
				if err != nil {
					log.Debug("stun query failed", "server", addr, "network", network, "err", err)
					return nil
				}
				safeEmit(c)
				return nil
			})
		}
	}
	if err := eg.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func (g *STUNGatherer) query(ctx context.Context, network, server string) (Candidate, error) {
	timeout := g.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, network, server)
	if err != nil {
		return Candidate{}, fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	// Unblock the read if the session is aborted.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetDeadline(deadline)

	req, err := stun.Build(stun.TransactionID, stun.BindingRequest)
	if err != nil {
		return Candidate{}, fmt.Errorf("build request: %w", err)
	}
	if _, err := req.WriteTo(conn); err != nil {
		return Candidate{}, fmt.Errorf("send request: %w", err)
	}

	buf := make([]byte, 1500)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			if ctx.Err() != nil {
				return Candidate{}, ctx.Err()
			}
			return Candidate{}, fmt.Errorf("read response: %w", err)
		}

		res := &stun.Message{Raw: append([]byte(nil), buf[:n]...)}
		if err := res.Decode(); err != nil {
			return Candidate{}, fmt.Errorf("decode response: %w", err)
		}
		// Stray datagrams for another transaction are ignored.
		if res.TransactionID != req.TransactionID {
			continue
		}
		if res.Type != stun.BindingSuccess {
			return Candidate{}, fmt.Errorf("unexpected response %s", res.Type)
		}

		var xor stun.XORMappedAddress
		if err := xor.GetFrom(res); err == nil {
			return Candidate{Type: TypeSrflx, Address: xor.IP.String(), Port: xor.Port, Server: server}, nil
		}
		var mapped stun.MappedAddress
		if err := mapped.GetFrom(res); err == nil {
			return Candidate{Type: TypeSrflx, Address: mapped.IP.String(), Port: mapped.Port, Server: server}, nil
		}
		return Candidate{}, errNoMapping
	}
}
