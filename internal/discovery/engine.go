// File: internal/discovery/engine.go (complete file)

package discovery

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/baptistax/connscope/internal/ipcodec"
	"github.com/baptistax/connscope/internal/logging"
	"github.com/baptistax/connscope/internal/metrics"
)

var log = logging.Logger("discovery")

// ErrAborted is returned by Discover when Refresh or a newer Discover call
// replaced the session before it completed.
var ErrAborted = errors.New("discovery: session aborted")

type Options struct {
	Gatherer Gatherer
	Servers  []string
	// Timeout bounds a session. When it expires the addresses gathered so far
	// are returned as the session result. Zero disables the bound.
	Timeout time.Duration
	Metrics *metrics.Metrics
}

// Engine owns at most one gathering session at a time. Starting a session
// tears down the previous one first; a torn-down session can no longer
// touch the collected addresses.
type Engine struct {
	opt Options

	// start serialises session turnover.
	start sync.Mutex

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
	done   chan struct{}
	set    ipcodec.Set
}

func NewEngine(opt Options) *Engine {
	return &Engine{opt: opt}
}

// Refresh aborts any in-flight session, waits for it to finish tearing down
// and clears the collected addresses.
func (e *Engine) Refresh() {
	e.start.Lock()
	defer e.start.Unlock()
	e.abortLocked()
}

// abortLocked retires the current generation before cancelling, so the
// torn-down session reports ErrAborted and its late candidates are dropped.
func (e *Engine) abortLocked() {
	e.mu.Lock()
	cancel, done := e.cancel, e.done
	e.cancel, e.done = nil, nil
	e.gen++
	e.set = ipcodec.Set{}
	e.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// Discover runs a fresh session and returns the addresses it found, v4 and v6
// each in discovery order. Malformed candidate addresses are logged and
// skipped.
func (e *Engine) Discover(ctx context.Context) (ipcodec.Set, error) {
	e.start.Lock()
	e.abortLocked()

	sctx, cancel := context.WithCancel(ctx)
	if e.opt.Timeout > 0 {
		var tcancel context.CancelFunc
		sctx, tcancel = context.WithTimeout(sctx, e.opt.Timeout)
		base := cancel
		cancel = func() { tcancel(); base() }
	}
	done := make(chan struct{})

	e.mu.Lock()
	e.gen++
	gen := e.gen
	e.cancel, e.done = cancel, done
	e.set = ipcodec.Set{}
	e.mu.Unlock()
	e.start.Unlock()

	log.Debug("session started", "gen", gen, "servers", len(e.opt.Servers))
	err := e.opt.Gatherer.Gather(sctx, e.opt.Servers, func(c Candidate) { e.accept(gen, c) })
	timedOut := errors.Is(sctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil

	e.mu.Lock()
	current := e.gen == gen
	var out ipcodec.Set
	if current {
		out = e.set.Clone()
		if e.done == done {
			e.cancel, e.done = nil, nil
		}
	}
	e.mu.Unlock()
	cancel()
	close(done)

	switch {
	case !current:
		e.opt.Metrics.Session("aborted")
		return ipcodec.Set{}, ErrAborted
	case timedOut:
		log.Warn("session timed out, keeping partial result", "gen", gen, "addresses", out.Len())
		e.opt.Metrics.Session("timeout")
		return out, nil
	case ctx.Err() != nil:
		e.opt.Metrics.Session("cancelled")
		return ipcodec.Set{}, ctx.Err()
	case err != nil:
		e.opt.Metrics.Session("error")
		return ipcodec.Set{}, err
	}
	log.Debug("session complete", "gen", gen, "v4", len(out.V4), "v6", len(out.V6))
	e.opt.Metrics.Session("complete")
	return out, nil
}

func (e *Engine) accept(gen uint64, c Candidate) {
	if c.Type != TypeSrflx || c.Address == "" {
		e.opt.Metrics.Candidate("ignored")
		return
	}

	a, err := ipcodec.Parse(c.Address)
	if err != nil {
		log.Warn("skipping malformed candidate address", "address", c.Address, "err", err)
		e.opt.Metrics.Candidate("malformed")
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gen != gen {
		e.opt.Metrics.Candidate("stale")
		return
	}
	if e.set.Add(a) {
		log.Debug("address discovered", "address", a.String(), "server", c.Server)
		e.opt.Metrics.Candidate("accepted")
		return
	}
	e.opt.Metrics.Candidate("duplicate")
}

// Addresses returns a copy of what the current session has collected so far.
func (e *Engine) Addresses() ipcodec.Set {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.set.Clone()
}

// Close aborts any in-flight session.
func (e *Engine) Close() {
	e.Refresh()
}
