// File: internal/netwatch/watcher.go (complete file)

package netwatch

import (
	"context"
	"net/netip"
	"slices"
	"strings"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/baptistax/connscope/internal/logging"
	"github.com/baptistax/connscope/internal/netutil"
)

var log = logging.Logger("netwatch")

type Kind string

const (
	// Changed: the set of local addresses moved.
	Changed Kind = "changed"
	// Down: no usable address is left.
	Down Kind = "down"
)

type Change struct {
	Kind        Kind
	Fingerprint string
}

// AddrsFunc lists local addresses per interface.
type AddrsFunc func() (map[string][]netip.Addr, error)

type Options struct {
	Interval time.Duration
	Clock    clock.Clock
	Addrs    AddrsFunc
}

// Watcher polls the local interfaces and reports when their fingerprint
// moves.
type Watcher struct {
	opt Options
}

func New(opt Options) *Watcher {
	if opt.Interval <= 0 {
		opt.Interval = 2 * time.Second
	}
	if opt.Clock == nil {
		opt.Clock = clock.New()
	}
	if opt.Addrs == nil {
		opt.Addrs = netutil.InterfaceAddrs
	}
	return &Watcher{opt: opt}
}

// usable excludes addresses that never carry traffic off the host or link.
// Private ranges count: a LAN change is a network change.
func usable(a netip.Addr) bool {
	a = a.Unmap()
	return a.IsValid() && !a.IsUnspecified() && !a.IsLoopback() && !a.IsMulticast() &&
		!a.IsLinkLocalUnicast()
}

// Fingerprint is a stable rendering of the usable addresses; empty means
// none.
func Fingerprint(all map[string][]netip.Addr) string {
	var parts []string
	for name, addrs := range all {
		for _, a := range addrs {
			if usable(a) {
				parts = append(parts, name+"="+a.Unmap().String())
			}
		}
	}
	slices.Sort(parts)
	return strings.Join(parts, ",")
}

func (w *Watcher) sample() (string, bool) {
	all, err := w.opt.Addrs()
	if err != nil {
		log.Debug("listing interfaces failed", "err", err)
		return "", false
	}
	return Fingerprint(all), true
}

// Run samples until ctx is done. The first sample is the baseline and is
// not reported. Down is reported once per outage.
func (w *Watcher) Run(ctx context.Context, emit func(Change)) error {
	last, _ := w.sample()
	down := last == ""

	t := w.opt.Clock.Ticker(w.opt.Interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}

		fp, ok := w.sample()
		if !ok || fp == last {
			continue
		}
		last = fp
		if fp == "" {
			if !down {
				down = true
				log.Info("no usable address left")
				emit(Change{Kind: Down})
			}
			continue
		}
		down = false
		log.Info("local addresses changed", "fingerprint", fp)
		emit(Change{Kind: Changed, Fingerprint: fp})
	}
}
