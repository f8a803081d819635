// File: internal/swcache/controller.go (complete file)

package swcache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/baptistax/connscope/internal/logging"
	"github.com/baptistax/connscope/internal/metrics"
)

var log = logging.Logger("swcache")

var (
	ErrUnrecognizedMessage = errors.New("swcache: unrecognized message")
	// ErrUpstream marks a failed request to the origin.
	ErrUpstream = errors.New("swcache: origin unreachable")
)

const (
	DefaultVersionHeader = "X-Mlv"
	DefaultVersionPath   = "/meta/version"

	indexKey   = "/index-raw.html"
	faviconURL = "/favicon.png"
	pfpURL     = "/pfp.jpg"
)

type Outcome string

const (
	// Cached: served from the cache.
	Cached Outcome = "cached"
	// Stored: fetched fresh, stored and served from the stored copy.
	Stored Outcome = "stored"
	// Network: fetched and passed through without caching.
	Network Outcome = "network"
	// Decline: not handled (non-GET, or no version known); the caller goes
	// to the network itself.
	Decline Outcome = "decline"
	// Miss: offline with nothing cached; the caller falls back to the
	// network, which is expected to fail.
	Miss Outcome = "miss"
)

// Fallback reports whether the caller has to make the request itself.
func (o Outcome) Fallback() bool { return o == Decline || o == Miss }

type Result struct {
	Outcome  Outcome
	Response *Asset
}

type Options struct {
	// Origin is the base URL assets and the version tag are fetched from.
	Origin      string
	VersionPath string
	HTTP        *http.Client

	Assets   AssetStore
	Versions VersionStore

	// Online reports reachability. Nil tracks it from the controller's own
	// origin requests.
	Online func() bool

	VersionHeader string
	KeepHeaders   []string

	// Browser describes a User-Agent for the request-info template slot.
	Browser func(userAgent string) string

	Metrics *metrics.Metrics
}

type Controller struct {
	opt     Options
	syncs   singleflight.Group
	offline atomic.Bool
}

func New(opt Options) *Controller {
	if opt.HTTP == nil {
		opt.HTTP = http.DefaultClient
	}
	if opt.VersionPath == "" {
		opt.VersionPath = DefaultVersionPath
	}
	if opt.VersionHeader == "" {
		opt.VersionHeader = DefaultVersionHeader
	}
	if len(opt.KeepHeaders) == 0 {
		opt.KeepHeaders = []string{opt.VersionHeader, "Content-Type", "Content-Length"}
	}
	opt.Origin = strings.TrimRight(opt.Origin, "/")
	return &Controller{opt: opt}
}

func (c *Controller) online() bool {
	if c.opt.Online != nil {
		return c.opt.Online()
	}
	return !c.offline.Load()
}

func (c *Controller) observe(err error) {
	if c.opt.Online != nil {
		return
	}
	if err != nil && errors.Is(err, ErrUpstream) {
		c.offline.Store(true)
		return
	}
	if err == nil {
		c.offline.Store(false)
	}
}

// cacheKey maps a request path to its cache key. The root document is kept
// in its unprocessed template form.
func cacheKey(path string) (key string, index bool) {
	if path == "" || path == "/" || path == "/index.html" {
		return indexKey, true
	}
	return path, false
}

// Handle decides how r is answered. Decline and Miss carry no response.
func (c *Controller) Handle(ctx context.Context, r *http.Request) (Result, error) {
	res, err := c.handle(ctx, r, true)
	if err != nil {
		c.opt.Metrics.Cache("error")
		return Result{}, err
	}
	c.opt.Metrics.Cache(string(res.Outcome))
	log.Debug("request handled", "path", r.URL.Path, "outcome", res.Outcome)
	return res, nil
}

func (c *Controller) handle(ctx context.Context, r *http.Request, retry bool) (Result, error) {
	if r.Method != http.MethodGet {
		return Result{Outcome: Decline}, nil
	}

	version, err := c.opt.Versions.Version()
	if err != nil {
		return Result{}, fmt.Errorf("swcache: read version: %w", err)
	}
	if version == "" {
		if retry && c.online() {
			if err := c.Sync(ctx, ""); err != nil {
				log.Warn("version sync failed", "err", err)
			} else {
				return c.handle(ctx, r, false)
			}
		}
		return Result{Outcome: Decline}, nil
	}

	key, index := cacheKey(r.URL.Path)
	cached, ok, err := c.opt.Assets.Get(key)
	if err != nil {
		return Result{}, err
	}

	if !c.online() {
		if !ok {
			return Result{Outcome: Miss}, nil
		}
		return c.finish(r, index, Cached, cached)
	}
	if ok && cached.Header.Get(c.opt.VersionHeader) == version {
		return c.finish(r, index, Cached, cached)
	}

	out, fresh, err := c.store(ctx, version, key, r.URL.RawQuery)
	if err != nil {
		return Result{}, err
	}
	return c.finish(r, index, out, fresh)
}

func (c *Controller) finish(r *http.Request, index bool, out Outcome, a Asset) (Result, error) {
	if index {
		a = c.render(r, a)
	}
	return Result{Outcome: out, Response: &a}, nil
}

// store fetches key from the origin and caches it when the response is
// tagged with the authoritative version.
func (c *Controller) store(ctx context.Context, version, key, query string) (Outcome, Asset, error) {
	u := c.opt.Origin + key
	if query != "" {
		u += "?" + query
	}
	fresh, err := c.get(ctx, u)
	c.observe(err)
	if err != nil {
		return "", Asset{}, err
	}

	tag := fresh.Header.Get(c.opt.VersionHeader)
	if tag == "" {
		return Network, fresh, nil
	}
	if tag != version {
		// The deployment moved while we were fetching; only trust the
		// response if it matches the tag after re-syncing.
		if err := c.Sync(ctx, ""); err != nil {
			log.Warn("version resync failed", "err", err)
		}
		cur, err := c.opt.Versions.Version()
		if err != nil {
			return "", Asset{}, fmt.Errorf("swcache: read version: %w", err)
		}
		if tag != cur {
			log.Debug("not caching response for foreign version", "key", key, "tag", tag, "known", cur)
			return Network, fresh, nil
		}
	}

	keep := Asset{Status: fresh.Status, Header: filterHeaders(fresh.Header, c.opt.KeepHeaders), Body: fresh.Body}
	if err := c.opt.Assets.Put(key, keep); err != nil {
		return "", Asset{}, err
	}
	stored, ok, err := c.opt.Assets.Get(key)
	if err != nil {
		return "", Asset{}, err
	}
	if !ok {
		return Network, fresh, nil
	}
	log.Debug("asset stored", "key", key, "version", tag)
	return Stored, stored, nil
}

func (c *Controller) get(ctx context.Context, u string) (Asset, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Asset{}, fmt.Errorf("swcache: build request: %w", err)
	}
	res, err := c.opt.HTTP.Do(req)
	if err != nil {
		return Asset{}, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return Asset{}, fmt.Errorf("%w: read body: %v", ErrUpstream, err)
	}
	return Asset{Status: res.StatusCode, Header: res.Header, Body: body}, nil
}

// Sync refreshes the locally known version tag. With version empty the tag
// is fetched from the origin. Offline it does nothing. Concurrent calls for
// the same version share one request.
func (c *Controller) Sync(ctx context.Context, version string) error {
	if !c.online() {
		c.opt.Metrics.Sync("skipped")
		return nil
	}
	_, err, _ := c.syncs.Do("sync:"+version, func() (any, error) {
		v := version
		if v == "" {
			a, err := c.get(ctx, c.opt.Origin+c.opt.VersionPath)
			c.observe(err)
			if err != nil {
				return nil, err
			}
			if a.Status < 200 || a.Status > 299 {
				return nil, fmt.Errorf("%w: version endpoint answered %d", ErrUpstream, a.Status)
			}
			v = strings.TrimSpace(string(a.Body))
		}
		if v == "" {
			return nil, fmt.Errorf("swcache: empty version tag")
		}
		if err := c.opt.Versions.SetVersion(v); err != nil {
			return nil, fmt.Errorf("swcache: write version: %w", err)
		}
		log.Info("version synced", "version", v)
		return v, nil
	})
	if err != nil {
		c.opt.Metrics.Sync("error")
		return err
	}
	c.opt.Metrics.Sync("ok")
	return nil
}

// Message is a foreground-to-cache control message.
type Message struct {
	Type    string `json:"type"`
	Version string `json:"version,omitempty"`
}

func (c *Controller) HandleMessage(ctx context.Context, m Message) error {
	switch m.Type {
	case "sync":
		return c.Sync(ctx, m.Version)
	default:
		log.Error("unrecognized message", "type", m.Type)
		return fmt.Errorf("%w: %q", ErrUnrecognizedMessage, m.Type)
	}
}
