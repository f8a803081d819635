// File: internal/app/app.go (complete file)

package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/baptistax/connscope/internal/config"
	"github.com/baptistax/connscope/internal/controller"
	"github.com/baptistax/connscope/internal/discovery"
	"github.com/baptistax/connscope/internal/history"
	"github.com/baptistax/connscope/internal/logging"
	"github.com/baptistax/connscope/internal/metadata"
	"github.com/baptistax/connscope/internal/metrics"
	"github.com/baptistax/connscope/internal/monitor"
	"github.com/baptistax/connscope/internal/netutil"
	"github.com/baptistax/connscope/internal/netwatch"
	"github.com/baptistax/connscope/internal/runctx"
	"github.com/baptistax/connscope/internal/storage"
	"github.com/baptistax/connscope/internal/storage/kv"
	"github.com/baptistax/connscope/internal/swcache"
)

var log = logging.Logger("app")

const (
	historyPrefix = "history/"
	cachePrefix   = "cache/"

	shutdownTimeout = 5 * time.Second
)

type Options struct {
	Config *config.Config

	// Agent builds the connectivity controller and its network watcher.
	Agent bool
	// Cache builds the cache controller and its proxy server.
	Cache bool

	// OnEvent receives monitor events while the agent runs.
	OnEvent func(monitor.Event)

	// Gatherer overrides the configured discovery gatherer.
	Gatherer discovery.Gatherer
	// Addrs overrides the local interface listing used by the network watcher.
	Addrs netwatch.AddrsFunc
}

// App is the wired process: storage and history always, the agent and the
// cache layer on demand.
type App struct {
	Config  *config.Config
	RunCtx  *runctx.Context
	Metrics *metrics.Metrics

	Storage *storage.Engine
	History *history.Store

	Discovery  *discovery.Engine
	Metadata   *metadata.Client
	Controller *controller.Controller
	Monitor    *monitor.Monitor
	Watcher    *netwatch.Watcher

	Cache  *swcache.Controller
	Server *swcache.Server
}

func New(opt Options) (*App, error) {
	cfg := opt.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	rc, err := runctx.New(cfg.Storage.DataDir)
	if err != nil {
		return nil, err
	}
	engine, err := storage.Open(rc.DBDir())
	if err != nil {
		return nil, err
	}

	a := &App{
		Config:  cfg,
		RunCtx:  rc,
		Metrics: metrics.New(),
		Storage: engine,
	}
	a.History = history.New(history.Options{
		KV:              kv.New(engine, historyPrefix),
		MaxNonFavorites: cfg.History.MaxNonFavorites,
		Metrics:         a.Metrics,
	})

	httpClient := netutil.NewHTTPClient(netutil.ClientOptions{Family: cfg.Agent.Family})

	if opt.Agent {
		a.buildAgent(opt, httpClient)
	}
	if opt.Cache {
		if err := a.buildCache(httpClient); err != nil {
			return nil, multierr.Append(err, a.Close())
		}
	}

	log.Info("app ready",
		"session", rc.SessionID,
		"data_dir", rc.DataDir,
		"agent", opt.Agent,
		"cache", opt.Cache)
	return a, nil
}

func (a *App) buildAgent(opt Options, httpClient *http.Client) {
	cfg := a.Config

	gatherer := opt.Gatherer
	if gatherer == nil {
		switch cfg.Discovery.Gatherer {
		case config.GathererSTUN:
			gatherer = &discovery.STUNGatherer{}
		default:
			gatherer = &discovery.WebRTCGatherer{}
		}
	}
	a.Discovery = discovery.NewEngine(discovery.Options{
		Gatherer: gatherer,
		Servers:  cfg.Discovery.Servers,
		Timeout:  cfg.Discovery.Timeout.Std(),
		Metrics:  a.Metrics,
	})

	a.Metadata = &metadata.Client{
		BaseURL:      cfg.Agent.Origin,
		MetadataPath: cfg.Agent.MetadataPath,
		AirportPath:  cfg.Agent.AirportPath,
		HTTP:         httpClient,
	}
	a.Monitor = monitor.New(monitor.Options{}, opt.OnEvent)

	a.Controller = controller.New(controller.Options{
		Fetcher:    a.Metadata,
		Discovery:  a.Discovery,
		History:    a.History,
		Interval:   cfg.Agent.PollInterval.Std(),
		Notify:     a.Monitor.Notify,
		OnActivate: a.syncCache,
		Metrics:    a.Metrics,
	})

	a.Watcher = netwatch.New(netwatch.Options{
		Interval: cfg.Agent.NetPoll.Std(),
		Addrs:    opt.Addrs,
	})
}

func (a *App) buildCache(httpClient *http.Client) error {
	cfg := a.Config

	assets, err := swcache.NewKVStore(kv.New(a.Storage, cachePrefix), cfg.Cache.LRUSize)
	if err != nil {
		return err
	}

	copt := swcache.Options{
		Origin:        cfg.Agent.Origin,
		VersionPath:   cfg.Agent.VersionPath,
		HTTP:          httpClient,
		Assets:        assets,
		Versions:      assets,
		VersionHeader: cfg.Cache.VersionHeader,
		KeepHeaders:   cfg.Cache.KeepHeaders,
		Metrics:       a.Metrics,
	}
	if a.Controller != nil {
		copt.Online = a.Controller.Online
	}
	a.Cache = swcache.New(copt)

	a.Server, err = swcache.NewServer(a.Cache, a.Metrics.Handler())
	return err
}

// syncCache is the controller's activate hook: the cache controller checks
// for a new version whenever the connection is refreshed.
func (a *App) syncCache(ctx context.Context) {
	if a.Cache == nil {
		return
	}
	if err := a.Cache.Sync(ctx, ""); err != nil {
		log.Warn("cache sync on activate failed", "err", err)
	}
}

// RunAgent activates the controller and feeds it local network changes until
// ctx is done.
func (a *App) RunAgent(ctx context.Context) error {
	if a.Controller == nil {
		return errors.New("app: agent not configured")
	}
	a.Controller.Start(ctx)

	err := a.Watcher.Run(ctx, func(c netwatch.Change) {
		switch c.Kind {
		case netwatch.Changed:
			a.Controller.Dispatch(ctx, controller.EventConnectionChanged)
		case netwatch.Down:
			a.Controller.Dispatch(ctx, controller.EventOffline)
		}
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// RunCache serves the cache proxy on the configured address until ctx is
// done.
func (a *App) RunCache(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.Config.Cache.Listen)
	if err != nil {
		return fmt.Errorf("cache listen %s: %w", a.Config.Cache.Listen, err)
	}
	return a.ServeCache(ctx, ln)
}

func (a *App) ServeCache(ctx context.Context, ln net.Listener) error {
	if a.Server == nil {
		_ = ln.Close()
		return errors.New("app: cache not configured")
	}
	srv := &http.Server{
		Handler:           a.Server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Info("cache proxy listening", "addr", ln.Addr().String(), "origin", a.Config.Agent.Origin)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}

// Run starts every configured part and returns when all of them have
// stopped.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	if a.Controller != nil {
		g.Go(func() error { return a.RunAgent(gctx) })
	}
	if a.Server != nil {
		g.Go(func() error { return a.RunCache(gctx) })
	}
	return g.Wait()
}

func (a *App) Close() error {
	if a.Controller != nil {
		a.Controller.Close()
	}
	if a.Discovery != nil {
		a.Discovery.Close()
	}
	var err error
	if a.Storage != nil {
		err = multierr.Append(err, a.Storage.Close())
	}
	return err
}
