// File: internal/cli/cli.go (complete file)

package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/baptistax/connscope/internal/app"
	"github.com/baptistax/connscope/internal/config"
	"github.com/baptistax/connscope/internal/history"
	"github.com/baptistax/connscope/internal/logging"
	"github.com/baptistax/connscope/internal/metadata"
	"github.com/baptistax/connscope/internal/monitor"
	"github.com/baptistax/connscope/internal/report"
	"github.com/baptistax/connscope/internal/version"
)

func Run(args []string) int {
	return run(args, os.Stdout, os.Stderr)
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		args = []string{"watch"}
	}

	switch args[0] {
	case "watch":
		return runApp("watch", args[1:], stdout, stderr, true, false)
	case "serve":
		return runApp("serve", args[1:], stdout, stderr, false, true)
	case "run":
		return runApp("run", args[1:], stdout, stderr, true, true)
	case "history":
		return runHistory(args[1:], stdout, stderr)
	case "origin":
		return runOrigin(args[1:], stdout, stderr)
	case "version":
		fmt.Fprintf(stdout, "connscope %s (commit=%s build_date=%s)\n", version.Version, version.Commit, version.BuildDate)
		return 0
	case "help", "-h", "--help":
		printHelp(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command: %s\n\n", args[0])
		printHelp(stderr)
		return 2
	}
}

func printHelp(w io.Writer) {
	fmt.Fprintln(w, `connscope

Usage:
  connscope [watch] [flags]
  connscope serve   [flags]
  connscope run     [flags]
  connscope history [list|fav <id>|show <token>] [flags]
  connscope origin  [flags]
  connscope version

Default command:
  watch   Tracks the live connection and prints an event on every change

Commands:
  watch    Run the connectivity agent and print events
  serve    Run the caching proxy in front of the origin
  run      Run the agent and the caching proxy together
  history  List saved connections, toggle a favorite or resolve a share token
  origin   Serve a local metadata origin for testing

Flags:
  -config     Config file (.toml, .yaml, .json)
  -log-level  debug|info|warn|error
  -format     Output format: json|text
  -origin     Origin base URL
  -data-dir   Data directory

Examples:
  connscope
  connscope run -config connscope.toml
  connscope history list --format json
  connscope history fav 3
  connscope history show 'https://example.com/#conn=CgQI...'`)
}

type commonFlags struct {
	Config   string
	LogLevel string
	Format   string // json|text
	Origin   string
	DataDir  string
}

func bindCommon(fs *flag.FlagSet) *commonFlags {
	c := &commonFlags{}

	fs.StringVar(&c.Config, "config", "", "Config file (.toml, .yaml, .json)")
	fs.StringVar(&c.LogLevel, "log-level", "", "Log level: debug|info|warn|error")
	fs.StringVar(&c.Format, "format", "text", "Output format: json|text")
	fs.StringVar(&c.Origin, "origin", "", "Origin base URL")
	fs.StringVar(&c.DataDir, "data-dir", "", "Data directory")

	return c
}

// load reads the config file and applies flag overrides on top of it.
func (c *commonFlags) load() (*config.Config, error) {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return nil, err
	}
	if c.LogLevel != "" {
		cfg.Log.Level = c.LogLevel
	}
	if c.Origin != "" {
		cfg.Agent.Origin = c.Origin
	}
	if c.DataDir != "" {
		cfg.Storage.DataDir = c.DataDir
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)
	return cfg, nil
}

func (c *commonFlags) json() bool {
	return strings.ToLower(c.Format) == "json"
}

func parse(name string, args []string, stderr io.Writer) (*flag.FlagSet, *commonFlags, bool) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	c := bindCommon(fs)
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", name, err)
		return nil, nil, false
	}
	return fs, c, true
}

// signalContext is cancelled on Ctrl+C or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-stop:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(stop)
	}()
	return ctx, cancel
}

func runApp(name string, args []string, stdout, stderr io.Writer, agent, cache bool) int {
	_, c, ok := parse(name, args, stderr)
	if !ok {
		return 2
	}
	cfg, err := c.load()
	if err != nil {
		fmt.Fprintln(stderr, "config:", err)
		return 1
	}

	var mu sync.Mutex
	onEvent := func(ev monitor.Event) {
		mu.Lock()
		defer mu.Unlock()
		if c.json() {
			_ = report.WriteJSON(stdout, ev)
			return
		}
		_ = report.WriteText(stdout, ev.Text())
	}

	a, err := app.New(app.Options{Config: cfg, Agent: agent, Cache: cache, OnEvent: onEvent})
	if err != nil {
		fmt.Fprintln(stderr, "failed to start:", err)
		return 1
	}

	ctx, cancel := signalContext()
	defer cancel()

	if !c.json() {
		_ = report.WriteText(stdout, report.RenderBanner())
	}
	runErr := a.Run(ctx)
	closeErr := a.Close()
	if runErr != nil {
		fmt.Fprintln(stderr, "run:", runErr)
		return 1
	}
	if closeErr != nil {
		fmt.Fprintln(stderr, "close:", closeErr)
		return 1
	}
	return 0
}

func runHistory(args []string, stdout, stderr io.Writer) int {
	sub := "list"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		sub, args = args[0], args[1:]
	}

	fs, c, ok := parse("history "+sub, args, stderr)
	if !ok {
		return 2
	}
	cfg, err := c.load()
	if err != nil {
		fmt.Fprintln(stderr, "config:", err)
		return 1
	}

	a, err := app.New(app.Options{Config: cfg})
	if err != nil {
		fmt.Fprintln(stderr, "failed to open history:", err)
		return 1
	}
	defer a.Close()

	switch sub {
	case "list":
		entries, err := a.History.Recent()
		if err != nil {
			fmt.Fprintln(stderr, "history:", err)
			return 1
		}
		views := report.NewEntries(entries)
		if c.json() {
			_ = report.WriteJSON(stdout, views)
			return 0
		}
		_ = report.WriteText(stdout, report.RenderEntries(views))
		return 0

	case "fav":
		if fs.NArg() != 1 {
			fmt.Fprintln(stderr, "usage: connscope history fav <id>")
			return 2
		}
		id, err := strconv.ParseUint(fs.Arg(0), 10, 64)
		if err != nil {
			fmt.Fprintf(stderr, "bad id %q\n", fs.Arg(0))
			return 2
		}
		fav, err := a.History.ToggleFavorite(id)
		if err != nil {
			if errors.Is(err, history.ErrNotFound) {
				fmt.Fprintf(stderr, "no entry #%d\n", id)
			} else {
				fmt.Fprintln(stderr, "history:", err)
			}
			return 1
		}
		state := "removed from favorites"
		if fav {
			state = "added to favorites"
		}
		fmt.Fprintf(stdout, "Entry #%d %s\n", id, state)
		return 0

	case "show":
		if fs.NArg() != 1 {
			fmt.Fprintln(stderr, "usage: connscope history show <token|link>")
			return 2
		}
		repr, entry, found, err := a.History.ResolveShare(fs.Arg(0))
		if err != nil {
			fmt.Fprintln(stderr, "share token:", err)
			return 1
		}
		if c.json() {
			out := struct {
				Connection report.Connection `json:"connection"`
				Entry      *report.Entry     `json:"entry,omitempty"`
			}{Connection: report.NewConnection(repr)}
			if found {
				e := report.NewEntry(entry)
				out.Entry = &e
			}
			_ = report.WriteJSON(stdout, out)
			return 0
		}
		if found {
			_ = report.WriteText(stdout, report.RenderEntry(report.NewEntry(entry)))
			return 0
		}
		_ = report.WriteText(stdout, "Not in history.\n"+report.RenderConnection(report.NewConnection(repr)))
		return 0

	default:
		fmt.Fprintf(stderr, "unknown history command: %s\n", sub)
		return 2
	}
}

func runOrigin(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("origin", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	c := bindCommon(fs)
	var listen string
	fs.StringVar(&listen, "listen", "", "Listen address (defaults to the origin host)")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(stderr, "origin: %v\n", err)
		return 2
	}
	cfg, err := c.load()
	if err != nil {
		fmt.Fprintln(stderr, "config:", err)
		return 1
	}
	if listen == "" {
		u, _ := url.Parse(cfg.Agent.Origin)
		listen = u.Host
	}

	origin := &metadata.Origin{
		Describe:     metadata.DescribeRequest,
		Version:      func() string { return version.Version },
		MetadataPath: cfg.Agent.MetadataPath,
		AirportPath:  cfg.Agent.AirportPath,
		VersionPath:  cfg.Agent.VersionPath,
	}
	ln, err := net.Listen("tcp", listen)
	if err != nil {
		fmt.Fprintln(stderr, "listen:", err)
		return 1
	}
	srv := &http.Server{Handler: origin.Handler(), ReadHeaderTimeout: 10 * time.Second}

	ctx, cancel := signalContext()
	defer cancel()
	go func() {
		<-ctx.Done()
		sctx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		_ = srv.Shutdown(sctx)
	}()

	fmt.Fprintf(stdout, "origin listening on http://%s\n", ln.Addr())
	if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		fmt.Fprintln(stderr, "origin:", err)
		return 1
	}
	return 0
}
