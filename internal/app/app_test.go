// File: internal/app/app_test.go (complete file)

package app

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baptistax/connscope/internal/config"
	"github.com/baptistax/connscope/internal/discovery"
	"github.com/baptistax/connscope/internal/metadata"
	"github.com/baptistax/connscope/internal/monitor"
)

func newOrigin(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := config.DefaultConfig()
	origin := &metadata.Origin{
		Describe:     metadata.DescribeRequest,
		Version:      func() string { return "v1" },
		MetadataPath: cfg.Agent.MetadataPath,
		AirportPath:  cfg.Agent.AirportPath,
		VersionPath:  cfg.Agent.VersionPath,
	}
	mux := http.NewServeMux()
	mux.Handle(cfg.Agent.MetadataPath, origin.Handler())
	mux.Handle(cfg.Agent.VersionPath, origin.Handler())
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Mlv", "v1")
		w.Header().Set("Content-Type", "text/html")
		_, _ = io.WriteString(w, `<link $ICON><meta content="$REQINFO">`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, origin string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Agent.Origin = origin
	cfg.Agent.PollInterval = config.Duration(time.Hour)
	cfg.Storage.DataDir = t.TempDir()
	cfg.Discovery.Timeout = config.Duration(time.Second)
	return cfg
}

func staticAddrs() (map[string][]netip.Addr, error) {
	return map[string][]netip.Addr{"eth0": {netip.MustParseAddr("2.134.213.2")}}, nil
}

func TestApp_AgentAndCacheEndToEnd(t *testing.T) {
	origin := newOrigin(t)
	cfg := testConfig(t, origin.URL)

	var mu sync.Mutex
	var events []monitor.Event
	a, err := New(Options{
		Config: cfg,
		Agent:  true,
		Cache:  true,
		Gatherer: discovery.GathererFunc(func(ctx context.Context, _ []string, emit func(discovery.Candidate)) error {
			emit(discovery.Candidate{Type: discovery.TypeSrflx, Address: "1.1.1.1"})
			return nil
		}),
		Addrs: staticAddrs,
		OnEvent: func(e monitor.Event) {
			mu.Lock()
			defer mu.Unlock()
			events = append(events, e)
		},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); assert.NoError(t, a.RunAgent(ctx)) }()
	go func() { defer wg.Done(); assert.NoError(t, a.ServeCache(ctx, ln)) }()

	require.Eventually(t, func() bool {
		entries, err := a.History.Load()
		return err == nil && len(entries) == 1
	}, 5*time.Second, 10*time.Millisecond)

	entries, err := a.History.Load()
	require.NoError(t, err)
	assert.Equal(t, []uint32{16843009}, entries[0].Repr.Addresses.V4)
	assert.Equal(t, "127.0.0.1", entries[0].Repr.Info.ServerAddr.String())

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, e := range events {
			if e.Kind == monitor.KindLive && e.Current != nil {
				return true
			}
		}
		return false
	}, 5*time.Second, 10*time.Millisecond)

	get := func() (string, string) {
		resp, err := http.Get("http://" + ln.Addr().String() + "/")
		require.NoError(t, err)
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return resp.Header.Get("X-Connscope-Cache"), string(body)
	}
	outcome, body := get()
	assert.Equal(t, "stored", outcome, "activate synced the version before the first request")
	assert.NotContains(t, body, "$REQINFO")
	assert.Contains(t, body, `id="icon"`)
	outcome, _ = get()
	assert.Equal(t, "cached", outcome)

	cancel()
	wg.Wait()
	require.NoError(t, a.Close())

	again, err := New(Options{Config: cfg})
	require.NoError(t, err)
	defer again.Close()
	entries, err = again.History.Load()
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Nil(t, again.Controller)
	assert.Nil(t, again.Server)
}

func TestApp_RunRequiresParts(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")
	a, err := New(Options{Config: cfg})
	require.NoError(t, err)
	defer a.Close()

	require.NotNil(t, a.RunCtx)
	assert.Equal(t, cfg.Storage.DataDir, a.RunCtx.DataDir)
	assert.NotEmpty(t, a.RunCtx.SessionID)
	assert.NoError(t, a.Run(context.Background()), "nothing to run")

	err = a.RunAgent(context.Background())
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "agent not configured"))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	require.Error(t, a.ServeCache(context.Background(), ln))
}
