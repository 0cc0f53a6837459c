package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/HenGPlayZ/lavalink-status/internal/clientip"
	"github.com/HenGPlayZ/lavalink-status/internal/lavalink"
	"github.com/HenGPlayZ/lavalink-status/internal/monitor"
)

var testOrigins = []string{
	"https://status.lavalink.rocks",
	"https://api.lavalink.rocks",
	"http://node.hengnation.eu:25566",
}

var errRefused = errors.New("connection refused")

// fakeClient serves canned stats per version. A missing entry fails.
type fakeClient struct {
	stats   map[lavalink.Version]*lavalink.Stats
	plugins []lavalink.Plugin
	panics  bool
}

func (f *fakeClient) Stats(ctx context.Context, node lavalink.Node) (*lavalink.Stats, error) {
	if f.panics {
		panic("boom")
	}
	if s, ok := f.stats[node.Version]; ok {
		return s, nil
	}
	return nil, errRefused
}

func (f *fakeClient) Plugins(ctx context.Context, node lavalink.Node) []lavalink.Plugin {
	if f.plugins == nil {
		return []lavalink.Plugin{}
	}
	return f.plugins
}

func testNodes() []lavalink.Node {
	return []lavalink.Node{
		{Version: lavalink.V3, Name: "Horizxon Lavalink v3", Host: "http://v3.invalid"},
		{Version: lavalink.V4, Name: "Horizxon Lavalink v4", Host: "http://v4.invalid"},
	}
}

func sampleStats() *lavalink.Stats {
	return &lavalink.Stats{
		Players:        12,
		PlayingPlayers: 7,
		Uptime:         3723000,
		Memory: lavalink.Memory{
			Free:       104857600,
			Used:       209715200,
			Allocated:  314572800,
			Reservable: 2147483648,
		},
		CPU: lavalink.CPU{Cores: 4, SystemLoad: 0.25, LavalinkLoad: 0.031},
	}
}

func newTestHandler(t *testing.T, client NodeClient, store *monitor.Store) *APIHandler {
	t.Helper()
	resolver, err := clientip.NewResolver(clientip.DefaultTrustedProxies)
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	return &APIHandler{
		Nodes:     testNodes(),
		Client:    client,
		Store:     store,
		Resolver:  resolver,
		StartedAt: time.Now().Add(-90 * time.Second),
	}
}

func newTestServer(t *testing.T, client NodeClient, store *monitor.Store) http.Handler {
	t.Helper()
	h := newTestHandler(t, client, store)
	return NewServer(ServerDeps{
		Handler:        h,
		Resolver:       h.Resolver,
		AllowedOrigins: testOrigins,
	}).Handler()
}

func get(t *testing.T, h http.Handler, path string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode body %q: %v", w.Body.String(), err)
	}
}
