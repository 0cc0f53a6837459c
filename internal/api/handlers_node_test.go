package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/HenGPlayZ/lavalink-status/internal/format"
	"github.com/HenGPlayZ/lavalink-status/internal/lavalink"
	"github.com/HenGPlayZ/lavalink-status/internal/monitor"
)

func TestGetNodeOnline(t *testing.T) {
	store := monitor.NewStore(lavalink.V3, lavalink.V4)
	store.Set(lavalink.V3, monitor.Online)
	client := &fakeClient{
		stats:   map[lavalink.Version]*lavalink.Stats{lavalink.V3: sampleStats()},
		plugins: []lavalink.Plugin{{Name: "lavasrc", Version: "4.0.1"}},
	}
	srv := newTestServer(t, client, store)

	w := get(t, srv, "/v3", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("Content-Type = %q", ct)
	}

	var body struct {
		Node     NodeStatus        `json:"lavalinkv3"`
		Plugins  []lavalink.Plugin `json:"plugins"`
		ClientIP string            `json:"clientIP"`
		Credit   string            `json:"HORIZXON"`
	}
	decode(t, w, &body)

	want := NodeStatus{
		Name:           "Horizxon Lavalink v3",
		Online:         true,
		Players:        "12",
		PlayingPlayers: "7",
		Uptime:         "01 hours, 02 minutes, 03 seconds",
		Memory:         format.Memory{Free: "100.00 MB", Used: "200.00 MB", Allocated: "300.00 MB", Reservable: "2.00 GB"},
		CPU:            format.CPU{Cores: "4", SystemLoad: "0.25%", LavalinkLoad: "0.03%"},
		StatusMessage:  format.StatusOnline,
	}
	if !reflect.DeepEqual(body.Node, want) {
		t.Errorf("node = %+v, want %+v", body.Node, want)
	}
	if len(body.Plugins) != 1 || body.Plugins[0].Name != "lavasrc" {
		t.Errorf("plugins = %+v", body.Plugins)
	}
	if body.ClientIP != "192.0.2.1" {
		t.Errorf("clientIP = %q, want 192.0.2.1", body.ClientIP)
	}
	if body.Credit != Attribution {
		t.Errorf("HORIZXON = %q", body.Credit)
	}

	var top map[string]json.RawMessage
	decode(t, w, &top)
	var node map[string]json.RawMessage
	if err := json.Unmarshal(top["lavalinkv3"], &node); err != nil {
		t.Fatal(err)
	}
	if _, ok := node["frameStats"]; ok {
		t.Error("v3 response must not carry frameStats")
	}
}

func TestGetNodeOnlineComesFromStore(t *testing.T) {
	tests := []struct {
		name       string
		liveness   monitor.Liveness
		wantOnline bool
		wantStatus string
	}{
		{"unknown before first tick", monitor.Unknown, false, format.StatusOffline},
		{"offline", monitor.Offline, false, format.StatusOffline},
		{"online", monitor.Online, true, format.StatusOnline},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := monitor.NewStore(lavalink.V3, lavalink.V4)
			store.Set(lavalink.V3, tt.liveness)
			// the fresh fetch succeeds regardless of the cached flag
			client := &fakeClient{stats: map[lavalink.Version]*lavalink.Stats{lavalink.V3: sampleStats()}}
			srv := newTestServer(t, client, store)

			var body struct {
				Node NodeStatus `json:"lavalinkv3"`
			}
			w := get(t, srv, "/v3", nil)
			decode(t, w, &body)

			if body.Node.Online != tt.wantOnline {
				t.Errorf("online = %v, want %v", body.Node.Online, tt.wantOnline)
			}
			if body.Node.StatusMessage != tt.wantStatus {
				t.Errorf("statusMessage = %q, want %q", body.Node.StatusMessage, tt.wantStatus)
			}
			if !tt.wantOnline && body.Node.Players != format.NA {
				t.Errorf("players = %q, want N/A", body.Node.Players)
			}
		})
	}
}

func TestGetNodeFetchFailure(t *testing.T) {
	store := monitor.NewStore(lavalink.V3, lavalink.V4)
	store.Set(lavalink.V4, monitor.Online)
	srv := newTestServer(t, &fakeClient{}, store)

	w := get(t, srv, "/v4", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var body struct {
		Node    NodeStatus        `json:"lavalinkv4"`
		Plugins []lavalink.Plugin `json:"plugins"`
	}
	decode(t, w, &body)

	n := body.Node
	for name, v := range map[string]string{
		"players":           n.Players,
		"playingPlayers":    n.PlayingPlayers,
		"uptime":            n.Uptime,
		"memory.free":       n.Memory.Free,
		"memory.used":       n.Memory.Used,
		"memory.allocated":  n.Memory.Allocated,
		"memory.reservable": n.Memory.Reservable,
		"cpu.cores":         n.CPU.Cores,
		"cpu.systemLoad":    n.CPU.SystemLoad,
		"cpu.lavalinkLoad":  n.CPU.LavalinkLoad,
	} {
		if v != format.NA {
			t.Errorf("%s = %q, want N/A", name, v)
		}
	}
	if string(n.FrameStats) != "null" {
		t.Errorf("frameStats = %s, want null", n.FrameStats)
	}
	if body.Plugins == nil {
		t.Error("plugins must be an empty array, not null")
	}
}

func TestGetNodeFrameStats(t *testing.T) {
	frames := json.RawMessage(`{"sent":6000,"nulled":10,"deficit":-3}`)
	stats := sampleStats()
	stats.FrameStats = frames

	tests := []struct {
		name     string
		liveness monitor.Liveness
		stats    *lavalink.Stats
		want     string
	}{
		{"online passes through", monitor.Online, stats, string(frames)},
		{"offline is null", monitor.Offline, stats, "null"},
		{"missing is null", monitor.Online, sampleStats(), "null"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := monitor.NewStore(lavalink.V3, lavalink.V4)
			store.Set(lavalink.V4, tt.liveness)
			client := &fakeClient{stats: map[lavalink.Version]*lavalink.Stats{lavalink.V4: tt.stats}}
			srv := newTestServer(t, client, store)

			var body struct {
				Node map[string]json.RawMessage `json:"lavalinkv4"`
			}
			decode(t, get(t, srv, "/v4", nil), &body)

			got, ok := body.Node["frameStats"]
			if !ok {
				t.Fatal("v4 response must always carry frameStats")
			}
			if string(got) != tt.want {
				t.Errorf("frameStats = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestGetNodeClientIP(t *testing.T) {
	store := monitor.NewStore(lavalink.V3, lavalink.V4)
	h := newTestHandler(t, &fakeClient{}, store)
	handler := h.GetNode(h.Nodes[0])

	tests := []struct {
		name       string
		remoteAddr string
		header     map[string]string
		want       string
	}{
		{"direct peer", "198.51.100.7:5555", nil, "198.51.100.7"},
		{"untrusted peer ignores XFF", "198.51.100.7:5555", map[string]string{"X-Forwarded-For": "203.0.113.9"}, "198.51.100.7"},
		{"trusted proxy uses leftmost XFF", "127.0.0.1:5555", map[string]string{"X-Forwarded-For": "203.0.113.9, 10.0.0.1"}, "203.0.113.9"},
		{"mapped address is cleaned", "[::ffff:198.51.100.7]:5555", nil, "198.51.100.7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v3", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			var body struct {
				ClientIP string `json:"clientIP"`
			}
			decode(t, w, &body)
			if body.ClientIP != tt.want {
				t.Errorf("clientIP = %q, want %q", body.ClientIP, tt.want)
			}
		})
	}
}

func TestGetNodePanicIsPlainText500(t *testing.T) {
	store := monitor.NewStore(lavalink.V3, lavalink.V4)
	srv := newTestServer(t, &fakeClient{panics: true}, store)

	w := get(t, srv, "/v3", nil)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("Content-Type = %q, want text/plain", ct)
	}
	if got := strings.TrimSpace(w.Body.String()); got != "Error fetching Lavalink v3 stats" {
		t.Errorf("body = %q", got)
	}
}
