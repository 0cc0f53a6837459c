package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/HenGPlayZ/lavalink-status/internal/clientip"
	"github.com/HenGPlayZ/lavalink-status/internal/lavalink"
	"github.com/HenGPlayZ/lavalink-status/internal/monitor"
	"github.com/HenGPlayZ/lavalink-status/internal/ratelimit"
	"github.com/HenGPlayZ/lavalink-status/web"
)

// NodeClient fetches fresh data from a node for each request.
type NodeClient interface {
	Stats(ctx context.Context, node lavalink.Node) (*lavalink.Stats, error)
	Plugins(ctx context.Context, node lavalink.Node) []lavalink.Plugin
}

// APIHandler serves the node, badge and health endpoints.
type APIHandler struct {
	Nodes     []lavalink.Node
	Client    NodeClient
	Store     *monitor.Store
	Resolver  *clientip.Resolver
	StartedAt time.Time
}

// Register adds every route to mux. Node and badge routes hit upstream on
// each request and are rate limited when limiter is non-nil.
func (h *APIHandler) Register(mux *http.ServeMux, limiter *ratelimit.Limiter) {
	limit := func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return limiter.Middleware(next)
	}

	for _, node := range h.Nodes {
		key := node.Version.Key()
		mux.Handle("GET /"+key, limit(h.GetNode(node)))
		mux.Handle("GET /"+key+"/badge/connections", limit(h.GetBadge(node)))
	}
	mux.HandleFunc("GET /healthz", h.GetHealth)
	mux.HandleFunc("GET /openapi.json", GetOpenAPI)
	mux.Handle("GET /", http.FileServerFS(web.Static()))
}

// upstreamContext detaches from the client connection: a disconnect does
// not cancel an upstream call, which still completes or times out.
func upstreamContext(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}

// plainTextErrors adapts a handler that may fail. Errors and panics are
// logged and answered with a 500 carrying message as plain text.
func plainTextErrors(message string, fn func(w http.ResponseWriter, r *http.Request) error) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				slog.Error(message, "error", fmt.Sprint(rec), "path", r.URL.Path)
				http.Error(w, message, http.StatusInternalServerError)
			}
		}()
		if err := fn(w, r); err != nil {
			slog.Error(message, "error", err, "path", r.URL.Path)
			http.Error(w, message, http.StatusInternalServerError)
		}
	})
}
