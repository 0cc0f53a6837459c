package api

import (
	"log/slog"
	"net/http"
	"net/url"

	"github.com/rs/cors"

	"github.com/HenGPlayZ/lavalink-status/internal/metrics"
)

// withCORS rejects browser requests from origins outside the allow-list
// and lets rs/cors answer preflights and set the response headers for the
// rest. Requests without an Origin header, and same-origin requests, pass.
func withCORS(next http.Handler, allowed []string, m *metrics.Collector) http.Handler {
	allowSet := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		allowSet[o] = struct{}{}
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   allowed,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})
	withHeaders := c.Handler(next)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" || sameOrigin(origin, r) {
			next.ServeHTTP(w, r)
			return
		}
		if _, ok := allowSet[origin]; !ok {
			m.IncCORSRejectionsTotal()
			slog.Warn("origin not allowed by CORS", "origin", origin, "path", r.URL.Path)
			WriteProblem(w, http.StatusForbidden, "Forbidden", "Not allowed by CORS")
			return
		}
		withHeaders.ServeHTTP(w, r)
	})
}

func sameOrigin(origin string, r *http.Request) bool {
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return u.Host != "" && u.Host == r.Host
}
