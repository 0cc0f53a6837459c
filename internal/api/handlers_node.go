package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/HenGPlayZ/lavalink-status/internal/format"
	"github.com/HenGPlayZ/lavalink-status/internal/lavalink"
)

// Attribution is included in every node response.
const Attribution = "© 2024 Horizxon Limited All rights reserved."

// NodeStatus is the per-node object of a node response.
type NodeStatus struct {
	Name           string          `json:"name"`
	Online         bool            `json:"online"`
	FrameStats     json.RawMessage `json:"frameStats,omitempty"`
	Players        string          `json:"players"`
	PlayingPlayers string          `json:"playingPlayers"`
	Uptime         string          `json:"uptime"`
	Memory         format.Memory   `json:"memory"`
	CPU            format.CPU      `json:"cpu"`
	StatusMessage  string          `json:"statusMessage"`
}

type responseEnvelope struct {
	Plugins     []lavalink.Plugin `json:"plugins"`
	ClientIP    string            `json:"clientIP"`
	Attribution string            `json:"HORIZXON"`
}

type v3Response struct {
	Lavalink NodeStatus `json:"lavalinkv3"`
	responseEnvelope
}

type v4Response struct {
	Lavalink NodeStatus `json:"lavalinkv4"`
	responseEnvelope
}

var jsonNull = json.RawMessage("null")

// BuildNodeStatus combines a fresh stats fetch (nil on failure) with the
// monitor's cached flag. online always comes from the monitor.
func BuildNodeStatus(node lavalink.Node, stats *lavalink.Stats, online bool) NodeStatus {
	rec := format.Format(stats, online)
	status := NodeStatus{
		Name:           node.Name,
		Online:         online,
		Players:        rec.Players,
		PlayingPlayers: rec.PlayingPlayers,
		Uptime:         rec.Uptime,
		Memory:         rec.Memory,
		CPU:            rec.CPU,
		StatusMessage:  rec.StatusMessage,
	}
	if node.Version.HasFrameStats() {
		status.FrameStats = jsonNull
		if online && stats != nil && len(stats.FrameStats) > 0 {
			status.FrameStats = stats.FrameStats
		}
	}
	return status
}

func nodeResponse(node lavalink.Node, status NodeStatus, env responseEnvelope) (any, error) {
	switch node.Version {
	case lavalink.V3:
		return v3Response{Lavalink: status, responseEnvelope: env}, nil
	case lavalink.V4:
		return v4Response{Lavalink: status, responseEnvelope: env}, nil
	default:
		return nil, fmt.Errorf("unsupported lavalink version %q", node.Version)
	}
}

// GetNode handles GET /v3 and GET /v4.
func (h *APIHandler) GetNode(node lavalink.Node) http.Handler {
	key := node.Version.Key()
	message := fmt.Sprintf("Error fetching Lavalink %s stats", key)

	return plainTextErrors(message, func(w http.ResponseWriter, r *http.Request) error {
		ctx := upstreamContext(r)

		slog.Info("fetching lavalink stats", "node", key, "url", node.URL("/stats"))
		stats, err := h.Client.Stats(ctx, node)
		if err != nil {
			stats = nil
		}
		plugins := h.Client.Plugins(ctx, node)

		online := h.Store.Online(node.Version)
		body, err := nodeResponse(node, BuildNodeStatus(node, stats, online), responseEnvelope{
			Plugins:     plugins,
			ClientIP:    h.Resolver.FromRequest(r),
			Attribution: Attribution,
		})
		if err != nil {
			return err
		}

		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return fmt.Errorf("encode response: %w", err)
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, err = buf.WriteTo(w)
		if err != nil {
			slog.Warn("failed to write response", "node", key, "error", err)
		}
		return nil
	})
}
