package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/HenGPlayZ/lavalink-status/internal/format"
	"github.com/HenGPlayZ/lavalink-status/internal/lavalink"
)

// GetBadge handles GET /v{3|4}/badge/connections. It fetches fresh stats and
// ignores the monitor's flag.
func (h *APIHandler) GetBadge(node lavalink.Node) http.Handler {
	key := node.Version.Key()
	message := fmt.Sprintf("Error generating Lavalink %s badge", key)

	return plainTextErrors(message, func(w http.ResponseWriter, r *http.Request) error {
		players, playing := format.NA, format.NA
		if stats, err := h.Client.Stats(upstreamContext(r), node); err == nil {
			players = strconv.Itoa(stats.Players)
			playing = strconv.Itoa(stats.PlayingPlayers)
		}

		svg, err := RenderBadge(PlayersBadge(key, players, playing))
		if err != nil {
			return err
		}

		w.Header().Set("Content-Type", "image/svg+xml")
		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		w.WriteHeader(http.StatusOK)
		w.Write(svg)
		return nil
	})
}

// PlayersBadge describes the player-count badge for a node.
func PlayersBadge(key, players, playing string) Badge {
	color := ColorSuccess
	if players == format.NA || playing == format.NA {
		color = ColorCritical
	}
	return Badge{
		Label:   key + " Players",
		Message: players + " | " + playing,
		Color:   color,
	}
}
