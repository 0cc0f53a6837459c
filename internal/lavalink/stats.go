package lavalink

import "encoding/json"

// Stats is the payload returned by a node's /stats endpoint. FrameStats
// ({sent, nulled, deficit}) is only reported by v4 nodes while players
// exist and is served unchanged.
type Stats struct {
	Players        int             `json:"players"`
	PlayingPlayers int             `json:"playingPlayers"`
	Uptime         int64           `json:"uptime"`
	Memory         Memory          `json:"memory"`
	CPU            CPU             `json:"cpu"`
	FrameStats     json.RawMessage `json:"frameStats,omitempty"`
}

// Memory values are in bytes.
type Memory struct {
	Free       int64 `json:"free"`
	Used       int64 `json:"used"`
	Allocated  int64 `json:"allocated"`
	Reservable int64 `json:"reservable"`
}

type CPU struct {
	Cores        int     `json:"cores"`
	SystemLoad   float64 `json:"systemLoad"`
	LavalinkLoad float64 `json:"lavalinkLoad"`
}

// Info is the payload returned by a node's /info endpoint. Plugins are
// served; the rest is only logged.
type Info struct {
	Version struct {
		Semver string `json:"semver"`
	} `json:"version"`
	BuildTime      int64    `json:"buildTime"`
	JVM            string   `json:"jvm"`
	Lavaplayer     string   `json:"lavaplayer"`
	SourceManagers []string `json:"sourceManagers"`
	Plugins        []Plugin `json:"plugins"`
}

type Plugin struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}
