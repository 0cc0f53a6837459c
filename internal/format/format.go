// Package format turns raw node statistics into the human-readable strings
// served by the API.
package format

import (
	"fmt"
	"strconv"

	"github.com/HenGPlayZ/lavalink-status/internal/lavalink"
)

// NA is the placeholder for every value that cannot be shown.
const NA = "N/A"

const (
	bytesPerMB = 1024 * 1024
	bytesPerGB = 1024 * 1024 * 1024
)

const (
	StatusOnline  = "🟢 Online"
	StatusOffline = "🔴 Offline"
)

// Record is the formatted projection of a stats snapshot.
type Record struct {
	Players        string `json:"players"`
	PlayingPlayers string `json:"playingPlayers"`
	Uptime         string `json:"uptime"`
	Memory         Memory `json:"memory"`
	CPU            CPU    `json:"cpu"`
	StatusMessage  string `json:"statusMessage"`
}

type Memory struct {
	Free       string `json:"free"`
	Used       string `json:"used"`
	Allocated  string `json:"allocated"`
	Reservable string `json:"reservable"`
}

type CPU struct {
	Cores        string `json:"cores"`
	SystemLoad   string `json:"systemLoad"`
	LavalinkLoad string `json:"lavalinkLoad"`
}

// Format builds a Record from stats. When stats is nil or the node is not
// online every leaf is NA; real and placeholder values are never mixed.
func Format(stats *lavalink.Stats, online bool) Record {
	if stats == nil || !online {
		return Unavailable(online)
	}
	return Record{
		Players:        strconv.Itoa(stats.Players),
		PlayingPlayers: strconv.Itoa(stats.PlayingPlayers),
		Uptime:         Uptime(stats.Uptime),
		Memory: Memory{
			Free:       MemoryMB(stats.Memory.Free),
			Used:       MemoryMB(stats.Memory.Used),
			Allocated:  MemoryMB(stats.Memory.Allocated),
			Reservable: MemoryGB(stats.Memory.Reservable),
		},
		CPU: CPU{
			Cores:        strconv.Itoa(stats.CPU.Cores),
			SystemLoad:   Percent(stats.CPU.SystemLoad),
			LavalinkLoad: Percent(stats.CPU.LavalinkLoad),
		},
		StatusMessage: StatusMessage(online),
	}
}

// Unavailable returns the placeholder record.
func Unavailable(online bool) Record {
	return Record{
		Players:        NA,
		PlayingPlayers: NA,
		Uptime:         NA,
		Memory:         Memory{Free: NA, Used: NA, Allocated: NA, Reservable: NA},
		CPU:            CPU{Cores: NA, SystemLoad: NA, LavalinkLoad: NA},
		StatusMessage:  StatusMessage(online),
	}
}

// Uptime renders milliseconds as "HH hours, MM minutes, SS seconds".
// Hours are not wrapped at 24.
func Uptime(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	total := ms / 1000
	hours := total / 3600
	rem := total % 3600
	return fmt.Sprintf("%02d hours, %02d minutes, %02d seconds", hours, rem/60, rem%60)
}

func MemoryMB(b int64) string {
	return fmt.Sprintf("%.2f MB", float64(b)/bytesPerMB)
}

func MemoryGB(b int64) string {
	return fmt.Sprintf("%.2f GB", float64(b)/bytesPerGB)
}

// Percent formats a load value that upstream already reports in the unit
// shown; it is not multiplied by 100.
func Percent(f float64) string {
	return fmt.Sprintf("%.2f%%", f)
}

func StatusMessage(online bool) string {
	if online {
		return StatusOnline
	}
	return StatusOffline
}
