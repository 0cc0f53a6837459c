package format

import (
	"testing"

	"github.com/HenGPlayZ/lavalink-status/internal/lavalink"
)

func sampleStats() *lavalink.Stats {
	return &lavalink.Stats{
		Players:        12,
		PlayingPlayers: 7,
		Uptime:         3661000,
		Memory: lavalink.Memory{
			Free:       104857600,
			Used:       52428800,
			Allocated:  157286400,
			Reservable: 4294967296,
		},
		CPU: lavalink.CPU{
			Cores:        4,
			SystemLoad:   0.256,
			LavalinkLoad: 12.5,
		},
	}
}

func leaves(r Record) []string {
	return []string{
		r.Players, r.PlayingPlayers, r.Uptime,
		r.Memory.Free, r.Memory.Used, r.Memory.Allocated, r.Memory.Reservable,
		r.CPU.Cores, r.CPU.SystemLoad, r.CPU.LavalinkLoad,
	}
}

func TestFormatOnline(t *testing.T) {
	got := Format(sampleStats(), true)

	want := Record{
		Players:        "12",
		PlayingPlayers: "7",
		Uptime:         "01 hours, 01 minutes, 01 seconds",
		Memory: Memory{
			Free:       "100.00 MB",
			Used:       "50.00 MB",
			Allocated:  "150.00 MB",
			Reservable: "4.00 GB",
		},
		CPU: CPU{
			Cores:        "4",
			SystemLoad:   "0.26%",
			LavalinkLoad: "12.50%",
		},
		StatusMessage: StatusOnline,
	}
	if got != want {
		t.Fatalf("Format() = %+v, want %+v", got, want)
	}
}

func TestFormatUnavailable(t *testing.T) {
	tests := []struct {
		name   string
		stats  *lavalink.Stats
		online bool
		status string
	}{
		{name: "nil stats offline", stats: nil, online: false, status: StatusOffline},
		{name: "stats but offline", stats: sampleStats(), online: false, status: StatusOffline},
		{name: "nil stats online", stats: nil, online: true, status: StatusOnline},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Format(tt.stats, tt.online)
			for i, v := range leaves(got) {
				if v != NA {
					t.Errorf("leaf %d = %q, want %q", i, v, NA)
				}
			}
			if got.StatusMessage != tt.status {
				t.Errorf("StatusMessage = %q, want %q", got.StatusMessage, tt.status)
			}
		})
	}
}

func TestFormatNeverMixes(t *testing.T) {
	for _, online := range []bool{true, false} {
		for _, stats := range []*lavalink.Stats{nil, sampleStats(), {}} {
			r := Format(stats, online)
			na := 0
			for _, v := range leaves(r) {
				if v == NA {
					na++
				}
			}
			if na != 0 && na != len(leaves(r)) {
				t.Errorf("Format(%v, %v) mixes real and %q values: %+v", stats, online, NA, r)
			}
		}
	}
}

func TestUptime(t *testing.T) {
	tests := []struct {
		ms   int64
		want string
	}{
		{0, "00 hours, 00 minutes, 00 seconds"},
		{999, "00 hours, 00 minutes, 00 seconds"},
		{59000, "00 hours, 00 minutes, 59 seconds"},
		{3661000, "01 hours, 01 minutes, 01 seconds"},
		{86399999, "23 hours, 59 minutes, 59 seconds"},
		{360000000, "100 hours, 00 minutes, 00 seconds"},
		{-5, "00 hours, 00 minutes, 00 seconds"},
	}
	for _, tt := range tests {
		if got := Uptime(tt.ms); got != tt.want {
			t.Errorf("Uptime(%d) = %q, want %q", tt.ms, got, tt.want)
		}
	}
}

func TestMemory(t *testing.T) {
	tests := []struct {
		name string
		fn   func(int64) string
		in   int64
		want string
	}{
		{"zero MB", MemoryMB, 0, "0.00 MB"},
		{"one MB", MemoryMB, 1048576, "1.00 MB"},
		{"fractional MB", MemoryMB, 1572864, "1.50 MB"},
		{"rounded MB", MemoryMB, 1053819, "1.01 MB"},
		{"zero GB", MemoryGB, 0, "0.00 GB"},
		{"one GB", MemoryGB, 1073741824, "1.00 GB"},
		{"quarter GB", MemoryGB, 268435456, "0.25 GB"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.fn(tt.in); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPercent(t *testing.T) {
	if got := Percent(0.5); got != "0.50%" {
		t.Errorf("Percent(0.5) = %q, want %q", got, "0.50%")
	}
	if got := Percent(87.126); got != "87.13%" {
		t.Errorf("Percent(87.126) = %q, want %q", got, "87.13%")
	}
}
