// Package monitor periodically checks the Lavalink nodes and keeps their
// liveness flags.
package monitor

import (
	"context"
	"log/slog"
	"time"

	"github.com/HenGPlayZ/lavalink-status/internal/lavalink"
	"github.com/HenGPlayZ/lavalink-status/internal/metrics"
)

// Defaults for Config fields left at zero.
const (
	DefaultInterval    = 60 * time.Second
	DefaultMaxAttempts = 5
	DefaultBaseDelay   = 2 * time.Second
)

// StatsFetcher is the part of the upstream client the monitor needs.
type StatsFetcher interface {
	Stats(ctx context.Context, node lavalink.Node) (*lavalink.Stats, error)
}

type Config struct {
	Interval     time.Duration
	MaxAttempts  int
	BaseDelay    time.Duration
	CheckOnStart bool
}

// Monitor runs the periodic liveness checks.
type Monitor struct {
	nodes   []lavalink.Node
	client  StatsFetcher
	store   *Store
	cfg     Config
	metrics *metrics.Collector

	// sleep waits for d or until ctx is done. Replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Monitor for the given nodes, checked in order.
func New(nodes []lavalink.Node, client StatsFetcher, store *Store, cfg Config, m *metrics.Collector) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultBaseDelay
	}
	for _, n := range nodes {
		m.SetNodeUp(n.Version.Key(), gaugeValue(store.Get(n.Version)))
	}
	return &Monitor{
		nodes:   nodes,
		client:  client,
		store:   store,
		cfg:     cfg,
		metrics: m,
		sleep:   sleepContext,
	}
}

// Backoff returns the delay before the retry that follows the given
// number of failed attempts: BaseDelay * 2^attempt.
func (m *Monitor) Backoff(attempt int) time.Duration {
	return m.cfg.BaseDelay << uint(attempt)
}

// WorstCaseTick estimates the longest a tick can take when every node is
// unreachable and every call runs into the timeout.
func WorstCaseTick(cfg Config, nodes int, callTimeout time.Duration) time.Duration {
	var perNode time.Duration
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		perNode += callTimeout
		if attempt < cfg.MaxAttempts {
			perNode += cfg.BaseDelay << uint(attempt)
		}
	}
	return time.Duration(nodes) * perNode
}

// Check tries to reach a node up to MaxAttempts times and returns the
// resulting flag. It does not modify the Store.
func (m *Monitor) Check(ctx context.Context, node lavalink.Node) Liveness {
	key := node.Version.Key()
	attempt := 0
	for attempt < m.cfg.MaxAttempts {
		_, err := m.client.Stats(ctx, node)
		m.metrics.IncCheckAttempt(key, err == nil)
		if err == nil {
			return Online
		}

		attempt++
		slog.Warn("lavalink check failed",
			"node", key,
			"attempt", attempt,
			"max_attempts", m.cfg.MaxAttempts,
			"error", err,
		)
		if attempt >= m.cfg.MaxAttempts {
			break
		}
		if err := m.sleep(ctx, m.Backoff(attempt)); err != nil {
			return Offline
		}
	}
	return Offline
}

// Tick checks every node in order and stores the results.
func (m *Monitor) Tick(ctx context.Context) {
	start := time.Now()
	attrs := make([]any, 0, len(m.nodes)*2+2)

	for _, node := range m.nodes {
		result := m.Check(ctx, node)
		if ctx.Err() != nil {
			return
		}
		if m.store.Set(node.Version, result) {
			slog.Info("lavalink status changed", "node", node.Version.Key(), "status", result)
		}
		m.metrics.SetNodeUp(node.Version.Key(), gaugeValue(result))
		attrs = append(attrs, node.Version.Key(), m.store.Get(node.Version))
	}

	elapsed := time.Since(start)
	m.metrics.ObserveTick(elapsed.Seconds())
	attrs = append(attrs, "duration", elapsed)
	slog.Info("lavalink status tick", attrs...)
}

// Run ticks every Interval until ctx is cancelled. Ticks run on a single
// goroutine and never overlap; ticks missed during a slow tick are dropped.
func (m *Monitor) Run(ctx context.Context) {
	slog.Info("starting status monitor",
		"interval", m.cfg.Interval,
		"max_attempts", m.cfg.MaxAttempts,
		"base_delay", m.cfg.BaseDelay,
		"nodes", len(m.nodes),
	)

	if m.cfg.CheckOnStart {
		m.Tick(ctx)
	}

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Tick(ctx)
		case <-ctx.Done():
			slog.Info("status monitor stopped")
			return
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func gaugeValue(l Liveness) float64 {
	switch l {
	case Online:
		return 1
	case Offline:
		return 0
	default:
		return -1
	}
}
