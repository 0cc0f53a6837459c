// Package upstream talks to the Lavalink nodes' REST API.
package upstream

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/HenGPlayZ/lavalink-status/internal/lavalink"
	"github.com/HenGPlayZ/lavalink-status/internal/metrics"
)

// DefaultTimeout bounds every upstream call when no timeout is configured.
const DefaultTimeout = 5 * time.Second

const maxBodyBytes = 1 << 20

// ErrUnavailable is returned for every failed call: transport errors,
// timeouts, non-2xx responses and undecodable bodies alike.
var ErrUnavailable = errors.New("upstream unavailable")

// Client performs bounded GET requests against Lavalink nodes.
type Client struct {
	httpClient *http.Client
	timeout    time.Duration
	metrics    *metrics.Collector
}

// New creates a Client. A non-positive timeout falls back to DefaultTimeout.
func New(timeout time.Duration, m *metrics.Collector) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		httpClient: &http.Client{},
		timeout:    timeout,
		metrics:    m,
	}
}

// SetTLSConfig replaces the transport's TLS settings, e.g. to trust a
// private CA in front of the nodes.
func (c *Client) SetTLSConfig(cfg *tls.Config) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = cfg
	c.httpClient.Transport = transport
}

// Timeout returns the per-call timeout.
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// FetchJSON GETs url with the given Authorization value and decodes the
// body into v. Any failure is logged with the URL and returned wrapped in
// ErrUnavailable.
func (c *Client) FetchJSON(ctx context.Context, url, password string, v any) error {
	if err := c.fetch(ctx, url, password, v); err != nil {
		slog.Warn("upstream call failed", "url", url, "error", err)
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (c *Client) fetch(ctx context.Context, url, password string, v any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", password)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Stats fetches the node's /stats payload.
func (c *Client) Stats(ctx context.Context, node lavalink.Node) (*lavalink.Stats, error) {
	var stats lavalink.Stats
	if err := c.observe(ctx, node, "stats", &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// Info fetches the node's /info payload.
func (c *Client) Info(ctx context.Context, node lavalink.Node) (*lavalink.Info, error) {
	var info lavalink.Info
	if err := c.observe(ctx, node, "info", &info); err != nil {
		return nil, err
	}
	slog.Debug("lavalink node info",
		"node", node.Version.Key(),
		"version", info.Version.Semver,
		"build_time", info.BuildTime,
		"jvm", info.JVM,
		"lavaplayer", info.Lavaplayer,
		"source_managers", info.SourceManagers,
		"plugins", len(info.Plugins),
	)
	return &info, nil
}

// Plugins returns the plugins reported by /info, or an empty list when the
// node cannot be reached.
func (c *Client) Plugins(ctx context.Context, node lavalink.Node) []lavalink.Plugin {
	info, err := c.Info(ctx, node)
	if err != nil || info.Plugins == nil {
		return []lavalink.Plugin{}
	}
	return info.Plugins
}

func (c *Client) observe(ctx context.Context, node lavalink.Node, endpoint string, v any) error {
	start := time.Now()
	err := c.FetchJSON(ctx, node.URL("/"+endpoint), node.Password, v)
	c.metrics.ObserveUpstream(node.Version.Key(), endpoint, time.Since(start).Seconds(), err == nil)
	return err
}
