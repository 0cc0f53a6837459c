package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/HenGPlayZ/lavalink-status/internal/clientip"
	"github.com/HenGPlayZ/lavalink-status/internal/lavalink"
	"github.com/HenGPlayZ/lavalink-status/internal/monitor"
	"github.com/HenGPlayZ/lavalink-status/internal/upstream"
)

// Config holds all configuration for the status server process.
type Config struct {
	Nodes     NodesConfig     `yaml:"nodes"`
	API       APIConfig       `yaml:"api"`
	Upstream  UpstreamConfig  `yaml:"upstream"`
	Monitor   MonitorConfig   `yaml:"monitor"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	TLS       TLSConfig       `yaml:"tls"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

type NodesConfig struct {
	V3 NodeConfig `yaml:"v3"`
	V4 NodeConfig `yaml:"v4"`
}

type NodeConfig struct {
	Name     string `yaml:"name"`
	Host     string `yaml:"host"`
	Password string `yaml:"password"`
}

type APIConfig struct {
	ListenAddr     string        `yaml:"listen_addr"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	TrustedProxies []string      `yaml:"trusted_proxies"`
}

type UpstreamConfig struct {
	Timeout time.Duration `yaml:"timeout"`
	CA      string        `yaml:"ca"`
}

type MonitorConfig struct {
	Interval     time.Duration `yaml:"interval"`
	MaxAttempts  int           `yaml:"max_attempts"`
	BaseDelay    time.Duration `yaml:"base_delay"`
	CheckOnStart bool          `yaml:"check_on_start"`
}

type RateLimitConfig struct {
	Enabled             bool          `yaml:"enabled"`
	RequestsPerInterval int           `yaml:"requests_per_interval"`
	Interval            time.Duration `yaml:"interval"`
	CleanupInterval     time.Duration `yaml:"cleanup_interval"`
	StaleAfter          time.Duration `yaml:"stale_after"`
}

type TLSConfig struct {
	Cert string `yaml:"cert"`
	Key  string `yaml:"key"`
}

type MetricsConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ListenAddr string `yaml:"listen_addr"`
}

// DefaultAllowedOrigins are the browser origins always permitted by CORS.
var DefaultAllowedOrigins = []string{
	"https://status.lavalink.rocks",
	"https://api.lavalink.rocks",
	"http://node.hengnation.eu:25566",
}

// Load reads a configuration from a YAML file, then applies a .env file
// and environment variable overrides. An empty path skips the YAML step.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	// A missing .env file is normal outside development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("LAVALINK_V3_HOST"); v != "" {
		cfg.Nodes.V3.Host = v
	}
	if v := os.Getenv("LAVALINK_V3_PASSWORD"); v != "" {
		cfg.Nodes.V3.Password = v
	}
	if v := os.Getenv("LAVALINK_V4_HOST"); v != "" {
		cfg.Nodes.V4.Host = v
	}
	if v := os.Getenv("LAVALINK_V4_PASSWORD"); v != "" {
		cfg.Nodes.V4.Password = v
	}
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.ParseUint(v, 10, 16)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		cfg.API.ListenAddr = fmt.Sprintf(":%d", port)
	}
	if v := os.Getenv("API_TIMEOUT"); v != "" {
		d, err := parseTimeout(v)
		if err != nil {
			return fmt.Errorf("invalid API_TIMEOUT %q: %w", v, err)
		}
		cfg.Upstream.Timeout = d
	}
	if v := os.Getenv("STATUS_TLS_CERT"); v != "" {
		cfg.TLS.Cert = v
	}
	if v := os.Getenv("STATUS_TLS_KEY"); v != "" {
		cfg.TLS.Key = v
	}
	return nil
}

// parseTimeout accepts plain milliseconds ("5000") or a Go duration ("5s").
func parseTimeout(v string) (time.Duration, error) {
	if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	return time.ParseDuration(v)
}

// Defaults returns a Config with default values.
func Defaults() *Config {
	return &Config{
		Nodes: NodesConfig{
			V3: NodeConfig{Name: "Horizxon Lavalink v3"},
			V4: NodeConfig{Name: "Horizxon Lavalink v4"},
		},
		API: APIConfig{
			ListenAddr:     ":3000",
			WriteTimeout:   30 * time.Second,
			ReadTimeout:    5 * time.Second,
			AllowedOrigins: append([]string(nil), DefaultAllowedOrigins...),
			TrustedProxies: append([]string(nil), clientip.DefaultTrustedProxies...),
		},
		Upstream: UpstreamConfig{
			Timeout: upstream.DefaultTimeout,
		},
		Monitor: MonitorConfig{
			Interval:     monitor.DefaultInterval,
			MaxAttempts:  monitor.DefaultMaxAttempts,
			BaseDelay:    monitor.DefaultBaseDelay,
			CheckOnStart: true,
		},
		RateLimit: RateLimitConfig{
			Enabled:             false,
			RequestsPerInterval: 30,
			Interval:            1 * time.Minute,
			CleanupInterval:     1 * time.Minute,
			StaleAfter:          5 * time.Minute,
		},
		Metrics: MetricsConfig{
			Enabled:    false,
			ListenAddr: ":9091",
		},
	}
}

// Validate reports configuration that would keep the server from working.
// A worst-case monitor tick longer than the interval only logs a warning.
func (c *Config) Validate() error {
	var errs []error
	for _, n := range []struct {
		key string
		cfg NodeConfig
	}{{"v3", c.Nodes.V3}, {"v4", c.Nodes.V4}} {
		if strings.TrimSpace(n.cfg.Host) == "" {
			errs = append(errs, fmt.Errorf("nodes.%s.host is required", n.key))
		} else if !strings.HasPrefix(n.cfg.Host, "http://") && !strings.HasPrefix(n.cfg.Host, "https://") {
			errs = append(errs, fmt.Errorf("nodes.%s.host must start with http:// or https://", n.key))
		}
	}
	if c.Upstream.Timeout <= 0 {
		errs = append(errs, errors.New("upstream.timeout must be positive"))
	}
	if c.Monitor.Interval <= 0 {
		errs = append(errs, errors.New("monitor.interval must be positive"))
	}
	if c.Monitor.MaxAttempts < 1 {
		errs = append(errs, errors.New("monitor.max_attempts must be at least 1"))
	}
	if c.Monitor.BaseDelay <= 0 {
		errs = append(errs, errors.New("monitor.base_delay must be positive"))
	}
	if (c.TLS.Cert == "") != (c.TLS.Key == "") {
		errs = append(errs, errors.New("tls.cert and tls.key must be set together"))
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	if worst := monitor.WorstCaseTick(c.MonitorSettings(), 2, c.Upstream.Timeout); worst > c.Monitor.Interval {
		slog.Warn("worst-case monitor tick exceeds the interval; late ticks will be skipped",
			"worst_case", worst,
			"interval", c.Monitor.Interval,
		)
	}
	return nil
}

// NodeList returns the node descriptors in check order.
func (c *Config) NodeList() []lavalink.Node {
	return []lavalink.Node{
		{Version: lavalink.V3, Name: c.Nodes.V3.Name, Host: c.Nodes.V3.Host, Password: c.Nodes.V3.Password},
		{Version: lavalink.V4, Name: c.Nodes.V4.Name, Host: c.Nodes.V4.Host, Password: c.Nodes.V4.Password},
	}
}

// MonitorSettings converts the monitor section for monitor.New.
func (c *Config) MonitorSettings() monitor.Config {
	return monitor.Config{
		Interval:     c.Monitor.Interval,
		MaxAttempts:  c.Monitor.MaxAttempts,
		BaseDelay:    c.Monitor.BaseDelay,
		CheckOnStart: c.Monitor.CheckOnStart,
	}
}
