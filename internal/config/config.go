package config

import (
	"encoding/json"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jsmonitor/livesync/internal/errors"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "livesync.json"

	// DefaultFeedURL is the status feed endpoint.
	DefaultFeedURL = "ws://localhost:8080/api/v1/ws"

	// DefaultConsoleURL is the remote console endpoint.
	DefaultConsoleURL = "ws://localhost:8080/api/v1/rcon"

	// DefaultAPIURL is the REST API base URL.
	DefaultAPIURL = "http://localhost:8080/api/v1"

	// DefaultCredentialParam is the console credential query parameter.
	DefaultCredentialParam = "key"

	// DefaultCredentialEnv is the variable holding the console credential.
	DefaultCredentialEnv = "LIVESYNC_API_KEY"

	// DefaultMetricsAddress is the listen address of the watch HTTP server.
	DefaultMetricsAddress = ":9464"

	// DefaultNamespace is the Prometheus namespace.
	DefaultNamespace = "livesync"
)

// Environment variable names.
const (
	EnvFeedURL    = "LIVESYNC_FEED_URL"
	EnvConsoleURL = "LIVESYNC_CONSOLE_URL"
	EnvAPIURL     = "LIVESYNC_API_URL"
	EnvLogLevel   = "LIVESYNC_LOG_LEVEL"
)

// Config represents the complete livesync.json configuration.
type Config struct {
	// Feed configures the status feed.
	Feed FeedConfig `json:"feed"`

	// Console configures remote console sessions.
	Console ConsoleConfig `json:"console"`

	// API configures the REST client used to seed the server list.
	API APIConfig `json:"api"`

	// Transport contains WebSocket connection settings.
	Transport TransportConfig `json:"transport"`

	// Metrics configures the watch HTTP server.
	Metrics MetricsConfig `json:"metrics"`

	// Log configures logging.
	Log LogConfig `json:"log"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// FeedConfig contains status feed settings.
type FeedConfig struct {
	// URL is the feed WebSocket endpoint.
	URL string `json:"url,omitempty"`

	// Backoff is the reconnect policy.
	Backoff BackoffConfig `json:"backoff"`
}

// BackoffConfig contains reconnect delay bounds as duration strings.
type BackoffConfig struct {
	// Initial is the delay before the first reconnect (e.g., "1s").
	Initial string `json:"initial,omitempty"`

	// Max caps the delay (e.g., "30s").
	Max string `json:"max,omitempty"`
}

// ConsoleConfig contains remote console settings.
type ConsoleConfig struct {
	// URL is the console WebSocket endpoint.
	URL string `json:"url,omitempty"`

	// CredentialParam is the query parameter carrying the credential.
	CredentialParam string `json:"credentialParam,omitempty"`

	// CredentialEnv names the environment variable holding the credential.
	CredentialEnv string `json:"credentialEnv,omitempty"`
}

// APIConfig contains REST API settings.
type APIConfig struct {
	// URL is the API base URL.
	URL string `json:"url,omitempty"`

	// Timeout bounds each request (e.g., "10s").
	Timeout string `json:"timeout,omitempty"`
}

// TransportConfig contains WebSocket settings.
type TransportConfig struct {
	HandshakeTimeout string `json:"handshakeTimeout,omitempty"`
	WriteTimeout     string `json:"writeTimeout,omitempty"`
	ReadTimeout      string `json:"readTimeout,omitempty"`
	PingInterval     string `json:"pingInterval,omitempty"`
	MaxMessageSize   int64  `json:"maxMessageSize,omitempty"`
}

// MetricsConfig contains metrics endpoint settings.
type MetricsConfig struct {
	// Enabled starts the HTTP server in watch mode.
	Enabled bool `json:"enabled"`

	// Address is the listen address.
	Address string `json:"address,omitempty"`

	// Namespace is the Prometheus namespace.
	Namespace string `json:"namespace,omitempty"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `json:"level,omitempty"`

	// Format is text or json.
	Format string `json:"format,omitempty"`
}

// TransportSettings are the parsed transport durations.
type TransportSettings struct {
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	ReadTimeout      time.Duration
	PingInterval     time.Duration
	MaxMessageSize   int64
}

// New creates a new Config with default values.
func New() *Config {
	return &Config{
		Feed: FeedConfig{
			URL:     DefaultFeedURL,
			Backoff: BackoffConfig{Initial: "1s", Max: "30s"},
		},
		Console: ConsoleConfig{
			URL:             DefaultConsoleURL,
			CredentialParam: DefaultCredentialParam,
			CredentialEnv:   DefaultCredentialEnv,
		},
		API: APIConfig{
			URL:     DefaultAPIURL,
			Timeout: "10s",
		},
		Transport: TransportConfig{
			HandshakeTimeout: "10s",
			WriteTimeout:     "10s",
			ReadTimeout:      "60s",
			PingInterval:     "30s",
			MaxMessageSize:   64 * 1024,
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Address:   DefaultMetricsAddress,
			Namespace: DefaultNamespace,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from livesync.json in dir.
func Load(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, ConfigFileName))
}

// LoadOrDefault is Load, except that a missing file yields New().
func LoadOrDefault(dir string) (*Config, error) {
	cfg, err := Load(dir)
	if errors.HasCode(err, "E100") {
		return New(), nil
	}
	return cfg, err
}

// LoadFile loads configuration from a specific file path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("E100").
				WithDetail("No livesync.json found in " + filepath.Dir(path)).
				WithSuggestion("Run 'livesync init' to write a default configuration")
		}
		return nil, errors.New("E101").Wrap(err)
	}

	cfg := New()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.New("E101").
			WithDetail("Failed to parse livesync.json: " + err.Error()).
			WithSuggestion("Check that livesync.json is valid JSON")
	}

	cfg.configPath = path
	cfg.applyDefaults()

	return cfg, nil
}

// SaveTo writes the configuration to path.
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.New("E101").Wrap(err)
	}

	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New("E101").Wrap(err)
	}

	c.configPath = path
	return nil
}

// Path returns the path the config was loaded from or saved to.
func (c *Config) Path() string {
	return c.configPath
}

// applyDefaults fills in zero values left by a partial file.
func (c *Config) applyDefaults() {
	d := New()

	if c.Feed.URL == "" {
		c.Feed.URL = d.Feed.URL
	}
	if c.Feed.Backoff.Initial == "" {
		c.Feed.Backoff.Initial = d.Feed.Backoff.Initial
	}
	if c.Feed.Backoff.Max == "" {
		c.Feed.Backoff.Max = d.Feed.Backoff.Max
	}

	if c.Console.URL == "" {
		c.Console.URL = d.Console.URL
	}
	if c.Console.CredentialParam == "" {
		c.Console.CredentialParam = d.Console.CredentialParam
	}
	if c.Console.CredentialEnv == "" {
		c.Console.CredentialEnv = d.Console.CredentialEnv
	}

	if c.API.URL == "" {
		c.API.URL = d.API.URL
	}
	if c.API.Timeout == "" {
		c.API.Timeout = d.API.Timeout
	}

	if c.Transport.HandshakeTimeout == "" {
		c.Transport.HandshakeTimeout = d.Transport.HandshakeTimeout
	}
	if c.Transport.WriteTimeout == "" {
		c.Transport.WriteTimeout = d.Transport.WriteTimeout
	}
	if c.Transport.ReadTimeout == "" {
		c.Transport.ReadTimeout = d.Transport.ReadTimeout
	}
	if c.Transport.PingInterval == "" {
		c.Transport.PingInterval = d.Transport.PingInterval
	}
	if c.Transport.MaxMessageSize == 0 {
		c.Transport.MaxMessageSize = d.Transport.MaxMessageSize
	}

	if c.Metrics.Address == "" {
		c.Metrics.Address = d.Metrics.Address
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = d.Metrics.Namespace
	}

	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = d.Log.Format
	}
}

// ApplyEnv overrides fields from the environment. lookup is usually
// os.LookupEnv. Empty values are ignored.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	set := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	set(EnvFeedURL, &c.Feed.URL)
	set(EnvConsoleURL, &c.Console.URL)
	set(EnvAPIURL, &c.API.URL)
	set(EnvLogLevel, &c.Log.Level)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	for _, u := range []struct{ field, value string }{
		{"feed.url", c.Feed.URL},
		{"console.url", c.Console.URL},
		{"api.url", c.API.URL},
	} {
		if err := validateURL(u.field, u.value); err != nil {
			return err
		}
	}

	initial, max, err := c.Backoff()
	if err != nil {
		return err
	}
	if initial <= 0 || max < initial {
		return errors.New("E103").
			WithDetailf("feed.backoff: initial %s must be positive and not above max %s", initial, max)
	}

	if _, err := c.APITimeout(); err != nil {
		return err
	}
	ts, err := c.TransportSettings()
	if err != nil {
		return err
	}
	if ts.MaxMessageSize < 0 {
		return errors.New("E103").WithDetail("transport.maxMessageSize must not be negative")
	}

	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return errors.New("E103").
			WithDetailf("log.format %q", c.Log.Format).
			WithSuggestion("Use \"text\" or \"json\"")
	}
	return nil
}

// Backoff returns the parsed reconnect bounds.
func (c *Config) Backoff() (initial, max time.Duration, err error) {
	if initial, err = parseDuration("feed.backoff.initial", c.Feed.Backoff.Initial); err != nil {
		return 0, 0, err
	}
	if max, err = parseDuration("feed.backoff.max", c.Feed.Backoff.Max); err != nil {
		return 0, 0, err
	}
	return initial, max, nil
}

// APITimeout returns the parsed REST timeout.
func (c *Config) APITimeout() (time.Duration, error) {
	return parseDuration("api.timeout", c.API.Timeout)
}

// TransportSettings returns the parsed transport settings.
func (c *Config) TransportSettings() (TransportSettings, error) {
	var (
		ts  TransportSettings
		err error
	)
	fields := []struct {
		name  string
		value string
		dst   *time.Duration
	}{
		{"transport.handshakeTimeout", c.Transport.HandshakeTimeout, &ts.HandshakeTimeout},
		{"transport.writeTimeout", c.Transport.WriteTimeout, &ts.WriteTimeout},
		{"transport.readTimeout", c.Transport.ReadTimeout, &ts.ReadTimeout},
		{"transport.pingInterval", c.Transport.PingInterval, &ts.PingInterval},
	}
	for _, f := range fields {
		if *f.dst, err = parseDuration(f.name, f.value); err != nil {
			return TransportSettings{}, err
		}
	}
	ts.MaxMessageSize = c.Transport.MaxMessageSize
	return ts, nil
}

// SlogLevel returns the configured log level.
func (c *Config) SlogLevel() (slog.Level, error) {
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, errors.New("E103").
			WithDetailf("log.level %q", c.Log.Level).
			WithSuggestion("Use debug, info, warn or error")
	}
}

func parseDuration(field, value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, errors.New("E102").
			WithDetailf("%s: %q is not a duration", field, value).
			WithSuggestion("Use values such as \"500ms\", \"1s\" or \"30s\"")
	}
	if d < 0 {
		return 0, errors.New("E102").WithDetailf("%s: %q is negative", field, value)
	}
	return d, nil
}

func validateURL(field, value string) error {
	u, err := url.Parse(value)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New("E103").
			WithDetailf("%s: %q is not an absolute URL", field, value)
	}
	return nil
}
