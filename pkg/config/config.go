// Package config provides configuration structures and loading logic for
// the routing gateway. Configuration is read once at process start from
// an optional YAML file with environment variable overrides, validated,
// and treated as immutable afterwards.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/project-seraphim/inference-gateway/pkg/domain"
)

// Defaults applied when neither file nor environment provide a value.
const (
	DefaultListenAddress     = ":8080"
	DefaultCanaryPercent     = 10
	DefaultStickyHeader      = "X-User-Id"
	DefaultForceHeader       = "X-Canary"
	DefaultCorrelationHeader = "X-Correlation-Id"
	DefaultTimeoutMS         = 3000
)

// Config holds the global configuration for the gateway.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Routing   RoutingConfig   `yaml:"routing"`
	Backends  BackendsConfig  `yaml:"backends"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds configuration for the HTTP server.
type ServerConfig struct {
	Address string `yaml:"address"`
}

// RoutingConfig holds the canary routing policy knobs.
type RoutingConfig struct {
	CanaryPercent     int    `yaml:"canary_percent"`
	StickyHeader      string `yaml:"sticky_header"`
	ForceHeader       string `yaml:"force_header"`
	CorrelationHeader string `yaml:"correlation_header"`
	TimeoutMS         int    `yaml:"timeout_ms"`
}

// BackendConfig describes one backend model server.
type BackendConfig struct {
	URL          string `yaml:"url"`
	ModelName    string `yaml:"model_name"`
	ModelVersion string `yaml:"model_version"`
}

// BackendsConfig maps the two variants to their backends.
type BackendsConfig struct {
	Baseline  BackendConfig `yaml:"baseline"`
	Candidate BackendConfig `yaml:"candidate"`
}

// TelemetryConfig holds configuration for OpenTelemetry export.
type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	Insecure     bool   `yaml:"insecure"`
}

// LoggingConfig holds configuration for logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Load reads configuration from an optional file, applies environment
// variable overrides and validates the result. A validation failure is
// fatal: the process must not serve traffic with a broken policy.
func Load(path string) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{Address: DefaultListenAddress},
		Routing: RoutingConfig{
			CanaryPercent:     DefaultCanaryPercent,
			StickyHeader:      DefaultStickyHeader,
			ForceHeader:       DefaultForceHeader,
			CorrelationHeader: DefaultCorrelationHeader,
			TimeoutMS:         DefaultTimeoutMS,
		},
		Logging: LoggingConfig{Level: "info"},
	}

	if path != "" {
		//nolint:gosec // Config file path is controlled by the operator
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	if val := os.Getenv("TS_URL"); val != "" {
		cfg.Backends.Baseline.URL = val
	}
	if val := os.Getenv("TS_URL_CANDIDATE"); val != "" {
		cfg.Backends.Candidate.URL = val
	}
	if val := os.Getenv("MODEL_NAME_BASELINE"); val != "" {
		cfg.Backends.Baseline.ModelName = val
	}
	if val := os.Getenv("MODEL_NAME_CANDIDATE"); val != "" {
		cfg.Backends.Candidate.ModelName = val
	}
	if val := os.Getenv("MODEL_VERSION_BASELINE"); val != "" {
		cfg.Backends.Baseline.ModelVersion = val
	}
	if val := os.Getenv("MODEL_VERSION_CANDIDATE"); val != "" {
		cfg.Backends.Candidate.ModelVersion = val
	}

	if val := os.Getenv("CANARY_PERCENT"); val != "" {
		percent, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			return fmt.Errorf("%w: CANARY_PERCENT %q is not an integer", domain.ErrConfigInvalid, val)
		}
		cfg.Routing.CanaryPercent = percent
	}
	if val := os.Getenv("CANARY_STICKY_HEADER"); val != "" {
		cfg.Routing.StickyHeader = val
	}
	if val := os.Getenv("CANARY_FORCE_HEADER"); val != "" {
		cfg.Routing.ForceHeader = val
	}
	if val := os.Getenv("GATEWAY_CORRELATION_HEADER"); val != "" {
		cfg.Routing.CorrelationHeader = val
	}
	if val := os.Getenv("TS_TIMEOUT_MS"); val != "" {
		timeout, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			return fmt.Errorf("%w: TS_TIMEOUT_MS %q is not an integer", domain.ErrConfigInvalid, val)
		}
		cfg.Routing.TimeoutMS = timeout
	}

	if val := os.Getenv("GATEWAY_LISTEN_ADDR"); val != "" {
		cfg.Server.Address = val
	}
	if val := os.Getenv("GATEWAY_OTLP_ENDPOINT"); val != "" {
		cfg.Telemetry.OTLPEndpoint = val
	}
	if val := os.Getenv("GATEWAY_OTLP_INSECURE"); val == "true" {
		cfg.Telemetry.Insecure = true
	}
	if val := os.Getenv("GATEWAY_LOG_LEVEL"); val != "" {
		cfg.Logging.Level = val
	}

	return nil
}

// Validate performs validation of the entire configuration.
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server configuration: %w", err)
	}
	if err := c.Routing.Validate(); err != nil {
		return fmt.Errorf("routing configuration: %w", err)
	}
	if err := c.Backends.Validate(); err != nil {
		return fmt.Errorf("backend configuration: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging configuration: %w", err)
	}
	return nil
}

// Validate performs validation of server configuration.
func (c *ServerConfig) Validate() error {
	if strings.TrimSpace(c.Address) == "" {
		c.Address = DefaultListenAddress
	}
	return nil
}

// Validate normalizes the routing policy. An out-of-range percentage is
// clamped to the nearest bound rather than rejected; a non-positive
// timeout has no sane interpretation and is fatal.
func (c *RoutingConfig) Validate() error {
	if c.CanaryPercent < 0 {
		c.CanaryPercent = 0
	}
	if c.CanaryPercent > 100 {
		c.CanaryPercent = 100
	}
	if strings.TrimSpace(c.StickyHeader) == "" {
		c.StickyHeader = DefaultStickyHeader
	}
	if strings.TrimSpace(c.ForceHeader) == "" {
		c.ForceHeader = DefaultForceHeader
	}
	if strings.TrimSpace(c.CorrelationHeader) == "" {
		c.CorrelationHeader = DefaultCorrelationHeader
	}
	if c.TimeoutMS <= 0 {
		return fmt.Errorf("%w: timeout must be a positive number of milliseconds, got %d", domain.ErrConfigInvalid, c.TimeoutMS)
	}
	return nil
}

// Validate checks the backend URLs. The candidate backend inherits the
// baseline URL when unset, matching the TS_URL_CANDIDATE default.
func (c *BackendsConfig) Validate() error {
	if strings.TrimSpace(c.Baseline.URL) == "" {
		return fmt.Errorf("%w: baseline backend URL is required", domain.ErrConfigInvalid)
	}
	if err := validateBackendURL(c.Baseline.URL); err != nil {
		return fmt.Errorf("baseline: %w", err)
	}

	if strings.TrimSpace(c.Candidate.URL) == "" {
		c.Candidate.URL = c.Baseline.URL
	}
	if err := validateBackendURL(c.Candidate.URL); err != nil {
		return fmt.Errorf("candidate: %w", err)
	}

	return nil
}

func validateBackendURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: malformed backend URL %q: %v", domain.ErrConfigInvalid, raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: backend URL %q must use http or https", domain.ErrConfigInvalid, raw)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: backend URL %q has no host", domain.ErrConfigInvalid, raw)
	}
	return nil
}

// Validate performs validation of logging configuration.
func (c *LoggingConfig) Validate() error {
	if strings.TrimSpace(c.Level) == "" {
		c.Level = "info"
	}

	level := strings.TrimSpace(strings.ToLower(c.Level))
	switch level {
	case "debug", "info", "warn", "error":
		c.Level = level
		return nil
	default:
		return fmt.Errorf("%w: invalid log level %q, supported levels: debug, info, warn, error", domain.ErrConfigInvalid, c.Level)
	}
}
