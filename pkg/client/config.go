package client

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/keeper-client/keeper-go/pkg/ensemble"
	"github.com/keeper-client/keeper-go/pkg/log"
	"github.com/keeper-client/keeper-go/pkg/metrics"
	"github.com/keeper-client/keeper-go/pkg/retry"
)

// Configuration errors.
var (
	ErrInvalidConfig     = errors.New("invalid configuration")
	ErrUnsupportedFormat = errors.New("unsupported config file format")
)

// Config configures a Client. It is immutable once passed to New.
type Config struct {
	// SessionTimeout is requested from the ensemble for every session.
	SessionTimeout time.Duration `yaml:"session_timeout" toml:"session_timeout"`

	// ConnectTimeout bounds Client.Connect. Zero waits until the session is
	// established or the context ends.
	ConnectTimeout time.Duration `yaml:"connect_timeout" toml:"connect_timeout"`

	// Servers lists the ensemble endpoints as host or host:port.
	Servers []string `yaml:"servers" toml:"servers"`

	// Namespace is an optional path prefix scoping the client.
	Namespace string `yaml:"namespace,omitempty" toml:"namespace,omitempty"`

	// Credentials, if set, are attached to every new session.
	Credentials *Credentials `yaml:"credentials,omitempty" toml:"credentials,omitempty"`

	// TraceFile, if set, receives a CBOR trace of the client's lifecycle.
	TraceFile string `yaml:"trace_file,omitempty" toml:"trace_file,omitempty"`

	// Retry is the policy used by Client.Do.
	Retry retry.Policy `yaml:"retry" toml:"retry"`

	// Logger is the optional logger for debug output.
	// If nil, logging is disabled.
	Logger *slog.Logger `yaml:"-" toml:"-"`

	// Trace is an optional trace logger. It is combined with TraceFile when
	// both are set.
	Trace log.Logger `yaml:"-" toml:"-"`

	// Metrics is the optional metrics collector.
	Metrics *metrics.Collector `yaml:"-" toml:"-"`
}

// Credentials are an authentication scheme and its token.
type Credentials struct {
	Scheme string `yaml:"scheme" toml:"scheme"`
	Token  string `yaml:"token" toml:"token"`
}

// DefaultConfig returns a Config with sensible defaults. Servers must still
// be set.
func DefaultConfig() Config {
	return Config{
		SessionTimeout: 10 * time.Second,
		Retry:          retry.DefaultPolicy(),
	}
}

// Validate checks if the config is valid.
func (c *Config) Validate() error {
	if c.SessionTimeout <= 0 {
		return fmt.Errorf("%w: session timeout must be positive", ErrInvalidConfig)
	}
	if c.ConnectTimeout < 0 {
		return fmt.Errorf("%w: connect timeout must not be negative", ErrInvalidConfig)
	}
	if c.Credentials != nil && c.Credentials.Scheme == "" {
		return fmt.Errorf("%w: credentials need a scheme", ErrInvalidConfig)
	}
	if c.Retry.MaxAttempts < 0 {
		return fmt.Errorf("%w: retry attempts must not be negative", ErrInvalidConfig)
	}
	if _, err := c.ensemble(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

func (c *Config) ensemble() (*ensemble.Ensemble, error) {
	return ensemble.New(c.Servers, c.Namespace)
}

// LoadConfig reads a YAML (.yaml, .yml) or TOML (.toml) config file.
// ${VAR} references are expanded from the environment before parsing.
// Fields absent from the file keep their DefaultConfig values.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	expanded := os.ExpandEnv(string(data))

	cfg := DefaultConfig()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".toml":
		if _, err := toml.Decode(expanded, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		return Config{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}
