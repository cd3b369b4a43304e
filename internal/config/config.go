// Package config loads filmreel.toml.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// DefaultFile is looked up in the working directory when no path is given.
const DefaultFile = "filmreel.toml"

// DefaultTimeout applies to both transports.
const DefaultTimeout = 30 * time.Second

// Config is the resolved configuration.
type Config struct {
	// Strict rejects observed fields the response template does not name.
	Strict bool
	// DB is the take log path; empty disables persistence.
	DB   string
	HTTP HTTPConfig
	GRPC GRPCConfig
}

// HTTPConfig configures the HTTP sender.
type HTTPConfig struct {
	BaseURL string
	Timeout time.Duration
	Headers map[string]string
}

// GRPCConfig configures the gRPC sender.
type GRPCConfig struct {
	Address   string
	Timeout   time.Duration
	Plaintext bool
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		HTTP: HTTPConfig{Timeout: DefaultTimeout, Headers: map[string]string{}},
		GRPC: GRPCConfig{Timeout: DefaultTimeout, Plaintext: true},
	}
}

type fileConfig struct {
	Strict bool           `toml:"strict"`
	DB     string         `toml:"db"`
	HTTP   fileHTTPConfig `toml:"http"`
	GRPC   fileGRPCConfig `toml:"grpc"`
}

type fileHTTPConfig struct {
	BaseURL string            `toml:"base_url"`
	Timeout string            `toml:"timeout"`
	Headers map[string]string `toml:"headers"`
}

type fileGRPCConfig struct {
	Address   string `toml:"address"`
	Timeout   string `toml:"timeout"`
	Plaintext bool   `toml:"plaintext"`
}

// Load reads path over the defaults. Unknown keys are rejected.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	cfg, err := Parse(string(data))
	if err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadOptional loads path, or DefaultFile when path is empty. A missing
// default file yields Default(); a missing explicit path is an error.
func LoadOptional(path string) (Config, error) {
	if path != "" {
		return Load(path)
	}
	cfg, err := Load(DefaultFile)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Parse decodes TOML text over the defaults.
func Parse(text string) (Config, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := toml.Decode(text, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("parse: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return Config{}, fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}

	if meta.IsDefined("strict") {
		cfg.Strict = raw.Strict
	}
	if meta.IsDefined("db") {
		cfg.DB = strings.TrimSpace(raw.DB)
	}

	if meta.IsDefined("http", "base_url") {
		cfg.HTTP.BaseURL = strings.TrimSpace(raw.HTTP.BaseURL)
	}
	if meta.IsDefined("http", "timeout") {
		d, err := parseTimeout(raw.HTTP.Timeout)
		if err != nil {
			return Config{}, fmt.Errorf("parse http.timeout: %w", err)
		}
		cfg.HTTP.Timeout = d
	}
	for k, v := range raw.HTTP.Headers {
		cfg.HTTP.Headers[k] = v
	}

	if meta.IsDefined("grpc", "address") {
		cfg.GRPC.Address = strings.TrimSpace(raw.GRPC.Address)
	}
	if meta.IsDefined("grpc", "timeout") {
		d, err := parseTimeout(raw.GRPC.Timeout)
		if err != nil {
			return Config{}, fmt.Errorf("parse grpc.timeout: %w", err)
		}
		cfg.GRPC.Timeout = d
	}
	if meta.IsDefined("grpc", "plaintext") {
		cfg.GRPC.Plaintext = raw.GRPC.Plaintext
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func parseTimeout(s string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %s", d)
	}
	return d, nil
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	if c.HTTP.BaseURL != "" && !strings.Contains(c.HTTP.BaseURL, "://") {
		return fmt.Errorf("http.base_url %q must include a scheme", c.HTTP.BaseURL)
	}
	for k := range c.HTTP.Headers {
		if strings.TrimSpace(k) == "" {
			return fmt.Errorf("http.headers contains an empty name")
		}
	}
	return nil
}
