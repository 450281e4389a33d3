// Package config loads the service configuration from TOML or YAML.
//
// Environment variables in the form ${VAR_NAME} are expanded before
// parsing, so secrets such as API keys can stay out of the file:
//
//	[models.openai]
//	provider = "openai"
//	model    = "gpt-4o-mini"
//	api_key  = "${OPENAI_API_KEY}"
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/hupe1980/useragents/logging"
)

// Model providers understood by the service.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderMock      = "mock"
)

// Config is the complete service configuration.
type Config struct {
	Server  ServerConfig           `toml:"server" yaml:"server"`
	Plugins PluginsConfig          `toml:"plugins" yaml:"plugins"`
	Runner  RunnerConfig           `toml:"runner" yaml:"runner"`
	Logging LoggingConfig          `toml:"logging" yaml:"logging"`
	Models  map[string]ModelConfig `toml:"models" yaml:"models"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Address     string `toml:"address" yaml:"address"`
	Port        int    `toml:"port" yaml:"port"`
	TLSCertFile string `toml:"tls_cert_file" yaml:"tls_cert_file"`
	TLSKeyFile  string `toml:"tls_key_file" yaml:"tls_key_file"`
	// PlainHTTP disables TLS even when cert and key files are configured.
	PlainHTTP    bool `toml:"plain_http" yaml:"plain_http"`
	StrictStatus bool `toml:"strict_status" yaml:"strict_status"`

	ShutdownTimeout    time.Duration `toml:"-" yaml:"-"`
	ShutdownTimeoutRaw string        `toml:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// PluginsConfig controls agent discovery.
type PluginsConfig struct {
	Dir              string `toml:"dir" yaml:"dir"`
	RejectDuplicates bool   `toml:"reject_duplicates" yaml:"reject_duplicates"`
	// Builtin lists compiled plugins to load in addition to the directory.
	Builtin []string `toml:"builtin" yaml:"builtin"`

	LoadTimeout    time.Duration `toml:"-" yaml:"-"`
	LoadTimeoutRaw string        `toml:"load_timeout" yaml:"load_timeout"`
}

// RunnerConfig bounds agent execution.
type RunnerConfig struct {
	MaxConcurrent int `toml:"max_concurrent" yaml:"max_concurrent"`
	MaxModelCalls int `toml:"max_model_calls" yaml:"max_model_calls"`

	Timeout    time.Duration `toml:"-" yaml:"-"`
	TimeoutRaw string        `toml:"timeout" yaml:"timeout"`
}

// LoggingConfig selects level and format of the process logger.
type LoggingConfig struct {
	Level  string `toml:"level" yaml:"level"`
	Format string `toml:"format" yaml:"format"`
}

// ModelConfig describes one entry of the model catalog.
type ModelConfig struct {
	Provider    string   `toml:"provider" yaml:"provider"`
	Model       string   `toml:"model" yaml:"model"`
	APIKey      string   `toml:"api_key" yaml:"api_key"`
	BaseURL     string   `toml:"base_url" yaml:"base_url"`
	Temperature *float64 `toml:"temperature" yaml:"temperature"`
	MaxTokens   int      `toml:"max_tokens" yaml:"max_tokens"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads the file at path, choosing the format by extension (.toml,
// .yaml or .yml). Defaults fill unset fields; the result is validated.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	return cfg, nil
}

// Parse decodes data in the format named by ext.
func Parse(data []byte, ext string) (*Config, error) {
	expanded := expandEnvVars(string(data))

	var cfg Config

	switch strings.ToLower(ext) {
	case ".toml":
		md, err := toml.Decode(expanded, &cfg)
		if err != nil {
			return nil, fmt.Errorf("parsing toml: %w", err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("unknown keys: %v", undecoded)
		}
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parsing yaml: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q", ext)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} with the variable's value, or the empty
// string when unset.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVarPattern.FindStringSubmatch(match)[1])
	})
}

func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"server.shutdown_timeout", cfg.Server.ShutdownTimeoutRaw, &cfg.Server.ShutdownTimeout},
		{"plugins.load_timeout", cfg.Plugins.LoadTimeoutRaw, &cfg.Plugins.LoadTimeout},
		{"runner.timeout", cfg.Runner.TimeoutRaw, &cfg.Runner.Timeout},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}

		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}

	return nil
}

func (c *Config) applyDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 443
	}
	if c.Server.TLSCertFile == "" {
		c.Server.TLSCertFile = "server.cert"
	}
	if c.Server.TLSKeyFile == "" {
		c.Server.TLSKeyFile = "server.key"
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 5 * time.Second
	}
	if c.Plugins.Dir == "" {
		c.Plugins.Dir = "/useragent/src/custom_agents"
	}
	if c.Plugins.LoadTimeout == 0 {
		c.Plugins.LoadTimeout = 10 * time.Second
	}
	if c.Runner.MaxModelCalls == 0 {
		c.Runner.MaxModelCalls = 25
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Models == nil {
		c.Models = map[string]ModelConfig{}
	}
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}

	if c.Runner.MaxConcurrent < 0 {
		return fmt.Errorf("runner.max_concurrent must not be negative")
	}

	if c.Runner.MaxModelCalls < 0 {
		return fmt.Errorf("runner.max_model_calls must not be negative")
	}

	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}

	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		return fmt.Errorf("logging.format must be json or text, got %q", c.Logging.Format)
	}

	for _, name := range c.ModelNames() {
		m := c.Models[name]
		switch m.Provider {
		case ProviderOpenAI, ProviderAnthropic, ProviderMock:
		default:
			return fmt.Errorf("models.%s: unknown provider %q", name, m.Provider)
		}
	}

	return nil
}

// TLSEnabled reports whether the server should serve HTTPS.
func (c *Config) TLSEnabled() bool {
	return !c.Server.PlainHTTP && c.Server.TLSCertFile != "" && c.Server.TLSKeyFile != ""
}

// ModelNames returns the configured model names sorted.
func (c *Config) ModelNames() []string {
	names := make([]string, 0, len(c.Models))
	for name := range c.Models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LoggerConfig translates the logging section. Level is validated by
// Validate; an unparsable level falls back to info.
func (c *Config) LoggerConfig() *logging.LoggerConfig {
	cfg := logging.DefaultLoggerConfig()

	if lvl, err := logging.ParseLevel(c.Logging.Level); err == nil {
		cfg.Level = lvl
	}
	cfg.Format = c.Logging.Format
	cfg.Component = "useragents"

	return cfg
}
