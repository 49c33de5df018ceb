// Package config loads the server configuration from an optional YAML file
// and environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nao1215/dataexplorer/summary"
)

// Engines accepted by Validate.
const (
	EngineSQLite = "sqlite"
	EngineDuckDB = "duckdb"
)

// Config is the complete server configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Log     LogConfig     `yaml:"log"`
	LLM     LLMConfig     `yaml:"llm"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	BodyLimit    string        `yaml:"body_limit"`
	AllowOrigins []string      `yaml:"allow_origins"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// StorageConfig selects the table store engine.
type StorageConfig struct {
	Engine    string `yaml:"engine"`
	DSN       string `yaml:"dsn"`
	UploadDir string `yaml:"upload_dir"`
	// Preload lists files or directories loaded as tables at startup.
	Preload []string `yaml:"preload"`
	// DumpDir receives a CSV export of every table at shutdown when set.
	DumpDir string `yaml:"dump_dir"`
}

// LogConfig configures the root logger.
type LogConfig struct {
	Level   string `yaml:"level"`
	Console bool   `yaml:"console"`
}

// LLMConfig configures the summary provider.
type LLMConfig struct {
	Provider     string        `yaml:"provider"`
	APIKey       string        `yaml:"api_key"`
	BaseURL      string        `yaml:"base_url"`
	Model        string        `yaml:"model"`
	GeminiAPIKey string        `yaml:"gemini_api_key"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxRetries   uint64        `yaml:"max_retries"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:         ":8000",
			BodyLimit:    "50M",
			AllowOrigins: []string{"*"},
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 120 * time.Second,
		},
		Storage: StorageConfig{
			Engine:    EngineSQLite,
			UploadDir: "uploads",
		},
		Log: LogConfig{
			Level: "info",
		},
		LLM: LLMConfig{
			Provider:   summary.ProviderMock,
			Model:      "llama2:7b-chat",
			Timeout:    30 * time.Second,
			MaxRetries: 2,
		},
	}
}

// LoadConfig reads path over the defaults and applies environment overrides.
// An empty path skips the file.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path) //nolint:gosec // path is supplied by the operator
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}
	if err := cfg.applyEnvironmentOverrides(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvironmentOverrides lets environment variables override file values.
func (c *Config) applyEnvironmentOverrides(lookup func(string) (string, bool)) error {
	str := map[string]*string{
		"DATAEXPLORER_ADDR":       &c.Server.Addr,
		"DATAEXPLORER_ENGINE":     &c.Storage.Engine,
		"DATAEXPLORER_DSN":        &c.Storage.DSN,
		"DATAEXPLORER_UPLOAD_DIR": &c.Storage.UploadDir,
		"DATAEXPLORER_DUMP_DIR":   &c.Storage.DumpDir,
		"DATAEXPLORER_LOG_LEVEL":  &c.Log.Level,
		"DATAEXPLORER_BODY_LIMIT": &c.Server.BodyLimit,
		"LLM_PROVIDER":            &c.LLM.Provider,
		"LLM_API_KEY":             &c.LLM.APIKey,
		"LLM_BASE_URL":            &c.LLM.BaseURL,
		"LLM_MODEL":               &c.LLM.Model,
		"GEMINI_API_KEY":          &c.LLM.GeminiAPIKey,
	}
	for name, dst := range str {
		if v, ok := lookup(name); ok && v != "" {
			*dst = v
		}
	}

	if v, ok := lookup("DATAEXPLORER_PRELOAD"); ok && v != "" {
		c.Storage.Preload = nil
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				c.Storage.Preload = append(c.Storage.Preload, p)
			}
		}
	}
	if v, ok := lookup("DATAEXPLORER_LOG_CONSOLE"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid DATAEXPLORER_LOG_CONSOLE %q: %w", v, err)
		}
		c.Log.Console = b
	}
	if v, ok := lookup("LLM_TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid LLM_TIMEOUT %q: %w", v, err)
		}
		c.LLM.Timeout = d
	}
	return nil
}

// Validate rejects unknown engines and providers and non-positive limits.
func (c *Config) Validate() error {
	var errs []error
	c.Storage.Engine = strings.ToLower(c.Storage.Engine)
	c.LLM.Provider = strings.ToLower(c.LLM.Provider)

	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr must not be empty"))
	}
	switch c.Storage.Engine {
	case EngineSQLite, EngineDuckDB:
	default:
		errs = append(errs, fmt.Errorf("unknown storage engine %q", c.Storage.Engine))
	}

	known := false
	for _, p := range summary.Providers() {
		if p.Name == c.LLM.Provider {
			known = true
			break
		}
	}
	if !known {
		errs = append(errs, fmt.Errorf("unknown llm provider %q", c.LLM.Provider))
	}
	if c.LLM.Timeout <= 0 {
		errs = append(errs, errors.New("llm.timeout must be positive"))
	}
	if c.Server.ReadTimeout <= 0 || c.Server.WriteTimeout <= 0 {
		errs = append(errs, errors.New("server timeouts must be positive"))
	}
	return errors.Join(errs...)
}

// SummaryConfig converts the LLM section for summary.New.
func (c *Config) SummaryConfig() summary.Config {
	return summary.Config{
		Provider:     c.LLM.Provider,
		APIKey:       c.LLM.APIKey,
		BaseURL:      c.LLM.BaseURL,
		Model:        c.LLM.Model,
		GeminiAPIKey: c.LLM.GeminiAPIKey,
		Timeout:      c.LLM.Timeout,
		MaxRetries:   c.LLM.MaxRetries,
	}
}
