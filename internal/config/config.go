package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

const (
	DefaultServerAddress     = ":8090"
	DefaultProvider          = "openai"
	DefaultSessionStore      = "memory"
	DefaultSessionTTL        = 24 * time.Hour
	DefaultCompletionTimeout = 2 * time.Minute
	DefaultMaxOutputTokens   = 1000
)

var defaultModels = map[string]string{
	"openai": "gpt-4o",
	"claude": "claude-3-5-sonnet-latest",
	"gemini": "gemini-2.0-flash",
}

// Config represents runtime configuration for the service.
type Config struct {
	BasicConfig    BasicConfig               `json:"basic_config"`
	ActiveProvider string                    `json:"active_provider"`
	Providers      map[string]ProviderConfig `json:"providers"`
	SessionStore   string                    `json:"session_store"`
	Redis          RedisConfig               `json:"redis"`
	Databases      map[string]DatabaseConfig `json:"databases"`
	DatabaseType   string                    `json:"database_type"`
}

type ProviderConfig struct {
	BaseURL string `json:"base_url"`
	Model   string `json:"model"`
	APIKey  string `json:"api_key"`
}

type BasicConfig struct {
	ServerAddress string `json:"server_address"`
	Environment   string `json:"environment"`
	LogLevel      string `json:"log_level"`
	LogFormat     string `json:"log_format"`
	// minutes
	SessionTTL int `json:"session_ttl"`
	// seconds
	CompletionTimeout int `json:"completion_timeout"`
	MaxOutputTokens   int `json:"max_output_tokens"`
	// minutes
	CleanInterval int `json:"clean_interval"`
}

type RedisConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	Params   string `json:"params"`
}

// envOverrides lists the settings that may be supplied through the environment.
// Unset variables leave the file values untouched.
type envOverrides struct {
	ServerAddress  string `env:"STATWIZARD_ADDR"`
	Environment    string `env:"STATWIZARD_ENV"`
	LogLevel       string `env:"STATWIZARD_LOG_LEVEL"`
	LogFormat      string `env:"STATWIZARD_LOG_FORMAT"`
	ActiveProvider string `env:"STATWIZARD_PROVIDER"`
	Model          string `env:"STATWIZARD_MODEL"`
	SessionStore   string `env:"STATWIZARD_SESSION_STORE"`
	DatabaseType   string `env:"STATWIZARD_DB"`
	OpenAIKey      string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL  string `env:"OPENAI_BASE_URL"`
	ClaudeKey      string `env:"ANTHROPIC_API_KEY"`
	GeminiKey      string `env:"GEMINI_API_KEY"`
	RedisHost      string `env:"REDIS_HOST"`
	RedisPort      int    `env:"REDIS_PORT"`
	RedisPassword  string `env:"REDIS_PASSWORD"`
}

// Load reads configuration from the provided path. An empty path falls back to
// config.json, which may be absent; an explicit path must exist.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	explicit := path != ""
	if path == "" {
		path = "config.json"
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	file, err := os.Open(absPath)
	switch {
	case err == nil:
		defer file.Close()
		if err := json.NewDecoder(file).Decode(cfg); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("open config %s: %w", absPath, err)
	}

	if err := loadDotEnv(filepath.Dir(absPath)); err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	for name, db := range cfg.Databases {
		if name == "sqlite3" || name == "sqlite" {
			if db.DSN != "" && db.DSN != ":memory:" && !strings.HasPrefix(db.DSN, "file:") && !filepath.IsAbs(db.DSN) {
				db.DSN = filepath.Join(filepath.Dir(absPath), db.DSN)
				cfg.Databases[name] = db
			}
		}
	}
	return cfg, nil
}

// loadDotEnv reads a .env file next to the config file when one exists.
// Variables already present in the process environment win.
func loadDotEnv(dir string) error {
	path := filepath.Join(dir, ".env")
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	var ov envOverrides
	if err := env.Parse(&ov); err != nil {
		return fmt.Errorf("parse env config: %w", err)
	}
	setIf(&c.BasicConfig.ServerAddress, ov.ServerAddress)
	setIf(&c.BasicConfig.Environment, ov.Environment)
	setIf(&c.BasicConfig.LogLevel, ov.LogLevel)
	setIf(&c.BasicConfig.LogFormat, ov.LogFormat)
	setIf(&c.ActiveProvider, ov.ActiveProvider)
	setIf(&c.SessionStore, ov.SessionStore)
	setIf(&c.DatabaseType, ov.DatabaseType)
	setIf(&c.Redis.Host, ov.RedisHost)
	setIf(&c.Redis.Password, ov.RedisPassword)
	if ov.RedisPort > 0 {
		c.Redis.Port = ov.RedisPort
	}

	if c.Providers == nil {
		c.Providers = make(map[string]ProviderConfig)
	}
	c.overrideProvider("openai", ov.OpenAIKey, ov.OpenAIBaseURL)
	c.overrideProvider("claude", ov.ClaudeKey, "")
	c.overrideProvider("gemini", ov.GeminiKey, "")
	if ov.Model != "" {
		name := c.ActiveProvider
		if name == "" {
			name = DefaultProvider
		}
		p := c.Providers[name]
		p.Model = ov.Model
		c.Providers[name] = p
	}
	return nil
}

func (c *Config) overrideProvider(name, key, baseURL string) {
	if key == "" && baseURL == "" {
		return
	}
	p := c.Providers[name]
	setIf(&p.APIKey, key)
	setIf(&p.BaseURL, baseURL)
	c.Providers[name] = p
}

func (c *Config) applyDefaults() {
	if c.BasicConfig.ServerAddress == "" {
		c.BasicConfig.ServerAddress = DefaultServerAddress
	}
	if c.BasicConfig.Environment == "" {
		c.BasicConfig.Environment = "development"
	}
	if c.BasicConfig.LogLevel == "" {
		c.BasicConfig.LogLevel = "info"
	}
	if c.BasicConfig.MaxOutputTokens <= 0 {
		c.BasicConfig.MaxOutputTokens = DefaultMaxOutputTokens
	}
	if c.ActiveProvider == "" {
		c.ActiveProvider = DefaultProvider
	}
	if c.SessionStore == "" {
		c.SessionStore = DefaultSessionStore
	}
	if c.DatabaseType == "" {
		c.DatabaseType = "sqlite3"
	}
	p := c.Providers[c.ActiveProvider]
	if p.Model == "" {
		p.Model = defaultModels[c.ActiveProvider]
		c.Providers[c.ActiveProvider] = p
	}
}

func (c *Config) validate() error {
	if _, ok := defaultModels[c.ActiveProvider]; !ok {
		return fmt.Errorf("unsupported provider: %s", c.ActiveProvider)
	}
	switch c.SessionStore {
	case "memory", "redis", "sql":
	default:
		return fmt.Errorf("unsupported session_store: %s", c.SessionStore)
	}
	if c.SessionStore == "sql" {
		if _, ok := c.Databases[c.DatabaseType]; !ok {
			return fmt.Errorf("database config for %s not found", c.DatabaseType)
		}
	}
	return nil
}

// Provider returns the settings of the active completion provider.
func (c *Config) Provider() ProviderConfig {
	return c.Providers[c.ActiveProvider]
}

func (c *Config) SessionTTL() time.Duration {
	if c.BasicConfig.SessionTTL <= 0 {
		return DefaultSessionTTL
	}
	return time.Duration(c.BasicConfig.SessionTTL) * time.Minute
}

func (c *Config) CompletionTimeout() time.Duration {
	if c.BasicConfig.CompletionTimeout <= 0 {
		return DefaultCompletionTimeout
	}
	return time.Duration(c.BasicConfig.CompletionTimeout) * time.Second
}

func (c *Config) CleanInterval() time.Duration {
	if c.BasicConfig.CleanInterval <= 0 {
		return time.Hour
	}
	return time.Duration(c.BasicConfig.CleanInterval) * time.Minute
}

func setIf(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
