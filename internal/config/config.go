// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type BackendConfig struct {
	Mode             string        `yaml:"mode"` // http | openai
	BaseURL          string        `yaml:"base_url"`
	Timeout          time.Duration `yaml:"timeout"`
	AttachCredential bool          `yaml:"attach_credential"`
}

type AIConfig struct {
	OpenAIKey       string `yaml:"openai_key"`
	BaseURL         string `yaml:"base_url"`
	DefaultModel    string `yaml:"default_model"`
	MaxPromptTokens int    `yaml:"max_prompt_tokens"`
}

type ChatConfig struct {
	EscalationDelay time.Duration `yaml:"escalation_delay"`
}

type AuthConfig struct {
	Required     bool          `yaml:"required"` // refuse to chat without an identity
	Token        string        `yaml:"token"`
	VerifyOnBoot bool          `yaml:"verify_on_boot"`
	ExpiryCheck  time.Duration `yaml:"expiry_check"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type HTTPConfig struct {
	Port int `yaml:"port"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type EscalationConfig struct {
	Sinks    []string `yaml:"sinks"` // log | redis | postgres
	Workers  int      `yaml:"workers"`
	QueueKey string   `yaml:"queue_key"`
}

type SecurityConfig struct {
	EncryptionKey string `yaml:"encryption_key"`
}

type Config struct {
	Backend    BackendConfig    `yaml:"backend"`
	AI         AIConfig         `yaml:"ai"`
	Chat       ChatConfig       `yaml:"chat"`
	Auth       AuthConfig       `yaml:"auth"`
	Log        LogConfig        `yaml:"log"`
	HTTP       HTTPConfig       `yaml:"http"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Escalation EscalationConfig `yaml:"escalation"`
	Security   SecurityConfig   `yaml:"security"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file at path, applies defaults and validates it.
func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(b)
	if err != nil {
		return nil, err
	}
	cfg.Runtime.Dev = dev
	return cfg, nil
}

// Parse decodes raw YAML into a validated Config.
func Parse(b []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	if tok := strings.TrimSpace(os.Getenv("SUPPORT_TOKEN")); tok != "" {
		cfg.Auth.Token = tok
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Backend.Mode == "" {
		c.Backend.Mode = "http"
	}
	if c.Backend.BaseURL == "" {
		c.Backend.BaseURL = "http://localhost:8000"
	}
	c.Backend.BaseURL = strings.TrimRight(c.Backend.BaseURL, "/")
	if c.Backend.Timeout <= 0 {
		c.Backend.Timeout = 60 * time.Second
	}
	if c.AI.DefaultModel == "" {
		c.AI.DefaultModel = "gpt-4o-mini"
	}
	if c.AI.MaxPromptTokens <= 0 {
		c.AI.MaxPromptTokens = 2000
	}
	// Negative disables the delay; zero means "not set".
	if c.Chat.EscalationDelay == 0 {
		c.Chat.EscalationDelay = 1500 * time.Millisecond
	} else if c.Chat.EscalationDelay < 0 {
		c.Chat.EscalationDelay = 0
	}
	if c.Auth.ExpiryCheck <= 0 {
		c.Auth.ExpiryCheck = time.Minute
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	c.Redis.TTL = normalizeTTL(c.Redis.TTL)
	if len(c.Escalation.Sinks) == 0 {
		c.Escalation.Sinks = []string{"log"}
	}
	if c.Escalation.Workers <= 0 {
		c.Escalation.Workers = 2
	}
	if c.Escalation.QueueKey == "" {
		c.Escalation.QueueKey = "support:escalations"
	}
}

// Validate performs minimal consistency checks between sections.
func (c *Config) Validate() error {
	switch c.Backend.Mode {
	case "http":
	case "openai":
		if c.AI.OpenAIKey == "" {
			return errors.New("ai.openai_key is required when backend.mode=openai")
		}
	default:
		return fmt.Errorf("unknown backend.mode %q", c.Backend.Mode)
	}
	for _, s := range c.Escalation.Sinks {
		switch s {
		case "log":
		case "redis":
			if c.Redis.URL == "" {
				return errors.New("redis.url is required for the redis escalation sink")
			}
		case "postgres":
			if c.Database.URL == "" {
				return errors.New("database.url is required for the postgres escalation sink")
			}
		default:
			return fmt.Errorf("unknown escalation sink %q", s)
		}
	}
	if k := len(c.Security.EncryptionKey); k != 0 && k != 16 && k != 24 && k != 32 {
		return fmt.Errorf("security.encryption_key must be 16, 24 or 32 bytes; got %d", k)
	}
	return nil
}

// HasSink reports whether the named escalation sink is enabled.
func (c *Config) HasSink(name string) bool {
	for _, s := range c.Escalation.Sinks {
		if s == name {
			return true
		}
	}
	return false
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return 72 * time.Hour
	}
	return d
}
