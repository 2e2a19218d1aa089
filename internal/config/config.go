// Package config provides configuration loading for the groq-vlm converter.
// Supports YAML files, .env files, and environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/spherical/groq-vlm/internal/cache"
	"github.com/spherical/groq-vlm/internal/domain"
	"github.com/spherical/groq-vlm/internal/llm"
	"github.com/spherical/groq-vlm/internal/vlm"
)

// Config holds all configuration for the converter.
type Config struct {
	VLM           VLMConfig           `yaml:"vlm" json:"vlm"`
	Prompt        PromptConfig        `yaml:"prompt" json:"prompt"`
	Pipeline      PipelineConfig      `yaml:"pipeline" json:"pipeline"`
	API           APIConfig           `yaml:"api" json:"api"`
	Cache         CacheConfig         `yaml:"cache" json:"cache"`
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`
}

// VLMConfig selects the remote model.
type VLMConfig struct {
	Provider       string             `yaml:"provider" json:"provider"` // groq or openrouter
	Model          string             `yaml:"model" json:"model"`
	ResponseFormat vlm.ResponseFormat `yaml:"response_format" json:"response_format"`
}

// PromptConfig holds the prompt template and its variables.
type PromptConfig struct {
	TemplatePath string         `yaml:"template_path" json:"template_path"`
	Context      map[string]any `yaml:"context" json:"context"`
	PerPage      bool           `yaml:"per_page" json:"per_page"`
}

// PipelineConfig holds conversion pipeline settings.
type PipelineConfig struct {
	ImagesScale          float64 `yaml:"images_scale" json:"images_scale"`
	GeneratePageImages   bool    `yaml:"generate_page_images" json:"generate_page_images"`
	EnableRemoteServices bool    `yaml:"enable_remote_services" json:"enable_remote_services"`
	JPEGQuality          int     `yaml:"jpeg_quality" json:"jpeg_quality"`
	Concurrency          int     `yaml:"concurrency" json:"concurrency"`
}

// APIConfig holds HTTP retry and rate limit settings.
type APIConfig struct {
	MaxRetries     int           `yaml:"max_retries" json:"max_retries"`
	InitialBackoff time.Duration `yaml:"initial_backoff" json:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff" json:"max_backoff"`
	RateLimitRPS   float64       `yaml:"rate_limit_rps" json:"rate_limit_rps"`
	RateLimitBurst int           `yaml:"rate_limit_burst" json:"rate_limit_burst"`
}

// CacheConfig holds response cache settings.
type CacheConfig struct {
	Driver     string        `yaml:"driver" json:"driver"` // none, memory or redis
	TTL        time.Duration `yaml:"ttl" json:"ttl"`
	MaxEntries int           `yaml:"max_entries" json:"max_entries"`
	Redis      RedisConfig   `yaml:"redis" json:"redis"`
}

// RedisConfig holds Redis-specific settings.
type RedisConfig struct {
	Addr     string `yaml:"addr" json:"addr"`
	Password string `yaml:"password" json:"-"`
	DB       int    `yaml:"db" json:"db"`
	PoolSize int    `yaml:"pool_size" json:"pool_size"`
	Prefix   string `yaml:"prefix" json:"prefix"`
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel  string `yaml:"log_level" json:"log_level"`
	LogFormat string `yaml:"log_format" json:"log_format"` // console or json
}

// Load reads configuration from a YAML file and applies environment overrides.
// An empty path uses the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, domain.IOError(fmt.Sprintf("read config file %s", path), err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, domain.ConfigError(fmt.Sprintf("parse config file %s", path), err)
		}
	}

	if err := applyEnvOverrides(cfg, os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadDotEnv loads each .env file into the process environment without
// overriding variables that are already set. Missing files are skipped.
// With no paths it loads ./.env.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return domain.ConfigError(fmt.Sprintf("load %s", p), err)
		}
	}
	return nil
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() *Config {
	return &Config{
		VLM: VLMConfig{
			Provider:       vlm.Groq.Name,
			Model:          "meta-llama/llama-4-scout-17b-16e-instruct",
			ResponseFormat: vlm.FormatMarkdown,
		},
		Prompt: PromptConfig{
			TemplatePath: "templates/ocr_prompt.jinja",
			Context: map[string]any{
				"summarize_visuals":   true,
				"include_page_number": true,
			},
		},
		Pipeline: PipelineConfig{
			ImagesScale:          2.0,
			GeneratePageImages:   true,
			EnableRemoteServices: true,
			JPEGQuality:          85,
			Concurrency:          1,
		},
		API: APIConfig{
			MaxRetries:     3,
			InitialBackoff: 1 * time.Second,
			MaxBackoff:     30 * time.Second,
			RateLimitBurst: 1,
		},
		Cache: CacheConfig{
			Driver:     "none",
			TTL:        24 * time.Hour,
			MaxEntries: 1000,
			Redis: RedisConfig{
				Addr:     "localhost:6379",
				PoolSize: 10,
				Prefix:   "groq-vlm:",
			},
		},
		Observability: ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "console",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if _, err := vlm.ProviderByName(c.VLM.Provider); err != nil {
		return err
	}

	if strings.TrimSpace(c.VLM.Model) == "" {
		return domain.ConfigError("vlm.model is required", nil)
	}

	if !c.VLM.ResponseFormat.Resolve().Valid() {
		return domain.ConfigError(fmt.Sprintf("invalid response format: %s", c.VLM.ResponseFormat), nil)
	}

	if strings.TrimSpace(c.Prompt.TemplatePath) == "" {
		return domain.ConfigError("prompt.template_path is required", nil)
	}

	if c.Pipeline.ImagesScale <= 0 || c.Pipeline.ImagesScale > 10 {
		return domain.ConfigError(fmt.Sprintf("images_scale must be in (0, 10], got %g", c.Pipeline.ImagesScale), nil)
	}

	if c.Pipeline.JPEGQuality < 1 || c.Pipeline.JPEGQuality > 100 {
		return domain.ConfigError(fmt.Sprintf("jpeg_quality must be between 1 and 100, got %d", c.Pipeline.JPEGQuality), nil)
	}

	if c.Pipeline.Concurrency < 1 {
		return domain.ConfigError(fmt.Sprintf("concurrency must be at least 1, got %d", c.Pipeline.Concurrency), nil)
	}

	if c.API.MaxRetries < 0 {
		return domain.ConfigError("max_retries cannot be negative", nil)
	}

	if c.API.InitialBackoff > c.API.MaxBackoff {
		return domain.ConfigError("initial_backoff cannot exceed max_backoff", nil)
	}

	switch c.Cache.Driver {
	case "", "none", "memory", "redis":
	default:
		return domain.ConfigError(fmt.Sprintf("invalid cache driver: %s", c.Cache.Driver), nil)
	}

	if c.Observability.LogFormat != "console" && c.Observability.LogFormat != "json" {
		return domain.ConfigError(fmt.Sprintf("invalid log format: %s", c.Observability.LogFormat), nil)
	}

	return nil
}

// Provider returns the configured VLM provider.
func (c *Config) Provider() vlm.Provider {
	p, err := vlm.ProviderByName(c.VLM.Provider)
	if err != nil {
		return vlm.Groq
	}
	return p
}

// RetryConfig converts the API settings for the remote model client.
func (c *Config) RetryConfig() *llm.RetryConfig {
	return &llm.RetryConfig{
		MaxRetries:     c.API.MaxRetries,
		InitialBackoff: c.API.InitialBackoff,
		MaxBackoff:     c.API.MaxBackoff,
	}
}

// CacheClientConfig converts the cache settings for cache.New.
func (c *Config) CacheClientConfig() cache.Config {
	return cache.Config{
		Driver:     c.Cache.Driver,
		MaxEntries: c.Cache.MaxEntries,
		Redis: cache.RedisConfig{
			Addr:     c.Cache.Redis.Addr,
			Password: c.Cache.Redis.Password,
			DB:       c.Cache.Redis.DB,
			PoolSize: c.Cache.Redis.PoolSize,
			Prefix:   c.Cache.Redis.Prefix,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(cfg *Config, lookup func(string) (string, bool)) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if v, ok := get("VLM_PROVIDER"); ok {
		cfg.VLM.Provider = v
	}

	if v, ok := get("LLM_MODEL"); ok {
		cfg.VLM.Model = v
	}

	if v, ok := get("VLM_RESPONSE_FORMAT"); ok {
		f, err := vlm.ParseResponseFormat(v)
		if err != nil {
			return domain.ConfigError("VLM_RESPONSE_FORMAT", err)
		}
		cfg.VLM.ResponseFormat = f
	}

	if v, ok := get("PROMPT_TEMPLATE"); ok {
		cfg.Prompt.TemplatePath = v
	}

	if v, ok := get("IMAGES_SCALE"); ok {
		scale, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return domain.ConfigError(fmt.Sprintf("invalid IMAGES_SCALE: %s", v), err)
		}
		cfg.Pipeline.ImagesScale = scale
	}

	if v, ok := get("PIPELINE_CONCURRENCY"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return domain.ConfigError(fmt.Sprintf("invalid PIPELINE_CONCURRENCY: %s", v), err)
		}
		cfg.Pipeline.Concurrency = n
	}

	if v, ok := get("REDIS_URL"); ok {
		rc := cache.ParseRedisURL(v)
		cfg.Cache.Driver = "redis"
		cfg.Cache.Redis.Addr = rc.Addr
		cfg.Cache.Redis.DB = rc.DB
		if rc.Password != "" {
			cfg.Cache.Redis.Password = rc.Password
		}
	}

	if v, ok := get("CACHE_DRIVER"); ok {
		cfg.Cache.Driver = v
	}

	if v, ok := get("LOG_LEVEL"); ok {
		cfg.Observability.LogLevel = v
	}

	if v, ok := get("LOG_FORMAT"); ok {
		cfg.Observability.LogFormat = v
	}

	return nil
}
