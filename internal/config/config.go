package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures the settings required to boot the feedback lab service.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	LLM        LLMConfig        `yaml:"llm"`
	Logging    LoggingConfig    `yaml:"logging"`
	CORS       CORSConfig       `yaml:"cors"`
	RateLimit  RateLimitConfig  `yaml:"rateLimit"`
	Validation ValidationConfig `yaml:"validation"`
	Cache      CacheConfig      `yaml:"cache"`
}

// ServerConfig controls the HTTP, gRPC ops and metrics listeners.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	GRPCAddress     string        `yaml:"grpcAddress"`
	MetricsAddress  string        `yaml:"metricsAddress"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
}

// StorageConfig selects and configures the persistence backend.
type StorageConfig struct {
	// Driver is one of memory, sqlite or postgres.
	Driver          string        `yaml:"driver"`
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
	ListLimit       int           `yaml:"listLimit"`
}

// LLMConfig configures the OpenAI-compatible completion provider.
type LLMConfig struct {
	BaseURL       string        `yaml:"baseURL"`
	APIKey        string        `yaml:"apiKey"`
	Model         string        `yaml:"model"`
	SystemMessage string        `yaml:"systemMessage"`
	Timeout       time.Duration `yaml:"timeout"`
	MaxRetries    int           `yaml:"maxRetries"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// CORSConfig lists the origins allowed to call the API from a browser.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowedOrigins"`
}

// RateLimitConfig bounds generation requests per client.
type RateLimitConfig struct {
	Enabled           bool    `yaml:"enabled"`
	RequestsPerSecond float64 `yaml:"requestsPerSecond"`
	Burst             int     `yaml:"burst"`
	// TrustForwardedFor keys clients on X-Forwarded-For. Enable only behind a trusted proxy.
	TrustForwardedFor bool    `yaml:"trustForwardedFor"`
}

// ValidationConfig toggles request validation rules.
type ValidationConfig struct {
	EnforceScoreRange bool `yaml:"enforceScoreRange"`
	MinScore          int  `yaml:"minScore"`
	MaxScore          int  `yaml:"maxScore"`
}

// CacheConfig controls the response lookup cache.
type CacheConfig struct {
	// Driver is one of none, memory or valkey.
	Driver       string        `yaml:"driver"`
	MaxEntries   int           `yaml:"maxEntries"`
	ResponseTTL  time.Duration `yaml:"responseTTL"`
	Addr         string        `yaml:"addr"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	KeyPrefix    string        `yaml:"keyPrefix"`
	DialTimeout  time.Duration `yaml:"dialTimeout"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	MaxRetries   int           `yaml:"maxRetries"`
	TLS          bool          `yaml:"tls"`
}

// DefaultSystemMessage is the instruction sent with every generation request.
const DefaultSystemMessage = "You are a helpful AI assistant. Provide clear, accurate, and helpful responses."

// Load initialises Config from a YAML file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("FEEDBACK_LAB_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "memory":
	case "sqlite", "postgres":
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn is required for driver %q", c.Storage.Driver)
		}
	default:
		return fmt.Errorf("unsupported storage driver %q", c.Storage.Driver)
	}
	if c.Storage.ListLimit <= 0 {
		return fmt.Errorf("storage.listLimit must be positive")
	}
	switch c.Cache.Driver {
	case "none", "memory":
	case "valkey":
		if c.Cache.Addr == "" {
			return fmt.Errorf("cache.addr is required for driver valkey")
		}
	default:
		return fmt.Errorf("unsupported cache driver %q", c.Cache.Driver)
	}
	if c.Validation.EnforceScoreRange && c.Validation.MinScore > c.Validation.MaxScore {
		return fmt.Errorf("validation.minScore must not exceed validation.maxScore")
	}
	return nil
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Address:         ":8001",
			GRPCAddress:     ":50051",
			MetricsAddress:  ":2112",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    90 * time.Second,
			GracefulTimeout: 10 * time.Second,
		},
		Storage: StorageConfig{
			Driver:          "memory",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
			ListLimit:       1000,
		},
		LLM: LLMConfig{
			BaseURL:       "https://api.openai.com/v1",
			Model:         "gpt-4o",
			SystemMessage: DefaultSystemMessage,
			Timeout:       60 * time.Second,
			MaxRetries:    2,
		},
		Logging:    LoggingConfig{Level: "info", JSON: false},
		CORS:       CORSConfig{AllowedOrigins: []string{"*"}},
		RateLimit:  RateLimitConfig{Enabled: true, RequestsPerSecond: 1, Burst: 5},
		Validation: ValidationConfig{EnforceScoreRange: true, MinScore: 1, MaxScore: 5},
		Cache: CacheConfig{
			Driver:       "memory",
			MaxEntries:   10000,
			ResponseTTL:  24 * time.Hour,
			KeyPrefix:    "feedback-lab:",
			DialTimeout:  2 * time.Second,
			ReadTimeout:  500 * time.Millisecond,
			WriteTimeout: 500 * time.Millisecond,
			MaxRetries:   2,
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FEEDBACK_LAB_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v, ok := os.LookupEnv("FEEDBACK_LAB_GRPC_ADDRESS"); ok {
		cfg.Server.GRPCAddress = v
	}
	if v, ok := os.LookupEnv("FEEDBACK_LAB_METRICS_ADDRESS"); ok {
		cfg.Server.MetricsAddress = v
	}
	if v := os.Getenv("FEEDBACK_LAB_STORAGE_DRIVER"); v != "" {
		cfg.Storage.Driver = strings.ToLower(v)
	}
	if v := os.Getenv("FEEDBACK_LAB_STORAGE_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("FEEDBACK_LAB_STORAGE_LIST_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Storage.ListLimit = n
		}
	}
	if v := os.Getenv("FEEDBACK_LAB_LLM_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := os.Getenv("LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("FEEDBACK_LAB_LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("FEEDBACK_LAB_LLM_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.LLM.Timeout = d
		}
	}
	if v := os.Getenv("FEEDBACK_LAB_LLM_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.LLM.MaxRetries = n
		}
	}
	if v := os.Getenv("FEEDBACK_LAB_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("FEEDBACK_LAB_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		cfg.CORS.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv("FEEDBACK_LAB_RATE_LIMIT_ENABLED"); v != "" {
		cfg.RateLimit.Enabled = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("FEEDBACK_LAB_RATE_LIMIT_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.RateLimit.RequestsPerSecond = f
		}
	}
	if v := os.Getenv("FEEDBACK_LAB_RATE_LIMIT_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimit.Burst = n
		}
	}
	if v := os.Getenv("FEEDBACK_LAB_RATE_LIMIT_TRUST_FORWARDED_FOR"); v != "" {
		cfg.RateLimit.TrustForwardedFor = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("FEEDBACK_LAB_CACHE_DRIVER"); v != "" {
		cfg.Cache.Driver = strings.ToLower(v)
	}
	if v := os.Getenv("FEEDBACK_LAB_CACHE_ADDR"); v != "" {
		cfg.Cache.Addr = v
	}
	if v := os.Getenv("FEEDBACK_LAB_CACHE_PASSWORD"); v != "" {
		cfg.Cache.Password = v
	}
	if v := os.Getenv("FEEDBACK_LAB_ENFORCE_SCORE_RANGE"); v != "" {
		cfg.Validation.EnforceScoreRange = strings.EqualFold(v, "true") || v == "1"
	}
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
