// Package config provides unified configuration loading for the translation engine.
// Supports YAML files, environment variables, and programmatic overrides.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the translation engine.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Blob          BlobConfig          `yaml:"blob"`
	Cache         CacheConfig         `yaml:"cache"`
	Queue         QueueConfig         `yaml:"queue"`
	Services      ServicesConfig      `yaml:"services"`
	Engines       EnginesConfig       `yaml:"engines"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
	MaxUploadBytes   int64         `yaml:"max_upload_bytes"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Driver   string         `yaml:"driver"` // sqlite or postgres
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// SQLiteConfig holds SQLite-specific settings.
type SQLiteConfig struct {
	Path         string `yaml:"path"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

// PostgresConfig holds Postgres-specific settings.
type PostgresConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// BlobConfig holds S3-compatible object store settings. An empty endpoint
// means no object store is configured; artifacts are then returned inline.
type BlobConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// CacheConfig holds the optional progress-cache settings.
type CacheConfig struct {
	Driver string        `yaml:"driver"` // redis or none
	TTL    time.Duration `yaml:"ttl"`
	Redis  RedisConfig   `yaml:"redis"`
}

// RedisConfig holds Redis-specific settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

// QueueConfig holds AMQP settings for the job queue. An empty URL disables
// queueing; the API then runs jobs in-process.
type QueueConfig struct {
	URL   string `yaml:"url"`
	Queue string `yaml:"queue"`
}

// ServicesConfig holds endpoints for the external processing services.
type ServicesConfig struct {
	Prepare PrepareServiceConfig `yaml:"prepare"`
	OCR     OCRServiceConfig     `yaml:"ocr"`
	Render  RenderServiceConfig  `yaml:"render"`
}

// PrepareServiceConfig holds the document preparation service endpoint.
type PrepareServiceConfig struct {
	URL     string        `yaml:"url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
}

// OCRServiceConfig holds OCR provider settings.
type OCRServiceConfig struct {
	URL           string        `yaml:"url"`
	Token         string        `yaml:"token"`
	VisionAPIKey  string        `yaml:"vision_api_key"`
	VisionBaseURL string        `yaml:"vision_base_url"`
	Timeout       time.Duration `yaml:"timeout"`
}

// RenderServiceConfig holds the HTML-to-PDF renderer settings.
type RenderServiceConfig struct {
	URL            string        `yaml:"url"`
	Token          string        `yaml:"token"`
	CloudAccountID string        `yaml:"cloud_account_id"`
	CloudToken     string        `yaml:"cloud_token"`
	CloudBaseURL   string        `yaml:"cloud_base_url"`
	Timeout        time.Duration `yaml:"timeout"`
}

// EnginesConfig holds credentials for the translation engines. An engine
// with no credential is treated as unconfigured and skipped by the selector.
type EnginesConfig struct {
	Timeout time.Duration      `yaml:"timeout"`
	OpenAI  OpenAIEngineConfig `yaml:"openai"`
	DeepL   DeepLEngineConfig  `yaml:"deepl"`
	Google  GoogleEngineConfig `yaml:"google"`
	Custom  CustomEngineConfig `yaml:"custom"`
	Libre   LibreEngineConfig  `yaml:"libre"`
}

// OpenAIEngineConfig holds OpenAI settings.
type OpenAIEngineConfig struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
}

// DeepLEngineConfig holds DeepL settings.
type DeepLEngineConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// GoogleEngineConfig holds Google Translate v2 settings.
type GoogleEngineConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// CustomEngineConfig holds settings for a user-provided translation endpoint.
type CustomEngineConfig struct {
	Endpoint string `yaml:"endpoint"`
	Token    string `yaml:"token"`
}

// LibreEngineConfig holds LibreTranslate settings.
type LibreEngineConfig struct {
	URL string `yaml:"url"`
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
	ServiceName string `yaml:"service_name"`
}

// Load reads configuration from an optional YAML file, applies environment
// overrides, and validates the result.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a configuration with sensible defaults for development.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             8090,
			ReadTimeout:      30 * time.Second,
			WriteTimeout:     60 * time.Second,
			IdleTimeout:      120 * time.Second,
			GracefulShutdown: 10 * time.Second,
			MaxUploadBytes:   64 << 20,
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			SQLite: SQLiteConfig{
				Path:         "/tmp/translation-engine.db",
				MaxOpenConns: 1,
			},
			Postgres: PostgresConfig{
				MaxOpenConns:    25,
				MaxIdleConns:    5,
				ConnMaxLifetime: 5 * time.Minute,
			},
		},
		Blob: BlobConfig{
			Bucket: "translation-artifacts",
		},
		Cache: CacheConfig{
			Driver: "none",
			TTL:    10 * time.Minute,
			Redis: RedisConfig{
				Addr:     "localhost:6379",
				PoolSize: 10,
			},
		},
		Queue: QueueConfig{
			Queue: "translation.jobs",
		},
		Services: ServicesConfig{
			Prepare: PrepareServiceConfig{Timeout: 120 * time.Second},
			OCR: OCRServiceConfig{
				VisionBaseURL: "https://vision.googleapis.com",
				Timeout:       120 * time.Second,
			},
			Render: RenderServiceConfig{
				CloudBaseURL: "https://api.cloudflare.com",
				Timeout:      120 * time.Second,
			},
		},
		Engines: EnginesConfig{
			Timeout: 120 * time.Second,
			OpenAI: OpenAIEngineConfig{
				Model:   "gpt-4o-mini",
				BaseURL: "https://api.openai.com",
			},
			DeepL: DeepLEngineConfig{
				BaseURL: "https://api-free.deepl.com",
			},
			Google: GoogleEngineConfig{
				BaseURL: "https://translation.googleapis.com",
			},
			Libre: LibreEngineConfig{
				URL: "https://libretranslate.com",
			},
		},
		Observability: ObservabilityConfig{
			LogLevel:    "info",
			LogFormat:   "json",
			ServiceName: "translation-engine",
		},
	}
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.SQLite.Path == "" {
			return fmt.Errorf("sqlite path is required")
		}
	case "postgres":
		if c.Database.Postgres.DSN == "" {
			return fmt.Errorf("postgres DSN is required")
		}
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}

	if c.Blob.Endpoint != "" && c.Blob.Bucket == "" {
		return fmt.Errorf("blob bucket is required when an endpoint is set")
	}

	if c.Cache.Driver != "none" && c.Cache.Driver != "redis" {
		return fmt.Errorf("unknown cache driver %q", c.Cache.Driver)
	}

	return nil
}

// DatabaseDSN returns the appropriate database connection string.
func (c *Config) DatabaseDSN() string {
	if c.Database.Driver == "sqlite" {
		return c.Database.SQLite.Path
	}
	return c.Database.Postgres.DSN
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}

	if v := os.Getenv("SERVER_PORT"); v != "" {
		var port int
		if _, err := fmt.Sscanf(v, "%d", &port); err == nil {
			cfg.Server.Port = port
		}
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		if strings.HasPrefix(v, "sqlite:") {
			cfg.Database.Driver = "sqlite"
			cfg.Database.SQLite.Path = strings.TrimPrefix(v, "sqlite:")
		} else if strings.HasPrefix(v, "postgres") {
			cfg.Database.Driver = "postgres"
			cfg.Database.Postgres.DSN = v
		}
	}

	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Cache.Driver = "redis"
		cfg.Cache.Redis.Addr = strings.TrimPrefix(v, "redis://")
	}

	if v := os.Getenv("AMQP_URL"); v != "" {
		cfg.Queue.URL = v
	}

	if v := os.Getenv("S3_ENDPOINT"); v != "" {
		cfg.Blob.Endpoint = v
	}
	if v := os.Getenv("S3_ACCESS_KEY"); v != "" {
		cfg.Blob.AccessKey = v
	}
	if v := os.Getenv("S3_SECRET_KEY"); v != "" {
		cfg.Blob.SecretKey = v
	}
	if v := os.Getenv("S3_BUCKET"); v != "" {
		cfg.Blob.Bucket = v
	}

	if v := os.Getenv("DOCUMENT_PREPARE_SERVICE_URL"); v != "" {
		cfg.Services.Prepare.URL = v
	}
	if v := os.Getenv("DOCUMENT_PREPARE_SERVICE_TOKEN"); v != "" {
		cfg.Services.Prepare.Token = v
	}

	if v := os.Getenv("OCR_SERVICE_URL"); v != "" {
		cfg.Services.OCR.URL = v
	}
	if v := os.Getenv("OCR_SERVICE_TOKEN"); v != "" {
		cfg.Services.OCR.Token = v
	}
	if v := os.Getenv("GOOGLE_VISION_API_KEY"); v != "" {
		cfg.Services.OCR.VisionAPIKey = v
	}

	if v := os.Getenv("BROWSER_RENDER_SERVICE_URL"); v != "" {
		cfg.Services.Render.URL = v
	}
	if v := os.Getenv("BROWSER_RENDER_SERVICE_TOKEN"); v != "" {
		cfg.Services.Render.Token = v
	}
	if v := os.Getenv("CF_BROWSER_RENDER_ACCOUNT_ID"); v != "" {
		cfg.Services.Render.CloudAccountID = v
	}
	if v := os.Getenv("CF_BROWSER_RENDER_TOKEN"); v != "" {
		cfg.Services.Render.CloudToken = v
	}

	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Engines.OpenAI.APIKey = v
	}
	if v := os.Getenv("OPENAI_MODEL"); v != "" {
		cfg.Engines.OpenAI.Model = v
	}
	if v := os.Getenv("DEEPL_API_KEY"); v != "" {
		cfg.Engines.DeepL.APIKey = v
	}
	if v := os.Getenv("GOOGLE_TRANSLATE_API_KEY"); v != "" {
		cfg.Engines.Google.APIKey = v
	}
	if v := os.Getenv("CUSTOM_TRANSLATION_ENDPOINT"); v != "" {
		cfg.Engines.Custom.Endpoint = v
	}
	if v := os.Getenv("CUSTOM_TRANSLATION_TOKEN"); v != "" {
		cfg.Engines.Custom.Token = v
	}
	if v := os.Getenv("LIBRE_TRANSLATE_URL"); v != "" {
		cfg.Engines.Libre.URL = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}
}
