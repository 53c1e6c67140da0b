package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port              string        `mapstructure:"PORT"`
	Env               string        `mapstructure:"ENV"`
	LogLevel          string        `mapstructure:"LOG_LEVEL"`
	DatabaseURL       string        `mapstructure:"DATABASE_URL"`
	DBMaxConns        int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns        int32         `mapstructure:"DB_MIN_CONNS"`
	MigrationsDir     string        `mapstructure:"MIGRATIONS_DIR"`
	CORSOrigins       []string      `mapstructure:"CORS_ORIGINS"`
	AuthJWTSecret     string        `mapstructure:"AUTH_JWT_SECRET"`
	AuthIssuer        string        `mapstructure:"AUTH_ISSUER"`
	AuthAudience      string        `mapstructure:"AUTH_AUDIENCE"`
	RedisURL          string        `mapstructure:"REDIS_URL"`
	CacheTTL          time.Duration `mapstructure:"CACHE_TTL"`
	AMQPURL           string        `mapstructure:"AMQP_URL"`
	AMQPExchange      string        `mapstructure:"AMQP_EXCHANGE"`
	BlobBackend       string        `mapstructure:"BLOB_BACKEND"`
	S3Bucket          string        `mapstructure:"S3_BUCKET"`
	S3Prefix          string        `mapstructure:"S3_PREFIX"`
	S3Endpoint        string        `mapstructure:"S3_ENDPOINT"`
	BuildingRanges    string        `mapstructure:"BUILDING_RANGES"`
	LOSPageSize       int           `mapstructure:"LOS_PAGE_SIZE"`
	LOSFilterPresence string        `mapstructure:"LOS_FILTER_PRESENCE"`
	UploadMaxBytes    int64         `mapstructure:"UPLOAD_MAX_BYTES"`
	ErrorDetail       bool          `mapstructure:"ERROR_DETAIL"`
}

var envKeys = []string{
	"PORT", "ENV", "LOG_LEVEL",
	"DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "MIGRATIONS_DIR",
	"CORS_ORIGINS",
	"AUTH_JWT_SECRET", "AUTH_ISSUER", "AUTH_AUDIENCE",
	"REDIS_URL", "CACHE_TTL",
	"AMQP_URL", "AMQP_EXCHANGE",
	"BLOB_BACKEND", "S3_BUCKET", "S3_PREFIX", "S3_ENDPOINT",
	"BUILDING_RANGES",
	"LOS_PAGE_SIZE", "LOS_FILTER_PRESENCE",
	"UPLOAD_MAX_BYTES", "ERROR_DETAIL",
}

// Load reads configuration from the environment and an optional .env file.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("MIGRATIONS_DIR", "./migrations")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("CACHE_TTL", "60s")
	v.SetDefault("AMQP_EXCHANGE", "ocupacao.events")
	v.SetDefault("BLOB_BACKEND", "memory")
	v.SetDefault("S3_PREFIX", "snapshots")
	v.SetDefault("BUILDING_RANGES", "1:1-299,2:300-999")
	v.SetDefault("LOS_PAGE_SIZE", 50)
	v.SetDefault("LOS_FILTER_PRESENCE", "key")
	v.SetDefault("UPLOAD_MAX_BYTES", 20<<20)

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range envKeys {
		_ = v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil || (len(cfg.CORSOrigins) == 1 && strings.Contains(cfg.CORSOrigins[0], ",")) {
		if origins := v.GetString("CORS_ORIGINS"); origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}
	if !v.IsSet("ERROR_DETAIL") {
		cfg.ErrorDetail = cfg.IsDev()
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() {
		log.Println("WARNING: running in DEVELOPMENT mode (ENV=development): every request is granted the admin role.")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is safe to run.
func (c *Config) Validate() error {
	if !c.IsDev() && c.AuthJWTSecret == "" {
		return fmt.Errorf("AUTH_JWT_SECRET is required when ENV=%q", c.Env)
	}
	switch c.BlobBackend {
	case "memory":
	case "s3":
		if c.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required when BLOB_BACKEND is \"s3\"")
		}
	default:
		return fmt.Errorf("BLOB_BACKEND must be \"memory\" or \"s3\", got %q", c.BlobBackend)
	}
	if c.LOSFilterPresence != "key" && c.LOSFilterPresence != "value" {
		return fmt.Errorf("LOS_FILTER_PRESENCE must be \"key\" or \"value\", got %q", c.LOSFilterPresence)
	}
	if c.LOSPageSize <= 0 {
		return fmt.Errorf("LOS_PAGE_SIZE must be positive, got %d", c.LOSPageSize)
	}
	if c.UploadMaxBytes <= 0 {
		return fmt.Errorf("UPLOAD_MAX_BYTES must be positive, got %d", c.UploadMaxBytes)
	}
	return nil
}

// Warnings lists settings that are valid but unsafe for the current
// environment.
func (c *Config) Warnings() []string {
	var out []string
	if c.IsProduction() && c.BlobBackend == "memory" {
		out = append(out, "BLOB_BACKEND=memory in production: archived uploads are held in process memory and lost on restart")
	}
	return out
}
