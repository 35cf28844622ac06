package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the compiler backend.
type Config struct {
	Server    ServerConfig
	RateLimit RateLimitConfig
	Compiler  CompilerConfig
	Stats     StatsConfig
	Redis     RedisConfig
}

type ServerConfig struct {
	Port           int           `mapstructure:"PORT"`
	ReadTimeout    time.Duration `mapstructure:"READ_TIMEOUT"`
	WriteTimeout   time.Duration `mapstructure:"WRITE_TIMEOUT"`
	GinMode        string        `mapstructure:"GIN_MODE"`
	AllowedOrigins []string      `mapstructure:"ALLOWED_ORIGINS"`
	StaticDir      string        `mapstructure:"STATIC_DIR"`
}

type RateLimitConfig struct {
	Requests int           `mapstructure:"RATE_LIMIT_REQUESTS"`
	Window   time.Duration `mapstructure:"RATE_LIMIT_WINDOW"`
}

type CompilerConfig struct {
	BinPath                string        `mapstructure:"FACTO_COMPILER_PATH"`
	Timeout                time.Duration `mapstructure:"COMPILE_TIMEOUT"`
	MaxSourceBytes         int           `mapstructure:"MAX_SOURCE_BYTES"`
	MaxQueueWaiting        int           `mapstructure:"MAX_QUEUE_WAITING"`
	SyncCancelOnDisconnect bool          `mapstructure:"SYNC_CANCEL_ON_DISCONNECT"`
}

type StatsConfig struct {
	File string `mapstructure:"STATS_FILE"`
}

type RedisConfig struct {
	// URL enables the Redis-backed rate-limit window when set. Empty
	// keeps the limiter in process memory.
	URL string `mapstructure:"REDIS_URL"`
}

// Load reads configuration from environment variables and .env file.
func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("PORT", 8080)
	viper.SetDefault("READ_TIMEOUT", "10s")
	viper.SetDefault("WRITE_TIMEOUT", "0") // streaming responses manage their own pace
	viper.SetDefault("GIN_MODE", "release")
	viper.SetDefault("ALLOWED_ORIGINS", "https://snagnar.github.io,http://localhost:3000")
	viper.SetDefault("STATIC_DIR", "")
	viper.SetDefault("RATE_LIMIT_REQUESTS", 30)
	viper.SetDefault("RATE_LIMIT_WINDOW", "60s")
	viper.SetDefault("FACTO_COMPILER_PATH", "factompile")
	viper.SetDefault("COMPILE_TIMEOUT", "30s")
	viper.SetDefault("MAX_SOURCE_BYTES", 50000)
	viper.SetDefault("MAX_QUEUE_WAITING", 16)
	viper.SetDefault("SYNC_CANCEL_ON_DISCONNECT", true)
	viper.SetDefault("STATS_FILE", "stats.yaml")
	viper.SetDefault("REDIS_URL", "")

	// Attempt to read .env file (non-fatal if missing)
	_ = viper.ReadInConfig()

	cfg := &Config{}
	cfg.Server.Port = viper.GetInt("PORT")
	cfg.Server.ReadTimeout = viper.GetDuration("READ_TIMEOUT")
	cfg.Server.WriteTimeout = viper.GetDuration("WRITE_TIMEOUT")
	cfg.Server.GinMode = viper.GetString("GIN_MODE")
	cfg.Server.AllowedOrigins = splitOrigins(viper.GetString("ALLOWED_ORIGINS"))
	cfg.Server.StaticDir = viper.GetString("STATIC_DIR")
	cfg.RateLimit.Requests = viper.GetInt("RATE_LIMIT_REQUESTS")
	cfg.RateLimit.Window = viper.GetDuration("RATE_LIMIT_WINDOW")
	cfg.Compiler.BinPath = viper.GetString("FACTO_COMPILER_PATH")
	cfg.Compiler.Timeout = viper.GetDuration("COMPILE_TIMEOUT")
	cfg.Compiler.MaxSourceBytes = viper.GetInt("MAX_SOURCE_BYTES")
	cfg.Compiler.MaxQueueWaiting = viper.GetInt("MAX_QUEUE_WAITING")
	cfg.Compiler.SyncCancelOnDisconnect = viper.GetBool("SYNC_CANCEL_ON_DISCONNECT")
	cfg.Stats.File = viper.GetString("STATS_FILE")
	cfg.Redis.URL = viper.GetString("REDIS_URL")

	return cfg, nil
}

func splitOrigins(raw string) []string {
	var origins []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}
