package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

const envPrefix = "STOCKSYNC"

var validate = validator.New()

// LoadConfig reads path (YAML) on top of the defaults below and applies
// STOCKSYNC_* environment overrides, e.g. STOCKSYNC_SERVER_PORT=9090.
// A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("state_storage.type", "memory")
	v.SetDefault("state_storage.port", 3306)
	v.SetDefault("state_storage.server_id", 100)

	v.SetDefault("sync.workers", 4)
	v.SetDefault("sync.realtime", false)

	v.SetDefault("channels.latency", "300ms")
	v.SetDefault("channels.failure_rate", 0.0)
	v.SetDefault("channels.push_timeout", "5s")
	v.SetDefault("channels.retries", 2)
	v.SetDefault("channels.retry_delay", "200ms")
	v.SetDefault("channels.breaker.failure_threshold", 5)
	v.SetDefault("channels.breaker.success_threshold", 2)
	v.SetDefault("channels.breaker.open_timeout", "60s")

	v.SetDefault("scheduler.enabled", false)
	v.SetDefault("scheduler.interval_minutes", 30)

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.cors_origins", []string{"*"})

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.channel", "stock-sync:events")

	v.SetDefault("seed.demo", true)
}
