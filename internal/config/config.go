package config

import (
	"time"
)

type Config struct {
	StateStorage StateStorage    `mapstructure:"state_storage"`
	Sync         SyncConfig      `mapstructure:"sync"`
	Channels     ChannelsConfig  `mapstructure:"channels"`
	Scheduler    SchedulerConfig `mapstructure:"scheduler"`
	Server       ServerConfig    `mapstructure:"server"`
	Logging      LoggingConfig   `mapstructure:"logging"`
	Redis        RedisConfig     `mapstructure:"redis"`
	Seed         SeedConfig      `mapstructure:"seed"`
}

type StateStorage struct {
	Type     string `mapstructure:"type" validate:"oneof=memory mysql"`
	Host     string `mapstructure:"host" validate:"required_if=Type mysql"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database" validate:"required_if=Type mysql"`
	// Replication credentials are only needed for the realtime binlog listener.
	ReplicationUser     string `mapstructure:"replication_user"`
	ReplicationPassword string `mapstructure:"replication_password"`
	ServerID            uint32 `mapstructure:"server_id"`
}

type SyncConfig struct {
	Workers  int  `mapstructure:"workers" validate:"gte=1"`
	Realtime bool `mapstructure:"realtime"`
}

// ChannelsConfig tunes the client used to push stock to the marketplaces.
type ChannelsConfig struct {
	Latency     time.Duration `mapstructure:"latency"`
	FailureRate float64       `mapstructure:"failure_rate" validate:"gte=0,lte=1"`
	PushTimeout time.Duration `mapstructure:"push_timeout" validate:"gt=0"`
	Retries     int           `mapstructure:"retries" validate:"gte=0"`
	RetryDelay  time.Duration `mapstructure:"retry_delay"`
	Breaker     BreakerConfig `mapstructure:"breaker"`
}

type BreakerConfig struct {
	FailureThreshold int           `mapstructure:"failure_threshold" validate:"gte=1"`
	SuccessThreshold int           `mapstructure:"success_threshold" validate:"gte=1"`
	OpenTimeout      time.Duration `mapstructure:"open_timeout" validate:"gt=0"`
}

type SchedulerConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	IntervalMinutes int  `mapstructure:"interval_minutes" validate:"gte=1"`
}

type ServerConfig struct {
	Port         int      `mapstructure:"port" validate:"gte=1,lte=65535"`
	Host         string   `mapstructure:"host"`
	AuthToken    string   `mapstructure:"auth_token"`
	ReadTimeout  string   `mapstructure:"read_timeout"`
	WriteTimeout string   `mapstructure:"write_timeout"`
	CorsOrigins  []string `mapstructure:"cors_origins"`
}

func (s ServerConfig) GetReadTimeout() time.Duration {
	d, _ := time.ParseDuration(s.ReadTimeout)
	return d
}

func (s ServerConfig) GetWriteTimeout() time.Duration {
	d, _ := time.ParseDuration(s.WriteTimeout)
	return d
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format" validate:"oneof=json console"`
}

type RedisConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url" validate:"required_if=Enabled true"`
	Channel string `mapstructure:"channel"`
}

// SeedConfig lists the products loaded into an empty store at startup.
// When Demo is set and Products is empty, DemoProducts is used.
type SeedConfig struct {
	Demo     bool          `mapstructure:"demo"`
	Products []ProductSeed `mapstructure:"products" validate:"dive"`
}

type ProductSeed struct {
	ID       string         `mapstructure:"id"`
	SKU      string         `mapstructure:"sku" validate:"required"`
	Name     string         `mapstructure:"name" validate:"required"`
	Unit     string         `mapstructure:"unit"`
	Internal int            `mapstructure:"internal" validate:"gte=0"`
	Channels map[string]int `mapstructure:"channels"`
}

// SeedProducts returns the configured seed, falling back to the demo set.
func (s SeedConfig) SeedProducts() []ProductSeed {
	if len(s.Products) > 0 {
		return s.Products
	}
	if s.Demo {
		return DemoProducts()
	}
	return nil
}

// DemoProducts mirrors the fixtures the dashboard ships with.
func DemoProducts() []ProductSeed {
	return []ProductSeed{
		{ID: "1", SKU: "SKU-001", Name: "Beras Premium 5kg", Unit: "karung", Internal: 150,
			Channels: map[string]int{"shopee": 150, "tokopedia": 145, "blibli": 150, "website": 148}},
		{ID: "2", SKU: "SKU-002", Name: "Minyak Goreng 2L", Unit: "botol", Internal: 320,
			Channels: map[string]int{"shopee": 320, "tokopedia": 320, "blibli": 320, "website": 320}},
		{ID: "3", SKU: "SKU-003", Name: "Gula Pasir 1kg", Unit: "pack", Internal: 85,
			Channels: map[string]int{"shopee": 0, "tokopedia": 80, "blibli": 85, "website": 85}},
		{ID: "4", SKU: "SKU-004", Name: "Tepung Terigu 1kg", Unit: "pack", Internal: 200,
			Channels: map[string]int{"shopee": 195, "tokopedia": 200, "blibli": 0, "website": 190}},
		{ID: "5", SKU: "SKU-005", Name: "Kopi Bubuk 250g", Unit: "pack", Internal: 60,
			Channels: map[string]int{"shopee": 60, "tokopedia": 60, "blibli": 60, "website": 0}},
	}
}
