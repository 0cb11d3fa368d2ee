package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/rpattn/shareflow/internal/db"
	"github.com/rpattn/shareflow/internal/domain"
)

// QueueConfig tunes the message queue and its consumers.
type QueueConfig struct {
	Visibility    time.Duration
	MaxDeliveries int
	PollInterval  time.Duration
}

// Config is the full application configuration.
type Config struct {
	Database      db.Config
	HTTPAddr      string
	RemoteBaseURL string
	Queue         QueueConfig
	SyncIntervals map[domain.SyncType]time.Duration
}

// DefaultConfig returns the defaults used when no config file or env override
// is present.
func DefaultConfig() Config {
	return Config{
		Database: db.DefaultConfig(),
		HTTPAddr: ":8080",
		Queue: QueueConfig{
			Visibility:    5 * time.Minute,
			MaxDeliveries: 5,
			PollInterval:  2 * time.Second,
		},
		SyncIntervals: map[domain.SyncType]time.Duration{
			domain.SyncDirectory: time.Hour,
			domain.SyncCatalog:   time.Hour,
			domain.SyncMetrics:   15 * time.Minute,
		},
	}
}

// Load reads config.yaml from configPath with environment overrides.
func Load(configPath string) (Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AutomaticEnv()
	v.SetEnvPrefix("SHAREFLOW")

	v.BindEnv("database.host")
	v.BindEnv("database.port")
	v.BindEnv("database.user")
	v.BindEnv("database.password")
	v.BindEnv("database.dbname")
	v.BindEnv("database.sslmode")
	v.BindEnv("server.addr")
	v.BindEnv("remote.base_url")
	v.BindEnv("queue.visibility")
	v.BindEnv("queue.max_deliveries")
	v.BindEnv("queue.poll_interval")

	if err := v.ReadInConfig(); err != nil {
		// Config file not found? Just log it, use defaults + env
		fmt.Println("No config.yaml found, using defaults and env vars")
	} else {
		fmt.Println("Loaded config.yaml")
	}

	if v.IsSet("database.host") {
		cfg.Database.Host = v.GetString("database.host")
	}
	if v.IsSet("database.port") {
		cfg.Database.Port = v.GetInt("database.port")
	}
	if v.IsSet("database.user") {
		cfg.Database.User = v.GetString("database.user")
	}
	if v.IsSet("database.password") {
		cfg.Database.Password = v.GetString("database.password")
	}
	if v.IsSet("database.dbname") {
		cfg.Database.DBName = v.GetString("database.dbname")
	}
	if v.IsSet("database.sslmode") {
		cfg.Database.SSLMode = v.GetString("database.sslmode")
	}
	if v.IsSet("server.addr") {
		cfg.HTTPAddr = v.GetString("server.addr")
	}
	if v.IsSet("remote.base_url") {
		cfg.RemoteBaseURL = v.GetString("remote.base_url")
	}
	if v.IsSet("queue.visibility") {
		cfg.Queue.Visibility = v.GetDuration("queue.visibility")
	}
	if v.IsSet("queue.max_deliveries") {
		cfg.Queue.MaxDeliveries = v.GetInt("queue.max_deliveries")
	}
	if v.IsSet("queue.poll_interval") {
		cfg.Queue.PollInterval = v.GetDuration("queue.poll_interval")
	}
	for _, syncType := range domain.AllSyncTypes {
		key := "sync." + string(syncType) + ".interval"
		if v.IsSet(key) {
			cfg.SyncIntervals[syncType] = v.GetDuration(key)
		}
	}

	return cfg, nil
}
