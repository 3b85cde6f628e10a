package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

func init() {
	// Load .env file if it exists (silent fail if not)
	_ = godotenv.Load()
}

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Server Server
	App    App
	Store  Store
	Cache  Cache
	Kafka  Kafka
	Replay Replay
}

// Server holds HTTP server settings for the query surface.
type Server struct {
	Host            string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"SERVER_PORT" default:"8090"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// App holds application-level settings.
type App struct {
	Name        string `envconfig:"APP_NAME" default:"pokesync-storage"`
	Environment string `envconfig:"APP_ENV" default:"development"`
	Debug       bool   `envconfig:"APP_DEBUG" default:"false"`
	Version     string `envconfig:"APP_VERSION" default:"1.0.0"`
}

// Store holds relational store settings. Type selects the backend:
// "sqlite" (default) or "mysql".
type Store struct {
	Type string `envconfig:"STORE_TYPE" default:"sqlite"`
	Path string `envconfig:"STORE_PATH" default:"./data/pokesync.db"`

	MySQLHost     string `envconfig:"DB_HOST" default:"localhost"`
	MySQLPort     int    `envconfig:"DB_PORT" default:"3306"`
	MySQLName     string `envconfig:"DB_NAME" default:"pokesync"`
	MySQLUser     string `envconfig:"DB_USER" default:"root"`
	MySQLPassword string `envconfig:"DB_PASS" default:""`

	// Readiness probing before each batch.
	ProbeAttempts int           `envconfig:"STORE_PROBE_ATTEMPTS" default:"5"`
	ProbeInterval time.Duration `envconfig:"STORE_PROBE_INTERVAL" default:"5s"`
}

// Cache holds username-lookup cache settings.
type Cache struct {
	Type string        `envconfig:"CACHE_TYPE" default:"memory"`
	TTL  time.Duration `envconfig:"CACHE_TTL" default:"5m"`

	RedisHost     string `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort     int    `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
}

// Kafka holds broker consumer settings. The consumer group id is fixed
// so at most one offset lineage exists for the topic.
type Kafka struct {
	Hostname string `envconfig:"KAFKA_HOSTNAME" default:"localhost"`
	Port     int    `envconfig:"KAFKA_PORT" default:"9092"`
	Topic    string `envconfig:"KAFKA_TOPIC" default:"events"`
	GroupID  string `envconfig:"KAFKA_GROUP_ID" default:"event_group"`

	PollTimeout        time.Duration `envconfig:"KAFKA_POLL_TIMEOUT" default:"5s"`
	ConnectBase        time.Duration `envconfig:"KAFKA_CONNECT_BASE" default:"2s"`
	ConnectMaxAttempts int           `envconfig:"KAFKA_CONNECT_MAX_ATTEMPTS" default:"30"`
	PollBackoffCap     time.Duration `envconfig:"KAFKA_POLL_BACKOFF_CAP" default:"60s"`
}

// Replay holds failure-queue settings.
type Replay struct {
	File string `envconfig:"REPLAY_FILE" default:"./data/failed_messages.jsonl"`
	Cron string `envconfig:"REPLAY_CRON" default:"*/5 * * * *"`
}

// Address returns the server address in host:port format.
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// MySQLDSN returns the MySQL data source name.
func (s *Store) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		s.MySQLUser, s.MySQLPassword, s.MySQLHost, s.MySQLPort, s.MySQLName)
}

// Broker returns the broker address in host:port format.
func (k *Kafka) Broker() string {
	return fmt.Sprintf("%s:%d", k.Hostname, k.Port)
}

// RedisAddress returns the Redis address in host:port format.
func (c *Cache) RedisAddress() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// IsDevelopment returns true if running in development mode.
func (a *App) IsDevelopment() bool {
	return a.Environment == "development"
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration or panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}
