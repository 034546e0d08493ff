// Package config loads the service configuration from YAML, fills defaults, applies
// LIVECHART_* environment overrides and validates the result.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string           `yaml:"environment" default:"development" validate:"required"`
	Server      ServerConfig     `yaml:"server"`
	Metrics     MetricsConfig    `yaml:"metrics"`
	Log         LogConfig        `yaml:"log"`
	Transport   TransportConfig  `yaml:"transport"`
	Seed        SeedConfig       `yaml:"seed"`
	ClickHouse  ClickHouseConfig `yaml:"clickhouse"`
	Positions   PositionsConfig  `yaml:"positions"`
	Chart       ChartConfig      `yaml:"chart"`
}

type ServerConfig struct {
	Host            string          `yaml:"host" default:"0.0.0.0"`
	Port            int             `yaml:"port" default:"8080" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration   `yaml:"read_timeout" default:"15s"`
	WriteTimeout    time.Duration   `yaml:"write_timeout" default:"15s"`
	ShutdownTimeout time.Duration   `yaml:"shutdown_timeout" default:"10s"`
	CORSOrigins     []string        `yaml:"cors_origins"`
	RateLimit       RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig bounds mutating API calls per client. Left unset it is disabled.
type RateLimitConfig struct {
	Burst     float64 `yaml:"burst" validate:"gte=0"`
	PerSecond float64 `yaml:"per_second" validate:"gte=0"`
}

type MetricsConfig struct {
	Path string `yaml:"path" default:"/metrics"`
}

type LogConfig struct {
	Level      string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
	Format     string `yaml:"format" default:"json" validate:"oneof=json console"`
	Output     string `yaml:"output" default:"stdout"`
	TimeFormat string `yaml:"time_format"`
}

type TransportConfig struct {
	Type       string          `yaml:"type" default:"websocket" validate:"oneof=websocket kafka"`
	RetryDelay time.Duration   `yaml:"retry_delay" default:"2s"`
	WebSocket  WebSocketConfig `yaml:"websocket"`
	Kafka      KafkaConfig     `yaml:"kafka"`
}

type WebSocketConfig struct {
	URL            string        `yaml:"url"`
	APIKeyHeader   string        `yaml:"api_key_header" default:"X-API-Key"`
	APIKey         string        `yaml:"api_key"`
	PingInterval   time.Duration `yaml:"ping_interval" default:"30s"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay" default:"1s"`
}

type KafkaConfig struct {
	Brokers      []string `yaml:"brokers"`
	EventsTopic  string   `yaml:"events_topic" default:"chart.events"`
	IntentsTopic string   `yaml:"intents_topic" default:"chart.intents"`
	Compression  string   `yaml:"compression" default:"snappy" validate:"oneof=none gzip snappy lz4 zstd"`
	RequiredAcks int      `yaml:"required_acks" default:"1"`
	Consumer     struct {
		GroupID     string        `yaml:"group_id"`
		StartOffset string        `yaml:"start_offset" default:"latest" validate:"oneof=latest earliest"`
		RetryMax    int           `yaml:"retry_max"`
		BackoffMin  time.Duration `yaml:"backoff_min" default:"50ms"`
		BackoffMax  time.Duration `yaml:"backoff_max" default:"2s"`
		DLQTopic    string        `yaml:"dlq_topic"`
	} `yaml:"consumer"`
}

type SeedConfig struct {
	Type    string        `yaml:"type" default:"none" validate:"oneof=none rest clickhouse"`
	URL     string        `yaml:"url"`
	Limit   int           `yaml:"limit" default:"500" validate:"min=1,max=10000"`
	Timeout time.Duration `yaml:"timeout" default:"10s"`
	Table   string        `yaml:"table_prefix" default:"candles_"`
	Cache   CacheConfig   `yaml:"cache"`
}

type CacheConfig struct {
	Type  string        `yaml:"type" default:"none" validate:"oneof=none memory redis layered"`
	TTL   time.Duration `yaml:"ttl" default:"1m"`
	Size  int           `yaml:"size" default:"256"`
	Redis RedisConfig   `yaml:"redis"`
}

type RedisConfig struct {
	Host     string `yaml:"host" default:"localhost"`
	Port     int    `yaml:"port" default:"6379"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix" default:"livechart"`
}

type ClickHouseConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port" default:"9000"`
	Database         string        `yaml:"database" default:"default"`
	User             string        `yaml:"user" default:"default"`
	Password         string        `yaml:"password"`
	UseHTTP          bool          `yaml:"use_http"`
	DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
	ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
	MaxExecutionTime time.Duration `yaml:"max_execution_time"`
}

type PositionsConfig struct {
	URL      string `yaml:"url"`
	Schedule string `yaml:"schedule" default:"@every 15s"`
}

type ChartConfig struct {
	Symbol     string            `yaml:"symbol" validate:"required"`
	Timeframe  string            `yaml:"timeframe" default:"1m" validate:"oneof=1m 5m 15m 30m 1h 4h 1d"`
	Indicators []IndicatorConfig `yaml:"indicators" validate:"dive"`
}

type IndicatorConfig struct {
	Type    string             `yaml:"type" validate:"required"`
	Enabled *bool              `yaml:"enabled"`
	Params  map[string]float64 `yaml:"params"`
	Color   string             `yaml:"color" validate:"omitempty,hexcolor"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load reads and parses a YAML configuration file, then fills defaults and validates it.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	c, err := parse(b)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads config from YAML and overrides it with LIVECHART_* environment variables
// before validation.
func LoadWithEnv(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	c, err := parse(b)
	if err != nil {
		return nil, err
	}
	if err := c.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func parse(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	return &c, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := map[string]*string{
		"LIVECHART_ENV":                 &c.Environment,
		"LIVECHART_LOG_LEVEL":           &c.Log.Level,
		"LIVECHART_TRANSPORT":           &c.Transport.Type,
		"LIVECHART_WS_URL":              &c.Transport.WebSocket.URL,
		"LIVECHART_WS_API_KEY":          &c.Transport.WebSocket.APIKey,
		"LIVECHART_SEED":                &c.Seed.Type,
		"LIVECHART_SEED_URL":            &c.Seed.URL,
		"LIVECHART_CLICKHOUSE_HOST":     &c.ClickHouse.Host,
		"LIVECHART_CLICKHOUSE_PASSWORD": &c.ClickHouse.Password,
		"LIVECHART_REDIS_HOST":          &c.Seed.Cache.Redis.Host,
		"LIVECHART_REDIS_PASSWORD":      &c.Seed.Cache.Redis.Password,
		"LIVECHART_POSITIONS_URL":       &c.Positions.URL,
		"LIVECHART_SYMBOL":              &c.Chart.Symbol,
		"LIVECHART_TIMEFRAME":           &c.Chart.Timeframe,
	}
	for key, dst := range str {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	if v, ok := lookup("LIVECHART_KAFKA_BROKERS"); ok && v != "" {
		c.Transport.Kafka.Brokers = splitList(v)
	}
	if v, ok := lookup("LIVECHART_PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("LIVECHART_PORT: %w", err)
		}
		c.Server.Port = port
	}
	return nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks struct tags and the settings that depend on the selected backends.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	switch c.Transport.Type {
	case "websocket":
		if c.Transport.WebSocket.URL == "" {
			return fmt.Errorf("transport.websocket.url is required")
		}
	case "kafka":
		if len(c.Transport.Kafka.Brokers) == 0 {
			return fmt.Errorf("transport.kafka.brokers cannot be empty")
		}
	}
	switch c.Seed.Type {
	case "rest":
		if c.Seed.URL == "" {
			return fmt.Errorf("seed.url is required for rest seeding")
		}
	case "clickhouse":
		if c.ClickHouse.Host == "" {
			return fmt.Errorf("clickhouse.host is required for clickhouse seeding")
		}
	}
	return nil
}
