package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/vjranagit/thermotrack/pkg/playback"
	"github.com/vjranagit/thermotrack/pkg/storage"
)

// Sensor kinds
const (
	SensorSimulated = "simulated"
	SensorHTTP      = "http"
	SensorMQTT      = "mqtt"
	SensorNone      = "none"
)

// Config holds the application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Playback PlaybackConfig `yaml:"playback"`
	Sensor   SensorConfig   `yaml:"sensor"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	ListenAddr     string        `yaml:"listen_addr"`
	Timeout        time.Duration `yaml:"timeout"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	AccessLog      bool          `yaml:"access_log"`
}

// StorageConfig holds storage configuration
type StorageConfig struct {
	Driver           string        `yaml:"driver"`
	Path             string        `yaml:"path"`
	InMemory         bool          `yaml:"in_memory"`
	CompressionLevel int           `yaml:"compression_level"`
	CacheSize        int           `yaml:"cache_size"`
	CacheTTL         time.Duration `yaml:"cache_ttl"`
	Seed             bool          `yaml:"seed"`
}

// PlaybackConfig holds the simulated clock settings
type PlaybackConfig struct {
	Increment float64       `yaml:"increment"`
	Period    time.Duration `yaml:"period"`
}

// SensorConfig selects and configures the live temperature source
type SensorConfig struct {
	Kind         string        `yaml:"kind"`
	URL          string        `yaml:"url"`
	PollInterval time.Duration `yaml:"poll_interval"`
	Timeout      time.Duration `yaml:"timeout"`
	RateLimit    float64       `yaml:"rate_limit"`
	MQTTBroker   string        `yaml:"mqtt_broker"`
	MQTTTopic    string        `yaml:"mqtt_topic"`
}

// KafkaConfig enables publishing updates when Brokers is non-empty
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `yaml:"level"`
	Path  string `yaml:"path"`
}

// DefaultConfig returns default configuration with environment overrides
func DefaultConfig() *Config {
	cfg := defaults()
	cfg.applyEnv()
	return cfg
}

// Load builds the configuration from defaults, an optional YAML file and
// the environment, in increasing precedence. A .env file in the working
// directory is loaded into the environment first when present.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	cfg := defaults()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr: ":8080",
			Timeout:    30 * time.Second,
		},
		Storage: StorageConfig{
			Driver:           storage.DriverBadger,
			Path:             "./data",
			CompressionLevel: 3,
			CacheSize:        64,
			CacheTTL:         30 * time.Second,
			Seed:             true,
		},
		Playback: PlaybackConfig{
			Increment: playback.DefaultIncrement,
			Period:    playback.DefaultPeriod,
		},
		Sensor: SensorConfig{
			Kind:         SensorSimulated,
			PollInterval: 5 * time.Second,
			Timeout:      2 * time.Second,
			MQTTTopic:    "thermotrack/temperature",
		},
		Kafka: KafkaConfig{
			Topic: "thermotrack.setpoint",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Server.ListenAddr = getEnv("LISTEN_ADDR", c.Server.ListenAddr)
	c.Server.AllowedOrigins = getEnvList("ALLOWED_ORIGINS", c.Server.AllowedOrigins)
	c.Server.AccessLog = getEnvBool("ACCESS_LOG", c.Server.AccessLog)

	c.Storage.Driver = getEnv("STORAGE_DRIVER", c.Storage.Driver)
	c.Storage.Path = getEnv("STORAGE_PATH", c.Storage.Path)
	c.Storage.InMemory = getEnvBool("STORAGE_IN_MEMORY", c.Storage.InMemory)
	c.Storage.CompressionLevel = getEnvInt("COMPRESSION_LEVEL", c.Storage.CompressionLevel)
	c.Storage.CacheSize = getEnvInt("CACHE_SIZE", c.Storage.CacheSize)
	c.Storage.Seed = getEnvBool("STORAGE_SEED", c.Storage.Seed)

	c.Playback.Increment = getEnvFloat("PLAYBACK_INCREMENT", c.Playback.Increment)
	c.Playback.Period = getEnvDuration("PLAYBACK_PERIOD", c.Playback.Period)

	c.Sensor.Kind = getEnv("SENSOR_KIND", c.Sensor.Kind)
	c.Sensor.URL = getEnv("SENSOR_URL", c.Sensor.URL)
	c.Sensor.PollInterval = getEnvDuration("SENSOR_POLL_INTERVAL", c.Sensor.PollInterval)
	c.Sensor.Timeout = getEnvDuration("SENSOR_TIMEOUT", c.Sensor.Timeout)
	c.Sensor.RateLimit = getEnvFloat("SENSOR_RATE_LIMIT", c.Sensor.RateLimit)
	c.Sensor.MQTTBroker = getEnv("MQTT_BROKER", c.Sensor.MQTTBroker)
	c.Sensor.MQTTTopic = getEnv("MQTT_TOPIC", c.Sensor.MQTTTopic)

	c.Kafka.Brokers = getEnvList("KAFKA_BROKERS", c.Kafka.Brokers)
	c.Kafka.Topic = getEnv("KAFKA_TOPIC", c.Kafka.Topic)

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Path = getEnv("LOG_PATH", c.Log.Path)
}

// ToStorageConfig converts to storage.Config
func (c *Config) ToStorageConfig() *storage.Config {
	return &storage.Config{
		Driver:           c.Storage.Driver,
		Path:             c.Storage.Path,
		InMemory:         c.Storage.InMemory,
		CompressionLevel: c.Storage.CompressionLevel,
		CacheSize:        c.Storage.CacheSize,
		CacheTTL:         c.Storage.CacheTTL,
	}
}

// ToPlaybackOptions converts to playback.Options
func (c *Config) ToPlaybackOptions() playback.Options {
	return playback.Options{
		Increment: c.Playback.Increment,
		Period:    c.Playback.Period,
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.ListenAddr == "" {
		return fmt.Errorf("server listen address is required")
	}

	switch c.Storage.Driver {
	case storage.DriverBadger, storage.DriverSQLite:
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	if c.Storage.Path == "" && !c.Storage.InMemory {
		return fmt.Errorf("storage path is required")
	}

	if c.Storage.CompressionLevel < 1 || c.Storage.CompressionLevel > 4 {
		return fmt.Errorf("compression level must be between 1 and 4")
	}

	if c.Playback.Increment <= 0 {
		return fmt.Errorf("playback increment must be positive")
	}

	if c.Playback.Period <= 0 {
		return fmt.Errorf("playback period must be positive")
	}

	switch c.Sensor.Kind {
	case SensorSimulated, SensorNone:
	case SensorHTTP:
		if c.Sensor.URL == "" {
			return fmt.Errorf("sensor url is required for http sensor")
		}
	case SensorMQTT:
		if c.Sensor.MQTTBroker == "" || c.Sensor.MQTTTopic == "" {
			return fmt.Errorf("mqtt broker and topic are required for mqtt sensor")
		}
	default:
		return fmt.Errorf("unknown sensor kind %q", c.Sensor.Kind)
	}

	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		return fmt.Errorf("kafka topic is required when brokers are set")
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return fmt.Errorf("invalid log level %q", c.Log.Level)
	}

	return nil
}

// Helper functions for environment variables
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var intVal int
		if _, err := fmt.Sscanf(value, "%d", &intVal); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1"
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvList splits a comma-separated value, dropping empty entries
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
