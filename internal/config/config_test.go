package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vjranagit/thermotrack/pkg/playback"
	"github.com/vjranagit/thermotrack/pkg/storage"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, storage.DriverBadger, cfg.Storage.Driver)
	assert.Equal(t, playback.DefaultIncrement, cfg.Playback.Increment)
	assert.Equal(t, playback.DefaultPeriod, cfg.Playback.Period)
	assert.Equal(t, SensorSimulated, cfg.Sensor.Kind)
	assert.True(t, cfg.Storage.Seed)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "sqlite")
	t.Setenv("PLAYBACK_PERIOD", "250ms")
	t.Setenv("PLAYBACK_INCREMENT", "0.5")
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092,")
	t.Setenv("CACHE_SIZE", "not-a-number")

	cfg := DefaultConfig()
	assert.Equal(t, storage.DriverSQLite, cfg.Storage.Driver)
	assert.Equal(t, 250*time.Millisecond, cfg.Playback.Period)
	assert.Equal(t, 0.5, cfg.Playback.Increment)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 64, cfg.Storage.CacheSize)
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "thermotrack.yaml")
	err := os.WriteFile(path, []byte(`
server:
  listen_addr: ":9000"
storage:
  driver: sqlite
  path: /var/lib/thermotrack
playback:
  period: 2s
sensor:
  kind: http
  url: http://sensor.local/api/temperature
`), 0o644)
	require.NoError(t, err)

	t.Setenv("LISTEN_ADDR", ":9100")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ":9100", cfg.Server.ListenAddr)
	assert.Equal(t, storage.DriverSQLite, cfg.Storage.Driver)
	assert.Equal(t, 2*time.Second, cfg.Playback.Period)
	assert.Equal(t, playback.DefaultIncrement, cfg.Playback.Increment)
	assert.Equal(t, SensorHTTP, cfg.Sensor.Kind)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty listen addr", func(c *Config) { c.Server.ListenAddr = "" }},
		{"unknown driver", func(c *Config) { c.Storage.Driver = "postgres" }},
		{"no path", func(c *Config) { c.Storage.Path = "" }},
		{"compression", func(c *Config) { c.Storage.CompressionLevel = 9 }},
		{"increment", func(c *Config) { c.Playback.Increment = 0 }},
		{"period", func(c *Config) { c.Playback.Period = 0 }},
		{"http without url", func(c *Config) { c.Sensor.Kind = SensorHTTP }},
		{"mqtt without broker", func(c *Config) { c.Sensor.Kind = SensorMQTT }},
		{"unknown sensor", func(c *Config) { c.Sensor.Kind = "thermocouple" }},
		{"kafka without topic", func(c *Config) { c.Kafka.Brokers = []string{"k:9092"}; c.Kafka.Topic = "" }},
		{"log level", func(c *Config) { c.Log.Level = "chatty" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaults()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	inMemory := defaults()
	inMemory.Storage.Path = ""
	inMemory.Storage.InMemory = true
	assert.NoError(t, inMemory.Validate())
}

func TestToStorageConfig(t *testing.T) {
	cfg := defaults()
	cfg.Storage.Driver = storage.DriverSQLite
	cfg.Storage.CacheSize = 0

	sc := cfg.ToStorageConfig()
	assert.Equal(t, storage.DriverSQLite, sc.Driver)
	assert.Equal(t, cfg.Storage.Path, sc.Path)
	assert.Zero(t, sc.CacheSize)
}
