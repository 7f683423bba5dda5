// Package config loads station configuration.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/lunixtng/lunix.go/pkg/sensor"
	"github.com/lunixtng/lunix.go/pkg/source"
)

// Config is the lunixd configuration.
type Config struct {
	Station StationConfig `yaml:"station"`
	Source  SourceConfig  `yaml:"source"`
	Serve   ServeConfig   `yaml:"serve"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
	Redis   RedisConfig   `yaml:"redis"`
	Monitor MonitorConfig `yaml:"monitor"`
}

// StationConfig describes the sensor network.
type StationConfig struct {
	SensorCount int `yaml:"sensor_count"`
}

// SourceConfig selects the bridge transport.
type SourceConfig struct {
	Transport string `yaml:"transport"`
	Addr      string `yaml:"addr"`
	ChunkSize int    `yaml:"chunk_size"`
}

// ServeConfig configures the consumer endpoint.
type ServeConfig struct {
	Addr string `yaml:"addr"`
}

// MQTTConfig configures the MQTT sink; empty URL disables it.
type MQTTConfig struct {
	URL string `yaml:"url"`
}

// RedisConfig configures the Redis sink; empty addr disables it.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Channel  string `yaml:"channel"`
}

// MonitorConfig configures the metrics endpoint.
type MonitorConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// Load reads and validates a config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the stock configuration.
func Default() *Config {
	return &Config{
		Station: StationConfig{SensorCount: sensor.DefaultCount},
		Source: SourceConfig{
			Transport: source.TransportSerial,
			Addr:      "/dev/ttyS1",
		},
		Serve: ServeConfig{Addr: ":7667"},
		Redis: RedisConfig{Channel: "lunix"},
		Monitor: MonitorConfig{
			Enabled: true,
			Addr:    ":9090",
		},
	}
}

// Validate rejects configurations lunixd cannot start with.
func (c *Config) Validate() error {
	if c.Station.SensorCount <= 0 {
		return fmt.Errorf("station.sensor_count must be positive, got %d", c.Station.SensorCount)
	}
	switch c.Source.Transport {
	case source.TransportTCP, source.TransportSerial, source.TransportFile,
		source.TransportWS, source.TransportWSS:
	default:
		return fmt.Errorf("unknown source.transport %q", c.Source.Transport)
	}
	if c.Source.Addr == "" {
		return fmt.Errorf("source.addr is required")
	}
	if c.Redis.Addr != "" && c.Redis.Channel == "" {
		return fmt.Errorf("redis.channel is required when redis is enabled")
	}
	return nil
}
