package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"github.com/srg/basket/internal/device"
	"gopkg.in/yaml.v3"
)

// Config holds application configuration
type Config struct {
	LogLevel       string        `yaml:"log_level" default:"info"`
	NamePrefix     string        `yaml:"name_prefix" default:"IoT Frisbee"`
	PollInterval   time.Duration `yaml:"poll_interval" default:"1s"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" default:"10s"`
	OpTimeout      time.Duration `yaml:"op_timeout" default:"5s"`
	ScanTimeout    time.Duration `yaml:"scan_timeout" default:"10s"`
	ReadBattery    bool          `yaml:"read_battery" default:"true"`

	Endpoints EndpointsConfig `yaml:"endpoints"`
	Sinks     SinksConfig     `yaml:"sinks"`
}

// EndpointsConfig names the required tag endpoints
type EndpointsConfig struct {
	Battery string `yaml:"battery" default:"2a19"`
	RX      string `yaml:"rx" default:"6e400003-b5a3-f393-e0a9-e50e24dcca9e"`
	TX      string `yaml:"tx" default:"6e400002-b5a3-f393-e0a9-e50e24dcca9e"`
}

// SinksConfig selects where tag data goes. The log sink is on unless
// disabled; the others are on when their address is set.
type SinksConfig struct {
	Log  LogSinkConfig  `yaml:"log"`
	TCP  TCPSinkConfig  `yaml:"tcp"`
	MQTT MQTTSinkConfig `yaml:"mqtt"`
	PTY  PTYSinkConfig  `yaml:"pty"`
}

type LogSinkConfig struct {
	Disabled bool `yaml:"disabled"`
}

type TCPSinkConfig struct {
	Address         string        `yaml:"address"`
	DialTimeout     time.Duration `yaml:"dial_timeout" default:"2s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"2s"`
	BreakerFailures uint32        `yaml:"breaker_failures" default:"3"`
	BreakerTimeout  time.Duration `yaml:"breaker_timeout" default:"10s"`
}

type MQTTSinkConfig struct {
	Broker   string        `yaml:"broker"`
	ClientID string        `yaml:"client_id" default:"basket"`
	Topic    string        `yaml:"topic" default:"basket"`
	QoS      byte          `yaml:"qos" default:"1"`
	Timeout  time.Duration `yaml:"timeout" default:"5s"`
}

type PTYSinkConfig struct {
	Enabled    bool `yaml:"enabled"`
	BufferSize int  `yaml:"buffer_size" default:"65536"`
}

// DefaultConfig returns default configuration values
func DefaultConfig() *Config {
	cfg := &Config{}
	defaults.SetDefaults(cfg)
	return cfg
}

// Load reads a YAML file over the defaults. An empty path returns the
// defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports every invalid setting at once
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.NamePrefix) == "" {
		errs = append(errs, errors.New("name_prefix must not be empty"))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("poll_interval must be positive, got %s", c.PollInterval))
	}
	if c.ConnectTimeout < 0 || c.OpTimeout < 0 || c.ScanTimeout < 0 {
		errs = append(errs, errors.New("timeouts must not be negative"))
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	for _, ep := range []struct{ role, uuid string }{
		{"battery", c.Endpoints.Battery},
		{"rx", c.Endpoints.RX},
		{"tx", c.Endpoints.TX},
	} {
		if _, err := device.ValidateUUID(ep.uuid); err != nil {
			errs = append(errs, fmt.Errorf("endpoints.%s: %w", ep.role, err))
		}
	}
	if c.Sinks.MQTT.QoS > 2 {
		errs = append(errs, fmt.Errorf("sinks.mqtt.qos must be 0, 1 or 2, got %d", c.Sinks.MQTT.QoS))
	}

	return errors.Join(errs...)
}

// Level returns the parsed log level, falling back to info
func (c *Config) Level() logrus.Level {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}

// NewLogger creates a configured logger instance
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(c.Level())

	// Use structured logging format
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	return logger
}
