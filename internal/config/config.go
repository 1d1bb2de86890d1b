package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dokzlo13/rgbd/internal/color"
)

// Config represents the application configuration
type Config struct {
	Log             LogConfig         `yaml:"log"`
	PWM             PWMConfig         `yaml:"pwm"`
	Transition      TransitionConfig  `yaml:"transition"`
	HTTP            HTTPConfig        `yaml:"http"`
	MQTT            MQTTConfig        `yaml:"mqtt"`
	Database        DatabaseConfig    `yaml:"database"`
	Ledger          LedgerConfig      `yaml:"ledger"`
	Healthcheck     HealthcheckConfig `yaml:"healthcheck"`
	EventBus        EventBusConfig    `yaml:"eventbus"`
	ShutdownTimeout Duration          `yaml:"shutdown_timeout"` // General shutdown timeout for graceful stops
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level"`
	Colors bool   `yaml:"colors"`
	JSON   bool   `yaml:"json"`
}

// PWMConfig describes the output hardware
type PWMConfig struct {
	Backend string      `yaml:"backend"` // log, sysfs or none
	Period  uint32      `yaml:"period"`  // Duty units per period (default: 1000)
	Gamma   float64     `yaml:"gamma"`   // Brightness curve exponent (default: 3.0)
	Pins    []uint32    `yaml:"pins"`    // R, G, B channel pins
	Sysfs   SysfsConfig `yaml:"sysfs"`
}

// SysfsConfig selects the kernel PWM controller used by the sysfs backend
type SysfsConfig struct {
	Root     string `yaml:"root"`
	Chip     int    `yaml:"chip"`
	PeriodNs uint64 `yaml:"period_ns"`
}

// TransitionConfig contains fade settings
type TransitionConfig struct {
	Duration     Duration `yaml:"duration"`      // Total fade time (default: 300ms)
	Step         Duration `yaml:"step"`          // Tick interval (default: 10ms)
	InitialColor string   `yaml:"initial_color"` // Colour shown at startup (default: 000000)
}

// HTTPConfig contains the colour API server settings
type HTTPConfig struct {
	Enabled      *bool   `yaml:"enabled"` // Default: true
	Host         string  `yaml:"host"`
	Port         int     `yaml:"port"`
	RateLimitRPS float64 `yaml:"rate_limit_rps"` // Write requests per second, negative disables
}

// IsEnabled returns whether the HTTP server runs (default: true)
func (c *HTTPConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// MQTTConfig contains the optional MQTT boundary settings
type MQTTConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Broker         string   `yaml:"broker"`
	ClientID       string   `yaml:"client_id"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	TopicPrefix    string   `yaml:"topic_prefix"`
	ConnectTimeout Duration `yaml:"connect_timeout"`
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LedgerConfig contains colour request ledger settings
type LedgerConfig struct {
	Enabled         *bool    `yaml:"enabled"` // Default: true
	CleanupInterval Duration `yaml:"cleanup_interval"`
	RetentionDays   int      `yaml:"retention_days"`
}

// IsEnabled returns whether requests are recorded (default: true)
func (c *LedgerConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// HealthcheckConfig contains health check server settings
type HealthcheckConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// EventBusConfig contains event bus settings
type EventBusConfig struct {
	Workers   int `yaml:"workers"`    // Number of worker goroutines (default: 2)
	QueueSize int `yaml:"queue_size"` // Event queue size (default: 100)
}

// GetWorkers returns worker count with default
func (c *EventBusConfig) GetWorkers() int {
	if c.Workers <= 0 {
		return 2
	}
	return c.Workers
}

// GetQueueSize returns queue size with default
func (c *EventBusConfig) GetQueueSize() int {
	if c.QueueSize <= 0 {
		return 100
	}
	return c.QueueSize
}

// Duration is a wrapper around time.Duration for YAML unmarshalling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse expands environment variables in data, decodes it and applies defaults
func Parse(data []byte) (*Config, error) {
	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration with every default applied
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func (cfg *Config) applyDefaults() {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	// PWM defaults
	if cfg.PWM.Backend == "" {
		cfg.PWM.Backend = "log"
	}
	if cfg.PWM.Period == 0 {
		cfg.PWM.Period = 1000
	}
	if cfg.PWM.Gamma == 0 {
		cfg.PWM.Gamma = 3.0
	}
	if cfg.PWM.Pins == nil {
		cfg.PWM.Pins = []uint32{0, 1, 2}
	}
	if cfg.PWM.Sysfs.PeriodNs == 0 {
		cfg.PWM.Sysfs.PeriodNs = 1_000_000 // 1kHz
	}

	// Transition defaults
	if cfg.Transition.Duration == 0 {
		cfg.Transition.Duration = Duration(300 * time.Millisecond)
	}
	if cfg.Transition.Step == 0 {
		cfg.Transition.Step = Duration(10 * time.Millisecond)
	}
	if cfg.Transition.InitialColor == "" {
		cfg.Transition.InitialColor = "000000"
	}

	// HTTP defaults
	if cfg.HTTP.Host == "" {
		cfg.HTTP.Host = "0.0.0.0"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 80
	}
	if cfg.HTTP.RateLimitRPS == 0 {
		cfg.HTTP.RateLimitRPS = 20.0
	}

	// MQTT defaults (client_id is generated at connect time when empty)
	if cfg.MQTT.Broker == "" {
		cfg.MQTT.Broker = "tcp://localhost:1883"
	}
	if cfg.MQTT.TopicPrefix == "" {
		cfg.MQTT.TopicPrefix = "rgbd"
	}
	if cfg.MQTT.ConnectTimeout == 0 {
		cfg.MQTT.ConnectTimeout = Duration(10 * time.Second)
	}

	if cfg.Database.Path == "" {
		cfg.Database.Path = "./rgbd.sqlite"
	}

	// Ledger defaults
	if cfg.Ledger.CleanupInterval == 0 {
		cfg.Ledger.CleanupInterval = Duration(24 * time.Hour)
	}
	if cfg.Ledger.RetentionDays == 0 {
		cfg.Ledger.RetentionDays = 30
	}

	// Healthcheck defaults
	if cfg.Healthcheck.Port == 0 {
		cfg.Healthcheck.Port = 9090
	}
	if cfg.Healthcheck.Host == "" {
		cfg.Healthcheck.Host = "0.0.0.0"
	}

	// General shutdown timeout
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = Duration(5 * time.Second)
	}
}

// Validate rejects settings the controller cannot run with
func (cfg *Config) Validate() error {
	switch cfg.PWM.Backend {
	case "log", "sysfs", "none":
	default:
		return fmt.Errorf("unknown pwm backend %q", cfg.PWM.Backend)
	}
	if cfg.PWM.Gamma < 0 {
		return fmt.Errorf("pwm gamma must be positive, got %v", cfg.PWM.Gamma)
	}
	if len(cfg.PWM.Pins) != 3 {
		return fmt.Errorf("pwm pins must list 3 channels (R, G, B), got %d", len(cfg.PWM.Pins))
	}
	if cfg.Transition.Step < 0 {
		return fmt.Errorf("transition step must be positive")
	}
	if cfg.Transition.Duration < cfg.Transition.Step {
		return fmt.Errorf("transition duration %s is shorter than step %s",
			cfg.Transition.Duration.Duration(), cfg.Transition.Step.Duration())
	}
	if _, err := cfg.InitialColor(); err != nil {
		return fmt.Errorf("invalid transition initial_color: %w", err)
	}
	if cfg.Ledger.IsEnabled() {
		if cfg.Ledger.CleanupInterval <= 0 {
			return fmt.Errorf("ledger cleanup_interval must be positive, got %s", cfg.Ledger.CleanupInterval.Duration())
		}
		if cfg.Ledger.RetentionDays < 0 {
			return fmt.Errorf("ledger retention_days must not be negative, got %d", cfg.Ledger.RetentionDays)
		}
	}
	return nil
}

// InitialColor parses transition.initial_color
func (cfg *Config) InitialColor() (color.Color, error) {
	return color.ParseHex(cfg.Transition.InitialColor)
}

// HTTPAddr returns the colour API listen address
func (cfg *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
}

// HealthAddr returns the health check listen address
func (cfg *Config) HealthAddr() string {
	return fmt.Sprintf("%s:%d", cfg.Healthcheck.Host, cfg.Healthcheck.Port)
}

// expandEnvVars expands environment variables in the format ${VAR} or ${VAR:default}
func expandEnvVars(input string) string {
	// Match ${VAR} or ${VAR:default}
	re := regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

	return re.ReplaceAllStringFunc(input, func(match string) string {
		parts := re.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultVal := ""
		if len(parts) >= 3 {
			defaultVal = parts[2]
		}

		if val := os.Getenv(varName); val != "" {
			return val
		}
		return defaultVal
	})
}
