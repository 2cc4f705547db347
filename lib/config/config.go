// Copyright 2026 The Sensorlink Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/radarcns/sensorlink/lib/producer"
	"github.com/radarcns/sensorlink/lib/schema/device"
)

// EnvConfig names the environment variable Load reads the config path from.
const EnvConfig = "SENSORLINK_CONFIG"

// Environment represents the deployment environment.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

// Producer modes select how a connector reaches its producer.
const (
	// ModeLocal runs the producer inside the controller's process.
	ModeLocal = "local"
	// ModeSocket connects to a producer that is already running.
	ModeSocket = "socket"
	// ModeProcess connects to a running producer or spawns one.
	ModeProcess = "process"
)

// Config is the sensorlink configuration.
type Config struct {
	Environment Environment `yaml:"environment"`

	Producer ProducerConfig `yaml:"producer"`

	// Params are passed unchanged to the producer on every bind.
	Params producer.Params `yaml:"params"`

	Rebind RebindConfig `yaml:"rebind"`

	Transaction TransactionConfig `yaml:"transaction"`

	Metrics MetricsConfig `yaml:"metrics"`

	// Per-environment overrides, applied after the base config.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains the sections that can be overridden per
// environment. Non-zero fields replace base values.
type ConfigOverrides struct {
	Producer *ProducerConfig `yaml:"producer,omitempty"`
	Params   *producer.Params `yaml:"params,omitempty"`
	Rebind   *RebindConfig    `yaml:"rebind,omitempty"`
	Metrics  *MetricsConfig   `yaml:"metrics,omitempty"`
}

// ProducerConfig says where the producer lives and what it simulates.
type ProducerConfig struct {
	// Mode is one of local, socket, process. Default: process.
	Mode string `yaml:"mode"`

	// SocketPath is the producer's transaction socket.
	// Default: ${XDG_RUNTIME_DIR:-/tmp}/sensorlink/producer.sock
	SocketPath string `yaml:"socket_path"`

	// Binary is the producer executable spawned in process mode.
	// Default: sensorlink-producer (found in PATH)
	Binary string `yaml:"binary"`

	// DeviceKind is wearable or phone. Default: wearable.
	DeviceKind string `yaml:"device_kind"`

	// DeviceName is the display name a spawned or local producer
	// reports.
	DeviceName string `yaml:"device_name"`

	// StartupTimeout bounds how long process mode waits for a spawned
	// producer to answer. Default: 10s
	StartupTimeout time.Duration `yaml:"startup_timeout"`
}

// RebindConfig bounds automatic recovery after a producer dies.
type RebindConfig struct {
	// InitialBackoff is the delay before the second attempt. Default: 1s
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	// MaxBackoff caps the doubling delay. Default: 30s
	MaxBackoff time.Duration `yaml:"max_backoff"`
	// MaxAttempts caps consecutive attempts; 0 retries forever.
	// Default: 10
	MaxAttempts int `yaml:"max_attempts"`
}

// TransactionConfig bounds individual transactions.
type TransactionConfig struct {
	// CallTimeout bounds each transaction. Default: 10s
	CallTimeout time.Duration `yaml:"call_timeout"`
	// DialTimeout bounds the connect phase. Default: 5s
	DialTimeout time.Duration `yaml:"dial_timeout"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Listen is the address /metrics is served on. Empty disables it.
	Listen string `yaml:"listen"`
}

// Default returns the default configuration. These defaults are the
// base the config file is merged into; the file itself is required.
func Default() *Config {
	return &Config{
		Environment: Development,
		Producer: ProducerConfig{
			Mode:           ModeProcess,
			SocketPath:     "${XDG_RUNTIME_DIR:-/tmp}/sensorlink/producer.sock",
			Binary:         "sensorlink-producer",
			DeviceKind:     "wearable",
			StartupTimeout: 10 * time.Second,
		},
		Rebind: RebindConfig{
			InitialBackoff: time.Second,
			MaxBackoff:     30 * time.Second,
			MaxAttempts:    10,
		},
		Transaction: TransactionConfig{
			CallTimeout: 10 * time.Second,
			DialTimeout: 5 * time.Second,
		},
	}
}

// Load loads configuration from the file named by SENSORLINK_CONFIG.
// There is no fallback when the variable is unset.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvConfig)
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your sensorlink.yaml config file, or use --config flag", EnvConfig)
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from path, applies the overrides of the
// configured environment, and expands variables.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()

	return cfg, nil
}

func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides
	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
	}
	if overrides == nil {
		return
	}

	if o := overrides.Producer; o != nil {
		setString(&c.Producer.Mode, o.Mode)
		setString(&c.Producer.SocketPath, o.SocketPath)
		setString(&c.Producer.Binary, o.Binary)
		setString(&c.Producer.DeviceKind, o.DeviceKind)
		setString(&c.Producer.DeviceName, o.DeviceName)
		if o.StartupTimeout != 0 {
			c.Producer.StartupTimeout = o.StartupTimeout
		}
	}

	if o := overrides.Params; o != nil {
		setString(&c.Params.UploadURL, o.UploadURL)
		setString(&c.Params.SchemaRegistryURL, o.SchemaRegistryURL)
		setString(&c.Params.GroupID, o.GroupID)
		setString(&c.Params.APIKey, o.APIKey)
	}

	if o := overrides.Rebind; o != nil {
		if o.InitialBackoff != 0 {
			c.Rebind.InitialBackoff = o.InitialBackoff
		}
		if o.MaxBackoff != 0 {
			c.Rebind.MaxBackoff = o.MaxBackoff
		}
		// MaxAttempts 0 means unlimited, so it is always applied.
		c.Rebind.MaxAttempts = o.MaxAttempts
	}

	if o := overrides.Metrics; o != nil {
		setString(&c.Metrics.Listen, o.Listen)
	}
}

func setString(target *string, value string) {
	if value != "" {
		*target = value
	}
}

func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}
	c.Producer.SocketPath = expandVars(c.Producer.SocketPath, vars)
	c.Producer.Binary = expandVars(c.Producer.Binary, vars)
	c.Params.UploadURL = expandVars(c.Params.UploadURL, vars)
	c.Params.SchemaRegistryURL = expandVars(c.Params.SchemaRegistryURL, vars)
	c.Params.GroupID = expandVars(c.Params.GroupID, vars)
	c.Params.APIKey = expandVars(c.Params.APIKey, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default} patterns, looking in
// vars first and then the process environment.
func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// DeviceKind parses Producer.DeviceKind.
func (c *Config) DeviceKind() (device.Kind, error) {
	return device.ParseKind(c.Producer.DeviceKind)
}

// Validate checks the configuration and reports every problem at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	switch c.Producer.Mode {
	case ModeLocal:
	case ModeSocket, ModeProcess:
		if c.Producer.SocketPath == "" {
			errs = append(errs, fmt.Errorf("producer.socket_path is required in %s mode", c.Producer.Mode))
		}
		if c.Producer.Mode == ModeProcess && c.Producer.Binary == "" {
			errs = append(errs, errors.New("producer.binary is required in process mode"))
		}
	default:
		errs = append(errs, fmt.Errorf("producer.mode must be one of: %v", []string{ModeLocal, ModeSocket, ModeProcess}))
	}
	if _, err := c.DeviceKind(); err != nil {
		errs = append(errs, fmt.Errorf("producer.device_kind: %w", err))
	}
	if c.Producer.StartupTimeout <= 0 {
		errs = append(errs, errors.New("producer.startup_timeout must be positive"))
	}

	if c.Rebind.InitialBackoff <= 0 {
		errs = append(errs, errors.New("rebind.initial_backoff must be positive"))
	}
	if c.Rebind.MaxBackoff < c.Rebind.InitialBackoff {
		errs = append(errs, errors.New("rebind.max_backoff must not be less than rebind.initial_backoff"))
	}
	if c.Rebind.MaxAttempts < 0 {
		errs = append(errs, errors.New("rebind.max_attempts must not be negative"))
	}

	if c.Transaction.CallTimeout <= 0 {
		errs = append(errs, errors.New("transaction.call_timeout must be positive"))
	}
	if c.Transaction.DialTimeout <= 0 {
		errs = append(errs, errors.New("transaction.dial_timeout must be positive"))
	}

	if c.Environment == Production {
		if c.Params.GroupID == "" {
			errs = append(errs, errors.New("params.group_id is required in production"))
		}
		if c.Params.APIKey == "" {
			errs = append(errs, errors.New("params.api_key is required in production"))
		}
	}

	return errors.Join(errs...)
}
