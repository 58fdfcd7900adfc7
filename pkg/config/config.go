// Package config loads and validates simulation configuration from YAML
// files with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"
)

// EnvPrefix is the prefix for environment variable overrides,
// e.g. RINGNET_RING_SIZE overrides ring.size.
const EnvPrefix = "RINGNET"

// Duration wraps time.Duration so YAML values like "250ms" decode directly.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw string
	if err := unmarshal(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the full simulation configuration.
type Config struct {
	Ring    RingConfig    `yaml:"ring"`
	Client  ClientConfig  `yaml:"client"`
	Clock   ClockConfig   `yaml:"clock"`
	Metrics MetricsConfig `yaml:"metrics"`

	// Iterations is the number of submit/await/report cycles to run over
	// one built network.
	Iterations int `yaml:"iterations"`

	// Debug enables per-hop diagnostic logging.
	Debug bool `yaml:"debug"`
}

// RingConfig configures the node topology.
type RingConfig struct {
	Size           int      `yaml:"size"`
	WorkersPerNode int      `yaml:"workers_per_node"`
	QueueCapacity  int      `yaml:"queue_capacity"`
	ReceiveTimeout Duration `yaml:"receive_timeout"`
	ShutdownGrace  Duration `yaml:"shutdown_grace"`
}

// ClientConfig configures the work producer.
type ClientConfig struct {
	TotalItems  int      `yaml:"total_items"`
	SubmitDelay Duration `yaml:"submit_delay"`
	AwaitBudget Duration `yaml:"await_budget"`
}

// ClockConfig configures the diagnostic tick source.
type ClockConfig struct {
	Interval Duration `yaml:"interval"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// Default returns a configuration matching the reference five node run.
func Default() Config {
	return Config{
		Ring: RingConfig{
			Size:           5,
			WorkersPerNode: 1,
			QueueCapacity:  1024,
			ReceiveTimeout: Duration(100 * time.Millisecond),
			ShutdownGrace:  Duration(2 * time.Second),
		},
		Client: ClientConfig{
			TotalItems:  10,
			SubmitDelay: Duration(100 * time.Millisecond),
			AwaitBudget: Duration(30 * time.Second),
		},
		Clock: ClockConfig{
			Interval: Duration(500 * time.Millisecond),
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    ":9091",
		},
		Iterations: 1,
	}
}

// Load reads cfg from a YAML file, applies environment overrides, and
// validates the result. An empty path yields the defaults plus overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadYAML(path, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := applyEnvOverrides(EnvPrefix, reflect.ValueOf(&cfg).Elem()); err != nil {
		return cfg, fmt.Errorf("failed to apply env overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the simulator cannot run with.
func (c Config) Validate() error {
	if c.Ring.Size < 2 {
		return fmt.Errorf("ring.size must be at least 2, got %d", c.Ring.Size)
	}
	if c.Ring.WorkersPerNode < 1 {
		return fmt.Errorf("ring.workers_per_node must be at least 1, got %d", c.Ring.WorkersPerNode)
	}
	if c.Ring.ReceiveTimeout <= 0 {
		return fmt.Errorf("ring.receive_timeout must be positive")
	}
	if c.Client.TotalItems < 0 {
		return fmt.Errorf("client.total_items must not be negative, got %d", c.Client.TotalItems)
	}
	if c.Client.AwaitBudget <= 0 {
		return fmt.Errorf("client.await_budget must be positive")
	}
	if c.Iterations < 1 {
		return fmt.Errorf("iterations must be at least 1, got %d", c.Iterations)
	}
	return nil
}

// applyEnvOverrides recursively applies environment variables to struct
// fields, using PREFIX_FIELDNAME naming.
func applyEnvOverrides(prefix string, val reflect.Value) error {
	typ := val.Type()

	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)

		if !field.CanSet() {
			continue
		}

		envKey := prefix + "_" + strings.ToUpper(fieldType.Name)
		envKey = strings.ReplaceAll(envKey, "-", "_")

		if field.Kind() == reflect.Struct {
			if err := applyEnvOverrides(envKey, field); err != nil {
				return err
			}
			continue
		}

		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}

		if err := setFieldFromEnv(field, envValue); err != nil {
			return fmt.Errorf("failed to set field %s from env %s: %w", fieldType.Name, envKey, err)
		}
	}

	return nil
}

var durationType = reflect.TypeOf(Duration(0))

// setFieldFromEnv sets a struct field value from an environment variable.
func setFieldFromEnv(field reflect.Value, envValue string) error {
	if field.Type() == durationType {
		parsed, err := time.ParseDuration(envValue)
		if err != nil {
			return fmt.Errorf("invalid duration value: %s", envValue)
		}
		field.SetInt(int64(parsed))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(envValue)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		var intVal int64
		if _, err := fmt.Sscanf(envValue, "%d", &intVal); err != nil {
			return fmt.Errorf("invalid integer value: %s", envValue)
		}
		field.SetInt(intVal)
	case reflect.Bool:
		boolVal := strings.ToLower(envValue) == "true" || envValue == "1"
		field.SetBool(boolVal)
	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}

	return nil
}
