package infra

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "NGSN"

// Config is the root configuration.
type Config struct {
	Monitor  MonitorConfig  `mapstructure:"monitor"`
	Resolver ResolverConfig `mapstructure:"resolver"`
	Sampler  SamplerConfig  `mapstructure:"sampler"`
	Logger   LoggerConfig   `mapstructure:"logger"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// MonitorConfig controls the two polling cadences.
type MonitorConfig struct {
	SampleInterval  time.Duration `mapstructure:"sample_interval"`  // Accumulation cadence
	RetryBackoff    time.Duration `mapstructure:"retry_backoff"`    // Wait after a failed pass
	DisplayInterval time.Duration `mapstructure:"display_interval"` // Display cadence
}

// ResolverConfig bounds reverse DNS.
type ResolverConfig struct {
	DNSTimeout       time.Duration `mapstructure:"dns_timeout"`
	LookupsPerSecond float64       `mapstructure:"lookups_per_second"`
	LookupBurst      int           `mapstructure:"lookup_burst"`
}

// SamplerConfig selects what the OS is asked for.
type SamplerConfig struct {
	Kind             string `mapstructure:"kind"` // gopsutil kind: inet, inet4, tcp, ...
	ResolveProcesses bool   `mapstructure:"resolve_processes"`
}

// LoggerConfig configures the zap logger.
type LoggerConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
	File   string `mapstructure:"file"`   // Empty means stderr
}

// MetricsConfig configures the optional Prometheus listener.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"` // Empty disables the listener
}

// flagKeys maps CLI flag names onto config keys.
var flagKeys = map[string]string{
	"log-level":    "logger.level",
	"log-file":     "logger.file",
	"metrics-addr": "metrics.addr",
	"interval":     "monitor.sample_interval",
	"dns-timeout":  "resolver.dns_timeout",
}

// LoadConfig merges defaults, an optional YAML file, NGSN_* env vars and flags.
// An explicit path must exist; otherwise a missing ngsn.yaml is not an error.
func LoadConfig(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("ngsn")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "ngsn"))
		}
	}

	// NGSN_MONITOR_SAMPLE_INTERVAL=1s overrides monitor.sample_interval
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() *Config {
	return &Config{
		Monitor: MonitorConfig{
			SampleInterval:  2 * time.Second,
			RetryBackoff:    5 * time.Second,
			DisplayInterval: 3 * time.Second,
		},
		Resolver: ResolverConfig{
			DNSTimeout:       2 * time.Second,
			LookupsPerSecond: DefaultLookupsPerSecond,
			LookupBurst:      DefaultLookupBurst,
		},
		Sampler: SamplerConfig{
			Kind:             DefaultConnectionKind,
			ResolveProcesses: true,
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "json",
			File:   "/var/tmp/ngsn.log",
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("monitor.sample_interval", d.Monitor.SampleInterval)
	v.SetDefault("monitor.retry_backoff", d.Monitor.RetryBackoff)
	v.SetDefault("monitor.display_interval", d.Monitor.DisplayInterval)
	v.SetDefault("resolver.dns_timeout", d.Resolver.DNSTimeout)
	v.SetDefault("resolver.lookups_per_second", d.Resolver.LookupsPerSecond)
	v.SetDefault("resolver.lookup_burst", d.Resolver.LookupBurst)
	v.SetDefault("sampler.kind", d.Sampler.Kind)
	v.SetDefault("sampler.resolve_processes", d.Sampler.ResolveProcesses)
	v.SetDefault("logger.level", d.Logger.Level)
	v.SetDefault("logger.format", d.Logger.Format)
	v.SetDefault("logger.file", d.Logger.File)
	v.SetDefault("metrics.addr", d.Metrics.Addr)
}

// Validate rejects settings the monitor cannot run with.
func (c *Config) Validate() error {
	if c.Monitor.SampleInterval <= 0 {
		return fmt.Errorf("monitor.sample_interval must be positive, got %s", c.Monitor.SampleInterval)
	}
	if c.Monitor.RetryBackoff <= 0 {
		return fmt.Errorf("monitor.retry_backoff must be positive, got %s", c.Monitor.RetryBackoff)
	}
	if c.Monitor.DisplayInterval <= 0 {
		return fmt.Errorf("monitor.display_interval must be positive, got %s", c.Monitor.DisplayInterval)
	}
	if c.Resolver.DNSTimeout <= 0 {
		return fmt.Errorf("resolver.dns_timeout must be positive, got %s", c.Resolver.DNSTimeout)
	}
	return nil
}
