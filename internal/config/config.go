package config

import (
	"os"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/azargarov/drudge"
)

type Config struct {
	Pool struct {
		Workers    int   `yaml:"workers" env:"DRUDGE_WORKERS"`
		Capacity   int   `yaml:"capacity" env:"DRUDGE_CAPACITY"`
		PinWorkers bool  `yaml:"pin_workers" env:"DRUDGE_PIN_WORKERS"`
		CoreTable  []int `yaml:"core_table" env:"DRUDGE_CORE_TABLE" envSeparator:","`
	} `yaml:"pool"`

	Retry struct {
		Attempts int           `yaml:"attempts" env:"DRUDGE_RETRY_ATTEMPTS"`
		Initial  time.Duration `yaml:"initial" env:"DRUDGE_RETRY_INITIAL"`
		Max      time.Duration `yaml:"max" env:"DRUDGE_RETRY_MAX"`
	} `yaml:"retry"`

	Metrics struct {
		Addr      string `yaml:"addr" env:"DRUDGE_METRICS_ADDR"`
		Namespace string `yaml:"namespace" env:"DRUDGE_METRICS_NAMESPACE"`
	} `yaml:"metrics"`

	Trace bool `yaml:"trace" env:"DRUDGE_TRACE"`
}

// Load reads the YAML file at path and then applies DRUDGE_* environment
// overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read yaml")
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "parse yaml")
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, errors.Wrap(err, "parse env")
	}
	return &cfg, nil
}

// LoadEnv builds a Config from DRUDGE_* environment variables only.
func LoadEnv() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, errors.Wrap(err, "parse env")
	}
	return &cfg, nil
}

// Options converts the pool and retry sections. Callers fill in the
// runtime-only fields such as Ctx, Metrics and Tracer.
func (c *Config) Options() drudge.Options {
	return drudge.Options{
		Workers:    c.Pool.Workers,
		Capacity:   c.Pool.Capacity,
		PinWorkers: c.Pool.PinWorkers,
		CoreTable:  c.Pool.CoreTable,
		Retry: drudge.RetryPolicy{
			Attempts: c.Retry.Attempts,
			Initial:  c.Retry.Initial,
			Max:      c.Retry.Max,
		},
	}
}
