package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config carries the routing engine tunables. It is loaded once at startup
// and injected into constructors; nothing reads the environment afterwards.
type Config struct {
	HealthThreshold   float64 `validate:"gt=0,lte=1"`
	DegradedThreshold float64 `validate:"gt=0,lte=1,gtefield=HealthThreshold"`
	WindowSize        int     `validate:"gt=0"`
	ProbeInterval     int     `validate:"gt=0"`
	Seed              int64
}

var validatorInstance = validator.New()

func Default() Config {
	return Config{
		HealthThreshold:   0.60,
		DegradedThreshold: 0.80,
		WindowSize:        100,
		ProbeInterval:     10,
		Seed:              time.Now().UnixNano(),
	}
}

// Load reads ZEPHYR_* environment overrides on top of the defaults.
func Load() (Config, error) {
	cfg := Default()

	if v := os.Getenv("ZEPHYR_HEALTH_THRESHOLD"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return Config{}, fmt.Errorf("invalid ZEPHYR_HEALTH_THRESHOLD value: %w", err)
		}
		cfg.HealthThreshold = f
	}
	if v := os.Getenv("ZEPHYR_DEGRADED_THRESHOLD"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return Config{}, fmt.Errorf("invalid ZEPHYR_DEGRADED_THRESHOLD value: %w", err)
		}
		cfg.DegradedThreshold = f
	}
	if v := os.Getenv("ZEPHYR_WINDOW_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid ZEPHYR_WINDOW_SIZE value: %w", err)
		}
		cfg.WindowSize = n
	}
	if v := os.Getenv("ZEPHYR_PROBE_INTERVAL"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid ZEPHYR_PROBE_INTERVAL value: %w", err)
		}
		cfg.ProbeInterval = n
	}
	if v := os.Getenv("ZEPHYR_SEED"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("invalid ZEPHYR_SEED value: %w", err)
		}
		cfg.Seed = n
	}

	if err := validatorInstance.Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
