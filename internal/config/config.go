package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/KirkDiggler/starbus/internal/eventbus"
)

// Config holds all configuration for the application
type Config struct {
	Bus     BusConfig
	Loop    LoopConfig
	Log     LogConfig
	Metrics MetricsConfig
	Scene   SceneConfig
}

// BusConfig holds event bus policy
type BusConfig struct {
	// Strict rejects double registration instead of logging it
	Strict   bool
	Dispatch eventbus.DispatchPolicy
}

// LoopConfig holds main loop configuration
type LoopConfig struct {
	LagWarning time.Duration
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level       string
	Development bool
}

// MetricsConfig holds the optional Prometheus endpoint
type MetricsConfig struct {
	Addr string // empty disables the endpoint
}

// SceneConfig holds the demo scene's position
type SceneConfig struct {
	SectorX      int64
	SectorY      int64
	SectorRadius int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	debug := getEnvAsBoolOrDefault("STARBUS_DEBUG", false)

	dispatch, err := eventbus.ParseDispatchPolicy(os.Getenv("STARBUS_DISPATCH"))
	if err != nil {
		return nil, fmt.Errorf("STARBUS_DISPATCH: %w", err)
	}

	lagWarning, err := getEnvAsDurationOrDefault("STARBUS_LAG_WARNING", 50*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("STARBUS_LAG_WARNING: %w", err)
	}

	cfg := &Config{
		Bus: BusConfig{
			Strict:   debug,
			Dispatch: dispatch,
		},
		Loop: LoopConfig{
			LagWarning: lagWarning,
		},
		Log: LogConfig{
			Level:       getEnvOrDefault("STARBUS_LOG_LEVEL", "info"),
			Development: debug,
		},
		Metrics: MetricsConfig{
			Addr: os.Getenv("STARBUS_METRICS_ADDR"),
		},
		Scene: SceneConfig{
			SectorX:      getEnvAsInt64OrDefault("STARBUS_SECTOR_X", 0),
			SectorY:      getEnvAsInt64OrDefault("STARBUS_SECTOR_Y", 0),
			SectorRadius: int(getEnvAsInt64OrDefault("STARBUS_SECTOR_RADIUS", 1)),
		},
	}

	if cfg.Scene.SectorRadius < 0 {
		return nil, fmt.Errorf("STARBUS_SECTOR_RADIUS must not be negative")
	}

	return cfg, nil
}

// EventBusSettings adapts the bus section for the eventbus fx module
func (c *Config) EventBusSettings() eventbus.Settings {
	return eventbus.Settings{
		Strict:   c.Bus.Strict,
		Dispatch: c.Bus.Dispatch,
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt64OrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDurationOrDefault(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	return time.ParseDuration(value)
}
