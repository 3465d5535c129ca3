package heatmeter

import (
	"time"

	"github.com/nerrad567/gray-logic-integrations/internal/infrastructure/config"
)

// Defaults applied to zero Config fields.
const (
	DefaultReadTimeout            = 30 * time.Second
	DefaultPollingIntervalMains   = time.Hour
	DefaultPollingIntervalBattery = 24 * time.Hour
	DefaultSerialByIDDir          = "/dev/serial/by-id"
)

// Config holds the integration settings.
type Config struct {
	ReadTimeout            time.Duration
	PollingIntervalMains   time.Duration
	PollingIntervalBattery time.Duration
	SerialByIDDir          string
}

// ConfigFrom maps the YAML section onto Config.
func ConfigFrom(c config.HeatMeterConfig) Config {
	return Config{
		ReadTimeout:            c.ReadTimeout,
		PollingIntervalMains:   c.PollingIntervalMains,
		PollingIntervalBattery: c.PollingIntervalBattery,
		SerialByIDDir:          c.SerialByIDDir,
	}.withDefaults()
}

func (c Config) withDefaults() Config {
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.PollingIntervalMains <= 0 {
		c.PollingIntervalMains = DefaultPollingIntervalMains
	}
	if c.PollingIntervalBattery <= 0 {
		c.PollingIntervalBattery = DefaultPollingIntervalBattery
	}
	if c.SerialByIDDir == "" {
		c.SerialByIDDir = DefaultSerialByIDDir
	}
	return c
}

// PollingInterval returns the interval for a meter with the given power source.
// Battery meters are read rarely to save their battery.
func (c Config) PollingInterval(batteryOperated bool) time.Duration {
	if batteryOperated {
		return c.PollingIntervalBattery
	}
	return c.PollingIntervalMains
}
