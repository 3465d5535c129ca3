package minecraft

import (
	"time"

	"github.com/nerrad567/gray-logic-integrations/internal/infrastructure/config"
)

// Defaults applied to zero Config fields.
const (
	DefaultPort          = 25565
	DefaultProbeTimeout  = 5 * time.Second
	DefaultLookupTimeout = 3 * time.Second
	DefaultScanInterval  = 60 * time.Second
)

// Config holds the integration settings.
type Config struct {
	DefaultPort   int
	ProbeTimeout  time.Duration
	LookupTimeout time.Duration
	ScanInterval  time.Duration
	ARPTable      string
}

// ConfigFrom maps the YAML section onto Config.
func ConfigFrom(c config.MinecraftConfig) Config {
	return Config{
		DefaultPort:   c.DefaultPort,
		ProbeTimeout:  c.ProbeTimeout,
		LookupTimeout: c.LookupTimeout,
		ScanInterval:  c.ScanInterval,
		ARPTable:      c.ARPTable,
	}.withDefaults()
}

func (c Config) withDefaults() Config {
	if c.DefaultPort <= 0 || c.DefaultPort > 65535 {
		c.DefaultPort = DefaultPort
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = DefaultProbeTimeout
	}
	if c.LookupTimeout <= 0 {
		c.LookupTimeout = DefaultLookupTimeout
	}
	if c.ScanInterval <= 0 {
		c.ScanInterval = DefaultScanInterval
	}
	if c.ARPTable == "" {
		c.ARPTable = DefaultARPTable
	}
	return c
}
