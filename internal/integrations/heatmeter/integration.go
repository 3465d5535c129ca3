package heatmeter

import (
	"context"
	"fmt"

	"github.com/nerrad567/gray-logic-integrations/internal/coordinator"
	"github.com/nerrad567/gray-logic-integrations/internal/entry"
	"github.com/nerrad567/gray-logic-integrations/internal/flow"
	"github.com/nerrad567/gray-logic-integrations/internal/integrations"
)

// Domain is the entry domain of Landis+Gyr heat meters.
const Domain = "landisgyr_heat_meter"

// CoordinatorName names the polling coordinator in logs.
const CoordinatorName = "ultraheat_gateway"

// Logger is the logging interface used by the integration.
type Logger = integrations.Logger

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Integration sets up and polls heat meters.
type Integration struct {
	cfg    Config
	ports  PortLister
	reader MeterReader
	logger Logger
}

// New creates the integration. A nil ports or reader uses the host's
// serial ports.
func New(cfg Config, ports PortLister, reader MeterReader, logger Logger) *Integration {
	if ports == nil {
		ports = SystemPorts{}
	}
	if reader == nil {
		reader = &UltraheatReader{}
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &Integration{cfg: cfg.withDefaults(), ports: ports, reader: reader, logger: logger}
}

// Domain implements integrations.Integration.
func (in *Integration) Domain() string { return Domain }

// Name implements integrations.Integration.
func (in *Integration) Name() string { return "Landis+Gyr Heat Meter" }

// NewFlow implements integrations.Integration.
func (in *Integration) NewFlow() flow.Handler {
	return &configFlow{cfg: in.cfg, ports: in.ports, reader: in.reader, logger: in.logger}
}

// Setup implements integrations.Integration.
func (in *Integration) Setup(ctx context.Context, e *entry.Entry, pub integrations.StatePublisher) (integrations.Runtime, error) {
	device := e.String(KeyDevice)
	if device == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingDevice, e.ID)
	}
	interval := in.cfg.PollingInterval(e.Bool(KeyBatteryOperated, false))
	in.logger.Debug("scheduling heat meter", "device", device, "interval", interval)

	return integrations.StartPolled(ctx, integrations.PolledConfig[*Reading]{
		Entry:     e,
		Publisher: pub,
		Logger:    in.logger,
		Coordinator: coordinator.Config[*Reading]{
			Name:     CoordinatorName,
			Interval: interval,
			Timeout:  in.cfg.ReadTimeout,
			Update: func(ctx context.Context) (*Reading, error) {
				in.logger.Info("polling heat meter", "device", device)
				return in.reader.Read(ctx, device)
			},
		},
		ToState: (*Reading).State,
	})
}
