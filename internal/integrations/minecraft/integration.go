package minecraft

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nerrad567/gray-logic-integrations/internal/coordinator"
	"github.com/nerrad567/gray-logic-integrations/internal/entry"
	"github.com/nerrad567/gray-logic-integrations/internal/flow"
	"github.com/nerrad567/gray-logic-integrations/internal/integrations"
	"github.com/nerrad567/gray-logic-integrations/internal/serveraddr"
)

// Domain is the entry domain of Minecraft servers.
const Domain = "minecraft_server"

// ErrMissingHost is returned when setting up an entry without a host.
var ErrMissingHost = errors.New("minecraft: entry has no host")

// Integration sets up and polls Minecraft servers.
type Integration struct {
	cfg    Config
	probe  Connectivity
	lookup serveraddr.ServiceLookup
	logger integrations.Logger
}

// New creates the integration. A nil lookup skips service records both
// for entry identity and for pings.
func New(cfg Config, lookup serveraddr.ServiceLookup, logger integrations.Logger) *Integration {
	cfg = cfg.withDefaults()
	return &Integration{
		cfg:    cfg,
		probe:  &Prober{SRV: lookup != nil, Timeout: cfg.ProbeTimeout, ARPTable: cfg.ARPTable},
		lookup: lookup,
		logger: logger,
	}
}

// Domain implements integrations.Integration.
func (in *Integration) Domain() string { return Domain }

// Name implements integrations.Integration.
func (in *Integration) Name() string { return DefaultName }

// NewFlow implements integrations.Integration.
func (in *Integration) NewFlow() flow.Handler {
	return &configFlow{cfg: in.cfg, probe: in.probe, lookup: in.lookup}
}

// Reading is one poll of a server. An unreachable server is a reading
// with Online false, not an error.
type Reading struct {
	Online bool
	Status ServerStatus
}

// State returns the published fields of r.
func (r Reading) State() map[string]any {
	s := r.Status
	return map[string]any{
		"online":           r.Online,
		"version":          s.Version,
		"protocol_version": s.ProtocolVersion,
		"players_online":   s.PlayersOnline,
		"players_max":      s.PlayersMax,
		"latency_ms":       float64(s.Latency.Microseconds()) / 1000,
		"motd":             s.MOTD,
		"players_list":     strings.Join(s.PlayerNames, ", "),
	}
}

// Setup implements integrations.Integration.
func (in *Integration) Setup(ctx context.Context, e *entry.Entry, pub integrations.StatePublisher) (integrations.Runtime, error) {
	host := e.String(KeyHost)
	if host == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingHost, e.ID)
	}
	port, ok := e.Int(KeyPort)
	if !ok || port <= 0 || port > 65535 {
		port = in.cfg.DefaultPort
	}
	addr := serveraddr.FromHostPort(host, port)

	return integrations.StartPolled(ctx, integrations.PolledConfig[Reading]{
		Entry:     e,
		Publisher: pub,
		Logger:    in.logger,
		Coordinator: coordinator.Config[Reading]{
			Name:     Domain + ":" + e.Title,
			Interval: in.cfg.ScanInterval,
			Timeout:  in.cfg.ProbeTimeout,
			Update: func(ctx context.Context) (Reading, error) {
				res := in.probe.Probe(ctx, addr)
				if res.Reachability != Online || res.Status == nil {
					return Reading{}, nil
				}
				return Reading{Online: true, Status: *res.Status}, nil
			},
		},
		ToState: Reading.State,
	})
}
