package minecraft

import (
	"context"
	"time"

	"github.com/nerrad567/gray-logic-integrations/internal/serveraddr"
)

// Reachability is the outcome of a connectivity probe.
type Reachability int

const (
	Offline Reachability = iota
	Online
)

func (r Reachability) String() string {
	if r == Online {
		return "online"
	}
	return "offline"
}

// ProbeResult is a tagged probe outcome. Failures are reported as
// Offline, never as errors.
type ProbeResult struct {
	Reachability Reachability

	// SecondaryID is the server's MAC address when the host is an IP
	// literal on the local network, otherwise "".
	SecondaryID string

	// Status is the ping response of an online server.
	Status *ServerStatus
}

// Prober checks whether a Minecraft server answers a Server List Ping.
type Prober struct {
	// SRV lets the ping follow a _minecraft._tcp record for symbolic
	// hosts. IP literals never use one.
	SRV bool

	// Timeout bounds a ping when ctx has no deadline. Zero means
	// DefaultProbeTimeout.
	Timeout time.Duration

	// ARPTable defaults to DefaultARPTable.
	ARPTable string

	// status defaults to status.Modern.
	status StatusFunc
}

// Probe pings the server at addr. ctx bounds the whole probe, including
// any service record lookup.
func (p *Prober) Probe(ctx context.Context, addr serveraddr.ParsedAddress) ProbeResult {
	srv := p.SRV && !addr.IsIPLiteral()
	st, err := QueryStatus(ctx, p.status, addr.Host, uint16(addr.Port), srv, p.timeout()) //nolint:gosec // Parse bounds the port
	if err != nil {
		return ProbeResult{Reachability: Offline}
	}

	res := ProbeResult{Reachability: Online, Status: st}
	if addr.IsIPLiteral() {
		res.SecondaryID = LookupMAC(p.arpTable(), addr.IP)
	}
	return res
}

func (p *Prober) timeout() time.Duration {
	if p.Timeout > 0 {
		return p.Timeout
	}
	return DefaultProbeTimeout
}

func (p *Prober) arpTable() string {
	if p.ARPTable != "" {
		return p.ARPTable
	}
	return DefaultARPTable
}
