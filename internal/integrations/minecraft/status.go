package minecraft

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mcstatus-io/mcutil/v4/options"
	"github.com/mcstatus-io/mcutil/v4/response"
	"github.com/mcstatus-io/mcutil/v4/status"
)

// ServerStatus is a Server List Ping response.
type ServerStatus struct {
	Version         string
	ProtocolVersion int
	PlayersOnline   int
	PlayersMax      int
	PlayerNames     []string
	MOTD            string
	Latency         time.Duration
}

// StatusFunc performs a Server List Ping. status.Modern satisfies it.
type StatusFunc func(ctx context.Context, host string, port uint16, opts ...options.StatusModern) (*response.StatusModern, error)

// QueryStatus pings host:port through query. useSRV lets the client follow
// a _minecraft._tcp record for host. The ping gives up at the deadline of
// ctx, or after fallback when ctx has none.
func QueryStatus(ctx context.Context, query StatusFunc, host string, port uint16, useSRV bool, fallback time.Duration) (*ServerStatus, error) {
	if query == nil {
		query = status.Modern
	}
	timeout := fallback
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("pinging %s:%d: %w", host, port, context.DeadlineExceeded)
	}

	resp, err := query(ctx, host, port, options.StatusModern{EnableSRV: useSRV, Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("pinging %s:%d: %w", host, port, err)
	}
	if resp == nil {
		return nil, fmt.Errorf("pinging %s:%d: %w", host, port, ErrProtocol)
	}
	return fromResponse(resp), nil
}

func fromResponse(resp *response.StatusModern) *ServerStatus {
	s := &ServerStatus{
		Version:         resp.Version.Name.Clean,
		ProtocolVersion: int(resp.Version.Protocol),
		MOTD:            strings.TrimSpace(resp.MOTD.Clean),
		Latency:         resp.Latency,
	}
	if resp.Players.Online != nil {
		s.PlayersOnline = int(*resp.Players.Online)
	}
	if resp.Players.Max != nil {
		s.PlayersMax = int(*resp.Players.Max)
	}
	for _, p := range resp.Players.Sample {
		s.PlayerNames = append(s.PlayerNames, p.Name.Clean)
	}
	return s
}
