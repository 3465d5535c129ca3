package minecraft

import (
	"context"
	"fmt"
	"strings"

	"github.com/nerrad567/gray-logic-integrations/internal/flow"
	"github.com/nerrad567/gray-logic-integrations/internal/serveraddr"
)

// Form defaults.
const (
	DefaultName = "Minecraft Server"
	DefaultHost = "localhost"
)

// Entry data keys.
const (
	KeyName = "name"
	KeyHost = "host"
	KeyPort = "port"
)

// Connectivity probes a parsed address.
type Connectivity interface {
	Probe(ctx context.Context, addr serveraddr.ParsedAddress) ProbeResult
}

// configFlow asks for a name and an address, checks that a server answers
// there and derives the entry identity from the address.
type configFlow struct {
	cfg    Config
	probe  Connectivity
	lookup serveraddr.ServiceLookup
}

func userSchema() []flow.Field {
	return []flow.Field{
		{Name: KeyName, Type: flow.FieldString, Required: true, Default: DefaultName},
		{Name: KeyHost, Type: flow.FieldString, Required: true, Default: DefaultHost},
	}
}

func (f *configFlow) Step(ctx context.Context, stepID string, input map[string]any) (flow.Result, error) {
	if stepID != flow.StepUser {
		return flow.Result{}, fmt.Errorf("minecraft flow has no step %q", stepID)
	}
	if input == nil {
		return flow.ShowForm(flow.StepUser, userSchema(), nil), nil
	}

	name, _ := input[KeyName].(string) //nolint:errcheck // Coerced against the schema
	host, _ := input[KeyHost].(string) //nolint:errcheck // Coerced against the schema
	host = strings.ToLower(host)
	addr := serveraddr.Parse(host, f.cfg.DefaultPort)

	probeCtx, cancel := context.WithTimeout(ctx, f.cfg.ProbeTimeout)
	res := f.probe.Probe(probeCtx, addr)
	cancel()

	if res.Reachability != Online {
		shown := map[string]any{KeyName: name, KeyHost: host}
		return flow.ShowForm(flow.StepUser, flow.WithDefaults(userSchema(), shown),
			map[string]string{flow.ErrorBase: flow.CodeCannotConnect}), nil
	}

	lookupCtx, cancel := context.WithTimeout(ctx, f.cfg.LookupTimeout)
	id := serveraddr.ResolveIdentity(lookupCtx, addr, f.lookup)
	cancel()
	id = id.PreferHardwareID(addr, res.SecondaryID)

	return flow.CreateEntry(id.Title, id.StableKey, map[string]any{
		KeyName: name,
		KeyHost: addr.Host,
		KeyPort: addr.Port,
	}), nil
}
