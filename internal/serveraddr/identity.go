package serveraddr

import (
	"context"
	"fmt"
	"net"
	"strings"
)

// ServerIdentity is the display title and deduplication key of a server.
type ServerIdentity struct {
	Title     string `json:"title"`
	StableKey string `json:"stable_key"`
}

// ResolveIdentity derives the identity of addr.
//
// IP literals never trigger a lookup: the title is "host:port" ("[host]:port"
// for IPv6) and the key is "host:port". For a symbolic host, lookup is asked
// for a service record; when one exists the bare host name is both title and
// key, so the key survives IP changes behind the record. Without a record,
// or when the lookup fails or ctx ends first, both fall back to "host:port".
//
// A nil lookup behaves like one that never finds a record.
func ResolveIdentity(ctx context.Context, addr ParsedAddress, lookup ServiceLookup) ServerIdentity {
	hostPort := addr.HostPort()

	if addr.IsIPLiteral() {
		title := hostPort
		if addr.IsIPv6 {
			title = fmt.Sprintf("[%s]:%d", addr.Host, addr.Port)
		}
		return ServerIdentity{Title: title, StableKey: hostPort}
	}

	if rec := lookupRecord(ctx, lookup, addr.Host); rec != nil {
		return ServerIdentity{Title: addr.Host, StableKey: addr.Host}
	}
	return ServerIdentity{Title: hostPort, StableKey: hostPort}
}

// lookupRecord runs the lookup but stops waiting once ctx is done. A
// result that arrives after that is dropped.
func lookupRecord(ctx context.Context, lookup ServiceLookup, host string) *ServiceRecord {
	if lookup == nil {
		return nil
	}

	type answer struct {
		rec *ServiceRecord
		err error
	}
	ch := make(chan answer, 1)
	go func() {
		rec, err := lookup.LookupServiceRecord(ctx, host)
		ch <- answer{rec, err}
	}()

	select {
	case a := <-ch:
		if a.err != nil {
			return nil
		}
		return a.rec
	case <-ctx.Done():
		return nil
	}
}

// PreferHardwareID replaces the key of an IP-literal server with
// "<mac>-<port>" when the connectivity probe reported a hardware address.
// This keeps the entry stable when DHCP hands the server a new IP. The
// title is left alone, as is the identity of symbolic hosts and of servers
// whose hwID is empty, malformed, or all zeros.
func (id ServerIdentity) PreferHardwareID(addr ParsedAddress, hwID string) ServerIdentity {
	if !addr.IsIPLiteral() {
		return id
	}
	mac, ok := normalizeMAC(hwID)
	if !ok {
		return id
	}
	id.StableKey = fmt.Sprintf("%s-%d", mac, addr.Port)
	return id
}

func normalizeMAC(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	hw, err := net.ParseMAC(s)
	if err != nil {
		return "", false
	}
	zero := true
	for _, b := range hw {
		if b != 0 {
			zero = false
			break
		}
	}
	if zero {
		return "", false
	}
	return hw.String(), true
}
