package serveraddr

import (
	"context"
	"errors"
	"net"
	"strings"
)

const (
	srvService = "minecraft"
	srvProto   = "tcp"
)

// ServiceRecord is the routing target advertised for a host name.
type ServiceRecord struct {
	Target   string `json:"target"`
	Port     int    `json:"port"`
	Priority int    `json:"priority"`
	Weight   int    `json:"weight"`
}

// ServiceLookup finds the service record of a host name.
// Implementations return (nil, nil) when the host has no record.
type ServiceLookup interface {
	LookupServiceRecord(ctx context.Context, host string) (*ServiceRecord, error)
}

// ServiceLookupFunc adapts a function to ServiceLookup.
type ServiceLookupFunc func(ctx context.Context, host string) (*ServiceRecord, error)

// LookupServiceRecord calls f.
func (f ServiceLookupFunc) LookupServiceRecord(ctx context.Context, host string) (*ServiceRecord, error) {
	return f(ctx, host)
}

// srvResolver is the part of *net.Resolver used by NetServiceLookup.
type srvResolver interface {
	LookupSRV(ctx context.Context, service, proto, name string) (string, []*net.SRV, error)
}

// NetServiceLookup queries DNS for _minecraft._tcp.<host> SRV records.
type NetServiceLookup struct {
	resolver srvResolver
}

// NewNetServiceLookup returns a lookup backed by r, or by
// net.DefaultResolver when r is nil.
func NewNetServiceLookup(r *net.Resolver) *NetServiceLookup {
	if r == nil {
		r = net.DefaultResolver
	}
	return &NetServiceLookup{resolver: r}
}

// LookupServiceRecord returns the record with the lowest priority, and
// among those the highest weight. NXDOMAIN and empty answers are reported
// as no record.
func (l *NetServiceLookup) LookupServiceRecord(ctx context.Context, host string) (*ServiceRecord, error) {
	_, addrs, err := l.resolver.LookupSRV(ctx, srvService, srvProto, host)
	if err != nil {
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
			return nil, nil
		}
		return nil, err
	}
	return pickRecord(addrs), nil
}

func pickRecord(addrs []*net.SRV) *ServiceRecord {
	var best *net.SRV
	for _, a := range addrs {
		if a == nil || a.Target == "" || a.Target == "." {
			continue
		}
		if best == nil || a.Priority < best.Priority ||
			(a.Priority == best.Priority && a.Weight > best.Weight) {
			best = a
		}
	}
	if best == nil {
		return nil
	}
	return &ServiceRecord{
		Target:   strings.TrimSuffix(best.Target, "."),
		Port:     int(best.Port),
		Priority: int(best.Priority),
		Weight:   int(best.Weight),
	}
}
