package serveraddr

import (
	"fmt"
	"net/netip"
	"strconv"
	"strings"
)

const (
	minPort = 1
	maxPort = 65535
)

// ParsedAddress is a host and port derived from user input.
//
// Port is always within 1-65535 as long as the default port passed to Parse
// is. IP is only valid when Host is an IP literal.
type ParsedAddress struct {
	Host   string     `json:"host"`
	Port   int        `json:"port"`
	IP     netip.Addr `json:"ip,omitzero"`
	IsIPv6 bool       `json:"is_ipv6"`
}

// IsIPLiteral reports whether Host parsed as an IPv4 or IPv6 address.
func (a ParsedAddress) IsIPLiteral() bool {
	return a.IP.IsValid()
}

// HostPort returns "host:port" without IPv6 brackets.
func (a ParsedAddress) HostPort() string {
	return fmt.Sprintf("%s:%d", a.Host, a.Port)
}

// DialAddress returns the address in the form net.Dial expects.
func (a ParsedAddress) DialAddress() string {
	if a.IsIPv6 {
		return fmt.Sprintf("[%s]:%d", a.Host, a.Port)
	}
	return a.HostPort()
}

// Parse splits input on its last colon into host and port.
//
// When there is no colon, or the text after the last colon is not a valid
// port, the whole input is the host and defaultPort is used. Brackets around
// the host are removed before it is tried as an IP literal, so "[::1]:25565"
// yields host "::1". An IPv6 literal without a port must be bracketed:
// "::1" splits into host ":" and port 1.
func Parse(input string, defaultPort int) ParsedAddress {
	host, port := input, defaultPort

	if i := strings.LastIndexByte(input, ':'); i >= 0 {
		if p, ok := parsePort(input[i+1:]); ok {
			host, port = input[:i], p
		}
	}

	host = strings.Trim(host, "[]")
	addr := ParsedAddress{Host: host, Port: port}

	if ip, err := netip.ParseAddr(host); err == nil {
		addr.IP = ip
		addr.IsIPv6 = ip.Is6()
	}
	return addr
}

// FromHostPort builds the address of a host that is already split from
// its port, such as one stored in an entry. Unlike Parse it never looks
// for a colon, so bare IPv6 literals are accepted.
func FromHostPort(host string, port int) ParsedAddress {
	addr := ParsedAddress{Host: strings.Trim(host, "[]"), Port: port}
	if ip, err := netip.ParseAddr(addr.Host); err == nil {
		addr.IP = ip
		addr.IsIPv6 = ip.Is6()
	}
	return addr
}

func parsePort(s string) (int, bool) {
	p, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || p < minPort || p > maxPort {
		return 0, false
	}
	return p, true
}
