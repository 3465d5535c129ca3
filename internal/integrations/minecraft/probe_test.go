package minecraft

import (
	"context"
	"errors"
	"net/netip"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mcstatus-io/mcutil/v4/options"
	"github.com/mcstatus-io/mcutil/v4/response"

	"github.com/nerrad567/gray-logic-integrations/internal/serveraddr"
)

const arpTable = `IP address       HW type     Flags       HW address            Mask     Device
127.0.0.1        0x1         0x2         AA:BB:CC:DD:EE:FF     *        lo
192.168.1.20     0x1         0x0         00:00:00:00:00:00     *        eth0
192.168.1.30     0x1         0x2         11:22:33:44:55:66     *        eth0
`

func writeARPTable(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "arp")
	if err := os.WriteFile(path, []byte(arpTable), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLookupMAC(t *testing.T) {
	table := writeARPTable(t)
	tests := []struct {
		ip   string
		want string
	}{
		{"192.168.1.30", "11:22:33:44:55:66"},
		{"127.0.0.1", "aa:bb:cc:dd:ee:ff"},
		{"192.168.1.20", ""},
		{"10.0.0.1", ""},
		{"::ffff:192.168.1.30", "11:22:33:44:55:66"},
	}
	for _, tt := range tests {
		if got := LookupMAC(table, netip.MustParseAddr(tt.ip)); got != tt.want {
			t.Errorf("LookupMAC(%s) = %q, want %q", tt.ip, got, tt.want)
		}
	}
	if got := LookupMAC(filepath.Join(t.TempDir(), "missing"), netip.MustParseAddr("127.0.0.1")); got != "" {
		t.Errorf("LookupMAC(missing table) = %q", got)
	}
}

func TestFlagComplete(t *testing.T) {
	tests := []struct {
		flags string
		want  bool
	}{
		{"0x2", true},
		{"0x6", true},
		{"0X2", true},
		{"0x0", false},
		{"0x4", false},
		{"2", true},
		{"0xzz", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := flagComplete(tt.flags); got != tt.want {
			t.Errorf("flagComplete(%q) = %v, want %v", tt.flags, got, tt.want)
		}
	}
}

func testAddr(t *testing.T, hostport string) serveraddr.ParsedAddress {
	t.Helper()
	return serveraddr.Parse(hostport, DefaultPort)
}

func TestProbe_Online(t *testing.T) {
	srv := startFakeServer(t, sampleStatus)
	p := &Prober{ARPTable: writeARPTable(t)}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res := p.Probe(ctx, testAddr(t, srv.addr))

	if res.Reachability != Online || res.Status == nil {
		t.Fatalf("Probe() = %+v, want online", res)
	}
	if res.SecondaryID != "aa:bb:cc:dd:ee:ff" {
		t.Errorf("SecondaryID = %q", res.SecondaryID)
	}
}

func TestProbe_Offline(t *testing.T) {
	p := &Prober{ARPTable: writeARPTable(t)}
	res := p.Probe(context.Background(), testAddr(t, closedAddr(t)))
	if res.Reachability != Offline || res.SecondaryID != "" || res.Status != nil {
		t.Errorf("Probe() = %+v, want offline", res)
	}
	if res.Reachability.String() != "offline" || Online.String() != "online" {
		t.Error("Reachability.String()")
	}
}

// recordingStatus is a StatusFunc that remembers its last call.
type recordingStatus struct {
	host string
	port uint16
	opts options.StatusModern
	err  error
}

func (r *recordingStatus) query(_ context.Context, host string, port uint16, opts ...options.StatusModern) (*response.StatusModern, error) {
	r.host, r.port = host, port
	if len(opts) > 0 {
		r.opts = opts[0]
	}
	if r.err != nil {
		return nil, r.err
	}
	return &response.StatusModern{}, nil
}

func TestProbe_ServiceRecordOption(t *testing.T) {
	tests := []struct {
		name    string
		srv     bool
		addr    string
		wantSRV bool
	}{
		{"symbolic host", true, "play.example.org", true},
		{"symbolic host without SRV", false, "play.example.org", false},
		{"IPv4 literal", true, "192.168.1.30:25570", false},
		{"IPv6 literal", true, "[2001:db8::1]", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recordingStatus{}
			p := &Prober{SRV: tt.srv, ARPTable: writeARPTable(t), status: rec.query}
			addr := serveraddr.Parse(tt.addr, DefaultPort)

			if res := p.Probe(context.Background(), addr); res.Reachability != Online {
				t.Fatalf("Probe() = %+v", res)
			}
			if rec.opts.EnableSRV != tt.wantSRV {
				t.Errorf("EnableSRV = %v, want %v", rec.opts.EnableSRV, tt.wantSRV)
			}
			if rec.host != addr.Host || int(rec.port) != addr.Port {
				t.Errorf("pinged %s:%d, want %s:%d", rec.host, rec.port, addr.Host, addr.Port)
			}
		})
	}
}

func TestProbe_Timeout(t *testing.T) {
	rec := &recordingStatus{}
	p := &Prober{Timeout: 2 * time.Second, status: rec.query}
	p.Probe(context.Background(), serveraddr.Parse("play.example.org", DefaultPort))
	if rec.opts.Timeout != 2*time.Second {
		t.Errorf("Timeout without deadline = %v, want 2s", rec.opts.Timeout)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	p.Probe(ctx, serveraddr.Parse("play.example.org", DefaultPort))
	if rec.opts.Timeout <= 0 || rec.opts.Timeout > 500*time.Millisecond {
		t.Errorf("Timeout under deadline = %v, want at most 500ms", rec.opts.Timeout)
	}

	if p := (&Prober{}); p.timeout() != DefaultProbeTimeout {
		t.Errorf("default timeout = %v", p.timeout())
	}
}

func TestProbe_QueryErrorIsOffline(t *testing.T) {
	rec := &recordingStatus{err: errors.New("connection refused")}
	p := &Prober{status: rec.query}
	res := p.Probe(context.Background(), serveraddr.Parse("play.example.org", DefaultPort))
	if res.Reachability != Offline || res.Status != nil {
		t.Errorf("Probe() = %+v, want offline", res)
	}
}
