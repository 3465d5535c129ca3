package minecraft

import (
	"bufio"
	"net/netip"
	"os"
	"strconv"
	"strings"
)

// DefaultARPTable is the Linux kernel neighbour table.
const DefaultARPTable = "/proc/net/arp"

// arpFlagComplete marks a resolved neighbour entry.
const arpFlagComplete = 0x2

// LookupMAC returns the hardware address of ip from an ARP table in
// /proc/net/arp format, or "" when the table is unreadable or has no
// complete entry for ip.
func LookupMAC(table string, ip netip.Addr) string {
	f, err := os.Open(table)
	if err != nil {
		return ""
	}
	defer f.Close()

	ip = ip.Unmap()
	sc := bufio.NewScanner(f)
	first := true
	for sc.Scan() {
		if first {
			first = false
			continue // header
		}
		// IP address, HW type, Flags, HW address, Mask, Device
		fields := strings.Fields(sc.Text())
		if len(fields) < 4 {
			continue
		}
		addr, err := netip.ParseAddr(fields[0])
		if err != nil || addr != ip {
			continue
		}
		if !flagComplete(fields[2]) || fields[3] == "00:00:00:00:00:00" {
			return ""
		}
		return strings.ToLower(fields[3])
	}
	return ""
}

func flagComplete(s string) bool {
	v, err := strconv.ParseUint(s, 0, 32)
	return err == nil && v&arpFlagComplete != 0
}
