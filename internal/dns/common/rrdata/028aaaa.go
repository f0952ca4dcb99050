package rrdata

import (
	"fmt"
	"net/netip"

	"github.com/haukened/simpledns/internal/dns/domain"
)

// parseAAAA parses an AAAA record value such as "2001:db8::ff00:42:8329".
// IPv4-mapped addresses are accepted as written; zones are not.
func parseAAAA(data string) (domain.RData, error) {
	addr, err := netip.ParseAddr(data)
	if err != nil || addr.Is4() || addr.Zone() != "" {
		return nil, fmt.Errorf("not an IPv6 address")
	}
	return domain.AAAA{Addr: addr}, nil
}
