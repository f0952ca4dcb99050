package rrdata

import (
	"fmt"
	"net/netip"

	"github.com/haukened/simpledns/internal/dns/domain"
)

// parseA parses an A record value such as "192.168.0.1".
func parseA(data string) (domain.RData, error) {
	addr, err := netip.ParseAddr(data)
	if err != nil || !addr.Is4() {
		return nil, fmt.Errorf("not an IPv4 address")
	}
	return domain.A{Addr: addr}, nil
}
