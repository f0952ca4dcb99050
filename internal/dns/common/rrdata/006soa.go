package rrdata

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/haukened/simpledns/internal/dns/domain"
)

// parseSOA parses "mname rname serial refresh retry expire minimum".
func parseSOA(data string) (domain.RData, error) {
	parts := strings.Fields(data)
	if len(parts) != 7 {
		return nil, fmt.Errorf("expected 7 fields, got %d", len(parts))
	}

	mname, err := parseDomainName(parts[0])
	if err != nil {
		return nil, fmt.Errorf("invalid SOA mname: %v", err)
	}
	// rname is the administrator mailbox with '@' written as '.'
	rname, err := parseDomainName(parts[1])
	if err != nil {
		return nil, fmt.Errorf("invalid SOA rname: %v", err)
	}

	var u32 [5]uint32
	for i := range u32 {
		val, err := strconv.ParseUint(parts[i+2], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid SOA field %d: %q", i+2, parts[i+2])
		}
		u32[i] = uint32(val)
	}

	return domain.SOA{
		MName:   mname,
		RName:   rname,
		Serial:  u32[0],
		Refresh: u32[1],
		Retry:   u32[2],
		Expire:  u32[3],
		Minimum: u32[4],
	}, nil
}
