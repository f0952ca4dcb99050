package rrdata

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/haukened/simpledns/internal/dns/domain"
)

// parseCAA parses `flag tag "value"` into opaque wire rdata.
func parseCAA(data string) (domain.RData, error) {
	parts := strings.Fields(data)
	if len(parts) < 3 {
		return nil, fmt.Errorf(`expected: flag tag "value"`)
	}

	flag, err := strconv.ParseUint(parts[0], 10, 8)
	if err != nil {
		return nil, fmt.Errorf("invalid CAA flag: %q", parts[0])
	}
	tag := parts[1]
	if len(tag) == 0 || len(tag) > 255 {
		return nil, fmt.Errorf("invalid CAA tag length %d", len(tag))
	}

	// the value is opaque (a CA domain or a URI) and is kept verbatim
	value := strings.Trim(strings.Join(parts[2:], " "), `"`)

	raw := make([]byte, 0, 2+len(tag)+len(value))
	raw = append(raw, byte(flag), byte(len(tag)))
	raw = append(raw, tag...)
	raw = append(raw, value...)
	return domain.Unknown{RRType: domain.RRTypeCAA, Raw: raw}, nil
}
