package rrdata

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/haukened/simpledns/internal/dns/domain"
	"github.com/haukened/simpledns/internal/dns/gateways/wire"
)

// parseSRV parses "priority weight port target" into opaque wire rdata.
func parseSRV(data string) (domain.RData, error) {
	parts := strings.Fields(data)
	if len(parts) != 4 {
		return nil, fmt.Errorf("expected: priority weight port target")
	}

	buf := make([]byte, 0, 6+len(parts[3])+2)
	for i, what := range []string{"SRV priority", "SRV weight", "SRV port"} {
		v, err := parseUint16(parts[i], what)
		if err != nil {
			return nil, err
		}
		buf = binary.BigEndian.AppendUint16(buf, v)
	}

	target, err := parseDomainName(parts[3])
	if err != nil {
		return nil, fmt.Errorf("invalid SRV target: %v", err)
	}
	encoded, err := wire.EncodeName(target)
	if err != nil {
		return nil, err
	}
	return domain.Unknown{RRType: domain.RRTypeSRV, Raw: append(buf, encoded...)}, nil
}
