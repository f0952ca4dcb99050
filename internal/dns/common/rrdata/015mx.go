package rrdata

import (
	"fmt"
	"strings"

	"github.com/haukened/simpledns/internal/dns/domain"
)

// parseMX parses "preference exchange", e.g. "10 mail.example.com".
func parseMX(data string) (domain.RData, error) {
	parts := strings.Fields(data)
	if len(parts) != 2 {
		return nil, fmt.Errorf("expected: preference exchange")
	}
	pref, err := parseUint16(parts[0], "MX preference")
	if err != nil {
		return nil, err
	}
	exchange, err := parseDomainName(parts[1])
	if err != nil {
		return nil, fmt.Errorf("invalid MX exchange: %v", err)
	}
	return domain.MX{Preference: pref, Exchange: exchange}, nil
}
