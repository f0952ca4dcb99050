package rrdata

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/haukened/simpledns/internal/dns/common/utils"
	"github.com/haukened/simpledns/internal/dns/domain"
	"github.com/haukened/simpledns/internal/dns/gateways/wire"
)

// parseDomainName validates a single domain name field and returns it in
// canonical form. Used by every type that carries a name.
func parseDomainName(field string) (string, error) {
	if strings.ContainsAny(field, " \t") {
		return "", fmt.Errorf("expected a single domain name, got %q", field)
	}
	name := utils.CanonicalDNSName(field)
	if name == "" {
		return "", fmt.Errorf("empty domain name")
	}
	if _, err := wire.EncodeName(name); err != nil {
		return "", err
	}
	return name, nil
}

func parseUint16(field, what string) (uint16, error) {
	v, err := strconv.ParseUint(field, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", what, field)
	}
	return uint16(v), nil
}

func isGeneric(text string) bool {
	return strings.HasPrefix(text, `\#`)
}

// parseGeneric reads the RFC 3597 form `\# <length> <hex...>`. The hex may be
// split into several whitespace separated chunks.
func parseGeneric(t domain.RRType, text string) (domain.RData, error) {
	fields := strings.Fields(text)
	if len(fields) < 2 || fields[0] != `\#` {
		return nil, fmt.Errorf(`expected generic form \# <length> <hex>`)
	}
	length, err := strconv.Atoi(fields[1])
	if err != nil || length < 0 || length > 0xFFFF {
		return nil, fmt.Errorf("invalid rdata length %q", fields[1])
	}
	raw, err := hex.DecodeString(strings.Join(fields[2:], ""))
	if err != nil {
		return nil, fmt.Errorf("invalid hex rdata: %v", err)
	}
	if len(raw) != length {
		return nil, fmt.Errorf("rdata length %d does not match %d hex octets", length, len(raw))
	}
	return domain.Unknown{RRType: t, Raw: raw}, nil
}
