// Package rrdata converts record values between their zone-file text form and
// typed domain.RData payloads.
package rrdata

import (
	"errors"
	"fmt"
	"strings"

	"github.com/haukened/simpledns/internal/dns/domain"
)

// ErrInvalidValue is wrapped by every parse failure.
var ErrInvalidValue = errors.New("invalid record value")

// Parse converts the presentation form of a record value into typed rdata.
// Types without a dedicated payload accept the RFC 3597 generic form
// (`\# <length> <hex>`); SRV and CAA are additionally understood in their
// usual text form and stored as domain.Unknown with their wire octets.
func Parse(rrType domain.RRType, text string) (domain.RData, error) {
	text = strings.TrimSpace(text)
	var (
		d   domain.RData
		err error
	)
	switch rrType {
	case domain.RRTypeA: // 1
		d, err = parseA(text)
	case domain.RRTypeNS: // 2
		d, err = parseNS(text)
	case domain.RRTypeCNAME: // 5
		d, err = parseCNAME(text)
	case domain.RRTypeSOA: // 6
		d, err = parseSOA(text)
	case domain.RRTypePTR: // 12
		d, err = parsePTR(text)
	case domain.RRTypeMX: // 15
		d, err = parseMX(text)
	case domain.RRTypeTXT: // 16
		d, err = parseTXT(text)
	case domain.RRTypeAAAA: // 28
		d, err = parseAAAA(text)
	case domain.RRTypeSRV: // 33
		if isGeneric(text) {
			d, err = parseGeneric(rrType, text)
		} else {
			d, err = parseSRV(text)
		}
	case domain.RRTypeCAA: // 257
		if isGeneric(text) {
			d, err = parseGeneric(rrType, text)
		} else {
			d, err = parseCAA(text)
		}
	case 0:
		return nil, fmt.Errorf("%w: record type must not be zero", ErrInvalidValue)
	default:
		d, err = parseGeneric(rrType, text)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s %q: %v", ErrInvalidValue, rrType, text, err)
	}
	return d, nil
}
