package domain

import (
	"encoding/hex"
	"fmt"
	"net/netip"
	"strconv"
	"strings"

	"github.com/haukened/simpledns/internal/dns/common/utils"
)

// RData is the type-tagged payload of a resource record. Implementations are
// plain values; their wire form is produced by the codec in gateways/wire.
type RData interface {
	// Type is the record type this payload belongs to.
	Type() RRType
	// String returns the zone-file presentation form.
	String() string
}

// A is an IPv4 host address.
type A struct {
	Addr netip.Addr
}

func (A) Type() RRType     { return RRTypeA }
func (d A) String() string { return d.Addr.String() }

// AAAA is an IPv6 host address.
type AAAA struct {
	Addr netip.Addr
}

func (AAAA) Type() RRType     { return RRTypeAAAA }
func (d AAAA) String() string { return d.Addr.String() }

// NS names an authoritative name server.
type NS struct {
	Host string
}

func (NS) Type() RRType     { return RRTypeNS }
func (d NS) String() string { return utils.PresentationDNSName(d.Host) }

// CNAME is the canonical name of an alias.
type CNAME struct {
	Target string
}

func (CNAME) Type() RRType     { return RRTypeCNAME }
func (d CNAME) String() string { return utils.PresentationDNSName(d.Target) }

// PTR points at another name, typically for reverse lookups.
type PTR struct {
	Target string
}

func (PTR) Type() RRType     { return RRTypePTR }
func (d PTR) String() string { return utils.PresentationDNSName(d.Target) }

// MX is a mail exchange with its preference.
type MX struct {
	Preference uint16
	Exchange   string
}

func (MX) Type() RRType { return RRTypeMX }
func (d MX) String() string {
	return strconv.Itoa(int(d.Preference)) + " " + utils.PresentationDNSName(d.Exchange)
}

// TXT holds one or more character-strings, each at most 255 octets on the wire.
type TXT struct {
	Strings []string
}

func (TXT) Type() RRType { return RRTypeTXT }
func (d TXT) String() string {
	quoted := make([]string, len(d.Strings))
	for i, s := range d.Strings {
		quoted[i] = strconv.Quote(s)
	}
	return strings.Join(quoted, " ")
}

// SOA marks the start of a zone of authority.
type SOA struct {
	MName   string
	RName   string
	Serial  uint32
	Refresh uint32
	Retry   uint32
	Expire  uint32
	Minimum uint32
}

func (SOA) Type() RRType { return RRTypeSOA }
func (d SOA) String() string {
	return fmt.Sprintf("%s %s %d %d %d %d %d",
		utils.PresentationDNSName(d.MName), utils.PresentationDNSName(d.RName),
		d.Serial, d.Refresh, d.Retry, d.Expire, d.Minimum)
}

// Unknown carries the raw octets of any type without a dedicated payload,
// so that unrecognized but well-formed records survive a decode/encode cycle.
type Unknown struct {
	RRType RRType
	Raw    []byte
}

func (d Unknown) Type() RRType { return d.RRType }

// String uses the RFC 3597 generic form: \# <length> <hex>.
func (d Unknown) String() string {
	if len(d.Raw) == 0 {
		return `\# 0`
	}
	return fmt.Sprintf(`\# %d %s`, len(d.Raw), hex.EncodeToString(d.Raw))
}
