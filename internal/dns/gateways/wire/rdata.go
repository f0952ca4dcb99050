package wire

import (
	"encoding/binary"
	"fmt"
	"net/netip"

	"github.com/haukened/simpledns/internal/dns/domain"
)

// decodeRData decodes the rdata occupying msg[off:end]. Names inside rdata are
// decompressed against the whole message, since the encoder never writes
// pointers and a relayed record must stand on its own.
func decodeRData(msg []byte, off, end int, t domain.RRType) (domain.RData, error) {
	switch t {
	case domain.RRTypeA:
		if end-off != 4 {
			return nil, fmt.Errorf("%w: A record with %d octets", ErrMalformedRData, end-off)
		}
		return domain.A{Addr: netip.AddrFrom4([4]byte(msg[off:end]))}, nil

	case domain.RRTypeAAAA:
		if end-off != 16 {
			return nil, fmt.Errorf("%w: AAAA record with %d octets", ErrMalformedRData, end-off)
		}
		return domain.AAAA{Addr: netip.AddrFrom16([16]byte(msg[off:end]))}, nil

	case domain.RRTypeNS, domain.RRTypeCNAME, domain.RRTypePTR:
		name, err := decodeRDataName(msg, off, end)
		if err != nil {
			return nil, err
		}
		switch t {
		case domain.RRTypeNS:
			return domain.NS{Host: name}, nil
		case domain.RRTypeCNAME:
			return domain.CNAME{Target: name}, nil
		default:
			return domain.PTR{Target: name}, nil
		}

	case domain.RRTypeMX:
		if end-off < 3 {
			return nil, fmt.Errorf("%w: MX record with %d octets", ErrMalformedRData, end-off)
		}
		exchange, err := decodeRDataName(msg, off+2, end)
		if err != nil {
			return nil, err
		}
		return domain.MX{Preference: binary.BigEndian.Uint16(msg[off : off+2]), Exchange: exchange}, nil

	case domain.RRTypeTXT:
		var strs []string
		for off < end {
			n := int(msg[off])
			if off+1+n > end {
				return nil, fmt.Errorf("%w: TXT string of %d octets overruns rdata", ErrMalformedRData, n)
			}
			strs = append(strs, string(msg[off+1:off+1+n]))
			off += 1 + n
		}
		return domain.TXT{Strings: strs}, nil

	case domain.RRTypeSOA:
		return decodeSOA(msg, off, end)

	default:
		raw := make([]byte, end-off)
		copy(raw, msg[off:end])
		return domain.Unknown{RRType: t, Raw: raw}, nil
	}
}

// decodeRDataName decodes a name that must end exactly at end. Pointers may
// still reach anywhere earlier in the message.
func decodeRDataName(msg []byte, off, end int) (string, error) {
	name, next, err := DecodeName(msg, off)
	if err != nil {
		return "", err
	}
	if next != end {
		return "", fmt.Errorf("%w: name ends at %d, rdata ends at %d", ErrMalformedRData, next, end)
	}
	return name, nil
}

func decodeSOA(msg []byte, off, end int) (domain.RData, error) {
	mname, next, err := DecodeName(msg, off)
	if err != nil {
		return nil, err
	}
	rname, next, err := DecodeName(msg, next)
	if err != nil {
		return nil, err
	}
	if end-next != 20 {
		return nil, fmt.Errorf("%w: SOA timers need 20 octets, have %d", ErrMalformedRData, end-next)
	}
	u32 := func(i int) uint32 { return binary.BigEndian.Uint32(msg[next+4*i : next+4*i+4]) }
	return domain.SOA{
		MName:   mname,
		RName:   rname,
		Serial:  u32(0),
		Refresh: u32(1),
		Retry:   u32(2),
		Expire:  u32(3),
		Minimum: u32(4),
	}, nil
}

// appendRData appends the wire form of d to buf.
func appendRData(buf []byte, d domain.RData) ([]byte, error) {
	switch v := d.(type) {
	case domain.A:
		if !v.Addr.Is4() && !v.Addr.Is4In6() {
			return nil, fmt.Errorf("%w: A record needs an IPv4 address, got %q", ErrMalformedRData, v.Addr)
		}
		a := v.Addr.Unmap().As4()
		return append(buf, a[:]...), nil

	case domain.AAAA:
		if !v.Addr.IsValid() {
			return nil, fmt.Errorf("%w: AAAA record without an address", ErrMalformedRData)
		}
		a := v.Addr.As16()
		return append(buf, a[:]...), nil

	case domain.NS:
		return appendName(buf, v.Host)
	case domain.CNAME:
		return appendName(buf, v.Target)
	case domain.PTR:
		return appendName(buf, v.Target)

	case domain.MX:
		buf = binary.BigEndian.AppendUint16(buf, v.Preference)
		return appendName(buf, v.Exchange)

	case domain.TXT:
		for _, s := range v.Strings {
			if len(s) > 255 {
				return nil, fmt.Errorf("%w: TXT string of %d octets (max 255)", ErrMalformedRData, len(s))
			}
			buf = append(buf, byte(len(s)))
			buf = append(buf, s...)
		}
		return buf, nil

	case domain.SOA:
		var err error
		if buf, err = appendName(buf, v.MName); err != nil {
			return nil, err
		}
		if buf, err = appendName(buf, v.RName); err != nil {
			return nil, err
		}
		for _, n := range []uint32{v.Serial, v.Refresh, v.Retry, v.Expire, v.Minimum} {
			buf = binary.BigEndian.AppendUint32(buf, n)
		}
		return buf, nil

	case domain.Unknown:
		return append(buf, v.Raw...), nil

	default:
		return nil, fmt.Errorf("%w: unsupported rdata %T", ErrMalformedRData, d)
	}
}

func appendName(buf []byte, name string) ([]byte, error) {
	encoded, err := EncodeName(name)
	if err != nil {
		return nil, err
	}
	return append(buf, encoded...), nil
}
