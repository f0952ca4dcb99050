package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/haukened/simpledns/internal/dns/domain"
)

// HeaderSize is the fixed size of a DNS header in octets.
const HeaderSize = 12

// Flag bits of the second header word (RFC 1035 §4.1.1, RFC 4035 §3.2).
//
//	+--+--+--+--+--+--+--+--+--+--+--+--+--+--+--+--+
//	|QR|   Opcode  |AA|TC|RD|RA| Z|AD|CD|   RCODE   |
//	+--+--+--+--+--+--+--+--+--+--+--+--+--+--+--+--+
const (
	flagQR      uint16 = 1 << 15
	flagAA      uint16 = 1 << 10
	flagTC      uint16 = 1 << 9
	flagRD      uint16 = 1 << 8
	flagRA      uint16 = 1 << 7
	flagZ       uint16 = 1 << 6
	flagAD      uint16 = 1 << 5
	flagCD      uint16 = 1 << 4
	opcodeShift        = 11
	opcodeMask  uint16 = 0x0F << opcodeShift
	rcodeMask   uint16 = 0x000F
)

// sectionCounts are the four header counts. They only exist on the wire.
type sectionCounts struct {
	qd, an, ns, ar uint16
}

func packFlags(h domain.Header) uint16 {
	var f uint16
	setIf := func(cond bool, bit uint16) {
		if cond {
			f |= bit
		}
	}
	setIf(h.Response, flagQR)
	setIf(h.Authoritative, flagAA)
	setIf(h.Truncated, flagTC)
	setIf(h.RecursionDesired, flagRD)
	setIf(h.RecursionAvailable, flagRA)
	setIf(h.Zero, flagZ)
	setIf(h.AuthenticatedData, flagAD)
	setIf(h.CheckingDisabled, flagCD)
	f |= (uint16(h.Opcode) << opcodeShift) & opcodeMask
	f |= uint16(h.RCode) & rcodeMask
	return f
}

func unpackFlags(id, f uint16) domain.Header {
	return domain.Header{
		ID:                 id,
		Response:           f&flagQR != 0,
		Opcode:             domain.Opcode((f & opcodeMask) >> opcodeShift),
		Authoritative:      f&flagAA != 0,
		Truncated:          f&flagTC != 0,
		RecursionDesired:   f&flagRD != 0,
		RecursionAvailable: f&flagRA != 0,
		Zero:               f&flagZ != 0,
		AuthenticatedData:  f&flagAD != 0,
		CheckingDisabled:   f&flagCD != 0,
		RCode:              domain.RCode(f & rcodeMask),
	}
}

func appendHeader(buf []byte, h domain.Header, c sectionCounts) []byte {
	buf = binary.BigEndian.AppendUint16(buf, h.ID)
	buf = binary.BigEndian.AppendUint16(buf, packFlags(h))
	buf = binary.BigEndian.AppendUint16(buf, c.qd)
	buf = binary.BigEndian.AppendUint16(buf, c.an)
	buf = binary.BigEndian.AppendUint16(buf, c.ns)
	buf = binary.BigEndian.AppendUint16(buf, c.ar)
	return buf
}

func parseHeader(data []byte) (domain.Header, sectionCounts, error) {
	if len(data) < HeaderSize {
		return domain.Header{}, sectionCounts{}, fmt.Errorf("%w: header needs %d octets, got %d", ErrTruncatedMessage, HeaderSize, len(data))
	}
	h := unpackFlags(binary.BigEndian.Uint16(data[0:2]), binary.BigEndian.Uint16(data[2:4]))
	c := sectionCounts{
		qd: binary.BigEndian.Uint16(data[4:6]),
		an: binary.BigEndian.Uint16(data[6:8]),
		ns: binary.BigEndian.Uint16(data[8:10]),
		ar: binary.BigEndian.Uint16(data[10:12]),
	}
	return h, c, nil
}

// PeekID returns the transaction id of a raw message without decoding it.
func PeekID(data []byte) (uint16, bool) {
	if len(data) < 2 {
		return 0, false
	}
	return binary.BigEndian.Uint16(data[0:2]), true
}
