package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/haukened/simpledns/internal/dns/common/log"
	"github.com/haukened/simpledns/internal/dns/domain"
)

const (
	// MaxUDPMessageSize is the classic RFC 1035 limit for a DNS message over UDP.
	// The codec never truncates to it; the transport reads with buffers of this size.
	MaxUDPMessageSize = 512

	// smallest possible encodings, used to bound allocations by the remaining input
	minQuestionSize = 1 + 4     // root name + type + class
	minRecordSize   = 1 + 10    // root name + type + class + ttl + rdlength
	maxSectionCount = 1<<16 - 1 // counts are 16-bit on the wire
)

// udpCodec implements MessageCodec for standard DNS over UDP messages.
type udpCodec struct {
	logger log.Logger
}

// NewUDPCodec creates and returns a new instance of udpCodec using the provided logger.
func NewUDPCodec(logger log.Logger) *udpCodec {
	return &udpCodec{
		logger: logger,
	}
}

// Decode parses a complete DNS message. Each section is read exactly as many
// times as its header count states, and every read is checked against the
// buffer, so a header claiming more entries than the data holds fails with
// ErrTruncatedMessage instead of over-allocating or reading out of bounds.
func (c *udpCodec) Decode(data []byte) (domain.Message, error) {
	h, counts, err := parseHeader(data)
	if err != nil {
		return domain.Message{}, err
	}
	msg := domain.Message{Header: h}
	off := HeaderSize

	msg.Questions = make([]domain.Question, 0, capFor(counts.qd, len(data)-off, minQuestionSize))
	for i := 0; i < int(counts.qd); i++ {
		q, next, err := decodeQuestion(data, off)
		if err != nil {
			return domain.Message{}, fmt.Errorf("question %d: %w", i, err)
		}
		msg.Questions = append(msg.Questions, q)
		off = next
	}

	if msg.Answers, off, err = decodeSection(data, off, counts.an, "answer"); err != nil {
		return domain.Message{}, err
	}
	if msg.Authority, off, err = decodeSection(data, off, counts.ns, "authority"); err != nil {
		return domain.Message{}, err
	}
	if msg.Additional, off, err = decodeSection(data, off, counts.ar, "additional"); err != nil {
		return domain.Message{}, err
	}

	if off < len(data) {
		c.logger.Debug(map[string]any{
			"id":       h.ID,
			"trailing": len(data) - off,
		}, "Ignoring trailing octets after DNS message")
	}
	return msg, nil
}

// Encode serializes msg. Header counts are computed from the section lengths,
// names are written uncompressed and nothing is truncated: a message larger
// than MaxUDPMessageSize is returned as is.
func (c *udpCodec) Encode(msg domain.Message) ([]byte, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	counts, err := countSections(msg)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, 0, MaxUDPMessageSize)
	buf = appendHeader(buf, msg.Header, counts)

	for i, q := range msg.Questions {
		if buf, err = appendName(buf, q.Name); err != nil {
			return nil, fmt.Errorf("question %d: %w", i, err)
		}
		buf = binary.BigEndian.AppendUint16(buf, uint16(q.Type))
		buf = binary.BigEndian.AppendUint16(buf, uint16(q.Class))
	}

	for _, section := range []struct {
		name    string
		records []domain.ResourceRecord
	}{
		{"answer", msg.Answers},
		{"authority", msg.Authority},
		{"additional", msg.Additional},
	} {
		for i, rr := range section.records {
			if buf, err = appendRecord(buf, rr); err != nil {
				return nil, fmt.Errorf("%s record %d: %w", section.name, i, err)
			}
		}
	}

	c.logger.Debug(map[string]any{
		"id":         msg.Header.ID,
		"rcode":      msg.Header.RCode.String(),
		"questions":  counts.qd,
		"answers":    counts.an,
		"authority":  counts.ns,
		"additional": counts.ar,
		"size":       len(buf),
	}, "Encoded DNS message")

	return buf, nil
}

func countSections(msg domain.Message) (sectionCounts, error) {
	lengths := []struct {
		name string
		n    int
	}{
		{"question", len(msg.Questions)},
		{"answer", len(msg.Answers)},
		{"authority", len(msg.Authority)},
		{"additional", len(msg.Additional)},
	}
	for _, l := range lengths {
		if l.n > maxSectionCount {
			return sectionCounts{}, fmt.Errorf("%w: %s section has %d entries", ErrTooManyRecords, l.name, l.n)
		}
	}
	return sectionCounts{
		qd: uint16(len(msg.Questions)),
		an: uint16(len(msg.Answers)),
		ns: uint16(len(msg.Authority)),
		ar: uint16(len(msg.Additional)),
	}, nil
}

// capFor bounds an initial slice capacity by what the remaining input could
// possibly hold, so the header count alone never drives an allocation.
func capFor(count uint16, remaining, minSize int) int {
	if remaining <= 0 {
		return 0
	}
	return min(int(count), remaining/minSize)
}

func decodeQuestion(data []byte, off int) (domain.Question, int, error) {
	name, off, err := DecodeName(data, off)
	if err != nil {
		return domain.Question{}, 0, err
	}
	if off+4 > len(data) {
		return domain.Question{}, 0, fmt.Errorf("%w: question type/class at offset %d", ErrTruncatedMessage, off)
	}
	q := domain.Question{
		Name:  name,
		Type:  domain.RRType(binary.BigEndian.Uint16(data[off : off+2])),
		Class: domain.RRClass(binary.BigEndian.Uint16(data[off+2 : off+4])),
	}
	return q, off + 4, nil
}

func decodeSection(data []byte, off int, count uint16, section string) ([]domain.ResourceRecord, int, error) {
	records := make([]domain.ResourceRecord, 0, capFor(count, len(data)-off, minRecordSize))
	for i := 0; i < int(count); i++ {
		rr, next, err := decodeRecord(data, off)
		if err != nil {
			return nil, 0, fmt.Errorf("%s record %d: %w", section, i, err)
		}
		records = append(records, rr)
		off = next
	}
	return records, off, nil
}

// decodeRecord extracts a single resource record starting at off.
func decodeRecord(data []byte, off int) (domain.ResourceRecord, int, error) {
	name, off, err := DecodeName(data, off)
	if err != nil {
		return domain.ResourceRecord{}, 0, err
	}
	if off+10 > len(data) {
		return domain.ResourceRecord{}, 0, fmt.Errorf("%w: record fields at offset %d", ErrTruncatedMessage, off)
	}

	typ := domain.RRType(binary.BigEndian.Uint16(data[off : off+2]))
	class := domain.RRClass(binary.BigEndian.Uint16(data[off+2 : off+4]))
	ttl := binary.BigEndian.Uint32(data[off+4 : off+8])
	rdLen := int(binary.BigEndian.Uint16(data[off+8 : off+10]))
	off += 10

	end := off + rdLen
	if end > len(data) {
		return domain.ResourceRecord{}, 0, fmt.Errorf("%w: rdata of %d octets at offset %d", ErrTruncatedMessage, rdLen, off)
	}
	rdata, err := decodeRData(data, off, end, typ)
	if err != nil {
		return domain.ResourceRecord{}, 0, fmt.Errorf("%s rdata: %w", typ, err)
	}

	return domain.ResourceRecord{
		Name:  name,
		Type:  typ,
		Class: class,
		TTL:   ttl,
		Data:  rdata,
	}, end, nil
}

func appendRecord(buf []byte, rr domain.ResourceRecord) ([]byte, error) {
	buf, err := appendName(buf, rr.Name)
	if err != nil {
		return nil, err
	}
	buf = binary.BigEndian.AppendUint16(buf, uint16(rr.Type))
	buf = binary.BigEndian.AppendUint16(buf, uint16(rr.Class))
	buf = binary.BigEndian.AppendUint32(buf, rr.TTL)

	// reserve rdlength, then backfill once the rdata is written
	lenAt := len(buf)
	buf = append(buf, 0, 0)
	if buf, err = appendRData(buf, rr.Data); err != nil {
		return nil, err
	}
	rdLen := len(buf) - lenAt - 2
	if rdLen > 0xFFFF {
		return nil, fmt.Errorf("%w: rdata of %d octets (max 65535)", ErrMalformedRData, rdLen)
	}
	binary.BigEndian.PutUint16(buf[lenAt:], uint16(rdLen))
	return buf, nil
}

var _ MessageCodec = (*udpCodec)(nil)
