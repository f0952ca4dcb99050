package wire

import (
	"fmt"
	"strings"
)

const (
	// maxLabelLength is the longest label permitted by RFC 1035 §2.3.4.
	maxLabelLength = 63
	// maxNameLength is the longest wire-format name, including length octets and the root.
	maxNameLength = 255
	// pointerMask selects the two high bits that mark a compression pointer.
	pointerMask = 0xC0
)

// DecodeName reads a possibly compressed domain name from msg starting at off.
//
// It returns the dot-separated name without a trailing dot (the root is "")
// and the offset just past the name in the original, non-pointer region: one
// past the terminating zero octet, or two past the first compression pointer.
// Pointers may chain; every offset jumped to is remembered and revisiting one
// fails with ErrCompressionLoop, so hostile input cannot spin the decoder.
//
// Label octets are escaped as in RFC 1035 presentation format: '.' becomes
// `\.`, a backslash becomes `\\`, and bytes outside printable ASCII become
// `\DDD`. EncodeName reverses this.
func DecodeName(msg []byte, off int) (string, int, error) {
	var (
		b       strings.Builder
		wireLen = 1 // the terminating root label
		next    = -1
		visited map[int]struct{}
	)

	for {
		if off < 0 || off >= len(msg) {
			return "", 0, fmt.Errorf("%w: name at offset %d", ErrTruncatedMessage, off)
		}
		length := int(msg[off])

		switch length & pointerMask {
		case 0x00:
			if length == 0 {
				if next < 0 {
					next = off + 1
				}
				return b.String(), next, nil
			}
			if off+1+length > len(msg) {
				return "", 0, fmt.Errorf("%w: label at offset %d needs %d octets", ErrTruncatedMessage, off, length)
			}
			wireLen += 1 + length
			if wireLen > maxNameLength {
				return "", 0, fmt.Errorf("%w: name exceeds %d octets", ErrInvalidLabel, maxNameLength)
			}
			if b.Len() > 0 {
				b.WriteByte('.')
			}
			writeEscapedLabel(&b, msg[off+1:off+1+length])
			off += 1 + length

		case pointerMask:
			if off+1 >= len(msg) {
				return "", 0, fmt.Errorf("%w: compression pointer at offset %d", ErrTruncatedMessage, off)
			}
			target := int(msg[off]&^pointerMask)<<8 | int(msg[off+1])
			if next < 0 {
				next = off + 2
			}
			if visited == nil {
				visited = make(map[int]struct{}, 4)
			}
			if _, seen := visited[target]; seen {
				return "", 0, fmt.Errorf("%w: pointer to offset %d revisited", ErrCompressionLoop, target)
			}
			visited[target] = struct{}{}
			if target >= len(msg) {
				return "", 0, fmt.Errorf("%w: compression pointer to offset %d", ErrTruncatedMessage, target)
			}
			off = target

		default:
			// 0x40 and 0x80 are the reserved extended label types.
			return "", 0, fmt.Errorf("%w: reserved label type 0x%02x at offset %d", ErrInvalidLabel, length&pointerMask, off)
		}
	}
}

func writeEscapedLabel(b *strings.Builder, label []byte) {
	for _, c := range label {
		switch {
		case c == '.' || c == '\\':
			b.WriteByte('\\')
			b.WriteByte(c)
		case c < '!' || c > '~':
			b.WriteByte('\\')
			b.WriteByte('0' + c/100)
			b.WriteByte('0' + c/10%10)
			b.WriteByte('0' + c%10)
		default:
			b.WriteByte(c)
		}
	}
}

// EncodeName encodes name into uncompressed wire format: each label as a
// length octet followed by its bytes, then a zero octet. A trailing dot is
// optional; "" and "." both encode the root. The escapes written by
// DecodeName are turned back into single octets before label lengths are
// checked.
func EncodeName(name string) ([]byte, error) {
	if name == "" || name == "." {
		return []byte{0}, nil
	}
	labels, err := splitLabels(name)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(name)+2)
	for _, label := range labels {
		if len(label) > maxLabelLength {
			return nil, fmt.Errorf("%w: label of %d octets in %q (max %d)", ErrInvalidLabel, len(label), name, maxLabelLength)
		}
		out = append(out, byte(len(label)))
		out = append(out, label...)
	}
	out = append(out, 0)

	if len(out) > maxNameLength {
		return nil, fmt.Errorf("%w: name %q encodes to %d octets (max %d)", ErrInvalidLabel, name, len(out), maxNameLength)
	}
	return out, nil
}

// splitLabels splits a presentation-format name on unescaped dots and
// resolves escapes. A single trailing dot is allowed.
func splitLabels(name string) ([][]byte, error) {
	var (
		labels [][]byte
		cur    []byte
	)
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch c {
		case '.':
			if len(cur) == 0 {
				return nil, fmt.Errorf("%w: empty label in %q", ErrInvalidLabel, name)
			}
			labels = append(labels, cur)
			cur = nil
		case '\\':
			if i+1 >= len(name) {
				return nil, fmt.Errorf("%w: dangling escape in %q", ErrInvalidLabel, name)
			}
			if isDigit(name[i+1]) {
				if i+3 >= len(name) || !isDigit(name[i+2]) || !isDigit(name[i+3]) {
					return nil, fmt.Errorf("%w: short \\DDD escape in %q", ErrInvalidLabel, name)
				}
				v := int(name[i+1]-'0')*100 + int(name[i+2]-'0')*10 + int(name[i+3]-'0')
				if v > 255 {
					return nil, fmt.Errorf("%w: escape \\%s out of range in %q", ErrInvalidLabel, name[i+1:i+4], name)
				}
				cur = append(cur, byte(v))
				i += 3
				continue
			}
			cur = append(cur, name[i+1])
			i++
		default:
			cur = append(cur, c)
		}
	}
	if len(cur) > 0 {
		labels = append(labels, cur)
	}
	return labels, nil
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
