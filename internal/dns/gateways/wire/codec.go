// Package wire encodes and decodes DNS messages in the RFC 1035 binary format.
package wire

import (
	"github.com/haukened/simpledns/internal/dns/domain"
)

// MessageCodec converts between domain.Message values and wire bytes.
// The same codec serves the listening side (decode query, encode reply) and
// the upstream side (encode query, decode response).
type MessageCodec interface {
	Encode(msg domain.Message) ([]byte, error)
	Decode(data []byte) (domain.Message, error)
}
