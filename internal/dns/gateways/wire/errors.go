package wire

import "errors"

// Sentinel errors returned (wrapped) by the codec. Callers should test with errors.Is.
var (
	// ErrTruncatedMessage means a field, label, pointer or record runs past the end of the buffer.
	ErrTruncatedMessage = errors.New("truncated message")
	// ErrInvalidLabel means a label or name violates RFC 1035 length or format rules.
	ErrInvalidLabel = errors.New("invalid label")
	// ErrCompressionLoop means a compression pointer revisits an offset of the same name.
	ErrCompressionLoop = errors.New("compression loop")
	// ErrMalformedRData means record data does not match its declared length or type layout.
	ErrMalformedRData = errors.New("malformed rdata")
	// ErrTooManyRecords means a section cannot be described by a 16-bit count.
	ErrTooManyRecords = errors.New("too many records in section")
)
