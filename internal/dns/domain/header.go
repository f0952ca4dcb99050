package domain

// Header holds the fixed fields of a DNS message header (RFC 1035 §4.1.1).
//
// Section counts are deliberately absent: they are derived from the
// message sections when encoding and only bound the decoder's loops.
type Header struct {
	ID                 uint16
	Response           bool // QR
	Opcode             Opcode
	Authoritative      bool // AA
	Truncated          bool // TC
	RecursionDesired   bool // RD
	RecursionAvailable bool // RA
	Zero               bool // Z, reserved; preserved so decode/encode round-trips
	AuthenticatedData  bool // AD (RFC 4035)
	CheckingDisabled   bool // CD (RFC 4035)
	RCode              RCode
}
