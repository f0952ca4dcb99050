package domain

import "fmt"

// Message is a complete DNS message (RFC 1035 §4.1): a header followed by the
// question, answer, authority and additional sections. A Message lives for a
// single request or response and is discarded once serialized.
type Message struct {
	Header     Header
	Questions  []Question
	Answers    []ResourceRecord
	Authority  []ResourceRecord
	Additional []ResourceRecord
}

// NewQuery builds a recursion-desired standard query for a single question.
func NewQuery(id uint16, q Question) Message {
	return Message{
		Header: Header{
			ID:               id,
			Opcode:           OpcodeQuery,
			RecursionDesired: true,
		},
		Questions: []Question{q},
	}
}

// NewReply starts a response to req: the transaction id is echoed and the
// QR, RD and RA flags are set. Sections are left empty for the caller.
func NewReply(req Message) Message {
	return Message{
		Header: Header{
			ID:                 req.Header.ID,
			Response:           true,
			Opcode:             req.Header.Opcode,
			RecursionDesired:   true,
			RecursionAvailable: true,
		},
	}
}

// NewErrorReply is NewReply with rcode set and no records.
func NewErrorReply(req Message, rcode RCode) Message {
	reply := NewReply(req)
	reply.Header.RCode = rcode
	return reply
}

// FirstQuestion returns the first entry of the question section.
func (m Message) FirstQuestion() (Question, bool) {
	if len(m.Questions) == 0 {
		return Question{}, false
	}
	return m.Questions[0], true
}

// Validate checks the message for values that cannot be represented on the wire.
func (m Message) Validate() error {
	if !m.Header.RCode.IsValid() {
		return fmt.Errorf("invalid RCode: %d", m.Header.RCode)
	}
	if m.Header.Opcode > 0x0F {
		return fmt.Errorf("invalid Opcode: %d", m.Header.Opcode)
	}
	sections := []struct {
		name    string
		records []ResourceRecord
	}{
		{"answer", m.Answers},
		{"authority", m.Authority},
		{"additional", m.Additional},
	}
	for _, s := range sections {
		for i, rr := range s.records {
			if err := rr.Validate(); err != nil {
				return fmt.Errorf("invalid %s record at index %d: %w", s.name, i, err)
			}
		}
	}
	return nil
}

// IsError returns true if the message carries a non-zero response code.
func (m Message) IsError() bool {
	return m.Header.RCode != RCodeNoError
}
