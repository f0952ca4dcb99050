package domain

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewQuestion(t *testing.T) {
	q, err := NewQuestion("example.com", RRTypeA)
	require.NoError(t, err)
	assert.Equal(t, RRClassIN, q.Class)

	_, err = NewQuestion("example.com", 0)
	assert.Error(t, err)
}

func TestQuestion_Matches(t *testing.T) {
	q := Question{Name: "Example.COM.", Type: RRTypeA, Class: RRClassIN}

	assert.True(t, q.Matches(Question{Name: "example.com", Type: RRTypeA, Class: RRClassIN}))
	assert.False(t, q.Matches(Question{Name: "example.com", Type: RRTypeAAAA, Class: RRClassIN}))
	assert.False(t, q.Matches(Question{Name: "example.org", Type: RRTypeA, Class: RRClassIN}))
	assert.False(t, q.Matches(Question{Name: "example.com", Type: RRTypeA, Class: RRClassCH}))
}

func TestQuestion_String(t *testing.T) {
	q := Question{Name: "example.com", Type: RRTypeMX, Class: RRClassIN}
	assert.Equal(t, "example.com. IN MX", q.String())
}

func TestNewQuery(t *testing.T) {
	q := Question{Name: "example.com", Type: RRTypeA, Class: RRClassIN}
	m := NewQuery(0xBEEF, q)

	assert.Equal(t, uint16(0xBEEF), m.Header.ID)
	assert.True(t, m.Header.RecursionDesired)
	assert.False(t, m.Header.Response)
	assert.Equal(t, OpcodeQuery, m.Header.Opcode)
	assert.Equal(t, []Question{q}, m.Questions)
}

func TestNewReply(t *testing.T) {
	req := Message{
		Header:    Header{ID: 4242, Opcode: OpcodeQuery, CheckingDisabled: true},
		Questions: []Question{{Name: "example.com", Type: RRTypeA, Class: RRClassIN}},
	}

	reply := NewReply(req)
	assert.Equal(t, uint16(4242), reply.Header.ID)
	assert.True(t, reply.Header.Response)
	assert.True(t, reply.Header.RecursionDesired)
	assert.True(t, reply.Header.RecursionAvailable)
	assert.Equal(t, RCodeNoError, reply.Header.RCode)
	assert.Empty(t, reply.Questions)
	assert.Empty(t, reply.Answers)

	errReply := NewErrorReply(req, RCodeServFail)
	assert.Equal(t, RCodeServFail, errReply.Header.RCode)
	assert.True(t, errReply.IsError())
	assert.Equal(t, uint16(4242), errReply.Header.ID)
}

func TestMessage_FirstQuestion(t *testing.T) {
	_, ok := Message{}.FirstQuestion()
	assert.False(t, ok)

	m := Message{Questions: []Question{
		{Name: "first.example", Type: RRTypeA, Class: RRClassIN},
		{Name: "second.example", Type: RRTypeA, Class: RRClassIN},
	}}
	q, ok := m.FirstQuestion()
	assert.True(t, ok)
	assert.Equal(t, "first.example", q.Name)
}

func TestMessage_Validate(t *testing.T) {
	valid := Message{
		Header: Header{ID: 1, RCode: RCodeNoError},
		Answers: []ResourceRecord{{
			Name: "example.com", Type: RRTypeA, Class: RRClassIN, TTL: 60,
			Data: A{Addr: netip.MustParseAddr("192.0.2.1")},
		}},
	}
	assert.NoError(t, valid.Validate())

	badRCode := valid
	badRCode.Header.RCode = 16
	assert.ErrorContains(t, badRCode.Validate(), "invalid RCode")

	badOpcode := valid
	badOpcode.Header.Opcode = 16
	assert.ErrorContains(t, badOpcode.Validate(), "invalid Opcode")

	badRecord := valid
	badRecord.Additional = []ResourceRecord{{Name: "x.example", Type: RRTypeA, Class: RRClassIN}}
	assert.ErrorContains(t, badRecord.Validate(), "invalid additional record at index 0")
}
