package resolver

import (
	"context"
	"errors"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/haukened/simpledns/internal/dns/domain"
	"github.com/haukened/simpledns/internal/dns/services/stats"
)

type MockRecordTable struct {
	mock.Mock
}

func (m *MockRecordTable) Lookup(q domain.Question) ([]domain.ResourceRecord, bool) {
	args := m.Called(q)
	records, _ := args.Get(0).([]domain.ResourceRecord)
	return records, args.Bool(1)
}

type MockUpstream struct {
	mock.Mock
}

func (m *MockUpstream) Forward(ctx context.Context, q domain.Question) (domain.Message, error) {
	args := m.Called(ctx, q)
	return args.Get(0).(domain.Message), args.Error(1)
}

func testQuestion(name string, t domain.RRType) domain.Question {
	return domain.Question{Name: name, Type: t, Class: domain.RRClassIN}
}

func testRequest(id uint16, qs ...domain.Question) domain.Message {
	return domain.Message{
		Header:    domain.Header{ID: id, Opcode: domain.OpcodeQuery, RecursionDesired: true},
		Questions: qs,
	}
}

func testA(name, addr string) domain.ResourceRecord {
	return domain.ResourceRecord{
		Name:  name,
		Type:  domain.RRTypeA,
		Class: domain.RRClassIN,
		TTL:   300,
		Data:  domain.A{Addr: netip.MustParseAddr(addr)},
	}
}

func TestResolver_LocalHit(t *testing.T) {
	q := testQuestion("host.local.test", domain.RRTypeA)
	records := []domain.ResourceRecord{testA("host.local.test", "10.0.0.5")}

	table := &MockRecordTable{}
	table.On("Lookup", q).Return(records, true)
	up := &MockUpstream{}
	counters := stats.New(nil)

	r := NewResolver(ResolverOptions{Records: table, Upstream: up, Stats: counters})
	msg, err := r.Resolve(context.Background(), testRequest(7, q))
	require.NoError(t, err)

	assert.Equal(t, uint16(7), msg.Header.ID)
	assert.Equal(t, domain.RCodeNoError, msg.Header.RCode)
	assert.True(t, msg.Header.Authoritative)
	assert.Equal(t, records, msg.Answers)
	assert.Equal(t, uint64(1), counters.Snapshot().LocalAnswers)
	up.AssertNotCalled(t, "Forward", mock.Anything, mock.Anything)
}

func TestResolver_ForwardsOnMiss(t *testing.T) {
	q := testQuestion("example.com", domain.RRTypeA)

	table := &MockRecordTable{}
	table.On("Lookup", q).Return(nil, false)

	upstreamReply := domain.Message{
		Header:    domain.Header{ID: 0xABCD, Response: true, RecursionAvailable: true, RCode: domain.RCodeNoError},
		Questions: []domain.Question{q},
		Answers:   []domain.ResourceRecord{testA("example.com", "93.184.216.34")},
	}
	up := &MockUpstream{}
	up.On("Forward", mock.Anything, q).Return(upstreamReply, nil)
	counters := stats.New(nil)

	r := NewResolver(ResolverOptions{Records: table, Upstream: up, Stats: counters})
	msg, err := r.Resolve(context.Background(), testRequest(4242, q))
	require.NoError(t, err)

	assert.Equal(t, uint16(4242), msg.Header.ID, "upstream id is replaced by the request id")
	assert.False(t, msg.Header.Authoritative)
	assert.Equal(t, upstreamReply.Answers, msg.Answers)
	assert.Equal(t, uint64(1), counters.Snapshot().Forwarded)
	up.AssertExpectations(t)
}

func TestResolver_WithoutRecordTable(t *testing.T) {
	q := testQuestion("example.com", domain.RRTypeMX)
	up := &MockUpstream{}
	up.On("Forward", mock.Anything, q).Return(domain.Message{Header: domain.Header{RCode: domain.RCodeNXDomain}}, nil)

	r := NewResolver(ResolverOptions{Upstream: up})
	msg, err := r.Resolve(context.Background(), testRequest(1, q))
	require.NoError(t, err)
	assert.Equal(t, domain.RCodeNXDomain, msg.Header.RCode)
}

func TestResolver_Errors(t *testing.T) {
	q := testQuestion("example.com", domain.RRTypeA)
	upstreamErr := errors.New("upstream timeout")

	tests := []struct {
		name     string
		req      domain.Message
		upstream UpstreamClient
		wantErr  error
	}{
		{
			name:    "no question",
			req:     testRequest(1),
			wantErr: ErrNoQuestion,
		},
		{
			name:    "no upstream",
			req:     testRequest(1, q),
			wantErr: ErrResolutionFailed,
		},
		{
			name: "upstream failure",
			req:  testRequest(1, q),
			upstream: func() UpstreamClient {
				up := &MockUpstream{}
				up.On("Forward", mock.Anything, q).Return(domain.Message{}, upstreamErr)
				return up
			}(),
			wantErr: upstreamErr,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table := &MockRecordTable{}
			table.On("Lookup", mock.Anything).Return(nil, false)

			r := NewResolver(ResolverOptions{Records: table, Upstream: tt.upstream})
			_, err := r.Resolve(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	t.Run("upstream failure is a resolution failure", func(t *testing.T) {
		up := &MockUpstream{}
		up.On("Forward", mock.Anything, q).Return(domain.Message{}, upstreamErr)
		r := NewResolver(ResolverOptions{Upstream: up})
		_, err := r.Resolve(context.Background(), testRequest(1, q))
		assert.ErrorIs(t, err, ErrResolutionFailed)
		assert.ErrorIs(t, err, upstreamErr)
	})
}
