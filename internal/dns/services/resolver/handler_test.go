package resolver

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/haukened/simpledns/internal/dns/common/log"
	"github.com/haukened/simpledns/internal/dns/domain"
	"github.com/haukened/simpledns/internal/dns/services/stats"
)

type MockQueryResolver struct {
	mock.Mock
}

func (m *MockQueryResolver) Resolve(ctx context.Context, req domain.Message) (domain.Message, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(domain.Message), args.Error(1)
}

func assertReplyHeader(t *testing.T, req, reply domain.Message) {
	t.Helper()
	assert.Equal(t, req.Header.ID, reply.Header.ID)
	assert.True(t, reply.Header.Response)
	assert.True(t, reply.Header.RecursionDesired)
	assert.True(t, reply.Header.RecursionAvailable)
}

func TestHandler_NoQuestion(t *testing.T) {
	res := &MockQueryResolver{}
	counters := stats.New(nil)
	h := NewHandler(HandlerOptions{Resolver: res, Stats: counters})

	req := testRequest(99)
	reply := h.Handle(context.Background(), req)

	assertReplyHeader(t, req, reply)
	assert.Equal(t, domain.RCodeFormErr, reply.Header.RCode)
	assert.Empty(t, reply.Questions)
	assert.Empty(t, reply.Answers)
	assert.Empty(t, reply.Authority)
	assert.Empty(t, reply.Additional)
	assert.Equal(t, uint64(1), counters.Snapshot().FormErr)
	res.AssertNotCalled(t, "Resolve", mock.Anything, mock.Anything)
}

func TestHandler_LocalAnswer(t *testing.T) {
	q := testQuestion("host.local.test", domain.RRTypeA)
	req := testRequest(31337, q)
	records := []domain.ResourceRecord{testA("host.local.test", "10.0.0.5")}

	table := &MockRecordTable{}
	table.On("Lookup", q).Return(records, true)
	h := NewHandler(HandlerOptions{Resolver: NewResolver(ResolverOptions{Records: table})})

	reply := h.Handle(context.Background(), req)

	assertReplyHeader(t, req, reply)
	assert.True(t, reply.Header.Authoritative)
	assert.Equal(t, domain.RCodeNoError, reply.Header.RCode)
	assert.Equal(t, []domain.Question{q}, reply.Questions)
	assert.Equal(t, records, reply.Answers)
}

func TestHandler_CopiesUpstreamSections(t *testing.T) {
	q := testQuestion("example.com", domain.RRTypeA)
	req := testRequest(5, q)
	result := domain.Message{
		Header: domain.Header{ID: 5, Response: true, RCode: domain.RCodeNXDomain},
		Questions: []domain.Question{
			// upstream may echo the name in a different case
			testQuestion("EXAMPLE.com", domain.RRTypeA),
		},
		Authority: []domain.ResourceRecord{{
			Name: "com", Type: domain.RRTypeSOA, Class: domain.RRClassIN, TTL: 900,
			Data: domain.SOA{MName: "a.gtld-servers.net", RName: "nstld.verisign-grs.com", Serial: 1, Minimum: 86400},
		}},
		Additional: []domain.ResourceRecord{testA("a.gtld-servers.net", "192.5.6.30")},
	}

	res := &MockQueryResolver{}
	res.On("Resolve", mock.Anything, req).Return(result, nil)
	h := NewHandler(HandlerOptions{Resolver: res})

	reply := h.Handle(context.Background(), req)

	assertReplyHeader(t, req, reply)
	assert.False(t, reply.Header.Authoritative)
	assert.Equal(t, domain.RCodeNXDomain, reply.Header.RCode)
	assert.Equal(t, []domain.Question{q}, reply.Questions, "the request's question is echoed")
	assert.Empty(t, reply.Answers)
	assert.Equal(t, result.Authority, reply.Authority)
	assert.Equal(t, result.Additional, reply.Additional)
}

func TestHandler_ResolutionFailureIsServfail(t *testing.T) {
	q := testQuestion("example.com", domain.RRTypeA)
	req := testRequest(6, q)

	res := &MockQueryResolver{}
	res.On("Resolve", mock.Anything, req).Return(domain.Message{}, errors.Join(ErrResolutionFailed, errors.New("io")))
	counters := stats.New(nil)
	h := NewHandler(HandlerOptions{Resolver: res, Stats: counters})

	reply := h.Handle(context.Background(), req)

	assertReplyHeader(t, req, reply)
	assert.Equal(t, domain.RCodeServFail, reply.Header.RCode)
	assert.Equal(t, []domain.Question{q}, reply.Questions)
	assert.Empty(t, reply.Answers)
	assert.Equal(t, uint64(1), counters.Snapshot().ServFail)
}

func TestHandler_OnlyFirstQuestion(t *testing.T) {
	first := testQuestion("one.example", domain.RRTypeA)
	second := testQuestion("two.example", domain.RRTypeAAAA)
	req := testRequest(8, first, second)

	table := &MockRecordTable{}
	table.On("Lookup", first).Return([]domain.ResourceRecord{testA("one.example", "10.1.1.1")}, true)
	h := NewHandler(HandlerOptions{Resolver: NewResolver(ResolverOptions{Records: table})})

	reply := h.Handle(context.Background(), req)

	assert.Equal(t, []domain.Question{first}, reply.Questions)
	assert.Len(t, reply.Answers, 1)
	table.AssertNotCalled(t, "Lookup", second)
}

func TestHandler_UnsupportedOpcode(t *testing.T) {
	req := testRequest(9, testQuestion("example.com", domain.RRTypeA))
	req.Header.Opcode = domain.OpcodeUpdate

	res := &MockQueryResolver{}
	h := NewHandler(HandlerOptions{Resolver: res})

	reply := h.Handle(context.Background(), req)

	assertReplyHeader(t, req, reply)
	assert.Equal(t, domain.OpcodeUpdate, reply.Header.Opcode)
	assert.Equal(t, domain.RCodeNotImp, reply.Header.RCode)
	res.AssertNotCalled(t, "Resolve", mock.Anything, mock.Anything)
}

func TestHandler_LogsQuestionAndRecords(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := log.NewZapLogger(zap.New(core))

	q := testQuestion("host.local.test", domain.RRTypeA)
	table := &MockRecordTable{}
	table.On("Lookup", q).Return([]domain.ResourceRecord{
		testA("host.local.test", "10.0.0.5"),
		testA("host.local.test", "10.0.0.6"),
	}, true)
	h := NewHandler(HandlerOptions{
		Resolver: NewResolver(ResolverOptions{Records: table, Logger: logger}),
		Logger:   logger,
	})

	h.Handle(context.Background(), testRequest(11, q))

	assert.Equal(t, 1, logs.FilterMessage("Received question").Len())
	relayed := logs.FilterMessage("Relaying record").All()
	if assert.Len(t, relayed, 2) {
		assert.Equal(t, "host.local.test. 300 IN A 10.0.0.5", relayed[0].ContextMap()["record"])
		assert.Equal(t, "answer", relayed[0].ContextMap()["section"])
	}
}
