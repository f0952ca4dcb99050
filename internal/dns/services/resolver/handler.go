package resolver

import (
	"context"
	"errors"

	"github.com/haukened/simpledns/internal/dns/common/log"
	"github.com/haukened/simpledns/internal/dns/domain"
	"github.com/haukened/simpledns/internal/dns/services/stats"
)

// Handler builds the reply for every decoded request. The reply always
// echoes the request id and its first question, with QR, RD and RA set.
type Handler struct {
	resolver QueryResolver
	logger   log.Logger
	stats    *stats.Counters
}

type HandlerOptions struct {
	Resolver QueryResolver
	Logger   log.Logger
	Stats    *stats.Counters
}

func NewHandler(opts HandlerOptions) *Handler {
	if opts.Logger == nil {
		opts.Logger = log.NewNoopLogger()
	}
	return &Handler{
		resolver: opts.Resolver,
		logger:   opts.Logger,
		stats:    opts.Stats,
	}
}

// Handle answers req. Only the first question is answered; further questions
// are ignored. A request without a question gets FORMERR, any opcode other
// than QUERY gets NOTIMP and a resolution error gets SERVFAIL.
func (h *Handler) Handle(ctx context.Context, req domain.Message) domain.Message {
	q, ok := req.FirstQuestion()
	if !ok {
		h.stats.FormErr()
		h.logger.Warn(map[string]any{"id": req.Header.ID}, "Request has no question")
		return domain.NewErrorReply(req, domain.RCodeFormErr)
	}

	reply := domain.NewReply(req)
	reply.Questions = []domain.Question{q}

	h.logger.Info(map[string]any{
		"id":    req.Header.ID,
		"name":  q.Name,
		"type":  q.Type.String(),
		"class": q.Class.String(),
	}, "Received question")
	if len(req.Questions) > 1 {
		h.logger.Debug(map[string]any{
			"id":      req.Header.ID,
			"ignored": len(req.Questions) - 1,
		}, "Ignoring additional questions")
	}

	if req.Header.Opcode != domain.OpcodeQuery {
		h.logger.Warn(map[string]any{
			"id":     req.Header.ID,
			"opcode": req.Header.Opcode.String(),
		}, "Unsupported opcode")
		reply.Header.RCode = domain.RCodeNotImp
		return reply
	}

	result, err := h.resolver.Resolve(ctx, req)
	if err != nil {
		h.stats.ServFail()
		fields := map[string]any{
			"id":    req.Header.ID,
			"name":  q.Name,
			"type":  q.Type.String(),
			"error": err,
		}
		if errors.Is(err, context.Canceled) {
			h.logger.Debug(fields, "Resolution cancelled")
		} else {
			h.logger.Error(fields, "Resolution failed")
		}
		reply.Header.RCode = domain.RCodeServFail
		return reply
	}

	reply.Header.RCode = result.Header.RCode
	reply.Header.Authoritative = result.Header.Authoritative
	reply.Answers = result.Answers
	reply.Authority = result.Authority
	reply.Additional = result.Additional
	if reply.Header.RCode == domain.RCodeServFail {
		h.stats.ServFail()
	}

	h.logRecords(req.Header.ID, "answer", reply.Answers)
	h.logRecords(req.Header.ID, "authority", reply.Authority)
	h.logRecords(req.Header.ID, "additional", reply.Additional)
	return reply
}

func (h *Handler) logRecords(id uint16, section string, records []domain.ResourceRecord) {
	for _, rr := range records {
		h.logger.Info(map[string]any{
			"id":      id,
			"section": section,
			"record":  rr.String(),
		}, "Relaying record")
	}
}

var _ DNSResponder = (*Handler)(nil)
