package resolver

import (
	"context"

	"github.com/haukened/simpledns/internal/dns/domain"
)

// RecordTable is the read-only set of locally authoritative records.
type RecordTable interface {
	Lookup(q domain.Question) ([]domain.ResourceRecord, bool)
}

// UpstreamClient forwards a single question to an upstream resolver and
// returns its decoded response.
type UpstreamClient interface {
	Forward(ctx context.Context, q domain.Question) (domain.Message, error)
}

// QueryResolver produces the answer for the first question of a request.
type QueryResolver interface {
	Resolve(ctx context.Context, req domain.Message) (domain.Message, error)
}

// DNSResponder turns a decoded request into the reply to send back.
// The transport handles all network protocol details; the responder only sees domain objects.
type DNSResponder interface {
	Handle(ctx context.Context, req domain.Message) domain.Message
}
