// Package resolver contains the resolution engine and the query handler that
// turns its result into the reply sent to the client.
package resolver

import (
	"context"
	"errors"
	"fmt"

	"github.com/haukened/simpledns/internal/dns/common/log"
	"github.com/haukened/simpledns/internal/dns/domain"
	"github.com/haukened/simpledns/internal/dns/services/stats"
)

var (
	// ErrResolutionFailed wraps every failure to produce an answer; the handler maps it to SERVFAIL.
	ErrResolutionFailed = errors.New("resolution failed")
	// ErrNoQuestion is returned by Resolve for a request without a question.
	ErrNoQuestion = errors.New("request has no question")
)

// Resolver answers a question from the local record table when it can and
// forwards it upstream otherwise. It keeps no state between queries.
type Resolver struct {
	records  RecordTable
	upstream UpstreamClient
	logger   log.Logger
	stats    *stats.Counters
}

type ResolverOptions struct {
	Records  RecordTable
	Upstream UpstreamClient
	Logger   log.Logger
	Stats    *stats.Counters
}

func NewResolver(opts ResolverOptions) *Resolver {
	if opts.Logger == nil {
		opts.Logger = log.NewNoopLogger()
	}
	return &Resolver{
		records:  opts.Records,
		upstream: opts.Upstream,
		logger:   opts.Logger,
		stats:    opts.Stats,
	}
}

// Resolve answers the first question of req.
//
// A local hit yields a NOERROR message with the records as answers and the
// AA flag set. Otherwise the upstream response is returned as decoded, with
// its id replaced by the request's. Forwarding failures wrap ErrResolutionFailed.
func (r *Resolver) Resolve(ctx context.Context, req domain.Message) (domain.Message, error) {
	q, ok := req.FirstQuestion()
	if !ok {
		return domain.Message{}, ErrNoQuestion
	}

	if r.records != nil {
		if records, found := r.records.Lookup(q); found {
			r.stats.LocalAnswer()
			r.logger.Debug(map[string]any{
				"id":      req.Header.ID,
				"name":    q.Name,
				"type":    q.Type.String(),
				"records": len(records),
			}, "Answered from local records")

			msg := domain.NewReply(req)
			msg.Header.Authoritative = true
			msg.Questions = []domain.Question{q}
			msg.Answers = records
			return msg, nil
		}
	}

	if r.upstream == nil {
		return domain.Message{}, fmt.Errorf("%w: no upstream configured for %s", ErrResolutionFailed, q)
	}

	resp, err := r.upstream.Forward(ctx, q)
	if err != nil {
		return domain.Message{}, fmt.Errorf("%w: %s: %w", ErrResolutionFailed, q, err)
	}
	r.stats.Forwarded()
	resp.Header.ID = req.Header.ID
	return resp, nil
}

var _ QueryResolver = (*Resolver)(nil)
