// Package stats keeps process-wide query counters. All methods are safe for
// concurrent use and tolerate a nil *Counters, so components can run without one.
package stats

import (
	"sync/atomic"
	"time"

	"github.com/haukened/simpledns/internal/dns/common/clock"
)

// Counters tracks what happened to every datagram the server saw.
type Counters struct {
	clock   clock.Clock
	started time.Time

	received          atomic.Uint64
	droppedMalformed  atomic.Uint64
	droppedOverload   atomic.Uint64
	localAnswers      atomic.Uint64
	forwarded         atomic.Uint64
	formErr           atomic.Uint64
	servFail          atomic.Uint64
	upstreamTimeouts  atomic.Uint64
	upstreamDiscarded atomic.Uint64
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Uptime            time.Duration `json:"-"`
	UptimeSeconds     float64       `json:"uptime_seconds"`
	Received          uint64        `json:"received"`
	DroppedMalformed  uint64        `json:"dropped_malformed"`
	DroppedOverload   uint64        `json:"dropped_overload"`
	LocalAnswers      uint64        `json:"local_answers"`
	Forwarded         uint64        `json:"forwarded"`
	FormErr           uint64        `json:"formerr"`
	ServFail          uint64        `json:"servfail"`
	UpstreamTimeouts  uint64        `json:"upstream_timeouts"`
	UpstreamDiscarded uint64        `json:"upstream_discarded"`
}

// New returns zeroed counters whose uptime is measured with c.
func New(c clock.Clock) *Counters {
	if c == nil {
		c = clock.RealClock{}
	}
	return &Counters{clock: c, started: c.Now()}
}

func (c *Counters) Received() {
	if c != nil {
		c.received.Add(1)
	}
}

func (c *Counters) DroppedMalformed() {
	if c != nil {
		c.droppedMalformed.Add(1)
	}
}

func (c *Counters) DroppedOverload() {
	if c != nil {
		c.droppedOverload.Add(1)
	}
}

func (c *Counters) LocalAnswer() {
	if c != nil {
		c.localAnswers.Add(1)
	}
}

func (c *Counters) Forwarded() {
	if c != nil {
		c.forwarded.Add(1)
	}
}

func (c *Counters) FormErr() {
	if c != nil {
		c.formErr.Add(1)
	}
}

func (c *Counters) ServFail() {
	if c != nil {
		c.servFail.Add(1)
	}
}

func (c *Counters) UpstreamTimeout() {
	if c != nil {
		c.upstreamTimeouts.Add(1)
	}
}

// UpstreamDiscarded counts upstream datagrams that were not accepted as the
// answer to any in-flight query (unknown id, wrong source, wrong question).
func (c *Counters) UpstreamDiscarded() {
	if c != nil {
		c.upstreamDiscarded.Add(1)
	}
}

// Snapshot reads every counter. The values are individually atomic, not
// collectively consistent.
func (c *Counters) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	uptime := c.clock.Since(c.started)
	return Snapshot{
		Uptime:            uptime,
		UptimeSeconds:     uptime.Seconds(),
		Received:          c.received.Load(),
		DroppedMalformed:  c.droppedMalformed.Load(),
		DroppedOverload:   c.droppedOverload.Load(),
		LocalAnswers:      c.localAnswers.Load(),
		Forwarded:         c.forwarded.Load(),
		FormErr:           c.formErr.Load(),
		ServFail:          c.servFail.Load(),
		UpstreamTimeouts:  c.upstreamTimeouts.Load(),
		UpstreamDiscarded: c.upstreamDiscarded.Load(),
	}
}

// Fields renders the snapshot as log fields.
func (s Snapshot) Fields() map[string]any {
	return map[string]any{
		"uptime":             s.Uptime.String(),
		"received":           s.Received,
		"dropped_malformed":  s.DroppedMalformed,
		"dropped_overload":   s.DroppedOverload,
		"local_answers":      s.LocalAnswers,
		"forwarded":          s.Forwarded,
		"formerr":            s.FormErr,
		"servfail":           s.ServFail,
		"upstream_timeouts":  s.UpstreamTimeouts,
		"upstream_discarded": s.UpstreamDiscarded,
	}
}
