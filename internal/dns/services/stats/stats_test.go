package stats

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/haukened/simpledns/internal/dns/common/clock"
)

func TestCounters_Snapshot(t *testing.T) {
	start := time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)
	clk := clock.NewMockClock(start)
	c := New(clk)

	c.Received()
	c.Received()
	c.DroppedMalformed()
	c.DroppedOverload()
	c.LocalAnswer()
	c.Forwarded()
	c.FormErr()
	c.ServFail()
	c.UpstreamTimeout()
	c.UpstreamDiscarded()
	clk.Advance(90 * time.Second)

	assert.Equal(t, Snapshot{
		Uptime:            90 * time.Second,
		UptimeSeconds:     90,
		Received:          2,
		DroppedMalformed:  1,
		DroppedOverload:   1,
		LocalAnswers:      1,
		Forwarded:         1,
		FormErr:           1,
		ServFail:          1,
		UpstreamTimeouts:  1,
		UpstreamDiscarded: 1,
	}, c.Snapshot())
}

func TestCounters_NilSafe(t *testing.T) {
	var c *Counters
	assert.NotPanics(t, func() {
		c.Received()
		c.DroppedMalformed()
		c.DroppedOverload()
		c.LocalAnswer()
		c.Forwarded()
		c.FormErr()
		c.ServFail()
		c.UpstreamTimeout()
		c.UpstreamDiscarded()
	})
	assert.Equal(t, Snapshot{}, c.Snapshot())
}

func TestCounters_Concurrent(t *testing.T) {
	c := New(nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Received()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, uint64(5000), c.Snapshot().Received)
}

func TestSnapshot_Fields(t *testing.T) {
	s := Snapshot{Uptime: time.Minute, Received: 3, ServFail: 1}
	f := s.Fields()
	assert.Equal(t, "1m0s", f["uptime"])
	assert.Equal(t, uint64(3), f["received"])
	assert.Equal(t, uint64(1), f["servfail"])
	assert.Len(t, f, 10)
}
