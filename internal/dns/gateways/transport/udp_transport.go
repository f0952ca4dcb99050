package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/haukened/simpledns/internal/dns/common/log"
	"github.com/haukened/simpledns/internal/dns/domain"
	"github.com/haukened/simpledns/internal/dns/gateways/wire"
	"github.com/haukened/simpledns/internal/dns/services/resolver"
	"github.com/haukened/simpledns/internal/dns/services/stats"
)

// queuePerWorker sizes the receive queue when UDPOptions.QueueSize is unset.
const queuePerWorker = 64

// Backoff bounds for repeated read errors other than a closed socket.
const (
	minReadBackoff = 5 * time.Millisecond
	maxReadBackoff = time.Second
)

// bufferPool reduces allocations for incoming datagrams.
var bufferPool = sync.Pool{
	New: func() any {
		buf := make([]byte, wire.MaxUDPMessageSize)
		return &buf
	},
}

// UDPOptions configures a UDPTransport.
type UDPOptions struct {
	Addr string
	// Workers is the number of goroutines handling requests (thread count). Minimum 1.
	Workers int
	// QueueSize bounds the datagrams waiting for a worker; beyond it they are dropped.
	QueueSize int

	Codec  wire.MessageCodec
	Logger log.Logger
	Stats  *stats.Counters
	// options to inject for testing purposes
	Listen ListenFunc
}

// packet is one received datagram waiting for a worker.
type packet struct {
	buf  *[]byte
	n    int
	from net.Addr
}

// UDPTransport implements ServerTransport for standard DNS over UDP (RFC 1035).
// A single receiver reads datagrams and hands them to a fixed pool of workers
// over a bounded queue; each worker decodes, handles, encodes and replies.
type UDPTransport struct {
	addr      string
	workers   int
	queueSize int
	codec     wire.MessageCodec
	logger    log.Logger
	stats     *stats.Counters
	listen    ListenFunc

	mu      sync.Mutex
	conn    net.PacketConn
	running bool
	cancel  context.CancelFunc
	stopCh  chan struct{}
	stopped chan struct{}
	stopErr error
	wg      sync.WaitGroup
}

// NewUDPTransport creates a new UDP transport instance.
func NewUDPTransport(opts UDPOptions) *UDPTransport {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.QueueSize < 1 {
		opts.QueueSize = opts.Workers * queuePerWorker
	}
	if opts.Logger == nil {
		opts.Logger = log.NewNoopLogger()
	}
	if opts.Listen == nil {
		opts.Listen = defaultListen
	}
	return &UDPTransport{
		addr:      opts.Addr,
		workers:   opts.Workers,
		queueSize: opts.QueueSize,
		codec:     opts.Codec,
		logger:    opts.Logger,
		stats:     opts.Stats,
		listen:    opts.Listen,
	}
}

// Start binds the UDP socket and starts the receiver and the worker pool.
// Cancelling ctx has the same effect as Stop. Handlers run with a context
// that keeps ctx's values but is not cancelled with it, so a request already
// being handled can finish and reply during shutdown.
func (t *UDPTransport) Start(ctx context.Context, handler resolver.DNSResponder) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running {
		return fmt.Errorf("UDP transport already running")
	}
	if t.codec == nil || handler == nil {
		return fmt.Errorf("UDP transport needs a codec and a handler")
	}

	conn, err := t.listen(ctx, "udp", t.addr)
	if err != nil {
		return fmt.Errorf("failed to bind UDP socket on %s: %w", t.addr, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	t.conn = conn
	t.cancel = cancel
	t.stopCh = make(chan struct{})
	t.stopped = make(chan struct{})
	t.stopErr = nil
	t.running = true

	queue := make(chan packet, t.queueSize)
	handleCtx := context.WithoutCancel(runCtx)
	t.wg.Add(1 + t.workers)
	go t.receiveLoop(conn, t.stopCh, queue)
	for i := 0; i < t.workers; i++ {
		go t.worker(handleCtx, t.stopCh, queue, handler)
	}
	go func(stopCh <-chan struct{}) {
		select {
		case <-runCtx.Done():
			t.logger.Debug(nil, "UDP transport stopping due to context cancellation")
			_ = t.Stop()
		case <-stopCh:
		}
	}(t.stopCh)

	t.logger.Info(map[string]any{
		"transport": "udp",
		"address":   conn.LocalAddr().String(),
		"workers":   t.workers,
		"queue":     t.queueSize,
	}, "DNS transport started")
	return nil
}

// Stop stops reading, drops datagrams still queued, waits for requests
// already being handled to reply, then closes the socket. Concurrent and
// repeated calls all return once shutdown has completed.
func (t *UDPTransport) Stop() error {
	t.mu.Lock()
	stopped := t.stopped
	if !t.running {
		t.mu.Unlock()
		if stopped == nil {
			return nil
		}
		<-stopped
		t.mu.Lock()
		defer t.mu.Unlock()
		return t.stopErr
	}
	t.running = false
	close(t.stopCh)
	t.cancel()
	conn := t.conn
	t.mu.Unlock()

	// An expired read deadline wakes the receiver while workers can still reply.
	if err := conn.SetReadDeadline(time.Now()); err != nil {
		_ = conn.Close()
	}
	t.wg.Wait()

	closeErr := conn.Close()
	if closeErr != nil && !errors.Is(closeErr, net.ErrClosed) {
		t.logger.Warn(map[string]any{
			"error": closeErr,
		}, "Error closing UDP connection")
	} else {
		closeErr = nil
	}

	t.mu.Lock()
	t.stopErr = closeErr
	t.mu.Unlock()
	close(stopped)

	t.logger.Info(map[string]any{
		"transport": "udp",
		"address":   conn.LocalAddr().String(),
	}, "DNS transport stopped")
	return closeErr
}

// Address returns the bound address while running, the configured one otherwise.
func (t *UDPTransport) Address() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return t.conn.LocalAddr().String()
	}
	return t.addr
}

// receiveLoop reads datagrams until Stop. It owns queue and closes it on
// exit so the workers finish. Persistent read errors back off up to
// maxReadBackoff between attempts.
func (t *UDPTransport) receiveLoop(conn net.PacketConn, stopCh <-chan struct{}, queue chan<- packet) {
	defer t.wg.Done()
	defer close(queue)

	var backoff time.Duration
	for {
		bufp := bufferPool.Get().(*[]byte)
		n, from, err := conn.ReadFrom(*bufp)
		if err != nil {
			bufferPool.Put(bufp)
			if isClosed(stopCh) || errors.Is(err, net.ErrClosed) {
				return
			}
			backoff = nextBackoff(backoff)
			t.logger.Warn(map[string]any{
				"error":   err,
				"backoff": backoff.String(),
			}, "Failed to read UDP packet")
			select {
			case <-stopCh:
				return
			case <-time.After(backoff):
			}
			continue
		}
		backoff = 0

		select {
		case queue <- packet{buf: bufp, n: n, from: from}:
		default:
			bufferPool.Put(bufp)
			t.stats.DroppedOverload()
			t.logger.Warn(map[string]any{
				"client": from.String(),
				"queue":  t.queueSize,
			}, "Dropping DNS query, all workers busy")
		}
	}
}

func nextBackoff(d time.Duration) time.Duration {
	if d == 0 {
		return minReadBackoff
	}
	return min(d*2, maxReadBackoff)
}

func isClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

// worker handles queued datagrams. Once Stop has begun, whatever is still
// queued is dropped unanswered.
func (t *UDPTransport) worker(ctx context.Context, stopCh <-chan struct{}, queue <-chan packet, handler resolver.DNSResponder) {
	defer t.wg.Done()
	for pkt := range queue {
		if isClosed(stopCh) {
			t.logger.Debug(map[string]any{
				"client": pkt.from.String(),
			}, "Dropping queued DNS query during shutdown")
		} else {
			t.safeHandle(ctx, pkt, handler)
		}
		bufferPool.Put(pkt.buf)
	}
}

// safeHandle keeps a panicking request from taking the worker down.
func (t *UDPTransport) safeHandle(ctx context.Context, pkt packet, handler resolver.DNSResponder) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error(map[string]any{
				"client": pkt.from.String(),
				"panic":  fmt.Sprint(r),
			}, "Recovered from panic while handling DNS query")
		}
	}()
	t.handlePacket(ctx, (*pkt.buf)[:pkt.n], pkt.from, handler)
}

// handlePacket processes a single UDP DNS packet.
func (t *UDPTransport) handlePacket(ctx context.Context, data []byte, clientAddr net.Addr, handler resolver.DNSResponder) {
	t.stats.Received()
	t.logger.Debug(map[string]any{
		"client": clientAddr.String(),
		"size":   len(data),
		"raw":    fmt.Sprintf("%x", data),
	}, "Received raw DNS query data")

	query, err := t.codec.Decode(data)
	if err != nil {
		t.stats.DroppedMalformed()
		t.logger.Warn(map[string]any{
			"client": clientAddr.String(),
			"error":  err,
			"size":   len(data),
		}, "Failed to decode DNS query")
		return
	}
	if query.Header.Response {
		t.stats.DroppedMalformed()
		t.logger.Debug(map[string]any{
			"client":   clientAddr.String(),
			"query_id": query.Header.ID,
		}, "Ignoring DNS response sent to the listening port")
		return
	}

	response := handler.Handle(ctx, query)

	responseData, err := t.codec.Encode(response)
	if err != nil {
		t.logger.Error(map[string]any{
			"client":   clientAddr.String(),
			"query_id": query.Header.ID,
			"error":    err,
		}, "Failed to encode DNS response")

		fallback := domain.NewErrorReply(query, domain.RCodeServFail)
		if q, ok := query.FirstQuestion(); ok {
			fallback.Questions = []domain.Question{q}
		}
		if responseData, err = t.codec.Encode(fallback); err != nil {
			return
		}
	}

	if _, err := t.conn.WriteTo(responseData, clientAddr); err != nil {
		t.logger.Error(map[string]any{
			"client":   clientAddr.String(),
			"query_id": query.Header.ID,
			"error":    err,
		}, "Failed to send DNS response")
		return
	}

	t.logger.Debug(map[string]any{
		"client":   clientAddr.String(),
		"query_id": query.Header.ID,
		"size":     len(responseData),
	}, "Sent DNS response")
}

var _ ServerTransport = (*UDPTransport)(nil)
