// Package upstream forwards questions to upstream resolvers over a single
// shared UDP socket bound to the configured outbound port.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/haukened/simpledns/internal/dns/common/clock"
	"github.com/haukened/simpledns/internal/dns/common/log"
	"github.com/haukened/simpledns/internal/dns/domain"
	"github.com/haukened/simpledns/internal/dns/gateways/wire"
	"github.com/haukened/simpledns/internal/dns/services/resolver"
	"github.com/haukened/simpledns/internal/dns/services/stats"
)

// Error message constants for consistent error handling
const (
	errCodecRequired    = "DNS codec is required"
	errInvalidServer    = "invalid upstream server %q: %w"
	errAlreadyOpen      = "upstream client already open"
	errListenFailed     = "failed to bind outbound socket on %s: %w"
	errResolveFailed    = "failed to resolve upstream server %s: %w"
	errEncodeFailed     = "encode failed: %w"
	errWriteFailed      = "write to %s failed: %w"
	errNoFreeID         = "no free transaction id"
	errAllServersFailed = "%d attempts failed: %w"
)

var (
	// ErrUpstreamTimeout means no acceptable response arrived before the per-attempt deadline.
	ErrUpstreamTimeout = errors.New("upstream timeout")
	// ErrResponseMismatch means a response carried the right id but did not answer the question sent.
	ErrResponseMismatch = errors.New("upstream response does not match query")
	// ErrClosed is returned by Forward when the client is not open.
	ErrClosed = errors.New("upstream client closed")
)

const (
	// DefaultServer is used when no upstream servers are configured.
	DefaultServer  = "8.8.8.8:53"
	defaultPort    = "53"
	defaultTimeout = 2 * time.Second
	// upstream responses are not limited to 512 octets
	readBufferSize = 65535
)

// ListenFunc opens the outbound socket. It exists so tests can inject sockets.
type ListenFunc func(ctx context.Context, network, address string) (net.PacketConn, error)

// Options defines configuration parameters for the upstream client.
type Options struct {
	// Servers are "host" or "host:port" entries; the port defaults to 53.
	Servers []string
	// LocalPort is the outbound port every query is sent from. Zero picks an ephemeral port.
	LocalPort int
	// Timeout bounds a single attempt.
	Timeout time.Duration
	// Retries is the number of further attempts after a timeout, each against a different server when possible.
	Retries int

	Codec  wire.MessageCodec
	Logger log.Logger
	Stats  *stats.Counters
	// options to inject for testing purposes
	Clock  clock.Clock
	Listen ListenFunc
}

// pending is one in-flight query waiting for its response.
type pending struct {
	question domain.Question
	server   *net.UDPAddr
	ch       chan domain.Message

	// lastErr records why the most recent matching datagram was rejected
	mu      sync.Mutex
	lastErr error
}

func (p *pending) reject(err error) {
	p.mu.Lock()
	p.lastErr = err
	p.mu.Unlock()
}

func (p *pending) rejection() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

// Client implements resolver.UpstreamClient. One socket is shared by every
// worker; a reader goroutine hands each response to the query waiting on its
// transaction id.
type Client struct {
	servers   []string
	localPort int
	timeout   time.Duration
	retries   int
	codec     wire.MessageCodec
	logger    log.Logger
	stats     *stats.Counters
	clock     clock.Clock
	listen    ListenFunc

	mu      sync.Mutex
	conn    net.PacketConn
	addrs   []*net.UDPAddr
	pending map[uint16]*pending
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewClient validates opts and returns a closed client; call Open before Forward.
// An empty server list falls back to DefaultServer.
func NewClient(opts Options) (*Client, error) {
	if opts.Codec == nil {
		return nil, errors.New(errCodecRequired)
	}
	servers := make([]string, 0, len(opts.Servers))
	for _, s := range opts.Servers {
		hp, err := NormalizeServer(s)
		if err != nil {
			return nil, fmt.Errorf(errInvalidServer, s, err)
		}
		servers = append(servers, hp)
	}
	if len(servers) == 0 {
		servers = []string{DefaultServer}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	if opts.Logger == nil {
		opts.Logger = log.NewNoopLogger()
	}
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	if opts.Listen == nil {
		opts.Listen = listenReusable
	}
	return &Client{
		servers:   servers,
		localPort: opts.LocalPort,
		timeout:   opts.Timeout,
		retries:   opts.Retries,
		codec:     opts.Codec,
		logger:    opts.Logger,
		stats:     opts.Stats,
		clock:     opts.Clock,
		listen:    opts.Listen,
	}, nil
}

// NormalizeServer returns s as host:port, adding port 53 when none is given.
// Bare IPv6 literals are accepted with or without brackets.
func NormalizeServer(s string) (string, error) {
	if s == "" {
		return "", errors.New("empty address")
	}
	if host, port, err := net.SplitHostPort(s); err == nil {
		if host == "" {
			return "", errors.New("missing host")
		}
		if n, err := strconv.Atoi(port); err != nil || n < 1 || n > 65535 {
			return "", fmt.Errorf("invalid port %q", port)
		}
		return net.JoinHostPort(host, port), nil
	}
	host := s
	if len(host) > 2 && host[0] == '[' && host[len(host)-1] == ']' {
		host = host[1 : len(host)-1]
	}
	return net.JoinHostPort(host, defaultPort), nil
}

// Servers returns the normalized upstream list.
func (c *Client) Servers() []string {
	return append([]string(nil), c.servers...)
}

// Open resolves the upstream servers, binds the outbound socket and starts
// the response reader.
func (c *Client) Open(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return errors.New(errAlreadyOpen)
	}

	addrs := make([]*net.UDPAddr, 0, len(c.servers))
	for _, s := range c.servers {
		addr, err := net.ResolveUDPAddr("udp", s)
		if err != nil {
			return fmt.Errorf(errResolveFailed, s, err)
		}
		addrs = append(addrs, addr)
	}

	local := net.JoinHostPort("", strconv.Itoa(c.localPort))
	conn, err := c.listen(ctx, "udp", local)
	if err != nil {
		return fmt.Errorf(errListenFailed, local, err)
	}

	c.conn = conn
	c.addrs = addrs
	c.pending = make(map[uint16]*pending)
	c.done = make(chan struct{})

	c.wg.Add(1)
	go c.readLoop(conn, c.done)

	c.logger.Info(map[string]any{
		"local":   conn.LocalAddr().String(),
		"servers": c.servers,
		"timeout": c.timeout.String(),
		"retries": c.retries,
	}, "Upstream client opened")
	return nil
}

// Close stops the reader and releases the outbound socket. Waiting queries
// fail with ErrClosed.
func (c *Client) Close() error {
	c.mu.Lock()
	conn := c.conn
	if conn == nil {
		c.mu.Unlock()
		return nil
	}
	c.conn = nil
	close(c.done)
	c.mu.Unlock()

	err := conn.Close()
	c.wg.Wait()
	c.logger.Info(nil, "Upstream client closed")
	return err
}

// LocalAddr returns the bound outbound address, or nil when closed.
func (c *Client) LocalAddr() net.Addr {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	return c.conn.LocalAddr()
}

// Forward sends q with a fresh random id to a randomly chosen server and
// returns the first response whose id, source and question match. On
// timeout the query is retried against a different server, up to Retries times.
func (c *Client) Forward(ctx context.Context, q domain.Question) (domain.Message, error) {
	c.mu.Lock()
	conn, addrs, done := c.conn, c.addrs, c.done
	c.mu.Unlock()
	if conn == nil {
		return domain.Message{}, ErrClosed
	}

	order := rand.Perm(len(addrs))
	attempts := c.retries + 1
	var lastErr error
	for i := 0; i < attempts; i++ {
		server := addrs[order[i%len(order)]]
		resp, err := c.exchange(ctx, conn, done, server, q)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !errors.Is(err, ErrUpstreamTimeout) || ctx.Err() != nil {
			return domain.Message{}, err
		}
		c.stats.UpstreamTimeout()
		c.logger.Warn(map[string]any{
			"server":  server.String(),
			"name":    q.Name,
			"type":    q.Type.String(),
			"attempt": i + 1,
		}, "Upstream query timed out")
	}
	return domain.Message{}, fmt.Errorf(errAllServersFailed, attempts, lastErr)
}

// exchange performs one attempt against server.
func (c *Client) exchange(ctx context.Context, conn net.PacketConn, done <-chan struct{}, server *net.UDPAddr, q domain.Question) (domain.Message, error) {
	id, p, err := c.register(q, server)
	if err != nil {
		return domain.Message{}, err
	}
	defer c.unregister(id)

	data, err := c.codec.Encode(domain.NewQuery(id, q))
	if err != nil {
		return domain.Message{}, fmt.Errorf(errEncodeFailed, err)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := c.clock.Now()
	if _, err := conn.WriteTo(data, server); err != nil {
		return domain.Message{}, fmt.Errorf(errWriteFailed, server, err)
	}
	c.logger.Debug(map[string]any{
		"id":     id,
		"server": server.String(),
		"name":   q.Name,
		"type":   q.Type.String(),
	}, "Forwarded query upstream")

	select {
	case resp := <-p.ch:
		c.logger.Debug(map[string]any{
			"id":      id,
			"server":  server.String(),
			"rcode":   resp.Header.RCode.String(),
			"answers": len(resp.Answers),
			"rtt":     c.clock.Since(start).String(),
		}, "Received upstream response")
		return resp, nil
	case <-done:
		return domain.Message{}, ErrClosed
	case <-attemptCtx.Done():
		if ctx.Err() != nil {
			return domain.Message{}, ctx.Err()
		}
		if rej := p.rejection(); rej != nil {
			return domain.Message{}, fmt.Errorf("%w: %s after %v (last rejected response: %w)", ErrUpstreamTimeout, server, c.timeout, rej)
		}
		return domain.Message{}, fmt.Errorf("%w: %s after %v", ErrUpstreamTimeout, server, c.timeout)
	}
}

// register reserves a random transaction id not used by any in-flight query.
func (c *Client) register(q domain.Question, server *net.UDPAddr) (uint16, *pending, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil {
		return 0, nil, ErrClosed
	}
	p := &pending{question: q, server: server, ch: make(chan domain.Message, 1)}
	// give up after 64 collisions
	for range 64 {
		id := uint16(rand.Uint32())
		if _, busy := c.pending[id]; !busy {
			c.pending[id] = p
			return id, p, nil
		}
	}
	return 0, nil, errors.New(errNoFreeID)
}

func (c *Client) unregister(id uint16) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Client) lookup(id uint16) *pending {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending[id]
}

// readLoop demultiplexes datagrams on the shared socket by transaction id.
// Anything that does not answer an in-flight query is discarded.
func (c *Client) readLoop(conn net.PacketConn, done <-chan struct{}) {
	defer c.wg.Done()
	buf := make([]byte, readBufferSize)

	for {
		n, from, err := conn.ReadFrom(buf)
		if err != nil {
			select {
			case <-done:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			c.logger.Warn(map[string]any{"error": err}, "Failed to read upstream response")
			continue
		}
		c.dispatch(buf[:n], from)
	}
}

func (c *Client) dispatch(data []byte, from net.Addr) {
	id, ok := wire.PeekID(data)
	if !ok {
		c.discard(from, "short datagram")
		return
	}
	p := c.lookup(id)
	if p == nil {
		c.discard(from, "unknown transaction id")
		return
	}
	if !sameUDPAddr(from, p.server) {
		c.discard(from, "unexpected source")
		return
	}

	msg, err := c.codec.Decode(data)
	if err != nil {
		p.reject(err)
		c.discard(from, err.Error())
		return
	}
	if !msg.Header.Response {
		p.reject(fmt.Errorf("%w: QR bit not set", ErrResponseMismatch))
		c.discard(from, "not a response")
		return
	}
	// a response without a question is accepted only for error rcodes
	if got, ok := msg.FirstQuestion(); ok {
		if !got.Matches(p.question) {
			p.reject(fmt.Errorf("%w: asked %s, answered %s", ErrResponseMismatch, p.question, got))
			c.discard(from, "question mismatch")
			return
		}
	} else if !msg.IsError() {
		p.reject(fmt.Errorf("%w: response has no question", ErrResponseMismatch))
		c.discard(from, "missing question")
		return
	}

	select {
	case p.ch <- msg:
	default:
		c.discard(from, "duplicate response")
	}
}

func (c *Client) discard(from net.Addr, reason string) {
	c.stats.UpstreamDiscarded()
	c.logger.Debug(map[string]any{
		"from":   addrString(from),
		"reason": reason,
	}, "Discarded upstream datagram")
}

func sameUDPAddr(a net.Addr, b *net.UDPAddr) bool {
	ua, ok := a.(*net.UDPAddr)
	if !ok {
		return a != nil && a.String() == b.String()
	}
	return ua.Port == b.Port && ua.IP.Equal(b.IP)
}

func addrString(a net.Addr) string {
	if a == nil {
		return ""
	}
	return a.String()
}

var _ resolver.UpstreamClient = (*Client)(nil)
