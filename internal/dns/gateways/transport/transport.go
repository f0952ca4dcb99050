// Package transport provides network transport abstractions for the DNS server.
// It converts between wire format and domain objects, so the service layer
// works purely with domain types.
package transport

import (
	"context"
	"net"

	"github.com/haukened/simpledns/internal/dns/services/resolver"
)

// ServerTransport defines the interface for DNS server transport implementations.
type ServerTransport interface {
	// Start binds the listening socket and begins handling requests with handler.
	// A bind failure is returned; everything after that is logged.
	Start(ctx context.Context, handler resolver.DNSResponder) error

	// Stop shuts the transport down and waits for in-flight requests to finish.
	Stop() error

	// Address returns the network address the transport is bound to.
	Address() string
}

// ListenFunc opens a packet socket. Tests inject fakes through it.
type ListenFunc func(ctx context.Context, network, address string) (net.PacketConn, error)

func defaultListen(ctx context.Context, network, address string) (net.PacketConn, error) {
	var lc net.ListenConfig
	return lc.ListenPacket(ctx, network, address)
}

// TransportType represents the DNS transport protocols the server knows about.
type TransportType string

const (
	// TransportUDP represents standard DNS over UDP (RFC 1035)
	TransportUDP TransportType = "udp"

	// TransportTCP represents DNS over TCP (RFC 7766); accepted in configuration but not served
	TransportTCP TransportType = "tcp"
)
