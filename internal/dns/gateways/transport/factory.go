package transport

import (
	"fmt"
	"slices"
)

// NewTransport creates a transport of the given type.
func NewTransport(transportType TransportType, opts UDPOptions) (ServerTransport, error) {
	switch transportType {
	case TransportUDP:
		return NewUDPTransport(opts), nil

	case TransportTCP:
		return nil, fmt.Errorf("DNS over TCP transport not yet implemented")

	default:
		return nil, fmt.Errorf("unsupported transport type: %s", transportType)
	}
}

// GetSupportedTransports returns a list of currently supported transport types.
func GetSupportedTransports() []TransportType {
	return []TransportType{
		TransportUDP,
	}
}

// IsTransportSupported checks if a given transport type is currently supported.
func IsTransportSupported(transportType TransportType) bool {
	return slices.Contains(GetSupportedTransports(), transportType)
}
