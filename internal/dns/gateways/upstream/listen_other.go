//go:build !unix

package upstream

import (
	"context"
	"net"
)

func listenReusable(ctx context.Context, network, address string) (net.PacketConn, error) {
	var lc net.ListenConfig
	return lc.ListenPacket(ctx, network, address)
}
