//go:build !linux

package relay

import (
	"context"
	"net"
)

// listenUDP on non-Linux platforms binds without SO_REUSEPORT: the
// rebind-on-crash behavior still works via the OS's normal TIME_WAIT
// handling, just without the fast-rebind guarantee SO_REUSEPORT gives.
func listenUDP(ctx context.Context, host string, port int) (net.PacketConn, error) {
	var lc net.ListenConfig
	return lc.ListenPacket(ctx, "udp", net.JoinHostPort(host, portString(port)))
}
