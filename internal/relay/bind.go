//go:build linux

package relay

import (
	"context"
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// listenConfig returns a net.ListenConfig whose Control sets
// SO_REUSEPORT, so a relay that crashes and restarts can rebind the same
// port immediately instead of waiting out TIME_WAIT.
func listenConfig() net.ListenConfig {
	return net.ListenConfig{
		Control: func(_, _ string, c syscall.RawConn) error {
			var sockErr error
			err := c.Control(func(fd uintptr) {
				sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
			})
			if err != nil {
				return err
			}
			return sockErr
		},
	}
}

func listenUDP(ctx context.Context, host string, port int) (net.PacketConn, error) {
	lc := listenConfig()
	return lc.ListenPacket(ctx, "udp", net.JoinHostPort(host, portString(port)))
}
