package ports

import (
	"context"
	"net"
	"time"
)

// Dialer opens connections to remote uwsgi peers.
// Infrastructure adapters implement this to provide connection setup.
type Dialer interface {
	// Dial connects to address within timeout. Addresses containing a '/'
	// are unix socket paths, everything else is host:port.
	Dial(ctx context.Context, address string, timeout time.Duration) (net.Conn, error)
}
