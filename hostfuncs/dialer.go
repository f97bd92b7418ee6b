package hostfuncs

import (
	"context"
	"net"
	"strings"
	"time"

	"github.com/reglet-dev/luabridge/domain/errors"
)

// NetDialer is the default ports.Dialer. Addresses containing a '/' are dialed
// as unix sockets, everything else over TCP.
type NetDialer struct{}

// Dial implements ports.Dialer.
func (NetDialer) Dial(ctx context.Context, address string, timeout time.Duration) (net.Conn, error) {
	network := "tcp"
	if strings.Contains(address, "/") {
		network = "unix"
	}
	d := &net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, network, address)
	if err != nil {
		return nil, &errors.NetworkError{Operation: "dial", Target: address, Err: err}
	}
	return conn, nil
}
