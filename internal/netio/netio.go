// Package netio adapts net.Conn to the websocket package's IO
// collaborator and provides the listen and dial plumbing cmd/wsbench
// uses. net.Conn already satisfies websocket.IO
// structurally (matching Read/Write signatures); this package exists for
// the pieces net.Conn alone doesn't give you: a bounded listener so one
// misbehaving client can't exhaust file descriptors, and a small dial
// helper that sets sane timeouts.
package netio

import (
	"net"
	"time"

	"golang.org/x/net/netutil"
)

// Listen opens a TCP listener on addr, bounded to maxConns simultaneous
// accepted connections via golang.org/x/net/netutil.LimitListener. A
// maxConns of 0 means unbounded.
func Listen(addr string, maxConns int) (net.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	if maxConns > 0 {
		ln = netutil.LimitListener(ln, maxConns)
	}
	return ln, nil
}

// Dial connects to addr with the given timeout and returns the raw
// net.Conn, which already satisfies websocket.IO.
func Dial(addr string, timeout time.Duration) (net.Conn, error) {
	return net.DialTimeout("tcp", addr, timeout)
}
