// Package tcp adapts a real net.Conn to the lexer.BlockDevice interface
// the core consumes, plus a keep-alive TCP listener. This is the only
// supported way to run the library over a socket; the core itself never
// imports net.
package tcp

import (
	"net"
	"time"
)

// KeepAliveListener wraps a *net.TCPListener, enabling TCP keep-alive on
// every accepted connection the way a long-lived HTTP server should, so
// idle connections behind NAT/load-balancer timeouts get noticed.
type KeepAliveListener struct {
	*net.TCPListener
	Period time.Duration
}

// Listen opens a TCP listener on addr with keep-alive period set to
// period (3 minutes if period is zero).
func Listen(addr string, period time.Duration) (*KeepAliveListener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	if period <= 0 {
		period = 3 * time.Minute
	}
	return &KeepAliveListener{TCPListener: ln.(*net.TCPListener), Period: period}, nil
}

// Accept accepts the next connection and enables keep-alive on it.
func (l *KeepAliveListener) Accept() (net.Conn, error) {
	conn, err := l.AcceptTCP()
	if err != nil {
		return nil, err
	}
	conn.SetKeepAlive(true)
	conn.SetKeepAlivePeriod(l.Period)
	return conn, nil
}
