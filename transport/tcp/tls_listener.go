package tcp

import (
	"crypto/tls"
	"net"
	"time"

	"github.com/pkg/errors"
)

// TLSListener wraps a KeepAliveListener with TLS termination, for callers
// that want encryption at the socket boundary without the core ever
// knowing about it: HandleOneRequest drives the same BlockDevice either
// way.
type TLSListener struct {
	inner  *KeepAliveListener
	config *tls.Config
}

// ListenTLS opens a keep-alive TCP listener on addr and wraps it with TLS
// using the certificate/key pair at certFile/keyFile. period controls the
// underlying keep-alive period, as in Listen.
func ListenTLS(addr, certFile, keyFile string, period time.Duration) (*TLSListener, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, errors.Wrap(err, "tcp: loading TLS certificate")
	}
	ln, err := Listen(addr, period)
	if err != nil {
		return nil, err
	}
	return &TLSListener{
		inner:  ln,
		config: &tls.Config{Certificates: []tls.Certificate{cert}},
	}, nil
}

// Accept accepts the next connection, enabling keep-alive, and completes
// the TLS handshake before returning it. The handshake runs eagerly (via
// tls.Server.Handshake) so callers never hand a half-negotiated
// connection to lexer.BlockDevice.
func (l *TLSListener) Accept() (net.Conn, error) {
	conn, err := l.inner.Accept()
	if err != nil {
		return nil, err
	}
	tlsConn := tls.Server(conn, l.config)
	if err := tlsConn.Handshake(); err != nil {
		tlsConn.Close()
		return nil, errors.Wrap(err, "tcp: TLS handshake failed")
	}
	return tlsConn, nil
}

// Close closes the underlying listener.
func (l *TLSListener) Close() error { return l.inner.Close() }

// Addr returns the underlying listener's address.
func (l *TLSListener) Addr() net.Addr { return l.inner.Addr() }
