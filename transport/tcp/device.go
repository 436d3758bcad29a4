package tcp

import (
	"net"
	"time"
)

// Device adapts a net.Conn to lexer.BlockDevice: Receive reports false
// only on error or orderly close, mirroring the read-deadline-driven
// abort path the teacher's connReader uses for pipelined-request
// detection and idle timeouts, simplified here to a single blocking
// ReadTimeout applied per call.
type Device struct {
	conn        net.Conn
	ReadTimeout time.Duration
	WriteTimeout time.Duration
}

// NewDevice wraps conn. Zero timeouts mean no deadline is set.
func NewDevice(conn net.Conn) *Device {
	return &Device{conn: conn}
}

// Receive reads up to len(p) bytes, applying ReadTimeout if set.
func (d *Device) Receive(p []byte) (int, bool) {
	if d.ReadTimeout > 0 {
		d.conn.SetReadDeadline(time.Now().Add(d.ReadTimeout))
	}
	n, err := d.conn.Read(p)
	if n > 0 {
		return n, true
	}
	return 0, err == nil
}

// Send writes p in full, looping over short writes until done or the
// connection breaks.
func (d *Device) Send(p []byte) bool {
	if d.WriteTimeout > 0 {
		d.conn.SetWriteDeadline(time.Now().Add(d.WriteTimeout))
	}
	for len(p) > 0 {
		n, err := d.conn.Write(p)
		if err != nil {
			return false
		}
		p = p[n:]
	}
	return true
}

// Close performs a lingering close: it waits briefly for the peer to
// finish reading before the kernel tears down the socket, matching
// spec.md §4/§5's "lingering close is a property of the underlying
// connection" contract.
func (d *Device) Close() error {
	if tcpConn, ok := d.conn.(*net.TCPConn); ok {
		tcpConn.SetLinger(5)
	}
	return d.conn.Close()
}
