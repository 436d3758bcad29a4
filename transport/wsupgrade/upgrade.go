// Package wsupgrade performs the HTTP Upgrade handshake for WebSocket
// connections via gorilla/websocket and returns the resulting connection
// to the caller; it does not implement WebSocket framing itself. It works
// on a net/http ResponseWriter/Request pair, not on a lexer.BlockDevice,
// so it runs outside the core request cycle (cmd/hutzd mounts it on its
// admin listener).
package wsupgrade

import (
	"net/http"

	"github.com/gorilla/websocket"
)

// Upgrader wraps gorilla/websocket's Upgrader with the defaults the
// cmd/hutzd /ws demo uses.
type Upgrader struct {
	inner websocket.Upgrader
}

// New returns an Upgrader that accepts any origin, matching an embedded
// library's "the caller decides policy" stance rather than baking in a
// same-origin check.
func New() *Upgrader {
	return &Upgrader{inner: websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}}
}

// Upgrade completes the WebSocket handshake over w/r and returns the
// resulting connection. Callers that registered a 101 error handler via
// server.Processor.SetErrorHandler are expected to call this from
// outside the core request cycle, once they have bridged the block
// device back to a net/http-compatible ResponseWriter/Request pair.
func (u *Upgrader) Upgrade(w http.ResponseWriter, r *http.Request, responseHeader http.Header) (*websocket.Conn, error) {
	return u.inner.Upgrade(w, r, responseHeader)
}
