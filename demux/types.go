// Package demux implements the ordered MIME map (C8) and the
// demultiplexer (C9): the registry that resolves an incoming request's
// (path, method, content-type, accept-list) tuple to a single registered
// handler under concurrent mutation.
package demux

import (
	"github.com/badu/hutz/mimereg"
	"github.com/badu/hutz/request"
)

// Handler is user code registered against a resource. It receives the
// parsed request and a response to populate, and returns the HTTP status
// code the processor should write.
type Handler func(req *request.Request, resp *Response) int

// Response is the mutable response a handler populates. The processor
// (package server) owns turning this into wire bytes.
type Response struct {
	Headers map[string]string
	Body    []byte
}

// SetHeader sets a response header, replacing any existing value.
func (r *Response) SetHeader(name, value string) {
	if r.Headers == nil {
		r.Headers = map[string]string{}
	}
	r.Headers[name] = value
}

// Write appends to the response body.
func (r *Response) Write(p []byte) {
	r.Body = append(r.Body, p...)
}

// ResourceKey is the primary dispatch key: an exact path, an exact
// method, and a concrete (non-wildcard) content-type.
type ResourceKey struct {
	Path        string
	Method      request.Method
	ContentType mimereg.MIME
}
