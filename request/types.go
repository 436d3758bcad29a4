// Package request implements the HTTP/1.x request parser (C7): it
// consumes a lexer's rewritten header bytes and yields a typed Request,
// consulting the trie, codec, httpdate, mimereg and uri packages for each
// recognized header's sub-grammar.
package request

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/badu/hutz/mimereg"
	"github.com/badu/hutz/uri"
)

// Method is one of the eight verbs the request line grammar recognizes.
type Method int

const (
	MethodInvalid Method = iota - 1
	MethodHEAD
	MethodGET
	MethodPUT
	MethodDELETE
	MethodPOST
	MethodTRACE
	MethodOPTIONS
	MethodCONNECT
)

func (m Method) String() string {
	switch m {
	case MethodHEAD:
		return "HEAD"
	case MethodGET:
		return "GET"
	case MethodPUT:
		return "PUT"
	case MethodDELETE:
		return "DELETE"
	case MethodPOST:
		return "POST"
	case MethodTRACE:
		return "TRACE"
	case MethodOPTIONS:
		return "OPTIONS"
	case MethodCONNECT:
		return "CONNECT"
	default:
		return "INVALID"
	}
}

// Version is the HTTP version named on the request line.
type Version int

const (
	VersionInvalid Version = iota - 1
	VersionHTTP10
	VersionHTTP11
)

// ConnectionMode is the resolved value of the Connection header, or its
// version-dependent default when the header is absent.
type ConnectionMode int

const (
	ConnectionClose ConnectionMode = iota
	ConnectionKeepAlive
)

// AcceptEntry is one pattern from a parsed Accept header, in header
// (source) order — see SPEC_FULL.md's Open Question #2 decision.
type AcceptEntry struct {
	MIME    mimereg.MIME
	Quality int // two significant digits, i.e. a value in [0, 100]
}

// Request is the fully parsed result of one request cycle. Header values
// and the path are views over the lexer's rewritten buffer's lifetime in
// spirit, but since Go has no manual buffer ownership to mirror, they are
// plain strings scoped to the Request's lifetime like everything else
// referencing it.
type Request struct {
	Method  Method
	Target  string
	URI     uri.URI
	Version Version

	// Headers holds every header, recognized or not, lowercased by name;
	// repeated headers are comma-joined in arrival order.
	Headers map[string]string

	HasContentLength bool
	ContentLength    int64

	HasContentType bool
	ContentType    mimereg.MIME

	HasContentMD5 bool
	ContentMD5    [16]byte

	HasDate bool
	Date    int64

	Connection ConnectionMode

	Expect100Continue bool

	From      string
	Referer   string
	UserAgent string

	Accept []AcceptEntry

	Content []byte

	CorrelationID uuid.UUID
	Logger        zerolog.Logger
}

// AcceptIterator exposes the Accept patterns one at a time, matching
// spec.md's "next(state) -> (mime, has_more)" iterator shape.
type AcceptIterator struct {
	entries []AcceptEntry
	pos     int
}

// AcceptIter returns an iterator over r's parsed Accept patterns.
func (r *Request) AcceptIter() *AcceptIterator {
	return &AcceptIterator{entries: r.Accept}
}

// Next returns the next accept pattern and whether another follows it.
func (it *AcceptIterator) Next() (entry AcceptEntry, hasMore bool) {
	if it.pos >= len(it.entries) {
		return AcceptEntry{}, false
	}
	entry = it.entries[it.pos]
	it.pos++
	return entry, it.pos < len(it.entries)
}

// ReceivedAt stamps a Date-less request's arrival time; the processor may
// call this for access logging even when the client sent no Date header.
func ReceivedAt() int64 { return time.Now().Unix() }
