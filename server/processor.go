// Package server implements the request processor (C10): it drives one
// request cycle over an abstract block device, routing the parsed
// request to a demultiplexer-resolved handler or a registered error
// handler, and writes the resulting response back to the device.
package server

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/badu/hutz/demux"
	"github.com/badu/hutz/lexer"
	"github.com/badu/hutz/request"
)

// BlockDevice is the abstract byte stream a Processor drives, matching
// spec.md §6: Receive blocks for 1..len(p) bytes or reports EOF/error by
// returning ok=false with n==0; Send blocks until p is fully written or
// the connection breaks.
type BlockDevice = lexer.BlockDevice

// Processor is C10. One Processor serves a Demultiplexer's registrations
// to any number of connections; callers typically spawn one goroutine
// per accepted connection, each looping HandleOneRequest until it
// returns false.
type Processor struct {
	demux                 *demux.Demultiplexer
	logger                zerolog.Logger
	expectContinueEnabled bool
	maxHeaderBytes        int
	maxContentLength      int64
}

// New returns a Processor routing through d. Expect: 100-continue
// handling (the feature SPEC_FULL.md supplements beyond spec.md's typed
// Expect slot) is on by default, and header/content size limits are
// unbounded until SetLimits is called.
func New(d *demux.Demultiplexer, logger zerolog.Logger) *Processor {
	return &Processor{demux: d, logger: logger, expectContinueEnabled: true}
}

// DisableExpectContinue turns off the interim "100 Continue" response,
// for callers whose handlers never need a large-body client to pause.
func (p *Processor) DisableExpectContinue() { p.expectContinueEnabled = false }

// SetLimits caps the header bytes HandleOneRequest will buffer before
// giving up and the Content-Length it will accept before reading a
// body, matching config.ServerConfig's MaxHeaderBytes/MaxContentLength.
// Either limit of 0 or less means unbounded.
func (p *Processor) SetLimits(maxHeaderBytes int, maxContentLength int64) {
	p.maxHeaderBytes = maxHeaderBytes
	p.maxContentLength = maxContentLength
}

// HandleOneRequest runs exactly one request/response cycle over device.
// It returns false when the connection should be closed (transport EOF,
// a 400 or 413 response, or the resolved Connection mode is close); true when
// the caller may loop and call it again on the same device.
func (p *Processor) HandleOneRequest(device BlockDevice) bool {
	lex := lexer.New(device)
	if p.maxHeaderBytes > 0 {
		lex.SetMaxHeaderBytes(p.maxHeaderBytes)
	}
	if !lex.FetchHeader() {
		if lex.HeaderTooLarge() {
			p.logger.Warn().Msg("server: header exceeded max-header-bytes")
			p.writeError(device, "HTTP/1.1", 400)
		}
		return false
	}

	reqID := uuid.New()
	log := p.logger.With().Str("correlation_id", reqID.String()).Logger()

	parser := request.New(lex, p.demux.MimeSet(), log)
	if err := parser.Parse(); err != nil {
		log.Warn().Err(err).Msg("server: malformed request")
		p.writeError(device, "HTTP/1.1", 400)
		return false
	}
	req := parser.Request()

	if p.expectContinueEnabled && req.Expect100Continue {
		device.Send([]byte("HTTP/1.1 100 Continue\r\n\r\n"))
	}

	if p.maxContentLength > 0 && req.HasContentLength && req.ContentLength > p.maxContentLength {
		log.Warn().Int64("content_length", req.ContentLength).Msg("server: content length exceeded max-content-length")
		p.writeError(device, versionString(req.Version), 413)
		return false
	}

	if req.HasContentLength && req.ContentLength > 0 {
		content, ok := lex.FetchContent(int(req.ContentLength))
		if !ok {
			log.Warn().Msg("server: short body read")
			p.writeError(device, versionString(req.Version), 400)
			return false
		}
		req.Content = content
	}

	holder := p.demux.DetermineRequestHandler(req)
	if holder == nil {
		code := 404
		if p.demux.HasResource(req.URI.Path, req.Method, req.ContentType) {
			code = 406
		}
		p.writeError(device, versionString(req.Version), code)
		return req.Connection == request.ConnectionKeepAlive
	}
	defer holder.Release()

	resp := &demux.Response{}
	code := holder.Handler(req, resp)

	p.writeResponse(device, versionString(req.Version), code, resp)
	return req.Connection == request.ConnectionKeepAlive
}

// SetErrorHandler registers callback for status code, delegating to the
// underlying demultiplexer's error-handler registry.
func (p *Processor) SetErrorHandler(code int, callback func(req *request.Request, resp *demux.Response)) (*demux.ErrorHandle, error) {
	return p.demux.SetErrorHandler(code, callback)
}

func (p *Processor) writeError(device BlockDevice, version string, code int) {
	resp := &demux.Response{}
	if cb, ok := p.demux.ErrorHandler(code); ok {
		cb(nil, resp)
	}
	p.writeResponse(device, version, code, resp)
}

func (p *Processor) writeResponse(device BlockDevice, version string, code int, resp *demux.Response) {
	out := make([]byte, 0, 256+len(resp.Body))
	out = append(out, fmt.Sprintf("%s %d %s\r\n", version, code, reasonPhrase(code))...)
	if _, ok := resp.Headers["Content-Length"]; !ok {
		out = append(out, "Content-Length: "+strconv.Itoa(len(resp.Body))+"\r\n"...)
	}
	for name, value := range resp.Headers {
		out = append(out, name...)
		out = append(out, ": "...)
		out = append(out, value...)
		out = append(out, "\r\n"...)
	}
	out = append(out, "\r\n"...)
	out = append(out, resp.Body...)
	device.Send(out)
}

func versionString(v request.Version) string {
	if v == request.VersionHTTP10 {
		return "HTTP/1.0"
	}
	return "HTTP/1.1"
}
