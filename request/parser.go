package request

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/badu/hutz/codec"
	"github.com/badu/hutz/httpdate"
	"github.com/badu/hutz/lexer"
	"github.com/badu/hutz/mimereg"
	"github.com/badu/hutz/trie"
	"github.com/badu/hutz/uri"
)

// State is the parser's lifecycle: it starts Pending, and ends in
// Succeeded or Error. A parser that has reached Error refuses further
// work, matching spec.md §4.7's "any failure... transitions to ERROR and
// the parser refuses further work".
type State int

const (
	StatePending State = iota
	StateSucceeded
	StateError
)

// ErrParse is the sentinel every parse failure wraps.
var ErrParse = errors.New("request: malformed request")

type headerKind int

const (
	headerCustom headerKind = iota
	headerContentLength
	headerContentType
	headerContentMD5
	headerDate
	headerConnection
	headerExpect
	headerFrom
	headerReferer
	headerUserAgent
)

var methodTrie = func() *trie.Trie[Method] {
	t := trie.New[Method](false)
	for m := MethodHEAD; m <= MethodCONNECT; m++ {
		t.Insert(m.String(), m)
	}
	return t
}()

var versionTrie = func() *trie.Trie[Version] {
	t := trie.New[Version](false)
	t.Insert("HTTP/1.0", VersionHTTP10)
	t.Insert("HTTP/1.1", VersionHTTP11)
	return t
}()

var headerNameTrie = func() *trie.Trie[headerKind] {
	t := trie.New[headerKind](true)
	t.Insert("content-length", headerContentLength)
	t.Insert("content-type", headerContentType)
	t.Insert("content-md5", headerContentMD5)
	t.Insert("date", headerDate)
	t.Insert("connection", headerConnection)
	t.Insert("expect", headerExpect)
	t.Insert("from", headerFrom)
	t.Insert("referer", headerReferer)
	t.Insert("user-agent", headerUserAgent)
	return t
}()

var connectionTrie = func() *trie.Trie[ConnectionMode] {
	t := trie.New[ConnectionMode](true)
	t.Insert("close", ConnectionClose)
	t.Insert("keep-alive", ConnectionKeepAlive)
	t.Insert("persist", ConnectionKeepAlive)
	return t
}()

// Parser drives one request's header grammar (C7) over a lexer that has
// already fetched the header (C6).
type Parser struct {
	lex     *lexer.Lexer
	mime    *mimereg.Set
	logger  zerolog.Logger
	state   State
	request Request
}

// New returns a parser for the header lex has already fetched.
func New(lex *lexer.Lexer, mime *mimereg.Set, logger zerolog.Logger) *Parser {
	return &Parser{lex: lex, mime: mime, logger: logger, request: Request{
		Headers: map[string]string{},
	}}
}

// State reports the parser's current lifecycle state.
func (p *Parser) State() State { return p.state }

// Parse runs the full request-line-then-headers grammar. On success it
// transitions to StateSucceeded and Request returns the parsed result; on
// any grammar violation it transitions to StateError and returns a
// wrapped ErrParse.
func (p *Parser) Parse() error {
	if p.state != StatePending {
		return errors.Wrap(ErrParse, "parser already finished")
	}

	line := p.readLine()
	if err := p.parseRequestLine(line); err != nil {
		p.state = StateError
		return err
	}

	for p.lex.Index() < len(p.lex.HeaderBytes()) {
		hline := p.readLine()
		if len(hline) == 0 {
			continue
		}
		if err := p.parseHeaderLine(hline); err != nil {
			p.state = StateError
			return err
		}
	}

	p.request.CorrelationID = uuid.New()
	p.request.Logger = p.logger.With().Str("correlation_id", p.request.CorrelationID.String()).Logger()
	p.state = StateSucceeded
	return nil
}

// Request returns the parsed request. Only meaningful once State() ==
// StateSucceeded.
func (p *Parser) Request() *Request { return &p.request }

func (p *Parser) readLine() []byte {
	start := p.lex.Index()
	for {
		c := p.lex.Get()
		if c == -1 || c == '\n' {
			break
		}
	}
	end := p.lex.Index()
	line := p.lex.HeaderBytes()[start:end]
	if n := len(line); n > 0 && line[n-1] == '\n' {
		line = line[:n-1]
	}
	return line
}

func (p *Parser) parseRequestLine(line []byte) error {
	used, method := methodTrie.Find(line, len(line))
	if used == 0 || used >= len(line) || line[used] != ' ' {
		return errors.Wrapf(ErrParse, "unrecognized method in %q", line)
	}
	p.request.Method = method
	rest := line[used+1:]

	rest = trimLeadingSpaces(rest)
	spaceIdx := indexByte(rest, ' ')
	if spaceIdx < 0 {
		return errors.Wrap(ErrParse, "missing request target")
	}
	target := string(rest[:spaceIdx])
	if target == "" {
		return errors.Wrap(ErrParse, "empty request target")
	}
	p.request.Target = target

	parsedURI, ok := uri.Parse(target)
	if !ok {
		return errors.Wrapf(ErrParse, "invalid request target %q", target)
	}
	p.request.URI = parsedURI

	rest = trimLeadingSpaces(rest[spaceIdx+1:])
	vUsed, version := versionTrie.Find(rest, len(rest))
	if vUsed == 0 || vUsed != len(rest) {
		return errors.Wrapf(ErrParse, "unrecognized HTTP version in %q", rest)
	}
	p.request.Version = version
	if version == VersionHTTP10 {
		p.request.Connection = ConnectionClose
	} else {
		p.request.Connection = ConnectionKeepAlive
	}
	return nil
}

func (p *Parser) parseHeaderLine(line []byte) error {
	colon := indexByte(line, ':')
	if colon <= 0 {
		return errors.Wrapf(ErrParse, "malformed header line %q", line)
	}
	name := strings.ToLower(strings.TrimSpace(string(line[:colon])))
	value := strings.TrimSpace(string(line[colon+1:]))

	if existing, ok := p.request.Headers[name]; ok {
		p.request.Headers[name] = existing + ", " + value
	} else {
		p.request.Headers[name] = value
	}

	used, kind := headerNameTrie.Find([]byte(name), len(name))
	if used != len(name) {
		kind = headerCustom
	}

	switch kind {
	case headerContentLength:
		n, err := parseUnsignedInt64(value)
		if err != nil {
			return errors.Wrapf(ErrParse, "bad content-length %q", value)
		}
		p.request.HasContentLength = true
		p.request.ContentLength = n
	case headerContentType:
		mime, _, _ := parseMediaType(p.mime, value)
		if mime.Type == mimereg.Invalid {
			return errors.Wrapf(ErrParse, "bad content-type %q", value)
		}
		p.request.HasContentType = true
		p.request.ContentType = mime
	case headerContentMD5:
		decoded, ok := codec.DecodeBase64(value)
		if !ok || len(decoded) != 16 {
			return errors.Wrapf(ErrParse, "bad content-md5 %q", value)
		}
		p.request.HasContentMD5 = true
		copy(p.request.ContentMD5[:], decoded)
	case headerDate:
		ts := httpdate.Parse(value)
		if ts < 0 {
			return errors.Wrapf(ErrParse, "bad date %q", value)
		}
		p.request.HasDate = true
		p.request.Date = ts
	case headerConnection:
		used, mode := connectionTrie.Find([]byte(strings.ToLower(value)), len(value))
		if used != len(value) {
			return errors.Wrapf(ErrParse, "bad connection %q", value)
		}
		p.request.Connection = mode
	case headerExpect:
		if strings.EqualFold(value, "100-continue") {
			p.request.Expect100Continue = true
		}
	case headerFrom:
		p.request.From = value
	case headerReferer:
		p.request.Referer = value
	case headerUserAgent:
		p.request.UserAgent = value
	case headerCustom:
		if name == "accept" {
			p.request.Accept = append(p.request.Accept, parseAccept(p.mime, value)...)
		}
	}
	return nil
}

// parseMediaType parses "type/subtype;param=value;q=0.5" into its MIME
// pair, its parameter map, and a quality value with two significant
// digits (default 100, i.e. q=1.0).
func parseMediaType(set *mimereg.Set, value string) (mimereg.MIME, map[string]string, int) {
	parts := strings.Split(value, ";")
	mime := set.Parse(strings.TrimSpace(parts[0]))
	params := map[string]string{}
	quality := 100
	for _, raw := range parts[1:] {
		kv := strings.SplitN(strings.TrimSpace(raw), "=", 2)
		if len(kv) != 2 {
			continue
		}
		key, val := strings.ToLower(strings.TrimSpace(kv[0])), strings.TrimSpace(kv[1])
		params[key] = val
		if key == "q" {
			quality = parseQuality(val)
		}
	}
	return mime, params, quality
}

func parseAccept(set *mimereg.Set, value string) []AcceptEntry {
	var out []AcceptEntry
	for _, pattern := range strings.Split(value, ",") {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		mime, _, quality := parseMediaType(set, pattern)
		out = append(out, AcceptEntry{MIME: mime, Quality: quality})
	}
	return out
}

// parseQuality converts a "0".."1"[.fraction] quality value into a
// two-significant-digit integer in [0, 100].
func parseQuality(s string) int {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 {
		return 0
	}
	if f > 1 {
		f = 1
	}
	return int(f*100 + 0.5)
}

func parseUnsignedInt64(s string) (int64, error) {
	if s == "" {
		return 0, errors.New("empty integer")
	}
	var n int64
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return 0, errors.Errorf("non-digit byte %q", c)
		}
		d := int64(c - '0')
		if n > (1<<63-1-d)/10 {
			return 0, errors.New("overflow")
		}
		n = n*10 + d
	}
	return n, nil
}

func trimLeadingSpaces(b []byte) []byte {
	i := 0
	for i < len(b) && (b[i] == ' ' || b[i] == '\t') {
		i++
	}
	return b[i:]
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}
