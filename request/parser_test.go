package request

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/badu/hutz/lexer"
	"github.com/badu/hutz/mimereg"
)

type fakeDevice struct{ data []byte }

func (f *fakeDevice) Receive(p []byte) (int, bool) {
	if len(f.data) == 0 {
		return 0, false
	}
	n := copy(p, f.data)
	f.data = f.data[n:]
	return n, true
}

func (f *fakeDevice) Send(p []byte) bool { return true }

func parse(t *testing.T, raw string) *Parser {
	t.Helper()
	dev := &fakeDevice{data: []byte(raw)}
	l := lexer.New(dev)
	require.True(t, l.FetchHeader())
	p := New(l, mimereg.NewSet(), zerolog.Nop())
	require.NoError(t, p.Parse())
	require.Equal(t, StateSucceeded, p.State())
	return p
}

func TestParseMinimalGet(t *testing.T) {
	p := parse(t, "GET /a/b HTTP/1.1\r\nHost: example.com\r\n\r\n")
	r := p.Request()
	require.Equal(t, MethodGET, r.Method)
	require.Equal(t, "/a/b", r.Target)
	require.Equal(t, VersionHTTP11, r.Version)
	require.Equal(t, ConnectionKeepAlive, r.Connection)
	require.Equal(t, "example.com", r.Headers["host"])
}

func TestParsePostWithContentType(t *testing.T) {
	p := parse(t, "POST /upload HTTP/1.1\r\nContent-Type: text/plain;q=0.8\r\nContent-Length: 11\r\n\r\n")
	r := p.Request()
	require.Equal(t, MethodPOST, r.Method)
	require.True(t, r.HasContentType)
	require.True(t, r.HasContentLength)
	require.EqualValues(t, 11, r.ContentLength)
}

func TestParseAcceptOrderingPreserved(t *testing.T) {
	p := parse(t, "GET / HTTP/1.1\r\nAccept: text/plain;q=0.5, */*;q=0.1\r\n\r\n")
	r := p.Request()
	require.Len(t, r.Accept, 2)
	require.Equal(t, 50, r.Accept[0].Quality)
	require.Equal(t, 10, r.Accept[1].Quality)
	require.True(t, r.Accept[1].MIME.HasWildcard())
}

func TestParseLineFolding(t *testing.T) {
	p := parse(t, "GET / HTTP/1.0\r\nX-Foo: a\r\n b\r\n\r\n")
	r := p.Request()
	require.Equal(t, "a b", r.Headers["x-foo"])
	require.Equal(t, ConnectionClose, r.Connection)
}

func TestParseRepeatedHeadersCommaJoined(t *testing.T) {
	p := parse(t, "GET / HTTP/1.1\r\nAllow: HEAD\r\nAllow: GET\r\n\r\n")
	r := p.Request()
	require.Equal(t, "HEAD, GET", r.Headers["allow"])
}

func TestParseRFC850Date(t *testing.T) {
	p := parse(t, "GET / HTTP/1.1\r\nDate: Sunday, 06-Nov-94 08:49:37 GMT\r\n\r\n")
	r := p.Request()
	require.True(t, r.HasDate)
	require.EqualValues(t, 784111777, r.Date)
}

func TestParseConnectionClose(t *testing.T) {
	p := parse(t, "GET / HTTP/1.1\r\nConnection: close\r\n\r\n")
	require.Equal(t, ConnectionClose, p.Request().Connection)
}

func TestParseExpect100Continue(t *testing.T) {
	p := parse(t, "POST / HTTP/1.1\r\nExpect: 100-continue\r\n\r\n")
	require.True(t, p.Request().Expect100Continue)
}

func TestParseUnrecognizedMethodFails(t *testing.T) {
	dev := &fakeDevice{data: []byte("FOO / HTTP/1.1\r\n\r\n")}
	l := lexer.New(dev)
	require.True(t, l.FetchHeader())
	p := New(l, mimereg.NewSet(), zerolog.Nop())
	require.Error(t, p.Parse())
	require.Equal(t, StateError, p.State())
}

func TestParseBadContentMD5Fails(t *testing.T) {
	dev := &fakeDevice{data: []byte("GET / HTTP/1.1\r\nContent-MD5: x\r\n\r\n")}
	l := lexer.New(dev)
	require.True(t, l.FetchHeader())
	p := New(l, mimereg.NewSet(), zerolog.Nop())
	require.Error(t, p.Parse())
}

func TestParseAssignsCorrelationID(t *testing.T) {
	p := parse(t, "GET / HTTP/1.1\r\n\r\n")
	require.NotEqual(t, [16]byte{}, [16]byte(p.Request().CorrelationID))
}
