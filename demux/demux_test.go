package demux

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/badu/hutz/mimereg"
	"github.com/badu/hutz/request"
)

func textPlain(d *Demultiplexer) mimereg.MIME {
	return mimereg.MIME{Type: d.mime.Types.Register("text"), Subtype: d.mime.Subtypes.Register("plain")}
}

func appXML(d *Demultiplexer) mimereg.MIME {
	return mimereg.MIME{Type: d.mime.Types.Register("application"), Subtype: d.mime.Subtypes.Register("xml")}
}

func textHTML(d *Demultiplexer) mimereg.MIME {
	return mimereg.MIME{Type: d.mime.Types.Register("text"), Subtype: d.mime.Subtypes.Register("html")}
}

func textXML(d *Demultiplexer) mimereg.MIME {
	return mimereg.MIME{Type: d.mime.Types.Register("text"), Subtype: d.mime.Subtypes.Register("xml")}
}

func TestConnectAndDetermineRequestHandler(t *testing.T) {
	d := New(zerolog.Nop())
	plain := textPlain(d)
	xml := appXML(d)

	called := false
	h, err := d.Connect("h1", "/x", request.MethodGET, plain, xml, func(req *request.Request, resp *Response) int {
		called = true
		return 200
	})
	require.NoError(t, err)
	defer h.Close()

	req := &request.Request{
		Method:         request.MethodGET,
		HasContentType: true,
		ContentType:    plain,
		Accept:         []request.AcceptEntry{{MIME: xml, Quality: 100}},
	}
	req.URI.Path = "/x"

	holder := d.DetermineRequestHandler(req)
	require.NotNil(t, holder)
	defer holder.Release()
	require.Equal(t, 200, holder.Handler(req, &Response{}))
	require.True(t, called)
}

func TestDetermineRequestHandlerNoResource(t *testing.T) {
	d := New(zerolog.Nop())
	req := &request.Request{Method: request.MethodGET}
	req.URI.Path = "/missing"
	require.Nil(t, d.DetermineRequestHandler(req))
}

func TestDetermineRequestHandlerWildcardContentTypeNeverMatches(t *testing.T) {
	d := New(zerolog.Nop())
	plain := textPlain(d)
	xml := appXML(d)
	h, err := d.Connect("h1", "/x", request.MethodGET, plain, xml, func(*request.Request, *Response) int { return 200 })
	require.NoError(t, err)
	defer h.Close()

	req := &request.Request{Method: request.MethodGET, HasContentType: true, ContentType: mimereg.WildcardMIME}
	req.URI.Path = "/x"
	require.Nil(t, d.DetermineRequestHandler(req))
}

func TestInsertionOrderPreferenceOnWildcardAccept(t *testing.T) {
	d := New(zerolog.Nop())
	plain := textPlain(d)
	html := textHTML(d)
	xmlText := textXML(d)

	// Both h1 and h2 satisfy a (text, *) accept pattern; h1 was inserted
	// first, so it must win the tie.
	h1, err := d.Connect("h1", "/p", request.MethodGET, plain, html, func(*request.Request, *Response) int { return 1 })
	require.NoError(t, err)
	defer h1.Close()
	h2, err := d.Connect("h2", "/p", request.MethodGET, plain, xmlText, func(*request.Request, *Response) int { return 2 })
	require.NoError(t, err)
	defer h2.Close()

	req := &request.Request{
		Method: request.MethodGET, HasContentType: true, ContentType: plain,
		Accept: []request.AcceptEntry{{MIME: mimereg.MIME{Type: textTag(d), Subtype: mimereg.Wildcard}}},
	}
	req.URI.Path = "/p"

	holder := d.DetermineRequestHandler(req)
	require.NotNil(t, holder)
	defer holder.Release()
	require.Equal(t, 1, holder.Handler(req, &Response{}))
}

func textTag(d *Demultiplexer) mimereg.Tag { return d.mime.Types.Register("text") }

func TestConnectRejectsDuplicateKey(t *testing.T) {
	d := New(zerolog.Nop())
	plain := textPlain(d)
	xml := appXML(d)
	h1, err := d.Connect("h1", "/x", request.MethodGET, plain, xml, func(*request.Request, *Response) int { return 200 })
	require.NoError(t, err)
	defer h1.Close()

	_, err = d.Connect("h2", "/x", request.MethodGET, plain, xml, func(*request.Request, *Response) int { return 200 })
	require.Error(t, err)
}

func TestConnectRejectsWildcardAcceptType(t *testing.T) {
	d := New(zerolog.Nop())
	plain := textPlain(d)
	_, err := d.Connect("h1", "/x", request.MethodGET, plain, mimereg.WildcardMIME, func(*request.Request, *Response) int { return 200 })
	require.Error(t, err)
}

func TestDisconnectBlocksWhileInUse(t *testing.T) {
	d := New(zerolog.Nop())
	plain := textPlain(d)
	xml := appXML(d)
	h, err := d.Connect("h1", "/x", request.MethodGET, plain, xml, func(*request.Request, *Response) int { return 200 })
	require.NoError(t, err)

	req := &request.Request{Method: request.MethodGET, HasContentType: true, ContentType: plain,
		Accept: []request.AcceptEntry{{MIME: xml}}}
	req.URI.Path = "/x"
	holder := d.DetermineRequestHandler(req)
	require.NotNil(t, holder)

	var wg sync.WaitGroup
	wg.Add(1)
	done := make(chan struct{})
	go func() {
		defer wg.Done()
		require.NoError(t, h.Close())
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("disconnect completed while handler still in use")
	case <-time.After(50 * time.Millisecond):
	}

	holder.Release()
	wg.Wait()
}

func TestSetErrorHandlerRejectsDuplicate(t *testing.T) {
	d := New(zerolog.Nop())
	h, err := d.SetErrorHandler(404, func(*request.Request, *Response) {})
	require.NoError(t, err)
	defer h.Close()

	_, err = d.SetErrorHandler(404, func(*request.Request, *Response) {})
	require.Error(t, err)
}

func TestSnapshotReflectsRegistrations(t *testing.T) {
	d := New(zerolog.Nop())
	plain := textPlain(d)
	xml := appXML(d)
	h, err := d.Connect("h1", "/x", request.MethodGET, plain, xml, func(*request.Request, *Response) int { return 200 })
	require.NoError(t, err)
	defer h.Close()

	snap := d.Snapshot()
	require.Len(t, snap, 1)
	require.Equal(t, "/x", snap[0].Path)
	require.Equal(t, "text/plain", snap[0].ContentType)
	require.Equal(t, "application/xml", snap[0].AcceptType)
}

func TestHasResourceFalseWhenOnlyVariantDisabled(t *testing.T) {
	d := New(zerolog.Nop())
	plain := textPlain(d)
	xml := appXML(d)
	h, err := d.Connect("h1", "/x", request.MethodGET, plain, xml, func(*request.Request, *Response) int { return 200 })
	require.NoError(t, err)
	defer h.Close()

	require.True(t, d.HasResource("/x", request.MethodGET, plain))
	h.Disable()
	require.False(t, d.HasResource("/x", request.MethodGET, plain))
	h.Enable()
	require.True(t, d.HasResource("/x", request.MethodGET, plain))
}

func TestUnregisterMimeTypeRefusedWhileInUse(t *testing.T) {
	d := New(zerolog.Nop())
	plain := textPlain(d)
	xml := appXML(d)
	h, err := d.Connect("h1", "/x", request.MethodGET, plain, xml, func(*request.Request, *Response) int { return 200 })
	require.NoError(t, err)
	defer h.Close()

	require.False(t, d.UnregisterMimeType(plain.Type))
}
