package demux

import (
	"net/http"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/badu/hutz/mimereg"
	"github.com/badu/hutz/request"
)

// ErrConflict is returned by Connect or SetErrorHandler when a
// registration already exists for the requested key.
var ErrConflict = errors.New("demux: registration conflict")

// ErrUnregisterRefused is returned by Handle.Close when the handle's
// accept variant is no longer registered under its resource key. The MIME
// unregister calls report a refusal as a false result instead.
var ErrUnregisterRefused = errors.New("demux: unregister refused")

// ConflictError carries the resource key a failed Connect collided on.
type ConflictError struct {
	Key ResourceKey
}

func (e *ConflictError) Error() string {
	return errors.Wrapf(ErrConflict, "resource %s %v %s", e.Key.Path, e.Key.Method, e.Key.ContentType).Error()
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// Demultiplexer is C9: the resource registry, MIME registry, and the
// mutex/condition-variable pair serializing both. One Demultiplexer
// instance owns its own tries (via mimereg.NewSet); instances never
// share state, matching spec.md §9's "replicate as instance-owned, not
// process-global" guidance.
type Demultiplexer struct {
	mu    sync.Mutex
	cond  *sync.Cond
	res   map[ResourceKey]*orderedMimeMap
	mime  *mimereg.Set
	errs  map[int]*errorHandlerEntry
	log   zerolog.Logger
	stats *metrics
}

type errorHandlerEntry struct {
	callback func(req *request.Request, resp *Response)
	enabled  bool
}

// New returns an empty Demultiplexer. A zero logger discards all output.
func New(logger zerolog.Logger) *Demultiplexer {
	d := &Demultiplexer{
		res:   map[ResourceKey]*orderedMimeMap{},
		mime:  mimereg.NewSet(),
		errs:  map[int]*errorHandlerEntry{},
		log:   logger,
		stats: newMetrics(),
	}
	d.cond = sync.NewCond(&d.mu)
	return d
}

// Metrics exposes the demultiplexer's Prometheus metrics for scraping.
func (d *Demultiplexer) Metrics() http.Handler { return d.stats.Handler() }

// MimeSet returns the registry pair backing this demultiplexer's
// content-type and accept resolution, so a request.Parser can resolve
// the same tags Connect validated against.
func (d *Demultiplexer) MimeSet() *mimereg.Set { return d.mime }

// SnapshotEntry describes one registered (resource, accept-variant) pair,
// rendered as strings for persistence outside this package.
type SnapshotEntry struct {
	Path        string
	Method      string
	ContentType string
	AcceptType  string
}

// Snapshot returns every currently registered (resource, accept-variant)
// pair, for diagnostic persistence (store/resource) rather than request
// dispatch.
func (d *Demultiplexer) Snapshot() []SnapshotEntry {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []SnapshotEntry
	for key, m := range d.res {
		for _, accept := range m.order {
			out = append(out, SnapshotEntry{
				Path:        key.Path,
				Method:      key.Method.String(),
				ContentType: d.mime.Format(key.ContentType),
				AcceptType:  d.mime.Format(accept),
			})
		}
	}
	return out
}

// HasResource reports whether at least one enabled accept variant is
// registered for the given (path, method, content-type) key, regardless
// of whether any of them currently matches a given accept pattern. The
// processor uses this to distinguish 404 (no resource, or every variant
// disabled) from 406 (an enabled variant exists, but none is acceptable).
func (d *Demultiplexer) HasResource(path string, method request.Method, contentType mimereg.MIME) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := ResourceKey{Path: path, Method: method, ContentType: contentType}
	m, ok := d.res[key]
	return ok && m.anyEnabled()
}

// Handle is returned by Connect. Close disconnects; Enable/Disable/
// IsEnabled toggle the registration without removing it.
type Handle struct {
	d         *Demultiplexer
	key       ResourceKey
	accept    mimereg.MIME
	handlerID string
	closed    bool
}

// Close disconnects the handler this handle registered. It blocks if the
// handler is currently in use by an in-flight request.
func (h *Handle) Close() error {
	if h.closed {
		return nil
	}
	h.closed = true
	return h.d.disconnect(h.key, h.accept)
}

// Enable re-activates the registration for accept-pattern dispatch.
func (h *Handle) Enable() { h.d.setAvailability(h.key, h.accept, true) }

// Disable deactivates the registration without removing it.
func (h *Handle) Disable() { h.d.setAvailability(h.key, h.accept, false) }

// IsEnabled reports whether the registration currently dispatches.
func (h *Handle) IsEnabled() bool { return h.d.isEnabled(h.key, h.accept) }

// Connect registers handler for the (path, method, contentType) resource
// key, dispatching to it when a request's accept pattern resolves to
// acceptType. Neither contentType nor acceptType may contain a wildcard
// component, and path must be non-empty and free of '?' or '#'.
func (d *Demultiplexer) Connect(handlerID, path string, method request.Method, contentType, acceptType mimereg.MIME, handler Handler) (*Handle, error) {
	if path == "" || containsAny(path, "?#") {
		return nil, errors.Errorf("demux: invalid resource path %q", path)
	}
	if contentType.HasWildcard() || acceptType.HasWildcard() {
		return nil, errors.New("demux: content-type and accept-type must be concrete")
	}
	if !contentType.IsValid(d.mime) || !acceptType.IsValid(d.mime) {
		return nil, errors.New("demux: content-type or accept-type not registered")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	key := ResourceKey{Path: path, Method: method, ContentType: contentType}
	m, ok := d.res[key]
	if !ok {
		m = newOrderedMimeMap()
		d.res[key] = m
	}
	if !m.insert(acceptType, handler) {
		return nil, &ConflictError{Key: key}
	}
	d.stats.resources.Set(float64(len(d.res)))
	d.log.Debug().Str("handler_id", handlerID).Str("path", path).Msg("demux: connected")

	return &Handle{d: d, key: key, accept: acceptType, handlerID: handlerID}, nil
}

func (d *Demultiplexer) disconnect(key ResourceKey, accept mimereg.MIME) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	m, ok := d.res[key]
	if !ok {
		return errors.New("demux: unknown resource")
	}
	for !m.erase(accept) {
		if !m.isUsed(accept) {
			return ErrUnregisterRefused
		}
		d.cond.Wait()
	}
	if m.empty() {
		delete(d.res, key)
		d.stats.resources.Set(float64(len(d.res)))
	}
	return nil
}

func (d *Demultiplexer) setAvailability(key ResourceKey, accept mimereg.MIME, available bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if m, ok := d.res[key]; ok {
		m.setAvailability(accept, available)
	}
}

func (d *Demultiplexer) isEnabled(key ResourceKey, accept mimereg.MIME) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	m, ok := d.res[key]
	return ok && m.isAvailable(accept)
}

// RegisterMimeType registers token in the type registry.
func (d *Demultiplexer) RegisterMimeType(token string) mimereg.Tag {
	d.mu.Lock()
	defer d.mu.Unlock()
	tag := d.mime.Types.Register(token)
	d.stats.mimeChurn.WithLabelValues("type", outcome(tag)).Inc()
	return tag
}

// RegisterMimeSubtype registers token in the subtype registry.
func (d *Demultiplexer) RegisterMimeSubtype(token string) mimereg.Tag {
	d.mu.Lock()
	defer d.mu.Unlock()
	tag := d.mime.Subtypes.Register(token)
	d.stats.mimeChurn.WithLabelValues("subtype", outcome(tag)).Inc()
	return tag
}

// UnregisterMimeType removes tag, refusing while any resource still
// references it as a content-type or accept-type.
func (d *Demultiplexer) UnregisterMimeType(tag mimereg.Tag) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.tagInUse(func(m mimereg.MIME) mimereg.Tag { return m.Type }, tag) {
		d.stats.mimeChurn.WithLabelValues("type", outcome2(false)).Inc()
		return false
	}
	ok := d.mime.Types.Unregister(tag)
	d.stats.mimeChurn.WithLabelValues("type", outcome2(ok)).Inc()
	return ok
}

// UnregisterMimeSubtype removes tag, refusing while any resource still
// references it as a content-type or accept-type.
func (d *Demultiplexer) UnregisterMimeSubtype(tag mimereg.Tag) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.tagInUse(func(m mimereg.MIME) mimereg.Tag { return m.Subtype }, tag) {
		d.stats.mimeChurn.WithLabelValues("subtype", outcome2(false)).Inc()
		return false
	}
	ok := d.mime.Subtypes.Unregister(tag)
	d.stats.mimeChurn.WithLabelValues("subtype", outcome2(ok)).Inc()
	return ok
}

func (d *Demultiplexer) tagInUse(half func(mimereg.MIME) mimereg.Tag, tag mimereg.Tag) bool {
	for key, m := range d.res {
		if half(key.ContentType) == tag {
			return true
		}
		for _, accept := range m.order {
			if half(accept) == tag {
				return true
			}
		}
	}
	return false
}

// HandlerHolder keeps a resolved handler's usage counter bumped for the
// duration of one request. Release (or Close) must be called exactly
// once, typically via defer, to avoid blocking a concurrent Disconnect
// forever.
type HandlerHolder struct {
	d       *Demultiplexer
	key     ResourceKey
	accept  mimereg.MIME
	Handler Handler
}

// Release drops the usage counter and wakes any Disconnect waiting on it.
func (h *HandlerHolder) Release() {
	h.d.mu.Lock()
	defer h.d.mu.Unlock()
	if m, ok := h.d.res[h.key]; ok {
		m.decreaseUsage(h.accept)
	}
	h.d.stats.handlersInFlight.WithLabelValues(h.key.Path, h.key.Method.String()).Dec()
	h.d.cond.Broadcast()
}

// Close is an alias for Release, for callers that prefer io.Closer.
func (h *HandlerHolder) Close() error { h.Release(); return nil }

// DetermineRequestHandler resolves req to a handler, per spec.md §4.9:
// a wildcard content-type never matches, accept patterns are tried in
// header order, and (WILDCARD, WILDCARD) is tried last. Returns nil when
// nothing matches; callers distinguish 404 (no resource) from 406
// (resource exists, no acceptable representation) themselves.
func (d *Demultiplexer) DetermineRequestHandler(req *request.Request) *HandlerHolder {
	if req.HasContentType && req.ContentType.HasWildcard() {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	key := ResourceKey{Path: req.URI.Path, Method: req.Method, ContentType: req.ContentType}
	m, ok := d.res[key]
	if !ok {
		return nil
	}

	it := req.AcceptIter()
	for entry, hasMore := it.Next(); ; entry, hasMore = it.Next() {
		if entry.MIME.Type != mimereg.None && entry.MIME.Type != mimereg.Invalid && entry.MIME.Subtype != mimereg.Invalid {
			if concrete, e, found := m.find(entry.MIME); found {
				return d.hold(key, concrete, e, m)
			}
		}
		if !hasMore {
			break
		}
	}

	if concrete, e, found := m.find(mimereg.WildcardMIME); found {
		return d.hold(key, concrete, e, m)
	}
	return nil
}

func (d *Demultiplexer) hold(key ResourceKey, accept mimereg.MIME, e *entry, m *orderedMimeMap) *HandlerHolder {
	m.increaseUsage(accept)
	d.stats.handlersInFlight.WithLabelValues(key.Path, key.Method.String()).Inc()
	return &HandlerHolder{d: d, key: key, accept: accept, Handler: e.handler}
}

// SetErrorHandler registers callback for status code, failing if a
// handler for that code already exists.
func (d *Demultiplexer) SetErrorHandler(code int, callback func(req *request.Request, resp *Response)) (*ErrorHandle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.errs[code]; exists {
		return nil, errors.Wrapf(ErrConflict, "error handler for status %d", code)
	}
	d.errs[code] = &errorHandlerEntry{callback: callback, enabled: true}
	return &ErrorHandle{d: d, code: code}, nil
}

// ErrorHandler looks up the registered, enabled callback for code.
func (d *Demultiplexer) ErrorHandler(code int) (func(req *request.Request, resp *Response), bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.errs[code]
	if !ok || !e.enabled {
		return nil, false
	}
	return e.callback, true
}

// ErrorHandle is returned by SetErrorHandler; Close removes the entry.
type ErrorHandle struct {
	d    *Demultiplexer
	code int
}

// Close removes the error handler registration.
func (h *ErrorHandle) Close() error {
	h.d.mu.Lock()
	defer h.d.mu.Unlock()
	delete(h.d.errs, h.code)
	return nil
}

func outcome(tag mimereg.Tag) string {
	if tag == mimereg.Invalid {
		return "failed"
	}
	return "ok"
}

func outcome2(ok bool) string {
	if ok {
		return "ok"
	}
	return "failed"
}

func containsAny(s, chars string) bool {
	for _, c := range []byte(s) {
		for _, want := range []byte(chars) {
			if c == want {
				return true
			}
		}
	}
	return false
}
