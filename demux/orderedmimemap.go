package demux

import "github.com/badu/hutz/mimereg"

// entry is one registration inside an orderedMimeMap: a handler, a usage
// counter bumped by determine_request_handler and dropped by the
// returned holder, and an enabled flag toggled by Handle.Enable/Disable.
type entry struct {
	handler Handler
	usage   int
	enabled bool
}

// orderedMimeMap is C8: per-resource accept dispatch keyed by concrete
// accept MIME, with insertion order preserved for wildcard lookups.
type orderedMimeMap struct {
	byMime map[mimereg.MIME]*entry
	order  []mimereg.MIME
}

func newOrderedMimeMap() *orderedMimeMap {
	return &orderedMimeMap{byMime: map[mimereg.MIME]*entry{}}
}

// insert rejects a wildcard mime or a duplicate key.
func (m *orderedMimeMap) insert(mime mimereg.MIME, h Handler) bool {
	if mime.HasWildcard() {
		return false
	}
	if _, exists := m.byMime[mime]; exists {
		return false
	}
	m.byMime[mime] = &entry{handler: h, enabled: true}
	m.order = append(m.order, mime)
	return true
}

// erase refuses while the entry's usage counter is nonzero.
func (m *orderedMimeMap) erase(mime mimereg.MIME) bool {
	e, ok := m.byMime[mime]
	if !ok || e.usage > 0 {
		return false
	}
	delete(m.byMime, mime)
	for i, k := range m.order {
		if k == mime {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return true
}

func (m *orderedMimeMap) empty() bool { return len(m.order) == 0 }

// anyEnabled reports whether at least one entry is currently enabled. A
// resource with every accept-variant disabled is indistinguishable from
// an unregistered one as far as a requester is concerned.
func (m *orderedMimeMap) anyEnabled() bool {
	for _, mime := range m.order {
		if m.byMime[mime].enabled {
			return true
		}
	}
	return false
}

// find resolves accept, a possibly-wildcard pattern, against the map. A
// concrete accept does a direct, enabled-only lookup. A wildcard accept
// walks insertion order and returns the first enabled concrete key that
// matches accept.
func (m *orderedMimeMap) find(accept mimereg.MIME) (concrete mimereg.MIME, e *entry, ok bool) {
	if !accept.HasWildcard() {
		e, ok = m.byMime[accept]
		if !ok || !e.enabled {
			return mimereg.MIME{}, nil, false
		}
		return accept, e, true
	}
	for _, candidate := range m.order {
		e = m.byMime[candidate]
		if !e.enabled {
			continue
		}
		if matches(candidate, accept) {
			return candidate, e, true
		}
	}
	return mimereg.MIME{}, nil, false
}

// matches reports whether the concrete candidate satisfies the (possibly
// wildcard) accept pattern, half by half.
func matches(candidate, accept mimereg.MIME) bool {
	if accept.Type != mimereg.Wildcard && accept.Type != candidate.Type {
		return false
	}
	if accept.Subtype != mimereg.Wildcard && accept.Subtype != candidate.Subtype {
		return false
	}
	return true
}

func (m *orderedMimeMap) increaseUsage(mime mimereg.MIME) {
	if e, ok := m.byMime[mime]; ok {
		e.usage++
	}
}

func (m *orderedMimeMap) decreaseUsage(mime mimereg.MIME) {
	if e, ok := m.byMime[mime]; ok && e.usage > 0 {
		e.usage--
	}
}

func (m *orderedMimeMap) isUsed(mime mimereg.MIME) bool {
	e, ok := m.byMime[mime]
	return ok && e.usage > 0
}

func (m *orderedMimeMap) setAvailability(mime mimereg.MIME, available bool) bool {
	e, ok := m.byMime[mime]
	if !ok {
		return false
	}
	e.enabled = available
	return true
}

func (m *orderedMimeMap) isAvailable(mime mimereg.MIME) bool {
	e, ok := m.byMime[mime]
	return ok && e.enabled
}
