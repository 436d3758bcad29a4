// Package mimereg implements the MIME type/subtype registries (C4):
// two independent string<->tag tries, pre-populated with the built-in
// tokens the HTTP spec names, plus the dense, process-local tag allocator
// that backs Content-Type and Accept parsing.
package mimereg

import (
	"strings"

	"github.com/badu/hutz/trie"
)

// Tag is a dense, process-local identifier for a registered MIME type or
// subtype string. It is widened to 32 bits relative to the original
// implementation's 8/16-bit tags (see DESIGN.md) so overflow is
// unreachable in practice; overflow still degrades to Invalid rather than
// wrapping.
type Tag int32

const (
	// None marks an unset type/subtype slot.
	None Tag = 0
	// Invalid marks a parse failure or an unregistered string.
	Invalid Tag = -1
	// Wildcard matches any registered tag in Accept negotiation; it can
	// never be used as a stored handler key.
	Wildcard Tag = 1

	firstDynamicTag Tag = 2
)

// Registry owns one string<->tag mapping (used twice: once for MIME types,
// once for subtypes). It is not safe for concurrent use; callers
// (mimereg.Set, in turn used by demux.Demultiplexer) own the necessary
// locking.
type Registry struct {
	byToken *trie.Trie[Tag]
	byTag   map[Tag]string
	next    Tag
}

// NewRegistry returns a registry pre-populated with the wildcard token and
// any built-in tokens supplied by the caller (the MIME type registry seeds
// application/audio/.../video; the subtype registry seeds plain).
func NewRegistry(builtins ...string) *Registry {
	r := &Registry{
		byToken: trie.New[Tag](true),
		byTag:   map[Tag]string{},
		next:    firstDynamicTag,
	}
	r.byToken.Insert("*", Wildcard)
	r.byTag[Wildcard] = "*"
	for _, b := range builtins {
		r.Register(b)
	}
	return r
}

// Register assigns (or returns the existing) tag for token. An empty
// token, the literal "*", or tag-space exhaustion yields Invalid.
func (r *Registry) Register(token string) Tag {
	if token == "" || token == "*" {
		return Invalid
	}
	lower := strings.ToLower(token)
	if used, tag := r.byToken.Find([]byte(lower), len(lower)); used == len(lower) {
		return tag
	}
	if r.next < firstDynamicTag {
		return Invalid
	}
	tag := r.next
	if !r.byToken.Insert(lower, tag) {
		return Invalid
	}
	r.byTag[tag] = lower
	r.next++
	return tag
}

// Unregister removes tag's token. It returns false when tag was never
// registered (including Wildcard, None and Invalid, which can never be
// unregistered). Callers that must refuse unregistration while a tag is
// still referenced by a live handler registration (per spec.md §3) do that
// check one layer up, in demux.Demultiplexer, which is the source of truth
// for handler liveness.
func (r *Registry) Unregister(tag Tag) bool {
	if tag == Wildcard || tag == None || tag == Invalid {
		return false
	}
	token, ok := r.byTag[tag]
	if !ok {
		return false
	}
	delete(r.byTag, tag)
	return r.byToken.Erase(token)
}

// Parse looks up token (case-insensitively) and returns its tag, or
// Invalid if it was never registered or registration is partial (the trie
// match is shorter than token).
func (r *Registry) Parse(token string) Tag {
	lower := strings.ToLower(token)
	used, tag := r.byToken.Find([]byte(lower), len(lower))
	if used == 0 || used != len(lower) {
		return Invalid
	}
	return tag
}

// IsRegistered reports whether tag currently has a live token mapping.
func (r *Registry) IsRegistered(tag Tag) bool {
	if tag == Wildcard {
		return true
	}
	_, ok := r.byTag[tag]
	return ok
}

// String returns tag's registered token, or "" if unknown.
func (r *Registry) String(tag Tag) string {
	return r.byTag[tag]
}
