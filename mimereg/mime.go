package mimereg

import "strings"

// MIME is a (type, subtype) tag pair, e.g. (text, plain). Either half may
// be Wildcard, None or Invalid; spec.md's invariant that type==None iff
// subtype==None only holds for values that went through Set.Parse or were
// built from two registered tags, not for ad hoc pairs.
type MIME struct {
	Type    Tag
	Subtype Tag
}

// NoneMIME is the unset MIME value.
var NoneMIME = MIME{Type: None, Subtype: None}

// WildcardMIME matches any concrete MIME pair during accept negotiation.
var WildcardMIME = MIME{Type: Wildcard, Subtype: Wildcard}

// HasWildcard reports whether either half of m is Wildcard.
func (m MIME) HasWildcard() bool {
	return m.Type == Wildcard || m.Subtype == Wildcard
}

// IsValid reports whether both halves are registered, concrete tags.
func (m MIME) IsValid(set *Set) bool {
	return !m.HasWildcard() &&
		m.Type != Invalid && m.Type != None &&
		m.Subtype != Invalid && m.Subtype != None &&
		set.Types.IsRegistered(m.Type) && set.Subtypes.IsRegistered(m.Subtype)
}

// Set bundles the type and subtype registries that together parse a
// "type/subtype" media-type token (C4). A Demultiplexer owns exactly one
// Set.
type Set struct {
	Types    *Registry
	Subtypes *Registry
}

var builtinTypes = []string{
	"application", "audio", "example", "image", "message",
	"model", "multipart", "text", "video",
}

var builtinSubtypes = []string{"plain"}

// NewSet returns a Set pre-populated with the built-in types and subtypes
// spec.md §4.4 names.
func NewSet() *Set {
	return &Set{
		Types:    NewRegistry(builtinTypes...),
		Subtypes: NewRegistry(builtinSubtypes...),
	}
}

// Parse splits data on the first '/' and resolves each half against the
// type and subtype registries respectively. It stops at the first
// whitespace byte (trailing ";q=..." parameters are the request parser's
// job, not this one's). Returns (Invalid, Invalid) when either half fails
// to resolve to a whole, registered token.
func (s *Set) Parse(data string) MIME {
	if idx := strings.IndexAny(data, " \t"); idx >= 0 {
		data = data[:idx]
	}
	slash := strings.IndexByte(data, '/')
	if slash < 0 {
		return MIME{Invalid, Invalid}
	}
	typeTok, subtypeTok := data[:slash], data[slash+1:]
	t := s.Types.Parse(typeTok)
	st := s.Subtypes.Parse(subtypeTok)
	if t == Invalid || st == Invalid {
		return MIME{Invalid, Invalid}
	}
	return MIME{t, st}
}

// Format renders m as "type/subtype" using the registered token strings.
func (s *Set) Format(m MIME) string {
	return s.Types.String(m.Type) + "/" + s.Subtypes.String(m.Subtype)
}
