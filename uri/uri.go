// Package uri parses absolute and origin-form request targets into their
// RFC 3986 components. It is deliberately narrower than net/url: only the
// schemes the HTTP request line can realistically carry (http, mailto, and
// the unknown/origin-form case) are supported, query values for repeated
// keys are joined with ",", and the path is stored byte-exact aside from
// percent-decoding.
package uri

import (
	"strconv"
	"strings"

	"github.com/badu/hutz/codec"
)

// Scheme identifies the URI scheme recognized by Parse.
type Scheme int

const (
	// SchemeNone marks an origin-form target ("/path?query") with no scheme.
	SchemeNone Scheme = iota
	SchemeHTTP
	SchemeMailto
	SchemeUnknown
)

// URI holds the decoded components of a parsed request target.
type URI struct {
	Scheme   Scheme
	UserInfo string
	Host     string
	Port     int
	Path     string
	Query    map[string]string
	Fragment string
}

// Parse parses raw into its components. It returns ok == false for an
// out-of-range or non-numeric port, a truncated or non-hex percent escape,
// or a target that neither starts with '/' nor begins with a scheme and
// ':'. Characters are not checked against the RFC 3986 character classes
// of each component.
func Parse(raw string) (u URI, ok bool) {
	u.Query = map[string]string{}

	rest := raw
	if !strings.HasPrefix(rest, "/") {
		schemeEnd := strings.IndexByte(rest, ':')
		if schemeEnd <= 0 {
			return URI{}, false
		}
		schemeName := strings.ToLower(rest[:schemeEnd])
		switch schemeName {
		case "http":
			u.Scheme = SchemeHTTP
		case "mailto":
			u.Scheme = SchemeMailto
		default:
			u.Scheme = SchemeUnknown
		}
		rest = rest[schemeEnd+1:]

		if u.Scheme != SchemeMailto && strings.HasPrefix(rest, "//") {
			rest = rest[2:]
			authEnd := strings.IndexAny(rest, "/?#")
			authority := rest
			if authEnd >= 0 {
				authority = rest[:authEnd]
				rest = rest[authEnd:]
			} else {
				rest = ""
			}
			if !parseAuthority(authority, &u) {
				return URI{}, false
			}
		} else {
			// mailto: or a scheme without an authority; whatever remains up
			// to '?'/'#' is treated as the path (e.g. the mailbox).
		}
	} else {
		u.Scheme = SchemeNone
	}

	pathEnd := strings.IndexAny(rest, "?#")
	pathPart := rest
	if pathEnd >= 0 {
		pathPart = rest[:pathEnd]
		rest = rest[pathEnd:]
	} else {
		rest = ""
	}
	decodedPath, err := codec.PercentDecode(pathPart)
	if err != nil {
		return URI{}, false
	}
	u.Path = decodedPath

	if strings.HasPrefix(rest, "?") {
		rest = rest[1:]
		queryEnd := strings.IndexByte(rest, '#')
		queryPart := rest
		if queryEnd >= 0 {
			queryPart = rest[:queryEnd]
			rest = rest[queryEnd:]
		} else {
			rest = ""
		}
		if err := parseQuery(queryPart, u.Query); err != nil {
			return URI{}, false
		}
	}

	if strings.HasPrefix(rest, "#") {
		decodedFragment, err := codec.PercentDecode(rest[1:])
		if err != nil {
			return URI{}, false
		}
		u.Fragment = decodedFragment
	}

	return u, true
}

func parseAuthority(authority string, u *URI) bool {
	if authority == "" {
		return true
	}
	hostport := authority
	if at := strings.IndexByte(authority, '@'); at >= 0 {
		userinfo, err := codec.PercentDecode(authority[:at])
		if err != nil {
			return false
		}
		u.UserInfo = userinfo
		hostport = authority[at+1:]
	}
	host := hostport
	if colon := strings.LastIndexByte(hostport, ':'); colon >= 0 {
		host = hostport[:colon]
		portStr := hostport[colon+1:]
		if portStr != "" {
			port, err := strconv.Atoi(portStr)
			if err != nil || port < 0 || port > 65535 {
				return false
			}
			u.Port = port
		}
	}
	decodedHost, err := codec.PercentDecode(host)
	if err != nil {
		return false
	}
	u.Host = decodedHost
	return true
}

func parseQuery(raw string, into map[string]string) error {
	if raw == "" {
		return nil
	}
	for _, pair := range strings.Split(raw, "&") {
		if pair == "" {
			continue
		}
		key, value, _ := strings.Cut(pair, "=")
		key, err := codec.PercentDecode(key)
		if err != nil {
			return err
		}
		value, err = codec.PercentDecode(value)
		if err != nil {
			return err
		}
		if existing, ok := into[key]; ok {
			into[key] = existing + "," + value
		} else {
			into[key] = value
		}
	}
	return nil
}
