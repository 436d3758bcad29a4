package codec

import "github.com/pkg/errors"

// ErrTruncatedEscape is returned by PercentDecode when a '%' escape is not
// followed by two hexadecimal digits.
var ErrTruncatedEscape = errors.New("codec: truncated or non-hex percent escape")

// PercentDecode decodes "%HH" escapes in s. Unlike net/url's decoder, it is
// used on URI path, query and fragment substrings that have already been
// sliced by uri.Parse, so it operates on a plain string and returns a
// wrapped ErrTruncatedEscape (rather than a net/url-specific error type)
// for a truncated or non-hex escape, matching the failure model the
// request parser expects for every sub-parser it calls.
func PercentDecode(s string) (string, error) {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '%' {
			out = append(out, c)
			continue
		}
		if i+2 >= len(s) {
			return "", errors.Wrapf(ErrTruncatedEscape, "at offset %d", i)
		}
		hi, ok1 := fromHex(s[i+1])
		lo, ok2 := fromHex(s[i+2])
		if !ok1 || !ok2 {
			return "", errors.Wrapf(ErrTruncatedEscape, "at offset %d", i)
		}
		out = append(out, (hi<<4)|lo)
		i += 2
	}
	return string(out), nil
}

func fromHex(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	default:
		return 0, false
	}
}
