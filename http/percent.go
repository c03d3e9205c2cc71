package http

import "strings"

// hexDigit converts one ASCII hex digit to its value, or -1 if c is not a
// hex digit. The source this is adapted from used strict '>' comparisons
// that excluded the boundary digits ('0', '9', 'a', 'z' [sic], 'A', 'Z');
// these ranges are inclusive on both ends.
func hexDigit(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10
	default:
		return -1
	}
}

// percentDecode decodes %XX escapes. If plusAsSpace is true, '+' decodes
// to a literal space (query-string convention); otherwise '+' passes
// through unchanged (path convention, per spec.md §4.7).
func percentDecode(s string, plusAsSpace bool) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '%' && i+2 < len(s):
			hi := hexDigit(s[i+1])
			lo := hexDigit(s[i+2])
			if hi >= 0 && lo >= 0 {
				b.WriteByte(byte(hi<<4 | lo))
				i += 2
				continue
			}
			b.WriteByte(c)
		case c == '+' && plusAsSpace:
			b.WriteByte(' ')
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// parseQuery splits a raw query string on '&', then each item on the
// first '=', percent-decoding both sides with '+' treated as space.
func parseQuery(raw string) map[string]string {
	out := make(map[string]string)
	if raw == "" {
		return out
	}
	for _, item := range strings.Split(raw, "&") {
		if item == "" {
			continue
		}
		key := item
		val := ""
		if idx := strings.IndexByte(item, '='); idx >= 0 {
			key = item[:idx]
			val = item[idx+1:]
		}
		out[percentDecode(key, true)] = percentDecode(val, true)
	}
	return out
}
