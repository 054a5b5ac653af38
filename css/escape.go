package css

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// QuoteStyle tells how a URL or string was written in the source.
type QuoteStyle int

const (
	QuoteNone   QuoteStyle = iota // url(path)
	QuoteSingle                   // 'path'
	QuoteDouble                   // "path"
)

func (q QuoteStyle) char() string {
	switch q {
	case QuoteSingle:
		return "'"
	case QuoteDouble:
		return `"`
	default:
		return ""
	}
}

// unquote removes surrounding quotes from a CSS string token and resolves
// escapes. It reports the quote style found.
func unquote(s string) (string, QuoteStyle) {
	s = strings.TrimSpace(s)
	if len(s) == 0 {
		return s, QuoteNone
	}
	var q QuoteStyle
	switch s[0] {
	case '"':
		q = QuoteDouble
	case '\'':
		q = QuoteSingle
	default:
		return unescape(s), QuoteNone
	}
	open := s[0]
	s = s[1:]
	if len(s) > 0 && s[len(s)-1] == open && !escaped(s, len(s)-1) {
		s = s[:len(s)-1]
	}
	return unescape(s), q
}

// escaped reports whether byte at i is preceded by an odd number of
// backslashes. Escaped final quote belongs to a string left unterminated at EOF.
func escaped(s string, i int) bool {
	n := 0
	for j := i - 1; j >= 0 && s[j] == '\\'; j-- {
		n++
	}
	return n%2 == 1
}

// unescape resolves CSS escape sequences: hex code points (up to six digits
// followed by optional whitespace), escaped newlines and escaped characters.
func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 >= len(s) {
			sb.WriteByte(s[i])
			continue
		}
		i++
		switch {
		case s[i] == '\n':
			// line continuation
		case isHex(s[i]):
			j := i
			for j < len(s) && j-i < 6 && isHex(s[j]) {
				j++
			}
			cp, _ := strconv.ParseUint(s[i:j], 16, 32)
			r := rune(cp)
			if r == 0 || !utf8.ValidRune(r) {
				r = utf8.RuneError
			}
			sb.WriteRune(r)
			if j < len(s) && (s[j] == ' ' || s[j] == '\t' || s[j] == '\n') {
				j++
			}
			i = j - 1
		default:
			sb.WriteByte(s[i])
		}
	}
	return sb.String()
}

func isHex(b byte) bool {
	return ('0' <= b && b <= '9') || ('a' <= b && b <= 'f') || ('A' <= b && b <= 'F')
}

// quote formats value for the requested quote style escaping what has to be
// escaped. Unquoted values are escaped for use inside url().
func quote(value string, q QuoteStyle) string {
	var sb strings.Builder
	sb.Grow(len(value) + 2)
	sb.WriteString(q.char())
	for _, r := range value {
		switch {
		case r == '\\':
			sb.WriteString(`\\`)
		case r == '\n':
			sb.WriteString(`\a `)
		case q == QuoteDouble && r == '"', q == QuoteSingle && r == '\'':
			sb.WriteByte('\\')
			sb.WriteRune(r)
		case q == QuoteNone && (r == '"' || r == '\'' || r == '(' || r == ')' || r == ' ' || r == '\t'):
			sb.WriteByte('\\')
			sb.WriteRune(r)
		default:
			sb.WriteRune(r)
		}
	}
	sb.WriteString(q.char())
	return sb.String()
}
