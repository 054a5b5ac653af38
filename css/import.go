package css

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tdewolff/parse/v2/css"
)

// ErrNotImport is returned when node is not an @import rule.
var ErrNotImport = errors.New("not an @import rule")

// Import is a parsed @import directive:
//
//	@import <target> [layer | layer(name)] [supports(condition)] [media-query-list];
type Import struct {
	Target   string     // URL or path without quotes and escapes
	Quote    QuoteStyle // How target was quoted
	URLFunc  bool       // Target was written as url(...)
	HasLayer bool       // layer or layer(...) present
	Layer    string     // Layer name, empty for anonymous layer
	Supports string     // supports() condition without function wrapper
	Media    string     // Trailing media query list, verbatim

	start, end int // target position in the node prelude
}

// ParseImport extracts directive details from @import node.
func ParseImport(n *Node) (*Import, error) {
	if !n.IsAtRule("import") {
		return nil, ErrNotImport
	}
	toks, err := tokenize([]byte(n.Prelude))
	if err != nil {
		return nil, fmt.Errorf("malformed @import: %w", err)
	}
	offsets := tokenOffsets(toks)

	imp := &Import{}
	i := skipBlank(toks, 0)
	if i >= len(toks) {
		return nil, errors.New("malformed @import: missing target")
	}

	imp.start = offsets[i]
	switch t := toks[i]; {
	case t.tt == css.StringToken:
		imp.Target, imp.Quote = unquote(t.data)
		i++
	case t.tt == css.URLToken:
		imp.URLFunc = true
		imp.Target, imp.Quote = urlTokenValue(t.data)
		i++
	case t.tt == css.FunctionToken && strings.EqualFold(t.data, "url("):
		j := skipBlank(toks, i+1)
		if j >= len(toks) || toks[j].tt != css.StringToken {
			return nil, errors.New("malformed @import: bad url() target")
		}
		imp.Target, imp.Quote = unquote(toks[j].data)
		j = skipBlank(toks, j+1)
		if j >= len(toks) || toks[j].tt != css.RightParenthesisToken {
			return nil, errors.New("malformed @import: unclosed url()")
		}
		imp.URLFunc = true
		i = j + 1
	default:
		return nil, fmt.Errorf("malformed @import: unexpected %q", t.data)
	}
	imp.end = offsets[i-1] + len(toks[i-1].data)

	i = skipBlank(toks, i)
	if i < len(toks) {
		switch t := toks[i]; {
		case t.tt == css.IdentToken && strings.EqualFold(t.data, "layer"):
			imp.HasLayer = true
			i = skipBlank(toks, i+1)
		case t.tt == css.FunctionToken && strings.EqualFold(t.data, "layer("):
			var args string
			args, i = funcArgs(toks, i)
			imp.HasLayer, imp.Layer = true, strings.TrimSpace(args)
			i = skipBlank(toks, i)
		}
	}
	if i < len(toks) && toks[i].tt == css.FunctionToken && strings.EqualFold(toks[i].data, "supports(") {
		var args string
		args, i = funcArgs(toks, i)
		imp.Supports = strings.TrimSpace(args)
		i = skipBlank(toks, i)
	}
	imp.Media = strings.TrimSpace(join(toks[i:]))
	return imp, nil
}

// SetTarget replaces directive target in node n keeping the way it was
// written (quotes, url() wrapper) and everything around it intact. The node
// must be the one imp was parsed from.
func (imp *Import) SetTarget(n *Node, target string) {
	var text string
	if imp.URLFunc {
		text = "url(" + quote(target, imp.Quote) + ")"
	} else {
		text = quote(target, imp.Quote)
	}
	n.Prelude = n.Prelude[:imp.start] + text + n.Prelude[imp.end:]
	imp.end = imp.start + len(text)
	imp.Target = target
}

func tokenOffsets(toks []token) []int {
	offsets := make([]int, len(toks)+1)
	for i, t := range toks {
		offsets[i+1] = offsets[i] + len(t.data)
	}
	return offsets
}

func skipBlank(toks []token, i int) int {
	for i < len(toks) && (toks[i].tt == css.WhitespaceToken || toks[i].tt == css.CommentToken) {
		i++
	}
	return i
}

// funcArgs returns text between function token at i and its closing
// parenthesis and the index right after the parenthesis.
func funcArgs(toks []token, i int) (string, int) {
	depth := 1
	j := i + 1
	for ; j < len(toks); j++ {
		switch toks[j].tt {
		case css.FunctionToken, css.LeftParenthesisToken:
			depth++
		case css.RightParenthesisToken:
			depth--
		}
		if depth == 0 {
			return join(toks[i+1 : j]), j + 1
		}
	}
	return join(toks[i+1:]), len(toks)
}

// urlTokenValue extracts URL from url(...) token text.
func urlTokenValue(data string) (string, QuoteStyle) {
	s := data
	if len(s) >= 4 && strings.EqualFold(s[:4], "url(") {
		s = s[4:]
	}
	s = strings.TrimSuffix(s, ")")
	s = strings.TrimSpace(s)
	if len(s) > 0 && (s[0] == '"' || s[0] == '\'') {
		return unquote(s)
	}
	return unescape(s), QuoteNone
}
