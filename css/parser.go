package css

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	parse "github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
	"go.uber.org/zap"
)

// ErrSyntax is matched by every error Parse returns for malformed input.
var ErrSyntax = errors.New("invalid stylesheet syntax")

// SyntaxError describes where and why parsing failed.
type SyntaxError struct {
	Source string
	Line   int
	Msg    string
}

func (e *SyntaxError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("%s:%d: %s", e.Source, e.Line, e.Msg)
	}
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

// Is makes errors.Is(err, ErrSyntax) work for all syntax errors.
func (e *SyntaxError) Is(target error) bool {
	return target == ErrSyntax
}

// Parser parses CSS stylesheets into lossless node trees.
type Parser struct {
	log *zap.Logger
}

// NewParser creates a new CSS parser.
func NewParser(log *zap.Logger) *Parser {
	if log == nil {
		log = zap.NewNop()
	}
	return &Parser{log: log.Named("css-parser")}
}

// Parse parses CSS text into a Stylesheet.
// The optional source parameter identifies what's being parsed (for logging and errors).
func (p *Parser) Parse(data []byte, source ...string) (*Stylesheet, error) {
	var src string
	if len(source) > 0 {
		src = source[0]
	}
	if src != "" {
		p.log.Debug("Parsing CSS", zap.String("source", src), zap.Int("bytes", len(data)))
	}

	toks, err := tokenize(data)
	if err != nil {
		var se *SyntaxError
		if errors.As(err, &se) {
			se.Source = src
		}
		p.log.Debug("CSS parse error", zap.String("source", src), zap.Error(err))
		return nil, err
	}

	c := &cursor{toks: toks, source: src}
	nodes, _, err := c.parseList(false)
	if err != nil {
		p.log.Debug("CSS parse error", zap.String("source", src), zap.Error(err))
		return nil, err
	}
	return &Stylesheet{Nodes: nodes, Source: src}, nil
}

type token struct {
	tt   css.TokenType
	data string
	line int
}

// tokenize splits input into lexer tokens. Token texts concatenated give back
// the input exactly. Data is never written to, the same fetched body may be
// parsed by several goroutines at once.
func tokenize(data []byte) ([]token, error) {
	lexer := css.NewLexer(parse.NewInput(bytes.NewReader(data)))

	var (
		toks     []token
		line     = 1
		consumed int
	)
	for {
		tt, b := lexer.Next()
		if tt == css.ErrorToken {
			if err := lexer.Err(); err != nil && err != io.EOF {
				return nil, &SyntaxError{Line: line, Msg: err.Error()}
			}
			if consumed < len(data) {
				return nil, &SyntaxError{Line: line, Msg: fmt.Sprintf("unexpected character at offset %d", consumed)}
			}
			return toks, nil
		}
		switch tt {
		case css.BadStringToken:
			return nil, &SyntaxError{Line: line, Msg: "unterminated string"}
		case css.BadURLToken:
			return nil, &SyntaxError{Line: line, Msg: "malformed url()"}
		}
		s := string(b)
		toks = append(toks, token{tt: tt, data: s, line: line})
		line += strings.Count(s, "\n")
		consumed += len(b)
	}
}

func join(toks []token) string {
	var sb strings.Builder
	for _, t := range toks {
		sb.WriteString(t.data)
	}
	return sb.String()
}

type cursor struct {
	toks   []token
	pos    int
	source string
}

func (c *cursor) eof() bool {
	return c.pos >= len(c.toks)
}

func (c *cursor) peek() token {
	return c.toks[c.pos]
}

func (c *cursor) next() token {
	t := c.toks[c.pos]
	c.pos++
	return t
}

func (c *cursor) line() int {
	if len(c.toks) == 0 {
		return 1
	}
	last := c.toks[len(c.toks)-1]
	return last.line + strings.Count(last.data, "\n")
}

func (c *cursor) errorf(line int, format string, args ...any) error {
	return &SyntaxError{Source: c.source, Line: line, Msg: fmt.Sprintf(format, args...)}
}

// parseList parses a list of nodes until the end of input (top level) or the
// closing brace of the current block (nested). Returns the closing brace text
// for nested lists.
func (c *cursor) parseList(nested bool) ([]*Node, string, error) {
	var nodes []*Node
	for {
		if c.eof() {
			if nested {
				return nil, "", c.errorf(c.line(), "unexpected end of input, block is not closed")
			}
			return nodes, "", nil
		}

		t := c.peek()
		switch t.tt {
		case css.WhitespaceToken, css.CommentToken, css.CDOToken, css.CDCToken:
			c.next()
			nodes = appendText(nodes, t)

		case css.RightBraceToken:
			if !nested {
				return nil, "", c.errorf(t.line, "unexpected '}'")
			}
			c.next()
			return nodes, t.data, nil

		case css.AtKeywordToken:
			n, err := c.parseAtRule()
			if err != nil {
				return nil, "", err
			}
			nodes = append(nodes, n)

		default:
			n, err := c.parseQualified(nested)
			if err != nil {
				return nil, "", err
			}
			nodes = append(nodes, n)
		}
	}
}

func appendText(nodes []*Node, t token) []*Node {
	if k := len(nodes); k > 0 && nodes[k-1].Type == TextNode {
		nodes[k-1].Value += t.data
		return nodes
	}
	return append(nodes, &Node{Type: TextNode, Value: t.data, Line: t.line})
}

// collect gathers tokens up to the first ';', '{' or '}' outside of any
// parentheses or brackets. The stop token is not consumed, found is false
// when input ended first.
func (c *cursor) collect() (toks []token, stop token, found bool) {
	depth := 0
	for !c.eof() {
		t := c.peek()
		switch t.tt {
		case css.FunctionToken, css.LeftParenthesisToken, css.LeftBracketToken:
			depth++
		case css.RightParenthesisToken, css.RightBracketToken:
			if depth > 0 {
				depth--
			}
		case css.SemicolonToken, css.LeftBraceToken, css.RightBraceToken:
			if depth == 0 {
				return toks, t, true
			}
		}
		toks = append(toks, t)
		c.next()
	}
	return toks, token{}, false
}

func (c *cursor) parseAtRule() (*Node, error) {
	kw := c.next()
	n := &Node{Type: AtRuleNode, Name: kw.data, Line: kw.line}

	prelude, stop, found := c.collect()
	n.Prelude = join(prelude)
	if !found {
		return n, nil
	}

	switch stop.tt {
	case css.SemicolonToken:
		c.next()
		n.Term = stop.data
	case css.LeftBraceToken:
		c.next()
		children, term, err := c.parseList(true)
		if err != nil {
			return nil, err
		}
		n.Block, n.Children, n.Term = true, children, term
	}
	// closing brace belongs to the parent block
	return n, nil
}

func (c *cursor) parseQualified(nested bool) (*Node, error) {
	first := c.peek()
	toks, stop, found := c.collect()

	if found && stop.tt == css.LeftBraceToken {
		c.next()
		children, term, err := c.parseList(true)
		if err != nil {
			return nil, err
		}
		return &Node{Type: RuleNode, Prelude: join(toks), Block: true, Children: children, Term: term, Line: first.line}, nil
	}

	if len(toks) == 0 {
		// stray semicolon
		c.next()
		return &Node{Type: TextNode, Value: stop.data, Line: stop.line}, nil
	}

	if !nested {
		text := strings.TrimSpace(join(toks))
		if len(text) > 40 {
			text = text[:40] + "..."
		}
		return nil, c.errorf(first.line, "unexpected %q outside of a rule block", text)
	}

	n := declaration(toks)
	if found && stop.tt == css.SemicolonToken {
		c.next()
		if n.Type == TextNode {
			n.Value += stop.data
		} else {
			n.Term = stop.data
		}
	}
	return n, nil
}

// declaration builds declaration node from "name : value" tokens, anything
// else is kept as inert text.
func declaration(toks []token) *Node {
	if len(toks) >= 2 && (toks[0].tt == css.IdentToken || toks[0].tt == css.CustomPropertyNameToken) {
		i := 1
		for i < len(toks) && toks[i].tt == css.WhitespaceToken {
			i++
		}
		if i < len(toks) && toks[i].tt == css.ColonToken {
			i++
			for i < len(toks) && (toks[i].tt == css.WhitespaceToken || toks[i].tt == css.CommentToken) {
				i++
			}
			return &Node{
				Type:    DeclNode,
				Name:    toks[0].data,
				Prelude: join(toks[1:i]),
				Value:   join(toks[i:]),
				Line:    toks[0].line,
			}
		}
	}
	return &Node{Type: TextNode, Value: join(toks), Line: toks[0].line}
}
