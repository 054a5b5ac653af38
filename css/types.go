package css

import (
	"io"
	"strings"
)

// NodeType identifies kind of a stylesheet node.
type NodeType int

const (
	TextNode   NodeType = iota // Whitespace, comments, CDO/CDC and other inert text
	AtRuleNode                 // @-rule with or without a block
	RuleNode                   // Qualified rule (selector + block)
	DeclNode                   // Property declaration
)

// String returns the name of the node type.
func (t NodeType) String() string {
	switch t {
	case TextNode:
		return "text"
	case AtRuleNode:
		return "at-rule"
	case RuleNode:
		return "rule"
	case DeclNode:
		return "declaration"
	default:
		return "unknown"
	}
}

// Node is a single item of the stylesheet tree. Nodes keep the exact source
// text of all their parts, so writing back a node nobody touched reproduces
// the input byte for byte.
//
// Serialized form per type:
//
//	TextNode:   Value
//	AtRuleNode: Name Prelude Term               (no block)
//	AtRuleNode: Name Prelude "{" Children Term  (with block)
//	RuleNode:   Prelude "{" Children Term
//	DeclNode:   Name Prelude Value Term
type Node struct {
	Type     NodeType
	Name     string  // At-keyword including '@' or property name, as written
	Prelude  string  // At-rule parameters, rule selector, or declaration colon with surrounding whitespace
	Value    string  // Declaration value or text content
	Children []*Node // Block content
	Block    bool    // true if the node has a {} block
	Term     string  // ";" or "}" as written, empty when input ended or parent block closed first
	Line     int     // Line number in source for diagnostics, 0 for synthesized nodes
}

// IsAtRule reports whether node is an at-rule with the given name (without
// '@', case-insensitive).
func (n *Node) IsAtRule(name string) bool {
	return n != nil && n.Type == AtRuleNode && strings.EqualFold(strings.TrimPrefix(n.Name, "@"), name)
}

// Params returns trimmed at-rule parameters or rule selector.
func (n *Node) Params() string {
	return strings.TrimSpace(n.Prelude)
}

// Property returns lowercased declaration property name.
func (n *Node) Property() string {
	if n.Type != DeclNode {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(n.Name))
}

// NewText returns synthesized text node.
func NewText(text string) *Node {
	return &Node{Type: TextNode, Value: text}
}

// NewBlock returns synthesized at-rule with a block wrapping nodes, formatted
// as "@name prelude {\n...\n}".
func NewBlock(name, prelude string, nodes []*Node) *Node {
	children := make([]*Node, 0, len(nodes)+2)
	children = append(children, NewText("\n"))
	children = append(children, nodes...)
	children = append(children, NewText("\n"))
	return &Node{
		Type:     AtRuleNode,
		Name:     "@" + strings.TrimPrefix(name, "@"),
		Prelude:  " " + strings.TrimSpace(prelude) + " ",
		Children: children,
		Block:    true,
		Term:     "}",
	}
}

// Clone returns deep copy of the node.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	c := *n
	if n.Children != nil {
		c.Children = CloneNodes(n.Children)
	}
	return &c
}

// CloneNodes returns deep copy of the node list.
func CloneNodes(nodes []*Node) []*Node {
	out := make([]*Node, len(nodes))
	for i, n := range nodes {
		out[i] = n.Clone()
	}
	return out
}

// Walk calls fn for every node in depth-first document order. Children are
// skipped when fn returns false.
func Walk(nodes []*Node, fn func(n *Node) bool) {
	for _, n := range nodes {
		if fn(n) && len(n.Children) > 0 {
			Walk(n.Children, fn)
		}
	}
}

// Stylesheet represents a parsed CSS stylesheet.
type Stylesheet struct {
	Nodes  []*Node // Top-level nodes in source order
	Source string  // Where stylesheet came from (file name or URL), may be empty
}

// Imports returns all top-level @import nodes in source order.
func (s *Stylesheet) Imports() []*Node {
	var imports []*Node
	for _, n := range s.Nodes {
		if n.IsAtRule("import") {
			imports = append(imports, n)
		}
	}
	return imports
}

// WriteTo writes the stylesheet to w in source order, implementing io.WriterTo.
func (s *Stylesheet) WriteTo(w io.Writer) (int64, error) {
	return writeNodes(w, s.Nodes)
}

// String returns the CSS text of the stylesheet.
func (s *Stylesheet) String() string {
	var sb strings.Builder
	s.WriteTo(&sb) //nolint:errcheck
	return sb.String()
}

// String returns the CSS text of a single node.
func (n *Node) String() string {
	var sb strings.Builder
	writeNode(&sb, n) //nolint:errcheck
	return sb.String()
}

// NodesString returns the CSS text of the node list.
func NodesString(nodes []*Node) string {
	var sb strings.Builder
	writeNodes(&sb, nodes) //nolint:errcheck
	return sb.String()
}

func writeNodes(w io.Writer, nodes []*Node) (int64, error) {
	var total int64
	for _, n := range nodes {
		written, err := writeNode(w, n)
		total += written
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func writeNode(w io.Writer, n *Node) (int64, error) {
	var parts []string
	switch n.Type {
	case TextNode:
		parts = []string{n.Value}
	case DeclNode:
		parts = []string{n.Name, n.Prelude, n.Value}
	case AtRuleNode:
		parts = []string{n.Name, n.Prelude}
	case RuleNode:
		parts = []string{n.Prelude}
	}

	var total int64
	for _, p := range parts {
		written, err := io.WriteString(w, p)
		total += int64(written)
		if err != nil {
			return total, err
		}
	}

	if n.Block {
		written, err := io.WriteString(w, "{")
		total += int64(written)
		if err != nil {
			return total, err
		}
		nested, err := writeNodes(w, n.Children)
		total += nested
		if err != nil {
			return total, err
		}
	}

	if n.Type != TextNode {
		written, err := io.WriteString(w, n.Term)
		total += int64(written)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
