package resolve

import (
	"strings"

	"go.uber.org/zap"

	"cssimp/css"
)

// RewriteURLs makes relative URL references in nodes absolute, anchored at
// origin. It covers url(), src() and image-set() references in every
// declaration (including ones inside @font-face, @media and other blocks)
// and targets of nested @import directives. Absolute URLs, data: URIs and
// fragment-only references are left alone. Returns number of rewritten
// references.
func RewriteURLs(nodes []*css.Node, origin string, log *zap.Logger) int {
	if log == nil {
		log = zap.NewNop()
	}

	resolveRef := func(ref string) (string, bool) {
		if skipReference(ref) {
			return "", false
		}
		abs, err := ResolveRelative(ref, origin)
		if err != nil {
			log.Debug("Unable to resolve relative URL", zap.String("url", ref), zap.String("origin", origin), zap.Error(err))
			return "", false
		}
		return abs, abs != ref
	}

	var count int
	css.Walk(nodes, func(n *css.Node) bool {
		switch {
		case n.Type == css.DeclNode:
			value, replaced := css.ReplaceURLs(n.Value, func(ref css.URLRef) (string, bool) {
				return resolveRef(ref.Value)
			})
			if replaced > 0 {
				n.Value = value
				count += replaced
			}
		case n.IsAtRule("import"):
			imp, err := css.ParseImport(n)
			if err != nil {
				return false
			}
			if abs, ok := resolveRef(imp.Target); ok {
				imp.SetTarget(n, abs)
				count++
			}
		}
		return true
	})
	if count > 0 {
		log.Debug("Rewrote relative URLs", zap.String("origin", origin), zap.Int("count", count))
	}
	return count
}

func skipReference(ref string) bool {
	ref = strings.TrimSpace(ref)
	return ref == "" || strings.HasPrefix(ref, "#") || IsAbsolute(ref)
}
