package resolve

import (
	"strings"

	"cssimp/css"
)

// MergeMedia applies directive media condition to fetched content. Content is
// wrapped in a single @media block whose condition is exactly media, written
// verbatim, no matter what media blocks content declares itself (nested
// @media blocks narrow the outer one). Empty media leaves content as is.
func MergeMedia(media string, nodes []*css.Node) []*css.Node {
	media = strings.TrimSpace(media)
	if media == "" {
		return nodes
	}
	return []*css.Node{css.NewBlock("media", media, nodes)}
}

// applyConditions wraps fetched content into blocks implementing all import
// conditions: supports() innermost, then layer, then media.
func applyConditions(imp *css.Import, nodes []*css.Node) []*css.Node {
	if imp.Supports != "" {
		nodes = []*css.Node{css.NewBlock("supports", supportsCondition(imp.Supports), nodes)}
	}
	if imp.HasLayer {
		if imp.Layer != "" {
			nodes = []*css.Node{css.NewBlock("layer", imp.Layer, nodes)}
		} else {
			// anonymous layer has no prelude
			block := css.NewBlock("layer", "", nodes)
			block.Prelude = " "
			nodes = []*css.Node{block}
		}
	}
	return MergeMedia(imp.Media, nodes)
}

// supportsCondition turns supports() argument into @supports prelude. A bare
// declaration "display: grid" has to be parenthesized, conditions starting
// with a parenthesis or "not" are used as is.
func supportsCondition(cond string) string {
	cond = strings.TrimSpace(cond)
	if strings.HasPrefix(cond, "(") || strings.HasPrefix(strings.ToLower(cond), "not ") {
		return cond
	}
	return "(" + cond + ")"
}
