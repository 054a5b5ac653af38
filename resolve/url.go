package resolve

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// schemePattern matches RFC 3986 scheme followed by colon.
var schemePattern = regexp.MustCompile(`^([a-zA-Z][a-zA-Z0-9+.\-]*):`)

// Target is the classification of an @import target.
type Target struct {
	URL    string // Absolute URL for remote targets, original path for local ones
	Remote bool
}

// Classify decides whether target addresses a network resource. Targets with
// a network scheme ("scheme://", except file) and scheme-relative targets are
// remote. Relative targets found inside a document fetched from the network
// are remote too and get resolved against that document origin. Everything
// else is local and is never touched.
func Classify(target, origin string) Target {
	target = strings.TrimSpace(target)
	local := Target{URL: target}
	if target == "" {
		return local
	}

	if strings.HasPrefix(target, "//") {
		scheme := "https"
		if IsRemote(origin) {
			scheme = schemeOf(origin)
		}
		abs, err := normalize(scheme + ":" + target)
		if err != nil {
			return local
		}
		return Target{URL: abs, Remote: true}
	}

	if scheme := schemeOf(target); scheme != "" {
		if !isNetworkScheme(target, scheme) {
			return local
		}
		abs, err := normalize(target)
		if err != nil {
			return local
		}
		return Target{URL: abs, Remote: true}
	}

	if IsRemote(origin) {
		abs, err := ResolveRelative(target, origin)
		if err != nil {
			return local
		}
		return Target{URL: abs, Remote: true}
	}
	return local
}

// IsRemote reports whether s is an absolute network URL or scheme-relative.
func IsRemote(s string) bool {
	if strings.HasPrefix(s, "//") {
		return true
	}
	scheme := schemeOf(s)
	return scheme != "" && isNetworkScheme(s, scheme)
}

// IsAbsolute reports whether reference has a scheme (including data: and
// other non-hierarchical ones) or is scheme-relative.
func IsAbsolute(ref string) bool {
	return strings.HasPrefix(ref, "//") || schemeOf(ref) != ""
}

func schemeOf(s string) string {
	m := schemePattern.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	return strings.ToLower(m[1])
}

func isNetworkScheme(s, scheme string) bool {
	return scheme != "file" && strings.HasPrefix(s[len(scheme)+1:], "//")
}

func normalize(s string) (string, error) {
	u, err := url.Parse(s)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

// ResolveRelative resolves reference against origin following RFC 3986:
// absolute references are returned unchanged, root-relative ones are resolved
// against origin authority, all others (implicit or explicit siblings, any
// number of parent segments) against origin directory.
func ResolveRelative(ref, origin string) (string, error) {
	r, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", err
	}
	if r.IsAbs() {
		return ref, nil
	}
	base, err := url.Parse(origin)
	if err != nil {
		return "", err
	}
	if !base.IsAbs() {
		return "", fmt.Errorf("origin is not an absolute URL: %q", origin)
	}
	return base.ResolveReference(r).String(), nil
}
