package css

import (
	"strings"

	"github.com/tdewolff/parse/v2/css"
)

// URLRef is a URL reference found inside a declaration value.
type URLRef struct {
	Value string     // URL without quotes and escapes
	Raw   string     // Reference as written
	Quote QuoteStyle // Quote style of the reference
	Func  string     // Wrapping function as written ("url(", "src("), empty for bare image-set() strings

	start, end int
}

// Format returns reference text pointing to target written the same way as
// the original reference.
func (r URLRef) Format(target string) string {
	if r.Func == "" {
		return quote(target, r.Quote)
	}
	return r.Func + quote(target, r.Quote) + ")"
}

// ScanURLs finds URL references in a declaration value: url() and src() in
// quoted and unquoted forms and string arguments of image-set().
func ScanURLs(value string) []URLRef {
	if !strings.Contains(value, "(") {
		return nil
	}
	toks, err := tokenize([]byte(value))
	if err != nil {
		return nil
	}
	offsets := tokenOffsets(toks)

	var (
		refs  []URLRef
		stack []string
	)
	for i := 0; i < len(toks); i++ {
		t := toks[i]
		switch t.tt {
		case css.URLToken:
			v, q := urlTokenValue(t.data)
			refs = append(refs, URLRef{Value: v, Raw: t.data, Quote: q, Func: t.data[:4], start: offsets[i], end: offsets[i+1]})

		case css.FunctionToken:
			name := strings.ToLower(t.data)
			if name == "url(" || name == "src(" {
				if j := skipBlank(toks, i+1); j < len(toks) && toks[j].tt == css.StringToken {
					if k := skipBlank(toks, j+1); k < len(toks) && toks[k].tt == css.RightParenthesisToken {
						v, q := unquote(toks[j].data)
						refs = append(refs, URLRef{Value: v, Raw: join(toks[i : k+1]), Quote: q, Func: t.data, start: offsets[i], end: offsets[k+1]})
						i = k
						continue
					}
				}
			}
			stack = append(stack, name)

		case css.LeftParenthesisToken:
			stack = append(stack, "(")

		case css.RightParenthesisToken:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}

		case css.StringToken:
			if len(stack) > 0 && isImageSet(stack[len(stack)-1]) {
				v, q := unquote(t.data)
				refs = append(refs, URLRef{Value: v, Raw: t.data, Quote: q, start: offsets[i], end: offsets[i+1]})
			}
		}
	}
	return refs
}

func isImageSet(fn string) bool {
	return fn == "image-set(" || fn == "-webkit-image-set("
}

// ReplaceURLs returns value with references replaced where fn reports true.
// Replacements keep quote style and function wrapper of the original. Second
// result is the number of replaced references.
func ReplaceURLs(value string, fn func(ref URLRef) (string, bool)) (string, int) {
	refs := ScanURLs(value)
	if len(refs) == 0 {
		return value, 0
	}

	var (
		sb    strings.Builder
		last  int
		count int
	)
	for _, ref := range refs {
		target, ok := fn(ref)
		if !ok {
			continue
		}
		sb.WriteString(value[last:ref.start])
		sb.WriteString(ref.Format(target))
		last = ref.end
		count++
	}
	if count == 0 {
		return value, 0
	}
	sb.WriteString(value[last:])
	return sb.String(), count
}
