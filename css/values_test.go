package css_test

import (
	"strings"
	"testing"

	"cssimp/css"
)

func TestScanURLs(t *testing.T) {
	tests := []struct {
		value  string
		values []string
		quotes []css.QuoteStyle
	}{
		{"red", nil, nil},
		{"url(a.png)", []string{"a.png"}, []css.QuoteStyle{css.QuoteNone}},
		{`url("a.png") no-repeat, url('b.png')`, []string{"a.png", "b.png"}, []css.QuoteStyle{css.QuoteDouble, css.QuoteSingle}},
		{`url( a\ b.png )`, []string{"a b.png"}, []css.QuoteStyle{css.QuoteNone}},
		{`src("font.woff2") format("woff2")`, []string{"font.woff2"}, []css.QuoteStyle{css.QuoteDouble}},
		{`image-set("a.png" 1x, url(b.png) 2x, 'c.png' type("image/png"))`, []string{"a.png", "b.png", "c.png"},
			[]css.QuoteStyle{css.QuoteDouble, css.QuoteNone, css.QuoteSingle}},
		{`-webkit-image-set("a.png" 1x)`, []string{"a.png"}, []css.QuoteStyle{css.QuoteDouble}},
		{`"not a url"`, nil, nil},
		{`attr(data-x) "x.png"`, nil, nil},
		{`format("woff2")`, nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			refs := css.ScanURLs(tt.value)
			if len(refs) != len(tt.values) {
				t.Fatalf("ScanURLs() = %+v, want %v", refs, tt.values)
			}
			for i, ref := range refs {
				if ref.Value != tt.values[i] {
					t.Errorf("[%d] Value = %q, want %q", i, ref.Value, tt.values[i])
				}
				if ref.Quote != tt.quotes[i] {
					t.Errorf("[%d] Quote = %v, want %v", i, ref.Quote, tt.quotes[i])
				}
				if !strings.Contains(tt.value, ref.Raw) {
					t.Errorf("[%d] Raw %q is not part of the value", i, ref.Raw)
				}
			}
		})
	}
}

func TestReplaceURLs(t *testing.T) {
	prefix := func(ref css.URLRef) (string, bool) {
		if strings.HasPrefix(ref.Value, "http:") {
			return "", false
		}
		return "http://x.test/" + ref.Value, true
	}

	tests := []struct {
		name  string
		value string
		want  string
		count int
	}{
		{"bare", "url(a.png) no-repeat", "url(http://x.test/a.png) no-repeat", 1},
		{"keeps quotes", `url('a.png'), url("b.png")`, `url('http://x.test/a.png'), url("http://x.test/b.png")`, 2},
		{"skips by callback", `url(http://y.test/a.png), url(b.png)`, `url(http://y.test/a.png), url(http://x.test/b.png)`, 1},
		{"nothing replaced", `url(http://y.test/a.png)`, `url(http://y.test/a.png)`, 0},
		{"src function", `src("f.woff2") format("woff2")`, `src("http://x.test/f.woff2") format("woff2")`, 1},
		{"image-set strings", `image-set("a.png" 1x, "b.png" 2x)`, `image-set("http://x.test/a.png" 1x, "http://x.test/b.png" 2x)`, 2},
		{"plain string untouched", `".a"`, `".a"`, 0},
		{"no urls", "12px solid red", "12px solid red", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, n := css.ReplaceURLs(tt.value, prefix)
			if got != tt.want {
				t.Errorf("ReplaceURLs() = %q, want %q", got, tt.want)
			}
			if n != tt.count {
				t.Errorf("ReplaceURLs() count = %d, want %d", n, tt.count)
			}
		})
	}
}

func TestURLRef_Format(t *testing.T) {
	refs := css.ScanURLs(`url(a.png) url('b.png') image-set("c.png" 1x)`)
	if len(refs) != 3 {
		t.Fatalf("ScanURLs() = %d refs, want 3", len(refs))
	}
	want := []string{`url(x\(1\).png)`, `url('x(1).png')`, `"x(1).png"`}
	for i, ref := range refs {
		if got := ref.Format("x(1).png"); got != want[i] {
			t.Errorf("[%d] Format() = %q, want %q", i, got, want[i])
		}
	}
}
