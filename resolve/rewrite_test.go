package resolve_test

import (
	"testing"

	"go.uber.org/zap/zaptest"

	"cssimp/css"
	"cssimp/resolve"
)

func TestRewriteURLs(t *testing.T) {
	const origin = "http://example.com/css/site/main.css"

	tests := []struct {
		name  string
		text  string
		want  string
		count int
	}{
		{
			name:  "quoting preserved",
			text:  `a { background: url(a.png), url('b.png'), url("c.png"); }`,
			want:  `a { background: url(http://example.com/css/site/a.png), url('http://example.com/css/site/b.png'), url("http://example.com/css/site/c.png"); }`,
			count: 3,
		},
		{
			name:  "font face",
			text:  "@font-face { font-family: X; src: url(../fonts/x.woff2) format(\"woff2\"), local(X); }",
			want:  "@font-face { font-family: X; src: url(http://example.com/css/fonts/x.woff2) format(\"woff2\"), local(X); }",
			count: 1,
		},
		{
			name:  "inside media and supports",
			text:  "@media print { @supports (display: grid) { .a { list-style: url(/bullet.png) } } }",
			want:  "@media print { @supports (display: grid) { .a { list-style: url(http://example.com/bullet.png) } } }",
			count: 1,
		},
		{
			name:  "image-set",
			text:  `.a { background-image: image-set("a.png" 1x, url(a@2x.png) 2x); }`,
			want:  `.a { background-image: image-set("http://example.com/css/site/a.png" 1x, url(http://example.com/css/site/a@2x.png) 2x); }`,
			count: 2,
		},
		{
			name:  "nested import",
			text:  "@import 'print.css' print;\n",
			want:  "@import 'http://example.com/css/site/print.css' print;\n",
			count: 1,
		},
		{
			name: "left alone",
			text: `.a { content: ".a"; background: url(http://cdn.test/x.png); filter: url(#blur); mask: url("data:image/svg+xml;utf8,<svg/>"); cursor: url(//cdn.test/c.cur), auto; }`,
			want: `.a { content: ".a"; background: url(http://cdn.test/x.png); filter: url(#blur); mask: url("data:image/svg+xml;utf8,<svg/>"); cursor: url(//cdn.test/c.cur), auto; }`,
		},
		{
			name: "selectors and at-rule preludes untouched",
			text: `a[href$="x.png"] { color: red }`,
			want: `a[href$="x.png"] { color: red }`,
		},
	}

	p := css.NewParser(zaptest.NewLogger(t))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sheet, err := p.Parse([]byte(tt.text))
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			n := resolve.RewriteURLs(sheet.Nodes, origin, zaptest.NewLogger(t))
			if got := sheet.String(); got != tt.want {
				t.Errorf("RewriteURLs() = %q, want %q", got, tt.want)
			}
			if n != tt.count {
				t.Errorf("RewriteURLs() count = %d, want %d", n, tt.count)
			}
		})
	}
}

func TestRewriteURLs_BadOrigin(t *testing.T) {
	sheet, err := css.NewParser(nil).Parse([]byte("a { b: url(x.png) }"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if n := resolve.RewriteURLs(sheet.Nodes, "not/a/url", nil); n != 0 {
		t.Errorf("RewriteURLs() = %d, want 0", n)
	}
	if got := sheet.String(); got != "a { b: url(x.png) }" {
		t.Errorf("value was modified: %q", got)
	}
}

func TestMergeMedia(t *testing.T) {
	sheet, err := css.NewParser(nil).Parse([]byte(".a { b: c }"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if got := resolve.MergeMedia("  ", sheet.Nodes); css.NodesString(got) != ".a { b: c }" {
		t.Errorf("MergeMedia() with empty media = %q", css.NodesString(got))
	}

	for _, media := range []string{"only screen and (color)", "screen and (orientation:landscape)", "projection, tv", "print", "(min-width: 25em)"} {
		got := css.NodesString(resolve.MergeMedia(media, sheet.Nodes))
		if want := "@media " + media + " {\n.a { b: c }\n}"; got != want {
			t.Errorf("MergeMedia(%q) = %q, want %q", media, got, want)
		}
	}
}
