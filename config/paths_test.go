//go:build !windows

package config

import (
	"path/filepath"
	"testing"
)

func TestLocalPath(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"style.css", "style.css"},
		{"css/theme/dark.css", filepath.Join("css", "theme", "dark.css")},
		{"./css//a.css", filepath.Join("css", "a.css")},
		{`css\a.css`, filepath.Join("css", "a.css")},
		{".hidden/.a.css", filepath.Join("hidden", "a.css")},
		{"css/../a.css", filepath.Join("css", badElement, "a.css")},
		{"a:b.css", "ab.css"},
		{"", badElement},
		{"/", badElement},
	}
	for _, tt := range tests {
		if got := LocalPath(tt.name); got != tt.want {
			t.Errorf("LocalPath(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}
