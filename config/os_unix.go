//go:build !windows

package config

import (
	"os"
	"strings"

	"golang.org/x/term"
)

// cleanElement drops separators and leading dots from a single path element.
func cleanElement(in string) string {
	return strings.TrimLeft(strings.Map(func(sym rune) rune {
		if sym == 0 || strings.ContainsRune(string(os.PathSeparator)+string(os.PathListSeparator), sym) {
			return -1
		}
		return sym
	}, in), ".")
}

// EnableColorOutput checks if colorized output is possible.
func EnableColorOutput(stream *os.File) bool {
	return term.IsTerminal(int(stream.Fd()))
}
