package config

import (
	"path/filepath"
	"strings"
)

const badElement = "_bad_file_name_"

// LocalPath converts slash separated entry name (as stored in zip archives)
// into relative path usable on local file system. Empty and "." elements are
// dropped, elements which become empty after cleaning are replaced.
func LocalPath(name string) string {
	var elems []string
	for e := range strings.SplitSeq(strings.ReplaceAll(name, `\`, "/"), "/") {
		if e == "" || e == "." {
			continue
		}
		if e = cleanElement(e); e == "" {
			e = badElement
		}
		elems = append(elems, e)
	}
	if len(elems) == 0 {
		return badElement
	}
	return filepath.Join(elems...)
}
