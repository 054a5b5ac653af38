package fetch

import (
	"bytes"
	"fmt"
	"mime"
	"regexp"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
)

var (
	utf8BOM = []byte{0xEF, 0xBB, 0xBF}
	// @charset must be the very first thing in the stylesheet, written exactly this way
	charsetRule = regexp.MustCompile(`^@charset "([^"]+)";`)
)

// Charset describes how stylesheet body is stored.
type Charset struct {
	BOM      bool              // body starts with UTF-8 byte order mark
	Label    string            // declared charset, empty if none
	Encoding encoding.Encoding // nil for UTF-8
}

// Transcoded reports whether body has to be converted to become UTF-8.
func (c Charset) Transcoded() bool {
	return c.Encoding != nil
}

// Detect picks stylesheet encoding the way browsers do it: byte order mark,
// then charset parameter of Content-Type, then @charset rule, UTF-8
// otherwise.
func Detect(body []byte, contentType string) (Charset, error) {
	if bytes.HasPrefix(body, utf8BOM) {
		return Charset{BOM: true, Label: "utf-8"}, nil
	}

	var label string
	if _, params, err := mime.ParseMediaType(contentType); err == nil {
		label = params["charset"]
	}
	if label == "" {
		if m := charsetRule.FindSubmatch(body); m != nil {
			label = string(m[1])
		}
	}
	if label == "" {
		return Charset{}, nil
	}

	enc, name := charset.Lookup(label)
	if enc == nil {
		return Charset{}, fmt.Errorf("unable to decode stylesheet: unknown charset %q", label)
	}
	if name == "utf-8" {
		return Charset{Label: label}, nil
	}
	return Charset{Label: label, Encoding: enc}, nil
}

// Decode converts body stored as described to UTF-8.
func (c Charset) Decode(body []byte) ([]byte, error) {
	switch {
	case c.BOM:
		return bytes.TrimPrefix(body, utf8BOM), nil
	case c.Encoding == nil:
		return body, nil
	}
	text, err := c.Encoding.NewDecoder().Bytes(body)
	if err != nil {
		return nil, fmt.Errorf("unable to decode stylesheet from %s: %w", c.Label, err)
	}
	return text, nil
}

// Encode converts UTF-8 text back to the way body was stored. Text which
// cannot be represented in the original encoding is an error.
func (c Charset) Encode(text []byte) ([]byte, error) {
	switch {
	case c.BOM:
		return append(bytes.Clone(utf8BOM), text...), nil
	case c.Encoding == nil:
		return text, nil
	}
	data, err := c.Encoding.NewEncoder().Bytes(text)
	if err != nil {
		return nil, fmt.Errorf("unable to encode stylesheet to %s: %w", c.Label, err)
	}
	return data, nil
}

// Decode converts stylesheet body to UTF-8 using encoding picked by Detect.
func Decode(body []byte, contentType string) ([]byte, error) {
	cs, err := Detect(body, contentType)
	if err != nil {
		return nil, err
	}
	return cs.Decode(body)
}

// SetCharsetRule replaces leading @charset rule of UTF-8 text, if any, with
// the one declaring name.
func SetCharsetRule(text []byte, name string) []byte {
	return charsetRule.ReplaceAllLiteral(text, []byte(`@charset "`+name+`";`))
}
