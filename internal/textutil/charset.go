package textutil

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

var charsets = map[string]*charmap.Charmap{
	"windows-1250": charmap.Windows1250,
	"windows-1251": charmap.Windows1251,
	"windows-1252": charmap.Windows1252,
	"iso-8859-1":   charmap.ISO8859_1,
	"iso-8859-2":   charmap.ISO8859_2,
	"iso-8859-15":  charmap.ISO8859_15,
	"cp437":        charmap.CodePage437,
	"cp850":        charmap.CodePage850,
}

// Charset converts game text between a legacy single-byte code page and
// UTF-8. The zero value passes bytes through untouched.
type Charset struct {
	name string
	enc  encoding.Encoding
}

// LookupCharset resolves a code page name. "raw" and "" select the
// pass-through charset.
func LookupCharset(name string) (Charset, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	switch key {
	case "", "raw":
		return Charset{name: "raw"}, nil
	case "cp1252", "latin1":
		key = map[string]string{"cp1252": "windows-1252", "latin1": "iso-8859-1"}[key]
	}
	cm, ok := charsets[key]
	if !ok {
		return Charset{}, fmt.Errorf("unknown charset %q", name)
	}
	return Charset{name: key, enc: cm}, nil
}

// Name returns the canonical charset name.
func (c Charset) Name() string {
	if c.enc == nil {
		return "raw"
	}
	return c.name
}

// Decode converts code page bytes to a UTF-8 string. Single-byte code pages
// map every byte, so this never fails.
func (c Charset) Decode(b []byte) string {
	if c.enc == nil {
		return string(b)
	}
	out, err := c.enc.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(out)
}

// Encode converts a UTF-8 string back to code page bytes. It fails when s
// holds a character the code page cannot represent.
func (c Charset) Encode(s string) ([]byte, error) {
	if c.enc == nil {
		return []byte(s), nil
	}
	out, err := c.enc.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("encode to %s: %w", c.name, err)
	}
	return out, nil
}
