package compiler

import "bytes"

// normalizeNewlines turns \r\n and lone \r into \n.
func normalizeNewlines(src []byte) []byte {
	out := make([]byte, 0, len(src))
	for i := 0; i < len(src); i++ {
		b := src[i]
		if b == '\r' {
			out = append(out, '\n')
			if i+1 < len(src) && src[i+1] == '\n' {
				i++
			}
			continue
		}
		out = append(out, b)
	}
	return out
}

// locationAt computes the zero-based line and column of offset pos.
func locationAt(file string, src []byte, pos int) Location {
	loc := Location{File: file}
	for i := 0; i < pos && i < len(src); i++ {
		if src[i] == '\n' {
			loc.Line++
			loc.Col = 0
		} else {
			loc.Col++
		}
	}
	return loc
}

// stripLegacyComments blanks // and /* */ comments with spaces in place.
// Quotes are not recognized, so comment markers inside strings strip too.
// Newlines are kept so locations do not move.
func stripLegacyComments(src []byte, file string) error {
	inLine, inBlock := false, false
	blockStart := 0

	for i := 0; i < len(src); i++ {
		b := src[i]
		if i+1 < len(src) {
			b2 := src[i+1]
			switch {
			case inBlock:
				if b == '*' && b2 == '/' {
					src[i], src[i+1] = ' ', ' '
					i++
					inBlock = false
					continue
				}
			case !inLine && b == '/' && b2 == '*':
				inBlock = true
				blockStart = i
			case !inLine && b == '/' && b2 == '/':
				inLine = true
			}
		}

		if b == '\n' {
			inLine = false
			continue
		}
		if inLine || inBlock {
			src[i] = ' '
		}
	}

	if inBlock {
		return errorAt(locationAt(file, src, blockStart), "Unterminated block comment")
	}
	return nil
}

type textMacro struct {
	name  []byte
	value []byte
}

var defineKeyword = []byte("define")

// applyLegacyMacros removes every `define NAME "value"` line fragment and
// then replaces each occurrence of NAME that starts at a non-whitespace byte
// with value. Macros are tried in definition order and substituted text is
// not rescanned.
func applyLegacyMacros(src []byte, file string) ([]byte, error) {
	var macros []textMacro

	for i := 0; i < len(src); i++ {
		if !bytes.HasPrefix(src[i:], defineKeyword) || !atWordStart(src, i) {
			continue
		}
		end := i + len(defineKeyword)
		if end < len(src) && src[end] != '\n' && !isWhitespace(src[end]) {
			continue
		}

		m, stop, err := parseLegacyDefine(src, i, end, file)
		if err != nil {
			return nil, err
		}
		macros = append(macros, m)

		start := i
		if start > 0 && src[start-1] == '#' {
			start--
		}
		for j := start; j < stop; j++ {
			src[j] = ' '
		}
		i = stop - 1
	}

	if len(macros) == 0 {
		return src, nil
	}

	out := make([]byte, 0, len(src))
	for i := 0; i < len(src); {
		if src[i] > ' ' {
			if m, ok := matchMacro(macros, src[i:]); ok {
				out = append(out, m.value...)
				i += len(m.name)
				continue
			}
		}
		out = append(out, src[i])
		i++
	}
	return out, nil
}

func atWordStart(src []byte, i int) bool {
	return i == 0 || !isIdentifierChar(src[i-1])
}

func matchMacro(macros []textMacro, rest []byte) (textMacro, bool) {
	for _, m := range macros {
		if bytes.HasPrefix(rest, m.name) {
			return m, true
		}
	}
	return textMacro{}, false
}

// parseLegacyDefine reads the name and quoted value following the define
// keyword that ends at pos. It returns the offset just past the closing
// quote.
func parseLegacyDefine(src []byte, at, pos int, file string) (textMacro, int, error) {
	loc := locationAt(file, src, at)

	skip := func() error {
		for pos < len(src) && src[pos] != '\n' && isWhitespace(src[pos]) {
			pos++
		}
		if pos == len(src) {
			return errorAt(loc, "EOF encountered instead of #define macro name")
		}
		if src[pos] == '\n' {
			return errorAt(loc, "EOL encountered instead of #define macro name")
		}
		return nil
	}

	if err := skip(); err != nil {
		return textMacro{}, 0, err
	}
	nameStart := pos
	for pos < len(src) && !isWhitespace(src[pos]) {
		pos++
	}
	name := src[nameStart:pos]

	if err := skip(); err != nil {
		return textMacro{}, 0, err
	}
	if src[pos] != '"' {
		return textMacro{}, 0, errorAt(loc, "Expected macro value to be quoted")
	}
	pos++

	valueStart := pos
	for pos < len(src) && src[pos] != '"' {
		if src[pos] == '\n' {
			return textMacro{}, 0, errorAt(loc, "EOL encountered in #define macro contents")
		}
		pos++
	}
	if pos == len(src) {
		return textMacro{}, 0, errorAt(loc, "EOF encountered in #define macro contents")
	}

	m := textMacro{
		name:  append([]byte(nil), name...),
		value: append([]byte(nil), src[valueStart:pos]...),
	}
	return m, pos + 1, nil
}
