package compiler

// resolveEscape maps the byte after a backslash to the byte it stands for.
func resolveEscape(b byte) (byte, bool) {
	switch b {
	case 't':
		return '\t', true
	case 'n':
		return '\n', true
	case '"':
		return '"', true
	case '\\':
		return '\\', true
	}
	return 0, false
}

// unescape decodes backslash escapes when normal is set and turns newlines
// into spaces when eolToSpace is set. The input is returned unchanged when
// neither applies.
func unescape(s string, loc Location, normal, eolToSpace bool) (string, error) {
	needed := false
	for i := 0; i < len(s); i++ {
		if (normal && s[i] == '\\') || (eolToSpace && s[i] == '\n') {
			needed = true
			break
		}
	}
	if !needed {
		return s, nil
	}

	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		b := s[i]
		switch {
		case normal && b == '\\':
			i++
			if i == len(s) {
				return "", errorAt(loc, "Escape at end of string")
			}
			r, ok := resolveEscape(s[i])
			if !ok {
				return "", errorAt(loc, "Unknown escape character")
			}
			b = r
		case eolToSpace && b == '\n':
			b = ' '
		}
		out = append(out, b)
	}
	return string(out), nil
}

// unquote strips the surrounding quotes of a string literal token.
func unquote(tok Token) string {
	s := tok.Text
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	if len(s) >= 1 && s[0] == '"' {
		return s[1:]
	}
	return s
}
