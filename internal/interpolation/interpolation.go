// Package interpolation finds the printf directives the runtime fills from a
// command's formatting value, so translated text can be checked against
// the text it replaces.
package interpolation

import (
	"fmt"
	"regexp"
	"slices"
)

// directive matches a printf conversion; a literal %% is matched too so it
// is not mistaken for the start of a conversion.
var directive = regexp.MustCompile(`%%|%[-+ #0]*[0-9]*(?:\.[0-9]+)?[diouxXeEfgGcs]`)

// Directives lists the conversions in text in order, without %% literals.
func Directives(text string) []string {
	var out []string
	for _, m := range directive.FindAllString(text, -1) {
		if m != "%%" {
			out = append(out, m)
		}
	}
	return out
}

// MismatchError reports a translation whose directives differ from its
// source.
type MismatchError struct {
	Source     []string
	Translated []string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("format directives %v do not match source %v", e.Translated, e.Source)
}

// Verify checks that translated carries the same directives as source in
// the same order. The formatting value supplies one argument per
// directive, so any difference garbles the text in game.
func Verify(source, translated string) error {
	src, dst := Directives(source), Directives(translated)
	if slices.Equal(src, dst) {
		return nil
	}
	return &MismatchError{Source: src, Translated: dst}
}
