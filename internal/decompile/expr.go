package decompile

import (
	"fmt"
	"strconv"
	"strings"

	"apetools/internal/ape"
)

// FormatFloat prints f in the shortest form that reads back to the same
// float32, never in exponent notation.
func FormatFloat(f float32) string {
	s := strconv.FormatFloat(float64(f), 'g', -1, 32)
	if strings.ContainsAny(s, "eE") {
		s = strconv.FormatFloat(float64(f), 'f', -1, 32)
	}
	return s
}

// Quote renders s as a script string literal, escaping newlines,
// backslashes and double quotes.
func Quote(s ape.ByteString) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '\n':
			b.WriteString(`\n`)
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// QuoteName quotes a file, font or style name. The compiler reads names
// without escape processing, so a name holding a double quote or a newline
// has no source form.
func QuoteName(s ape.ByteString) (string, error) {
	if strings.ContainsAny(string(s), "\"\n") {
		return "", fmt.Errorf("name %q cannot be written as a quoted name", string(s))
	}
	return `"` + string(s) + `"`, nil
}

// OperandSource renders one operand. Nested expressions are parenthesized.
func OperandSource(t ape.OperandType, v ape.Operand) string {
	switch t {
	case ape.OperandExpression:
		if e, ok := v.(ape.ExpressionOperand); ok && e.Expr != nil {
			return "(" + binarySource(e.Expr) + ")"
		}
	case ape.OperandFloatConst:
		if f, ok := v.(ape.FloatOperand); ok {
			return FormatFloat(f.Value)
		}
	case ape.OperandFloatVar, ape.OperandStringVar:
		if s, ok := v.(ape.StringOperand); ok {
			return string(s.Value)
		}
	case ape.OperandStringConst:
		if s, ok := v.(ape.QuotedStringOperand); ok {
			return Quote(s.Value)
		}
	}
	return "<invalid>"
}

func binarySource(e *ape.Expression) string {
	return OperandSource(e.Left.Type, e.Left.Value) + " " + e.Operator.Symbol() + " " +
		OperandSource(e.Right.Type, e.Right.Value)
}

// ExpressionSource renders e as script source. The 0 + x wrapping the
// compiler puts around a lone number or variable is dropped.
func ExpressionSource(e *ape.Expression) string {
	if e.Operator == ape.OpAdd && e.Left.Type == ape.OperandFloatConst {
		if l, ok := e.Left.Value.(ape.FloatOperand); ok && l.Value == 0 {
			switch e.Right.Type {
			case ape.OperandFloatConst, ape.OperandFloatVar:
				return OperandSource(e.Right.Type, e.Right.Value)
			}
		}
	}
	return binarySource(e)
}

// formatSource renders formatting values as a `, a, b` suffix.
func formatSource(f ape.FormattingValue) string {
	var b strings.Builder
	for _, v := range f {
		b.WriteString(", ")
		b.WriteString(OperandSource(v.Type.OperandType(), v.Value))
	}
	return b.String()
}
