// Package disasm renders a decoded APE file as an indented listing, one line
// per element, in the same order the decoder consumed the bytes.
package disasm

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"apetools/internal/ape"
	"apetools/internal/textutil"
)

// Options controls rendering. The zero value prints string bytes verbatim.
type Options struct {
	// Charset transcodes string bytes for display.
	Charset textutil.Charset
}

// Disassemble decodes data and writes its listing to w. Nothing is written
// when decoding fails.
func Disassemble(w io.Writer, data []byte, opts Options) error {
	f, layout, err := ape.DecodeWithLayout(data)
	if err != nil {
		return err
	}
	return Render(w, f, layout, opts)
}

// Render writes the listing of f. layout supplies the FilePosition lines; a
// nil layout omits them.
func Render(w io.Writer, f *ape.File, layout *ape.Layout, opts Options) error {
	p := &printer{w: bufio.NewWriter(w), cs: opts.Charset}

	for i, win := range f.Windows {
		if layout != nil && i < len(layout.Windows) {
			p.line(0, "FilePosition(%d)", layout.Windows[i])
		}
		p.line(0, "Window %d", win.ID)
		for _, cmd := range win.Commands {
			p.windowCommand(1, cmd)
		}
		p.line(1, "EndCommand")
	}

	p.line(0, "Switches")
	for i, sw := range f.Switches {
		if layout != nil && i < len(layout.Switches) {
			p.line(0, "FilePosition(%d)", layout.Switches[i])
		}
		p.line(0, "Switch(%d)", sw.Label)
		for _, c := range sw.Commands {
			p.line(1, "CCLabel(%s)", ape.CCBinary(c.CC))
			p.switchCommand(1, c.Command)
		}
		p.line(1, "CCLabel(0)")
		p.line(1, "EndCommand")
	}

	return p.w.Flush()
}

type printer struct {
	w  *bufio.Writer
	cs textutil.Charset
}

func (p *printer) line(indent int, format string, args ...any) {
	p.w.WriteString(strings.Repeat("    ", indent))
	fmt.Fprintf(p.w, format, args...)
	p.w.WriteByte('\n')
}

func (p *printer) windowCommand(i int, cmd ape.WindowCommand) {
	switch c := cmd.(type) {
	case *ape.SwitchRefCommand:
		p.line(i, "%s(%d)", c.Kind, c.Label)

	case *ape.SimpleStringCommand:
		p.line(i, "%s", c.Kind)
		p.byteString(i+1, c.Value)

	case *ape.FormattedStringCommand:
		p.line(i, "%s", c.Kind)
		p.optionalExpression(i+1, c.Condition)
		p.byteString(i+1, c.Text)
		p.formattingValue(i+1, c.Format)

	case *ape.ChoiceCommand:
		p.line(i, "%s", c.Code())
		p.optionalExpression(i+1, c.Condition)
		p.byteString(i+1, c.Text)
		p.formattingValue(i+1, c.Format)
		p.line(i+1, "Label(%d)", c.Label)

	case *ape.BackgroundCommand:
		p.line(i, "%s", c.Code())
		p.line(i+1, "Color1(%s) Color2(%s) Color3(%s)  Color4(%s)",
			ape.ColorHex(c.Colors[0]), ape.ColorHex(c.Colors[1]),
			ape.ColorHex(c.Colors[2]), ape.ColorHex(c.Colors[3]))

	case *ape.DimensionsCommand:
		p.line(i, "%s", c.Code())
		p.optionalExpression(i+1, c.XPos)
		p.optionalExpression(i+1, c.YPos)
		p.optionalExpression(i+1, c.Width)
		p.optionalExpression(i+1, c.Height)

	case *ape.SubWindowCommand:
		p.line(i, "%s(%d)", c.Code(), c.Label)

	case *ape.ImageCommand:
		p.line(i, "%s", c.Code())
		p.optionalExpression(i+1, c.Condition)
		p.byteString(i+1, c.FileName)
		p.optionalExpression(i+1, c.XPos)
		p.optionalExpression(i+1, c.YPos)
		p.optionalExpression(i+1, c.Width)
		p.optionalExpression(i+1, c.Height)
		p.line(i+1, "ImageFlags(%s)", strings.Join(c.Flags.Names(), ","))

	case *ape.FlagsCommand:
		p.line(i, "%s", c.Code())
		p.line(i+1, "Flags(%s)", strings.Join(c.Flags.Names(), ","))

	case *ape.CamCommand:
		p.line(i, "%s", c.Code())
		p.byteString(i+1, c.Name)
		p.optionalString(i+1, c.From)
		p.optionalString(i+1, c.To)
		p.optionalString(i+1, c.Owner)
		v := c.Params
		p.line(i+1, "CamParams(Yaw=%d,Pitch=%d,Fov=%d,Far=%d,Near=%d,Fwd=%d,Speed=%d,Lift=%d,Lag=%d,Occlude=%d,Restore=%d,Zip=%d)",
			v.Yaw, v.Pitch, v.Fov, v.Far, v.Near, v.Fwd, v.Speed, v.Lift, v.Lag, v.Occlude, v.Restore, v.Zip)

	case *ape.XYPrintFXCommand:
		p.line(i, "%s", c.Code())
		p.optionalExpression(i+1, c.X)
		p.optionalExpression(i+1, c.Y)
		p.optionalExpression(i+1, c.Alpha)
		p.optionalExpression(i+1, c.Red)
		p.optionalExpression(i+1, c.Green)
		p.optionalExpression(i+1, c.Blue)
		p.optionalString(i+1, c.Font)
		p.byteString(i+1, c.Message)
		p.optionalExpression(i+1, c.Condition)
		p.formattingValue(i+1, c.Format)

	case *ape.TalkCommand:
		p.line(i, "%s", c.Code())
		p.byteString(i+1, c.Animation1)
		p.optionalString(i+1, c.Animation2)
		p.byteString(i+1, c.Name1)
		p.byteString(i+1, c.Name2)
		p.line(i+1, "TalkParams(Stay1Flag=%d,Stay2Flag=%d)", c.Stay1, c.Stay2)
	}
}

func (p *printer) switchCommand(i int, cmd ape.SwitchCommand) {
	p.line(i, "%s", cmd.Type)
	p.optionalString(i+1, cmd.Str)
	p.formattingValue(i+1, cmd.Format)
	p.optionalExpression(i+1, cmd.Expr)
}

func (p *printer) byteString(i int, s ape.ByteString) {
	p.line(i, "String '%s'", p.cs.Decode(s.Bytes()))
}

func (p *printer) optionalString(i int, s ape.OptionalString) {
	p.line(i, "OptionalString")
	if v, ok := s.Get(); ok {
		p.byteString(i+1, v)
	}
}

func (p *printer) optionalExpression(i int, e ape.OptionalExpression) {
	p.line(i, "OptionalExpression")
	if e.Present() {
		p.expression(i+1, e.Expr)
	}
}

func (p *printer) expression(i int, e *ape.Expression) {
	p.line(i, "ExpressionValue(%s)", e.Operator)
	p.line(i+1, "ExpressionType(%s, %s)", e.Left.Type, e.Right.Type)
	p.line(i+1, "LeftTreePos(%d)", e.Left.TreePos)
	p.operand(i+1, e.Left.Value)
	p.line(i+1, "RightTreePos(%d)", e.Right.TreePos)
	p.operand(i+1, e.Right.Value)
}

// operand prints a nested expression at the operand's own depth.
func (p *printer) operand(i int, op ape.Operand) {
	switch v := op.(type) {
	case ape.ExpressionOperand:
		p.expression(i, v.Expr)
	case ape.FloatOperand:
		p.line(i, "FloatOperand(%s)", FormatG9(v.Value))
	case ape.StringOperand:
		p.line(i, "StringOperand")
		p.byteString(i+1, v.Value)
	case ape.QuotedStringOperand:
		p.line(i, "QuotedStringOperand")
		p.byteString(i+1, v.Value)
	default:
		p.line(i, "InvalidOperand")
	}
}

func (p *printer) formattingValue(i int, f ape.FormattingValue) {
	p.line(i, "FormattingValue")
	for _, v := range f {
		p.line(i+1, "TypedFormattingValue(%s)", v.Type)
		p.operand(i+2, v.Value)
	}
}

// FormatG9 prints f with nine significant digits, trailing zeros dropped and
// an upper-case exponent marker.
func FormatG9(f float32) string {
	switch {
	case math.IsNaN(float64(f)):
		return "NaN"
	case math.IsInf(float64(f), 1):
		return "Infinity"
	case math.IsInf(float64(f), -1):
		return "-Infinity"
	}
	return strings.Replace(strconv.FormatFloat(float64(f), 'g', 9, 32), "e", "E", 1)
}
