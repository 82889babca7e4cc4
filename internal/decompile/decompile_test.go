package decompile

import (
	"bytes"
	"reflect"
	"strings"
	"testing"

	"apetools/internal/ape"
	"apetools/internal/compiler"
)

func floatVar(name string) ape.Side {
	return ape.Side{Type: ape.OperandFloatVar, Value: ape.StringOperand{Value: ape.ByteString(name)}}
}

func floatConst(v float32) ape.Side {
	return ape.Side{Type: ape.OperandFloatConst, Value: ape.FloatOperand{Value: v}}
}

func TestFormatFloat(t *testing.T) {
	tests := []struct {
		in   float32
		want string
	}{
		{0, "0"},
		{2.5, "2.5"},
		{0.1, "0.1"},
		{-3, "-3"},
		{1e20, "100000000000000000000"},
		{1e-7, "0.0000001"},
	}
	for _, tt := range tests {
		if got := FormatFloat(tt.in); got != tt.want {
			t.Errorf("FormatFloat(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestQuote(t *testing.T) {
	got := Quote(ape.ByteString("a\"b\\c\n"))
	if want := `"a\"b\\c\n"`; got != want {
		t.Errorf("Quote = %s, want %s", got, want)
	}
}

func TestExpressionSource(t *testing.T) {
	nested := &ape.Expression{Operator: ape.OpAdd, Left: floatVar("a"), Right: floatConst(1)}
	tests := []struct {
		name string
		expr *ape.Expression
		want string
	}{
		{"constant", ape.ConstantExpression(4), "4"},
		{"variable", &ape.Expression{Operator: ape.OpAdd, Left: floatConst(0), Right: floatVar("gold")}, "gold"},
		{"comparison", &ape.Expression{Operator: ape.OpGt, Left: floatVar("gold"), Right: floatConst(5)}, "gold > 5"},
		{"nested", &ape.Expression{
			Operator: ape.OpMul,
			Left:     ape.Side{Type: ape.OperandExpression, Value: ape.ExpressionOperand{Expr: nested}},
			Right:    floatConst(2),
		}, "(a + 1) * 2"},
		{"string", &ape.Expression{
			Operator: ape.OpEq,
			Left:     ape.Side{Type: ape.OperandStringVar, Value: ape.StringOperand{Value: "name$"}},
			Right:    ape.Side{Type: ape.OperandStringConst, Value: ape.QuotedStringOperand{Value: "bob"}},
		}, `name$ == "bob"`},
		{"mismatch", &ape.Expression{Operator: ape.OpAdd, Left: floatVar("a"), Right: ape.Side{Type: ape.OperandFloatConst, Value: ape.StringOperand{Value: "x"}}}, "a + <invalid>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExpressionSource(tt.expr); got != tt.want {
				t.Errorf("ExpressionSource = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStatements_Errors(t *testing.T) {
	cond := ape.SomeExpression(ape.ConstantExpression(1))
	tests := []struct {
		name string
		cmds []ape.CCCommand
		want string
	}{
		{"duplicate", []ape.CCCommand{
			{CC: 1, Command: ape.SwitchCommand{Type: ape.SwitchNoOp}},
			{CC: 1, Command: ape.SwitchCommand{Type: ape.SwitchNoOp}},
		}, "appears twice"},
		{"orphan", []ape.CCCommand{
			{CC: 1, Command: ape.SwitchCommand{Type: ape.SwitchNoOp}},
			{CC: 31, Command: ape.SwitchCommand{Type: ape.SwitchNoOp}},
		}, "no parent"},
		{"no root", []ape.CCCommand{
			{CC: 7, Command: ape.SwitchCommand{Type: ape.SwitchNoOp}},
		}, "no parent"},
		{"empty if", []ape.CCCommand{
			{CC: 1, Command: ape.SwitchCommand{Type: ape.SwitchIf, Expr: cond}},
		}, "block is empty"},
		{"nested under echo", []ape.CCCommand{
			{CC: 1, Command: ape.SwitchCommand{Type: ape.SwitchEcho, Str: ape.SomeString("x")}},
			{CC: 5, Command: ape.SwitchCommand{Type: ape.SwitchNoOp}},
		}, "nested statements"},
		{"while else", []ape.CCCommand{
			{CC: 1, Command: ape.SwitchCommand{Type: ape.SwitchWhile, Expr: cond}},
			{CC: 5, Command: ape.SwitchCommand{Type: ape.SwitchNoOp}},
			{CC: 6, Command: ape.SwitchCommand{Type: ape.SwitchNoOp}},
		}, "else block"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Statements(tt.cmds)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Statements error = %v, want one containing %q", err, tt.want)
			}
		})
	}

	if stmts, err := Statements(nil); err != nil || stmts != nil {
		t.Errorf("Statements(nil) = %v, %v", stmts, err)
	}
}

func TestRender_Switch(t *testing.T) {
	cond := ape.SomeExpression(&ape.Expression{Operator: ape.OpEq, Left: floatVar("x"), Right: floatConst(1)})
	f := &ape.File{Switches: []ape.Switch{{Label: 10000, Commands: []ape.CCCommand{
		{CC: 1, Command: ape.SwitchCommand{Type: ape.SwitchIf, Expr: cond}},
		{CC: 5, Command: ape.SwitchCommand{Type: ape.SwitchEcho, Str: ape.SomeString("one")}},
		{CC: 6, Command: ape.SwitchCommand{Type: ape.SwitchGoto, Str: ape.SomeString("2:0")}},
		{CC: 7, Command: ape.SwitchCommand{Type: ape.SwitchSetFloat, Str: ape.SomeString("y"), Expr: ape.SomeExpression(ape.ConstantExpression(2))}},
		{CC: 31, Command: ape.SwitchCommand{Type: ape.SwitchSetString, Str: ape.SomeString(`name$="a\b"`)}},
		{CC: 127, Command: ape.SwitchCommand{Type: ape.SwitchGoto, Str: ape.SomeString("0:0")}},
	}}}}

	var buf bytes.Buffer
	if err := Render(&buf, f); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	want := `
#switch 1:0
if (x == 1)
  echo "one"
else
  goto 2:0
set y = 2
set name$ = "a\\b"
return
`
	if got := buf.String(); got != want {
		t.Errorf("render mismatch\ngot:\n%s\nwant:\n%s", got, want)
	}
}

func TestRender_WindowBackground(t *testing.T) {
	f := &ape.File{Windows: []ape.Window{
		{ID: 10000, Commands: []ape.WindowCommand{
			&ape.DimensionsCommand{Width: ape.SomeExpression(ape.ConstantExpression(200))},
		}},
		{ID: 10001, Commands: []ape.WindowCommand{
			&ape.FlagsCommand{Flags: ape.FlagNoBackground | ape.FlagPersist},
			&ape.DimensionsCommand{},
		}},
		{ID: 10002, Commands: []ape.WindowCommand{
			&ape.DimensionsCommand{},
			&ape.ImageCommand{
				FileName: "sky",
				XPos:     ape.SomeExpression(ape.ConstantExpression(0)),
				YPos:     ape.SomeExpression(ape.ConstantExpression(0)),
				Flags:    ape.ImageStretch,
			},
		}},
	}}

	var buf bytes.Buffer
	if err := Render(&buf, f); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	want := `#window 1:0
width 200
background color1=00000000

#window 1:1
flags persist

#window 1:2
background "sky" stretch

`
	if got := buf.String(); got != want {
		t.Errorf("render mismatch\ngot:\n%s\nwant:\n%s", got, want)
	}
}

func TestRender_RejectsUnknownFlags(t *testing.T) {
	f := &ape.File{Windows: []ape.Window{{ID: 1, Commands: []ape.WindowCommand{
		&ape.FlagsCommand{Flags: 1 << 12},
	}}}}
	var buf bytes.Buffer
	if err := Render(&buf, f); err == nil {
		t.Fatal("expected error for unnamed window flag")
	}
	if buf.Len() != 0 {
		t.Errorf("Render wrote %d bytes on failure", buf.Len())
	}
}

func TestQuoteName(t *testing.T) {
	if got, err := QuoteName(`gfx\map.pcx`); err != nil || got != `"gfx\map.pcx"` {
		t.Errorf("QuoteName = %s, %v", got, err)
	}
	for _, bad := range []ape.ByteString{`a"map"`, "two\nlines"} {
		if _, err := QuoteName(bad); err == nil {
			t.Errorf("QuoteName(%q) accepted", bad)
		}
	}
}

func TestRender_RejectsUnquotableNames(t *testing.T) {
	pos := ape.SomeExpression(ape.ConstantExpression(5))
	tests := []ape.WindowCommand{
		&ape.ImageCommand{FileName: `a"map"`, XPos: pos, YPos: pos},
		&ape.SimpleStringCommand{Kind: ape.CodeFont, Value: `big"font`},
		&ape.SimpleStringCommand{Kind: ape.CodeStyle, Value: "two\nlines"},
	}
	for _, cmd := range tests {
		f := &ape.File{Windows: []ape.Window{{ID: 10000, Commands: []ape.WindowCommand{cmd}}}}
		var buf bytes.Buffer
		if err := Render(&buf, f); err == nil {
			t.Errorf("%s: expected error for a name with no source form", cmd.Type())
		}
		if buf.Len() != 0 {
			t.Errorf("%s: Render wrote %d bytes on failure", cmd.Type(), buf.Len())
		}
	}
}

const roundTripSource = `#window 1:0
title "Hello \"there\"", gold
body "Line one\nLine two"
if (gold > 5)
	choice "Rich" 2:0
choice "Leave" 3:0
width 200
xpos 10 * 2
flags persist noscroll
startswitch {
  set x = 1
}
finishswitch 4:0

#window 2:0
background color1=10203040
image "map" 5, 6, 64, 32, tile
nextwindow 1:0

#switch 4:0
if (x == 1) {
  echo "one"
  set name$ = "bob"
} else {
  goto 1:0
}
while (x < 3)
  set x = x + 1
target player
return
`

func TestRender_RoundTrip(t *testing.T) {
	opts := compiler.Defaults()
	opts.InputFileName = "round.txt"

	first, err := compiler.Compile([]byte(roundTripSource), opts, nil)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	var buf bytes.Buffer
	if err := Render(&buf, first); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	second, err := compiler.Compile(buf.Bytes(), opts, nil)
	if err != nil {
		t.Fatalf("recompiling rendered source failed: %v\n%s", err, buf.String())
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("round trip changed the file; rendered source:\n%s", buf.String())
	}
}
