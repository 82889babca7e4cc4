package disasm

import (
	"bytes"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"apetools/internal/ape"
	"apetools/internal/textutil"
)

func constant(v float32) ape.OptionalExpression {
	return ape.SomeExpression(ape.ConstantExpression(v))
}

func greater(name string, v float32) ape.OptionalExpression {
	return ape.SomeExpression(&ape.Expression{
		Operator: ape.OpGt,
		Left:     ape.Side{Type: ape.OperandFloatVar, TreePos: 5, Value: ape.StringOperand{Value: ape.ByteString(name)}},
		Right:    ape.Side{Type: ape.OperandFloatConst, TreePos: 6, Value: ape.FloatOperand{Value: v}},
	})
}

func TestDisassemble_Dimensions(t *testing.T) {
	f := &ape.File{Windows: []ape.Window{{ID: 1, Commands: []ape.WindowCommand{
		&ape.DimensionsCommand{Width: constant(2.5)},
	}}}}
	data, err := f.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	var buf bytes.Buffer
	if err := Disassemble(&buf, data, Options{}); err != nil {
		t.Fatalf("Disassemble failed: %v", err)
	}

	want := `FilePosition(12)
Window 1
    DimensionsCommand
        OptionalExpression
        OptionalExpression
        OptionalExpression
            ExpressionValue(Add)
                ExpressionType(FloatConst, FloatConst)
                LeftTreePos(5)
                FloatOperand(0)
                RightTreePos(6)
                FloatOperand(2.5)
        OptionalExpression
    EndCommand
Switches
`
	if got := buf.String(); got != want {
		t.Errorf("listing mismatch\ngot:\n%s\nwant:\n%s", got, want)
	}
}

func TestDisassemble_DecodeErrorWritesNothing(t *testing.T) {
	var buf bytes.Buffer
	err := Disassemble(&buf, []byte{1, 2, 3}, Options{})
	if err == nil {
		t.Fatal("expected error")
	}
	if buf.Len() != 0 {
		t.Errorf("wrote %d bytes on failure", buf.Len())
	}
}

func TestRender_Switch(t *testing.T) {
	f := &ape.File{Switches: []ape.Switch{{Label: 20001, Commands: []ape.CCCommand{
		{CC: 1, Command: ape.SwitchCommand{Type: ape.SwitchGoto, Str: ape.SomeString("1:1")}},
	}}}}

	var buf bytes.Buffer
	if err := Render(&buf, f, nil, Options{}); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	want := `Switches
Switch(20001)
    CCLabel(1)
    GotoCommand
        OptionalString
            String '1:1'
        FormattingValue
        OptionalExpression
    CCLabel(0)
    EndCommand
`
	if got := buf.String(); got != want {
		t.Errorf("listing mismatch\ngot:\n%s\nwant:\n%s", got, want)
	}
}

func TestRender_CommandLines(t *testing.T) {
	f := &ape.File{Windows: []ape.Window{{ID: 10001, Commands: []ape.WindowCommand{
		&ape.FlagsCommand{Flags: ape.FlagPersist | ape.FlagSubtitle | 1<<8},
		&ape.ImageCommand{FileName: "bg.pcx", Flags: ape.ImageTile | 16},
		&ape.BackgroundCommand{Colors: [4]uint32{0xff000000, 0, 0x01020304, 0}},
		&ape.SubWindowCommand{Label: 10002},
		&ape.SwitchRefCommand{Kind: ape.CodeThinkSwitch, Label: 20001},
		&ape.TalkCommand{Animation1: "a", Name1: "n1", Name2: "n2", Stay1: 1},
		&ape.CamCommand{Name: "cam1", Params: ape.UnsetCamParams()},
		&ape.FormattedStringCommand{Kind: ape.CodeTitle, Text: "caf\xe9", Format: ape.FormattingValue{
			{Type: ape.FormatVariableName, Value: ape.StringOperand{Value: "gold"}},
		}},
	}}}}

	cs, err := textutil.LookupCharset("windows-1252")
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := Render(&buf, f, nil, Options{Charset: cs}); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"        Flags(persist,subtitle,UnknownFlag8)\n",
		"        ImageFlags(tile,Unknown(16))\n",
		"        Color1(000000ff) Color2(00000000) Color3(04030201)  Color4(00000000)\n",
		"    SubWindowCommand(10002)\n",
		"    ThinkSwitchCommand(20001)\n",
		"        TalkParams(Stay1Flag=1,Stay2Flag=0)\n",
		"        CamParams(Yaw=32769,Pitch=32769,Fov=32769,Far=32769,Near=32769,Fwd=32769,Speed=32769,Lift=32769,Lag=32769,Occlude=32769,Restore=32769,Zip=32769)\n",
		"    TitleCommand\n",
		"        String 'café'\n",
		"            TypedFormattingValue(VariableName)\n                StringOperand\n                    String 'gold'\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in\n%s", want, out)
		}
	}
}

func TestRender_NestedExpressionIndent(t *testing.T) {
	inner := &ape.Expression{
		Operator: ape.OpMul,
		Left:     ape.Side{Type: ape.OperandFloatConst, TreePos: 25, Value: ape.FloatOperand{Value: 2}},
		Right:    ape.Side{Type: ape.OperandFloatConst, TreePos: 26, Value: ape.FloatOperand{Value: 3}},
	}
	f := &ape.File{Windows: []ape.Window{{ID: 1, Commands: []ape.WindowCommand{
		&ape.DimensionsCommand{XPos: ape.SomeExpression(&ape.Expression{
			Operator: ape.OpAdd,
			Left:     ape.Side{Type: ape.OperandExpression, TreePos: 5, Value: ape.ExpressionOperand{Expr: inner}},
			Right:    ape.Side{Type: ape.OperandFloatConst, TreePos: 6, Value: ape.FloatOperand{Value: 1}},
		})},
	}}}}

	var buf bytes.Buffer
	if err := Render(&buf, f, nil, Options{}); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	want := `            ExpressionValue(Add)
                ExpressionType(Expression, FloatConst)
                LeftTreePos(5)
                ExpressionValue(Mul)
                    ExpressionType(FloatConst, FloatConst)
                    LeftTreePos(25)
                    FloatOperand(2)
                    RightTreePos(26)
                    FloatOperand(3)
                RightTreePos(6)
                FloatOperand(1)
`
	if !strings.Contains(buf.String(), want) {
		t.Errorf("nested expression listing mismatch:\n%s", buf.String())
	}
}

func TestFormatG9(t *testing.T) {
	tests := []struct {
		in   float32
		want string
	}{
		{0, "0"},
		{1, "1"},
		{0.5, "0.5"},
		{0.1, "0.100000001"},
		{-3.25, "-3.25"},
		{1e10, "1E+10"},
		{1.52587890625e-05, "1.52587891E-05"},
		{123456789, "123456792"},
	}
	for _, tt := range tests {
		if got := FormatG9(tt.in); got != tt.want {
			t.Errorf("FormatG9(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestWriteYAML(t *testing.T) {
	f := &ape.File{
		Windows: []ape.Window{{ID: 10001, Commands: []ape.WindowCommand{
			&ape.ChoiceCommand{Condition: greater("gold", 5), Text: "Buy", Label: 10002},
			&ape.DimensionsCommand{Width: constant(200)},
		}}},
		Switches: []ape.Switch{{Label: 20001, Commands: []ape.CCCommand{
			{CC: 1, Command: ape.SwitchCommand{Type: ape.SwitchEcho, Str: ape.SomeString("hi")}},
		}}},
	}

	var buf bytes.Buffer
	if err := WriteYAML(&buf, f, nil, Options{}); err != nil {
		t.Fatalf("WriteYAML failed: %v", err)
	}

	var doc yamlFile
	if err := yaml.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("output is not valid yaml: %v\n%s", err, buf.String())
	}
	if len(doc.Windows) != 1 || doc.Windows[0].Label != "1:1" {
		t.Fatalf("windows = %+v", doc.Windows)
	}
	choice := doc.Windows[0].Commands[0]
	if choice.Command != "ChoiceCommand" || choice.Condition != "gold > 5" || choice.Label != "1:2" {
		t.Errorf("choice = %+v", choice)
	}
	if choice.Text == nil || *choice.Text != "Buy" {
		t.Errorf("choice text = %v", choice.Text)
	}
	if got := doc.Windows[0].Commands[1].Fields["width"]; got != "200" {
		t.Errorf("width = %q", got)
	}
	if len(doc.Switches) != 1 || doc.Switches[0].Commands[0].CC != "1" {
		t.Fatalf("switches = %+v", doc.Switches)
	}
	if s := doc.Switches[0].Commands[0].Str; s == nil || *s != "hi" {
		t.Errorf("echo str = %v", s)
	}
}
