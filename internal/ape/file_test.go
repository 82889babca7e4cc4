package ape

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"
)

func floatSide(pos uint64, v float32) Side {
	return Side{Type: OperandFloatConst, TreePos: pos, Value: FloatOperand{Value: v}}
}

func varSide(pos uint64, name string) Side {
	return Side{Type: OperandFloatVar, TreePos: pos, Value: StringOperand{Value: ByteString(name)}}
}

// gt builds "name > v" at the root position.
func gt(name string, v float32) OptionalExpression {
	return SomeExpression(&Expression{Operator: OpGt, Left: varSide(5, name), Right: floatSide(6, v)})
}

func constant(v float32) OptionalExpression {
	return SomeExpression(ConstantExpression(v))
}

func roundTrip(t *testing.T, f *File) *File {
	t.Helper()
	data, err := f.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	again, err := got.Encode()
	if err != nil {
		t.Fatalf("re-Encode failed: %v", err)
	}
	if !bytes.Equal(data, again) {
		t.Fatalf("re-encoded bytes differ")
	}
	return got
}

func TestDecode_SingleDimensionsWindow(t *testing.T) {
	f := &File{Windows: []Window{{ID: 1, Commands: []WindowCommand{&DimensionsCommand{}}}}}

	data, err := f.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	// header, id, code, four absent expressions, end, terminator pair, empty switches
	if want := 8 + 4 + 1 + 4*8 + 1 + 8 + 4; len(data) != want {
		t.Fatalf("encoded length = %d, want %d", len(data), want)
	}

	got, layout, err := DecodeWithLayout(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !reflect.DeepEqual(got, f) {
		t.Errorf("got %+v, want %+v", got, f)
	}
	if len(layout.Windows) != 1 || layout.Windows[0] != 12 {
		t.Errorf("window layout = %v, want [12]", layout.Windows)
	}
}

func TestDecode_BadSwitchMarker(t *testing.T) {
	data, err := (&File{}).Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	data[12] = 0xfd

	_, err = Decode(data)
	if err == nil || !strings.Contains(err.Error(), "Unexpected switch tag ID") {
		t.Fatalf("err = %v, want switch tag error", err)
	}
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("err is %T, want *DecodeError", err)
	}
}

func TestDecode_TrailingData(t *testing.T) {
	data, err := (&File{}).Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	data = append(data, 0)

	_, err = Decode(data)
	if err == nil || !strings.Contains(err.Error(), "Unexpected trailing data") {
		t.Fatalf("err = %v, want trailing data error", err)
	}
}

func TestDecode_BadHeader(t *testing.T) {
	// Either word being wrong is enough to reject the file.
	for _, at := range []int{0, 4} {
		data, _ := (&File{}).Encode()
		data[at] ^= 0x01
		if _, err := Decode(data); err == nil || !strings.Contains(err.Error(), "Header is invalid") {
			t.Errorf("corrupt byte %d: err = %v, want header error", at, err)
		}
	}
}

func TestDecode_SwitchesEndAtEOF(t *testing.T) {
	f := &File{Switches: []Switch{{Label: 20001, Commands: []CCCommand{{CC: 1, Command: SwitchCommand{Type: SwitchNoOp}}}}}}
	data, err := f.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	// Drop the zero label that closes the section.
	got, err := Decode(data[:len(data)-4])
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !reflect.DeepEqual(got, f) {
		t.Errorf("got %+v, want %+v", got, f)
	}
}

func TestDecode_UnknownCommandCode(t *testing.T) {
	w := NewWriter()
	w.WriteUint32(headerMagic)
	w.WriteUint32(headerVersion)
	w.WriteUint32(7)
	w.WriteUint8(99)

	_, err := Decode(w.Bytes())
	if err == nil || !strings.Contains(err.Error(), "Unknown command code 99") {
		t.Fatalf("err = %v, want unknown command code", err)
	}
	var de *DecodeError
	if errors.As(err, &de) && de.Offset != 13 {
		t.Errorf("offset = %d, want 13", de.Offset)
	}
}

func TestRoundTrip_AllWindowCommands(t *testing.T) {
	nested := &Expression{
		Operator: OpAnd,
		Left: Side{Type: OperandExpression, TreePos: 5, Value: ExpressionOperand{Expr: &Expression{
			Operator: OpEq,
			Left:     Side{Type: OperandStringVar, TreePos: 21, Value: StringOperand{Value: "name$"}},
			Right:    Side{Type: OperandStringConst, TreePos: 22, Value: QuotedStringOperand{Value: "boots"}},
		}}},
		Right: varSide(6, "flag"),
	}
	format := FormattingValue{
		{Type: FormatFloat, Value: FloatOperand{Value: 2.5}},
		{Type: FormatVariableName, Value: StringOperand{Value: "gold"}},
		{Type: FormatString, Value: QuotedStringOperand{Value: "lit"}},
		{Type: FormatStringVariableName, Value: StringOperand{Value: "who$"}},
	}
	params := UnsetCamParams()
	params.Yaw = 90
	params.Zip = 1

	f := &File{
		Windows: []Window{{ID: 10001, Commands: []WindowCommand{
			&FormattedStringCommand{Kind: CodeTitle, Text: "Title"},
			&FormattedStringCommand{Kind: CodeBody, Condition: SomeExpression(nested), Text: "Hello %s", Format: format},
			&TalkCommand{Animation1: "wave", Animation2: SomeString("nod"), Name1: "_click_", Name2: "playerchar0", Stay1: 1},
			&DimensionsCommand{XPos: constant(10), YPos: constant(20), Width: constant(300)},
			&ImageCommand{Condition: gt("x", 1), FileName: "pic.pcx", XPos: constant(0), YPos: constant(0), Flags: ImageStretch | ImageTile | ImageSolid | 1<<10},
			&FlagsCommand{Flags: FlagPersist | FlagPassive | 1<<12},
			&SubWindowCommand{Label: 10002},
			&ChoiceCommand{Condition: gt("y", 0), Text: "Yes", Format: format[:1], Label: 10003},
			&SimpleStringCommand{Kind: CodeStartConsole, Value: "echo hi\n"},
			&SimpleStringCommand{Kind: CodeFont, Value: "big"},
			&SimpleStringCommand{Kind: CodeFinishConsole, Value: ""},
			&SimpleStringCommand{Kind: CodeNextWindow, Value: "1:3"},
			&SimpleStringCommand{Kind: CodeStyle, Value: "fancy"},
			&XYPrintFXCommand{X: constant(1), Y: constant(2), Alpha: constant(1), Red: constant(0.5), Green: constant(0.25), Blue: constant(1), Font: SomeString("f"), Message: "msg", Condition: gt("z", 2)},
			&SwitchRefCommand{Kind: CodeStartSwitch, Label: 20001},
			&SwitchRefCommand{Kind: CodeThinkSwitch, Label: 20002},
			&SwitchRefCommand{Kind: CodeFinishSwitch, Label: 20003},
			&BackgroundCommand{Colors: [4]uint32{0xff000000, 1, 0, 0xdeadbeef}},
			&CamCommand{Name: "cam1", From: SomeString("a"), Owner: SomeString("b"), Params: params},
		}}},
	}

	got := roundTrip(t, f)
	if !reflect.DeepEqual(got, f) {
		t.Fatalf("round trip mismatch:\ngot  %+v\nwant %+v", got.Windows[0].Commands, f.Windows[0].Commands)
	}

	img := got.Windows[0].Commands[4].(*ImageCommand)
	if img.Flags&(1<<10) == 0 {
		t.Errorf("unknown image bit lost: %#x", uint32(img.Flags))
	}
}

func TestRoundTrip_SwitchCommands(t *testing.T) {
	var cmds []CCCommand
	for typ := SwitchNoOp; typ <= maxSwitchCommandType; typ++ {
		cmds = append(cmds, CCCommand{
			CC:      uint64(typ)<<2 + 3,
			Command: SwitchCommand{Type: typ, Str: SomeString("arg"), Expr: gt("v", float32(typ))},
		})
	}
	cmds[0].Command.Str = OptionalString{}
	cmds[1].Command.Format = FormattingValue{{Type: FormatFloat, Value: FloatOperand{Value: 1}}}

	f := &File{Switches: []Switch{{Label: 20001, Commands: cmds}, {Label: 20002}}}
	got := roundTrip(t, f)
	if !reflect.DeepEqual(got, f) {
		t.Fatalf("round trip mismatch")
	}
}

func TestSwitchList_Termination(t *testing.T) {
	t.Run("nonzero cc on end", func(t *testing.T) {
		w := NewWriter()
		w.WriteUint64(5)
		w.WriteUint8(switchEndCode)
		_, err := decodeSwitchCommands(NewReader(w.Bytes()))
		if err == nil || !strings.Contains(err.Error(), "Invalid cc code for end command") {
			t.Fatalf("err = %v", err)
		}
	})

	t.Run("out of range code", func(t *testing.T) {
		w := NewWriter()
		w.WriteUint64(0)
		w.WriteUint8(22)
		_, err := decodeSwitchCommands(NewReader(w.Bytes()))
		if err == nil || !strings.Contains(err.Error(), "Invalid switch command code 22") {
			t.Fatalf("err = %v", err)
		}
	})

	t.Run("keeps order", func(t *testing.T) {
		want := []CCCommand{
			{CC: 1, Command: SwitchCommand{Type: SwitchEcho, Str: SomeString("a")}},
			{CC: 7, Command: SwitchCommand{Type: SwitchEcho, Str: SomeString("b")}},
		}
		w := NewWriter()
		encodeSwitchCommands(w, want)
		r := NewReader(w.Bytes())
		got, err := decodeSwitchCommands(r)
		if err != nil {
			t.Fatalf("decode failed: %v", err)
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("got %+v, want %+v", got, want)
		}
		if !r.AtEOF() {
			t.Errorf("reader not at EOF after end sentinel")
		}
	})
}

func TestEncode_RejectsZeroWindowID(t *testing.T) {
	f := &File{Windows: []Window{{ID: 0}}}
	if _, err := f.Encode(); err == nil {
		t.Fatal("expected error for window id 0")
	}
}

func TestEncode_RejectsMismatchedKind(t *testing.T) {
	f := &File{Windows: []Window{{ID: 1, Commands: []WindowCommand{&SimpleStringCommand{Kind: CodeBody, Value: "x"}}}}}
	if _, err := f.Encode(); err == nil {
		t.Fatal("expected error for body code on simple string command")
	}
}

func TestCheckReferences(t *testing.T) {
	f := &File{
		Windows: []Window{
			{ID: 10001, Commands: []WindowCommand{
				&SwitchRefCommand{Kind: CodeStartSwitch, Label: 20001},
				&SwitchRefCommand{Kind: CodeFinishSwitch, Label: 20009},
				&ChoiceCommand{Text: "go", Label: 10002},
				&SimpleStringCommand{Kind: CodeNextWindow, Value: "5:1"},
			}},
			{ID: 10002},
		},
		Switches: []Switch{
			{Label: 20001, Commands: []CCCommand{{CC: 1, Command: SwitchCommand{Type: SwitchGoto, Str: SomeString("1:1")}}}},
			{Label: 20005},
		},
	}

	report := f.CheckReferences()
	if len(report.MissingSwitches) != 1 || report.MissingSwitches[0].Label != 20009 {
		t.Errorf("missing switches = %+v", report.MissingSwitches)
	}
	if len(report.ExternalWindows) != 1 || report.ExternalWindows[0].Label != 50001 {
		t.Errorf("external windows = %+v", report.ExternalWindows)
	}
	if !reflect.DeepEqual(report.UnusedSwitches, []uint32{20005}) {
		t.Errorf("unused switches = %v", report.UnusedSwitches)
	}

	refs := f.References()
	if len(refs) != 5 {
		t.Fatalf("got %d references, want 5", len(refs))
	}
	if last := refs[4]; last.FromSwitch != 20001 || last.Label != 10001 || last.Via != "GotoCommand" {
		t.Errorf("switch goto reference = %+v", last)
	}
}

func TestLabels(t *testing.T) {
	l, err := ParseLabel(" 12:34 ")
	if err != nil || l != 120034 {
		t.Fatalf("ParseLabel = %d, %v", l, err)
	}
	if got := FormatLabel(120034); got != "12:34" {
		t.Errorf("FormatLabel = %q", got)
	}
	if _, err := ParseLabel("1:10000"); !errors.Is(err, ErrLabelTooLarge) {
		t.Errorf("err = %v, want ErrLabelTooLarge", err)
	}
	if _, err := ParseLabel("a:1"); !errors.Is(err, ErrLabelNotIntegral) {
		t.Errorf("err = %v, want ErrLabelNotIntegral", err)
	}
}
