package compiler

import (
	"errors"
	"strings"
	"testing"

	"apetools/internal/ape"
)

func compileString(t *testing.T, src string, opts Options) *ape.File {
	t.Helper()
	if opts.InputFileName == "" {
		opts.InputFileName = "test.txt"
	}
	f, err := Compile([]byte(src), opts, nil)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	return f
}

func compileError(t *testing.T, src string, opts Options) *Error {
	t.Helper()
	opts.InputFileName = "test.txt"
	_, err := Compile([]byte(src), opts, nil)
	if err == nil {
		t.Fatal("expected compile error")
	}
	var ce *Error
	if !errors.As(err, &ce) {
		t.Fatalf("error %v is not a compile error", err)
	}
	return ce
}

func TestInlineSwitchHash(t *testing.T) {
	tests := []struct {
		name string
		want uint32
	}{
		{"a.txt", 97},
		{"ab", 3105},
		{"scripts/Intro.TXT", 61836},
		{`C:\anox\intro.txt`, 61836},
		{"averylongscriptname.txt", 78761},
	}
	for _, tt := range tests {
		got, err := InlineSwitchHash(tt.name)
		if err != nil {
			t.Fatalf("InlineSwitchHash(%q) failed: %v", tt.name, err)
		}
		if got != tt.want {
			t.Errorf("InlineSwitchHash(%q) = %d, want %d", tt.name, got, tt.want)
		}
	}

	if _, err := InlineSwitchHash("caf\xe9.txt"); err == nil {
		t.Error("expected error for non-ASCII file name")
	}
}

func TestCompile_WindowCollation(t *testing.T) {
	src := "#window 1:0\nchoice \"Go\", 2:0\nbody \"Hello\", gold\ntitle \"Hi\"\n"
	f := compileString(t, src, Defaults())

	if len(f.Windows) != 1 {
		t.Fatalf("got %d windows, want 1", len(f.Windows))
	}
	w := f.Windows[0]
	if w.ID != 10000 {
		t.Errorf("window ID = %d, want 10000", w.ID)
	}

	var codes []ape.CommandCode
	for _, c := range w.Commands {
		codes = append(codes, c.Code())
	}
	want := []ape.CommandCode{ape.CodeTitle, ape.CodeBody, ape.CodeFlags, ape.CodeDimensions, ape.CodeChoice}
	if len(codes) != len(want) {
		t.Fatalf("command codes = %v, want %v", codes, want)
	}
	for i := range want {
		if codes[i] != want[i] {
			t.Fatalf("command codes = %v, want %v", codes, want)
		}
	}

	if flags := w.Commands[2].(*ape.FlagsCommand).Flags; flags != ape.FlagNoBackground {
		t.Errorf("flags = %v, want nobackground only", flags.Names())
	}

	body := w.Commands[1].(*ape.FormattedStringCommand)
	if len(body.Format) != 1 || body.Format[0].Type != ape.FormatVariableName {
		t.Fatalf("body format = %+v", body.Format)
	}
	if name := body.Format[0].Value.(ape.StringOperand).Value; name != "gold" {
		t.Errorf("format variable = %q, want gold", name)
	}

	choice := w.Commands[4].(*ape.ChoiceCommand)
	if choice.Label != 20000 || choice.Text != "Go" {
		t.Errorf("choice = %+v", choice)
	}
}

func TestCompile_BackgroundClearsNoBackground(t *testing.T) {
	src := "#window 1:0\nbackground color1 = 10203040 stretch\n"
	f := compileString(t, src, Defaults())

	var bg *ape.BackgroundCommand
	var img *ape.ImageCommand
	for _, c := range f.Windows[0].Commands {
		switch c := c.(type) {
		case *ape.FlagsCommand:
			t.Errorf("unexpected flags command %v", c.Flags.Names())
		case *ape.BackgroundCommand:
			bg = c
		case *ape.ImageCommand:
			img = c
		}
	}
	if bg == nil || bg.Colors[0] != 0x40302010 {
		t.Fatalf("background = %+v", bg)
	}
	if img == nil || img.FileName != "default_stretch" || img.Flags != ape.ImageStretch {
		t.Fatalf("image = %+v", img)
	}
	if !img.CanEmitAsBackground() {
		t.Error("background image should be expressible as a background directive")
	}
}

func TestCompile_WindowElse(t *testing.T) {
	src := "#window 1:0\nif (a)\n  body \"yes\"\nelse\n  body \"no\"\n"
	f := compileString(t, src, Defaults())

	var bodies []*ape.FormattedStringCommand
	for _, c := range f.Windows[0].Commands {
		if b, ok := c.(*ape.FormattedStringCommand); ok {
			bodies = append(bodies, b)
		}
	}
	if len(bodies) != 2 {
		t.Fatalf("got %d bodies, want 2", len(bodies))
	}
	if op := bodies[0].Condition.Expr.Operator; op != ape.OpAdd {
		t.Errorf("if condition operator = %v, want Add", op)
	}
	if op := bodies[1].Condition.Expr.Operator; op != ape.OpNeq {
		t.Errorf("else condition operator = %v, want Neq", op)
	}
}

func TestCompile_WindowControlFlowErrors(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"#window 1:0\nelse\nbody \"x\"\n", "'else' without matching 'if'"},
		{"#window 1:0\n}\n", "Brace closes non-existent control flow block"},
		{"#window 1:0\nif (a) {\nbody \"x\"\n", "Unterminated 'if' block"},
		{"#window 1:0\nif (a)\nfont \"x\"\n", "Unconditional command inside of a condition"},
		{"#window 1:0\nstyle a\nstyle b\n", "Style is already defined"},
	}
	for _, tt := range tests {
		ce := compileError(t, tt.src, Defaults())
		if ce.Message != tt.want {
			t.Errorf("%q: error %q, want %q", tt.src, ce.Message, tt.want)
		}
	}
}

func TestCompile_SwitchLayout(t *testing.T) {
	src := `#switch 2:0
if (x > 1)
{
  set y = 2
}
else
  return
echo "done"
`
	f := compileString(t, src, Defaults())
	if len(f.Switches) != 1 {
		t.Fatalf("got %d switches, want 1", len(f.Switches))
	}
	cmds := f.Switches[0].Commands

	want := []struct {
		cc  uint64
		typ ape.SwitchCommandType
		str string
	}{
		{1, ape.SwitchIf, ""},
		{5, ape.SwitchSetFloat, "y"},
		{6, ape.SwitchGoto, "0:0"},
		{7, ape.SwitchEcho, "done"},
	}
	if len(cmds) != len(want) {
		t.Fatalf("got %d commands, want %d: %+v", len(cmds), len(want), cmds)
	}
	for i, w := range want {
		got := cmds[i]
		if got.CC != w.cc || got.Command.Type != w.typ || string(got.Command.Str.Value) != w.str {
			t.Errorf("command %d = cc %d %v %q, want cc %d %v %q",
				i, got.CC, got.Command.Type, got.Command.Str.Value, w.cc, w.typ, w.str)
		}
	}

	cond := cmds[0].Command.Expr.Expr
	if cond.Operator != ape.OpGt || cond.Left.TreePos != 5 || cond.Right.TreePos != 6 {
		t.Errorf("condition = %+v", cond)
	}
	if v, ok := cmds[1].Command.Expr.ResolveFloatConstant(); !ok || v != 2 {
		t.Errorf("set value = %v, %v", v, ok)
	}
}

func TestCompile_EmptySwitchIsNoOp(t *testing.T) {
	f := compileString(t, "#switch 3:1\n\n", Defaults())
	cmds := f.Switches[0].Commands
	if len(cmds) != 1 || cmds[0].CC != 1 || cmds[0].Command.Type != ape.SwitchNoOp {
		t.Errorf("commands = %+v", cmds)
	}
	if f.Switches[0].Label != 30001 {
		t.Errorf("label = %d, want 30001", f.Switches[0].Label)
	}
}

func TestCompile_StringAssignments(t *testing.T) {
	src := "#switch 1:0\nset name$ = \"a\\tb\"\nset other$ = plain\nunset name$\nunset count\n"
	cmds := compileString(t, src, Defaults()).Switches[0].Commands

	want := []struct {
		typ ape.SwitchCommandType
		str string
	}{
		{ape.SwitchSetString, "name$=\"a\tb\""},
		{ape.SwitchSetString, "other$=plain"},
		{ape.SwitchSetString, "name$"},
		{ape.SwitchSetFloat, "count"},
	}
	if len(cmds) != len(want) {
		t.Fatalf("got %d commands, want %d", len(cmds), len(want))
	}
	for i, w := range want {
		c := cmds[i].Command
		if c.Type != w.typ || string(c.Str.Value) != w.str {
			t.Errorf("command %d = %v %q, want %v %q", i, c.Type, c.Str.Value, w.typ, w.str)
		}
	}
	if cmds[3].Command.Expr.Present() {
		t.Error("unset float should carry no expression")
	}
}

func TestCompile_InlineSwitch(t *testing.T) {
	src := "#window 1:0\nstartswitch\n{\n  set a = 1\n}\n"
	opts := Defaults()
	opts.InputFileName = "intro.txt"
	f := compileString(t, src, opts)

	const wantID = ape.InlineSwitchBase + 61836*10000
	var ref *ape.SwitchRefCommand
	for _, c := range f.Windows[0].Commands {
		if r, ok := c.(*ape.SwitchRefCommand); ok {
			ref = r
		}
	}
	if ref == nil || ref.Kind != ape.CodeStartSwitch || ref.Label != wantID {
		t.Fatalf("switch ref = %+v, want label %d", ref, wantID)
	}
	sw, ok := f.SwitchByLabel(wantID)
	if !ok {
		t.Fatal("inline switch missing")
	}
	if len(sw.Commands) != 1 || sw.Commands[0].Command.Type != ape.SwitchSetFloat {
		t.Errorf("inline switch commands = %+v", sw.Commands)
	}
}

func TestCompile_ExplicitInlineSwitchHash(t *testing.T) {
	src := "#window 1:0\nfinishswitch {\n  return\n}\n"
	opts := Defaults()
	opts.InlineSwitchHash = 7
	opts.UseInlineSwitchHash = true
	f := compileString(t, src, opts)

	if _, ok := f.SwitchByLabel(ape.InlineSwitchBase + 70000); !ok {
		t.Error("inline switch not labelled from the explicit hash")
	}

	opts.InlineSwitchHash = MaxInlineSwitchHash + 1
	if _, err := Compile([]byte(src), opts, nil); err == nil {
		t.Error("expected out of range hash to be rejected")
	}
}

func TestCompile_Precedence(t *testing.T) {
	src := "#switch 1:0\nset a = 2 * 3 / 4\n"

	native := compileString(t, src, Defaults()).Switches[0].Commands[0].Command.Expr.Expr
	if native.Operator != ape.OpDiv {
		t.Errorf("native root operator = %v, want Div", native.Operator)
	}

	opts := Defaults()
	opts.LegacyPrecedence = true
	legacy := compileString(t, src, opts).Switches[0].Commands[0].Command.Expr.Expr
	if legacy.Operator != ape.OpMul {
		t.Errorf("legacy root operator = %v, want Mul", legacy.Operator)
	}
	if legacy.Right.Type != ape.OperandExpression || legacy.Right.TreePos != 6 {
		t.Errorf("legacy right side = %+v", legacy.Right)
	}
}

func TestCompile_OptimizeDropsConstantConditions(t *testing.T) {
	src := "#switch 1:0\nif (1 + 1 == 3) echo \"never\"\necho \"always\"\n"

	opts := Defaults()
	opts.Optimize = true
	cmds := compileString(t, src, opts).Switches[0].Commands
	if len(cmds) != 1 || string(cmds[0].Command.Str.Value) != "always" || cmds[0].CC != 1 {
		t.Errorf("optimized commands = %+v", cmds)
	}

	cmds = compileString(t, src, Defaults()).Switches[0].Commands
	if len(cmds) != 3 {
		t.Errorf("unoptimized command count = %d, want 3", len(cmds))
	}
}

func TestCompile_DivideByZeroWhenOptimizing(t *testing.T) {
	opts := Defaults()
	opts.Optimize = true
	ce := compileError(t, "#switch 1:0\nset a = 1 / 0\n", opts)
	if ce.Message != "Float expression divides by zero" {
		t.Errorf("error = %q", ce.Message)
	}
}

func TestCompile_WarningsAsErrors(t *testing.T) {
	src := "#window 1:0\nstartconsole \"map x\"\n"

	var sink Collector
	opts := Defaults()
	opts.InputFileName = "w.txt"
	f, err := Compile([]byte(src), opts, &sink)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if sink.Count(SeverityWarning) != 1 {
		t.Errorf("warnings = %d, want 1", sink.Count(SeverityWarning))
	}
	for _, c := range f.Windows[0].Commands {
		if s, ok := c.(*ape.SimpleStringCommand); ok && s.Value != "map x\n" {
			t.Errorf("console value = %q", s.Value)
		}
	}

	opts.WarningsAsErrors = true
	sink = Collector{}
	if _, err := Compile([]byte(src), opts, &sink); err == nil {
		t.Fatal("expected warning to fail the compile")
	} else if !strings.Contains(err.Error(), "Console commands are deprecated") {
		t.Errorf("error = %v", err)
	}
	if sink.Count(SeverityWarning) != 1 {
		t.Errorf("warnings = %d, want 1", sink.Count(SeverityWarning))
	}
}

func TestCompile_ErrorReportedToSink(t *testing.T) {
	var sink Collector
	opts := Defaults()
	opts.InputFileName = "bad.txt"
	_, err := Compile([]byte("#switch 1:0\nset a = 1.2.3\n"), opts, &sink)
	if err == nil {
		t.Fatal("expected error")
	}
	if sink.Count(SeverityError) != 1 {
		t.Fatalf("errors reported = %d, want 1", sink.Count(SeverityError))
	}
	d := sink.Diagnostics[0]
	if d.Message != "Multiple decimal points in float literal" {
		t.Errorf("message = %q", d.Message)
	}
	if got := d.Location.String(); got != "bad.txt(2,9)" {
		t.Errorf("location = %s", got)
	}
}

func TestCompile_NativeMacros(t *testing.T) {
	src := "#define LIMIT 5\n#switch 1:0\nset a = LIMIT\n"
	cmds := compileString(t, src, Defaults()).Switches[0].Commands
	if v, ok := cmds[0].Command.Expr.ResolveFloatConstant(); !ok || v != 5 {
		t.Errorf("macro value = %v, %v", v, ok)
	}
}

func TestCompile_LegacyDialect(t *testing.T) {
	src := "garbage before directives\n" +
		"#define GREETING \"hello\"\n" +
		"#switch 1:0\n" +
		"echo \"GREETING\" // trailing\n" +
		"goto 4:2 \n"

	opts := LegacyOptions()
	opts.InputFileName = "legacy.txt"
	cmds := compileString(t, src, opts).Switches[0].Commands
	if len(cmds) != 2 {
		t.Fatalf("got %d commands, want 2: %+v", len(cmds), cmds)
	}
	if s := string(cmds[0].Command.Str.Value); s != "hello" {
		t.Errorf("echo = %q, want hello", s)
	}
	if s := string(cmds[1].Command.Str.Value); s != "4:2 " {
		t.Errorf("legacy goto keeps the raw line, got %q", s)
	}
}

func TestCompile_TopLevelErrors(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"window 1:0\n", "Expected a top-level directive"},
		{"#frame 1:0\n", "Unknown compile directive"},
		{"#switch 1:0\nwhile (a) { }\n", "'while' loop interior has no runnable statements"},
		{"#switch 100000:0\n", "Label part was too large"},
	}
	for _, tt := range tests {
		ce := compileError(t, tt.src, Defaults())
		if ce.Message != tt.want {
			t.Errorf("%q: error %q, want %q", tt.src, ce.Message, tt.want)
		}
	}
}

func TestCompile_ReservedLabelZero(t *testing.T) {
	for _, src := range []string{"#window 0:0\n", "#switch 0:0\nreturn\n"} {
		var sink Collector
		opts := Defaults()
		opts.InputFileName = "zero.txt"
		f, err := Compile([]byte(src), opts, &sink)
		if err == nil {
			t.Errorf("%q: compiled to %+v, want error", src, f)
			continue
		}
		if sink.Count(SeverityError) != 1 {
			t.Fatalf("%q: errors reported = %d, want 1", src, sink.Count(SeverityError))
		}
		d := sink.Diagnostics[0]
		if d.Message != "Label 0 is reserved" {
			t.Errorf("%q: message = %q", src, d.Message)
		}
		if got := d.Location.String(); got != "zero.txt(1,9)" {
			t.Errorf("%q: location = %s, want zero.txt(1,9)", src, got)
		}
	}

	// 0:0 stays valid as a reference.
	compileString(t, "#switch 1:0\ngoto 0:0\n", Defaults())
}

func TestCompile_FloatLiteralRange(t *testing.T) {
	cmds := compileString(t, "#switch 1:0\nset a = 1e5\n", Defaults()).Switches[0].Commands
	if v, ok := cmds[0].Command.Expr.ResolveFloatConstant(); !ok || v != 100000 {
		t.Errorf("1e5 = %v, %v", v, ok)
	}

	ce := compileError(t, "#switch 1:0\nset a = 1e60\n", Defaults())
	if ce.Message != "Float literal 1e60 is out of range" {
		t.Errorf("message = %q", ce.Message)
	}
	if got := ce.Location.String(); got != "test.txt(2,9)" {
		t.Errorf("location = %s", got)
	}
}
