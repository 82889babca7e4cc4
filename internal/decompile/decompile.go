// Package decompile renders a decoded APE file back to script source that
// the compiler accepts.
package decompile

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"

	"apetools/internal/ape"
)

// Render writes the script source of f to w. Nothing is written when some
// part of f has no script form.
func Render(w io.Writer, f *ape.File) error {
	r := &renderer{switches: map[uint32]*ape.Switch{}, inlined: map[uint32]bool{}}
	for i := range f.Switches {
		sw := &f.Switches[i]
		r.switches[sw.Label] = sw
	}

	for _, win := range f.Windows {
		if err := r.window(win); err != nil {
			return fmt.Errorf("window %s: %w", ape.FormatLabel(win.ID), err)
		}
	}

	for _, sw := range f.Switches {
		if r.inlined[sw.Label] {
			continue
		}
		fmt.Fprintf(&r.buf, "\n#switch %s\n", ape.FormatLabel(sw.Label))
		if err := r.switchBody(0, sw.Commands); err != nil {
			return fmt.Errorf("switch %s: %w", ape.FormatLabel(sw.Label), err)
		}
	}

	_, err := w.Write(r.buf.Bytes())
	return err
}

type renderer struct {
	buf      bytes.Buffer
	switches map[uint32]*ape.Switch
	inlined  map[uint32]bool
}

func (r *renderer) printf(format string, args ...any) {
	fmt.Fprintf(&r.buf, format, args...)
}

func (r *renderer) indent(n int) {
	r.buf.WriteString(strings.Repeat("  ", n))
}

func (r *renderer) conditionPrefix(cond ape.OptionalExpression) {
	if cond.Present() {
		r.printf("if (%s)\n\t", ExpressionSource(cond.Expr))
	}
}

func (r *renderer) window(win ape.Window) error {
	r.printf("#window %s\n", ape.FormatLabel(win.ID))

	var noBackground, hasBackground, backgroundImage bool
	for _, cmd := range win.Commands {
		switch c := cmd.(type) {
		case *ape.FlagsCommand:
			noBackground = c.Flags.Has(ape.FlagNoBackground)
		case *ape.BackgroundCommand:
			hasBackground = true
		case *ape.ImageCommand:
			if c.CanEmitAsBackground() {
				backgroundImage = true
			}
		}
	}
	imageAsBackground := backgroundImage && !hasBackground && !noBackground

	var refs []*ape.SwitchRefCommand
	for _, cmd := range win.Commands {
		if ref, ok := cmd.(*ape.SwitchRefCommand); ok {
			refs = append(refs, ref)
			continue
		}
		if err := r.windowCommand(cmd, imageAsBackground); err != nil {
			return err
		}
	}

	if !noBackground && !imageAsBackground && !hasBackground {
		r.printf("background color1=00000000\n")
	}

	sort.SliceStable(refs, func(i, j int) bool { return refs[i].Label < refs[j].Label })
	for _, ref := range refs {
		if err := r.switchRef(ref); err != nil {
			return err
		}
	}

	r.printf("\n")
	return nil
}

func (r *renderer) windowCommand(cmd ape.WindowCommand, imageAsBackground bool) error {
	switch c := cmd.(type) {
	case *ape.FormattedStringCommand:
		r.conditionPrefix(c.Condition)
		name := "body"
		if c.Kind == ape.CodeTitle {
			name = "title"
		}
		r.printf("%s %s%s\n", name, Quote(c.Text), formatSource(c.Format))

	case *ape.TalkCommand:
		return r.talk(c)

	case *ape.DimensionsCommand:
		for _, d := range []struct {
			name string
			e    ape.OptionalExpression
		}{{"width", c.Width}, {"height", c.Height}, {"xpos", c.XPos}, {"ypos", c.YPos}} {
			if d.e.Present() {
				r.printf("%s %s\n", d.name, ExpressionSource(d.e.Expr))
			}
		}

	case *ape.ImageCommand:
		return r.image(c, imageAsBackground)

	case *ape.FlagsCommand:
		for _, name := range c.Flags.Names() {
			switch {
			case name == "nobackground":
			case strings.HasPrefix(name, "UnknownFlag"):
				return fmt.Errorf("window flag %s has no script name", name)
			default:
				r.printf("flags %s\n", name)
			}
		}

	case *ape.SubWindowCommand:
		r.printf("subwindow %s\n", ape.FormatLabel(c.Label))

	case *ape.ChoiceCommand:
		r.conditionPrefix(c.Condition)
		r.printf("choice %s", Quote(c.Text))
		if len(c.Format) > 0 {
			r.printf("%s,", formatSource(c.Format))
		}
		r.printf(" %s\n", ape.FormatLabel(c.Label))

	case *ape.SimpleStringCommand:
		return r.simpleString(c)

	case *ape.XYPrintFXCommand:
		return r.xyprint(c)

	case *ape.BackgroundCommand:
		r.printf("background")
		wrote := false
		for i, color := range c.Colors {
			if color != 0 {
				r.printf(" color%d=%s", i+1, ape.ColorHex(color))
				wrote = true
			}
		}
		if !wrote {
			r.printf(" color1=00000000")
		}
		r.printf("\n")

	case *ape.CamCommand:
		r.cam(c)

	default:
		return fmt.Errorf("unexpected %s command", cmd.Type())
	}
	return nil
}

func (r *renderer) talk(c *ape.TalkCommand) error {
	if anim2, ok := c.Animation2.Get(); ok {
		r.printf("talk_ex %s %s %s %s", c.Name1, c.Name2, c.Animation1, anim2)
		if c.Stay1 == 0 || c.Stay2 == 0 {
			r.printf(" %s %s", stayWord(c.Stay1), stayWord(c.Stay2))
		}
		r.printf("\n")
		return nil
	}

	switch {
	case c.Name1 == "_click_" && c.Name2 == "playerchar0":
		r.printf("talk npc %s", c.Animation1)
	case c.Name1 == "playerchar0" && c.Name2 == "_click_":
		r.printf("talk player %s", c.Animation1)
	default:
		return fmt.Errorf("talk between %q and %q has no script form", c.Name1, c.Name2)
	}
	if c.Stay2 == 0 {
		r.printf(" nostay")
	}
	r.printf("\n")
	return nil
}

func stayWord(v uint32) string {
	if v != 0 {
		return "stay"
	}
	return "nostay"
}

func (r *renderer) image(c *ape.ImageCommand, asBackground bool) error {
	r.conditionPrefix(c.Condition)

	name, err := QuoteName(c.FileName)
	if err != nil {
		return fmt.Errorf("image: %w", err)
	}
	if asBackground && c.CanEmitAsBackground() {
		r.printf("background %s", name)
		if c.Flags.Has(ape.ImageStretch) {
			r.printf(" stretch")
		}
		if c.Flags.Has(ape.ImageTile) {
			r.printf(" tile")
		}
		r.printf("\n")
		return nil
	}

	if !c.XPos.Present() || !c.YPos.Present() {
		return fmt.Errorf("image %q has no position", c.FileName)
	}
	r.printf("image %s %s, %s", name, ExpressionSource(c.XPos.Expr), ExpressionSource(c.YPos.Expr))
	if c.Width.Present() {
		r.printf(", %s", ExpressionSource(c.Width.Expr))
	}
	if c.Height.Present() {
		r.printf(", %s", ExpressionSource(c.Height.Expr))
	}
	if names := c.Flags.Names(); len(names) > 0 {
		if !c.Height.Present() {
			return fmt.Errorf("image %q has flags but no height", c.FileName)
		}
		for _, name := range names {
			if strings.HasPrefix(name, "Unknown") {
				return fmt.Errorf("image flags %s have no script name", name)
			}
		}
		r.printf(", %s", strings.Join(names, " "))
	}
	r.printf("\n")
	return nil
}

// isLabel reports whether s is spelled high:low with digits only.
func isLabel(s ape.ByteString) bool {
	high, low, ok := strings.Cut(string(s), ":")
	return ok && high != "" && low != "" &&
		strings.Trim(high, "0123456789") == "" && strings.Trim(low, "0123456789") == ""
}

func (r *renderer) simpleString(c *ape.SimpleStringCommand) error {
	switch c.Kind {
	case ape.CodeStartConsole, ape.CodeFinishConsole:
		name := "startconsole"
		if c.Kind == ape.CodeFinishConsole {
			name = "finishconsole"
		}
		// The compiler appends the newline back.
		r.printf("%s %s\n", name, Quote(ape.ByteString(strings.TrimSuffix(string(c.Value), "\n"))))
	case ape.CodeFont, ape.CodeStyle:
		kind := "font"
		if c.Kind == ape.CodeStyle {
			kind = "style"
		}
		name, err := QuoteName(c.Value)
		if err != nil {
			return fmt.Errorf("%s: %w", kind, err)
		}
		r.printf("%s %s\n", kind, name)
	case ape.CodeNextWindow:
		switch {
		case c.Value == "0:0":
			r.printf("return\n")
		case isLabel(c.Value):
			r.printf("goto %s\n", c.Value)
		default:
			r.printf("nextwindow %s\n", c.Value)
		}
	default:
		return fmt.Errorf("unexpected %s command", c.Kind)
	}
	return nil
}

func (r *renderer) xyprint(c *ape.XYPrintFXCommand) error {
	if !c.X.Present() || !c.Y.Present() || !c.Alpha.Present() {
		return fmt.Errorf("xyprint %q is missing a coordinate", c.Message)
	}
	font, hasFont := c.Font.Get()
	fx := c.Red.Present() && c.Green.Present() && c.Blue.Present() && hasFont

	r.conditionPrefix(c.Condition)
	name := "xyprint"
	if fx {
		name = "xyprintfx"
	}
	r.printf("%s %s, %s, %s, ", name,
		ExpressionSource(c.X.Expr), ExpressionSource(c.Y.Expr), ExpressionSource(c.Alpha.Expr))
	if fx {
		r.printf("%s, %s, %s, %s, ",
			ExpressionSource(c.Red.Expr), ExpressionSource(c.Green.Expr), ExpressionSource(c.Blue.Expr), font)
	}
	r.printf("%s%s\n", Quote(c.Message), formatSource(c.Format))
	return nil
}

func (r *renderer) cam(c *ape.CamCommand) {
	r.printf("cam %s", c.Name)
	for _, s := range []struct {
		name string
		v    ape.OptionalString
	}{{"from", c.From}, {"to", c.To}, {"owner", c.Owner}} {
		if v, ok := s.v.Get(); ok {
			r.printf(" %s(%s)", s.name, v)
		}
	}

	p := c.Params
	for _, n := range []struct {
		name string
		v    uint16
	}{
		{"yaw", p.Yaw}, {"pitch", p.Pitch}, {"fov", p.Fov}, {"far", p.Far},
		{"near", p.Near}, {"fwd", p.Fwd}, {"speed", p.Speed}, {"lift", p.Lift},
		{"lag", p.Lag}, {"occlude", p.Occlude},
	} {
		if n.v != ape.CamUnset {
			r.printf(" %s(%d)", n.name, n.v)
		}
	}
	if p.Restore != ape.CamUnset {
		r.printf(" restore")
	}
	if p.Zip != ape.CamUnset {
		r.printf(" zip")
	}
	r.printf("\n")
}

func (r *renderer) switchRef(c *ape.SwitchRefCommand) error {
	name := map[ape.CommandCode]string{
		ape.CodeStartSwitch:  "startswitch",
		ape.CodeThinkSwitch:  "thinkswitch",
		ape.CodeFinishSwitch: "finishswitch",
	}[c.Kind]

	if !ape.IsInlineLabel(c.Label) {
		r.printf("%s %s\n", name, ape.FormatLabel(c.Label))
		return nil
	}

	sw, ok := r.switches[c.Label]
	if !ok {
		return fmt.Errorf("%s refers to missing inline switch %d", name, c.Label)
	}
	r.printf("%s {\n", name)
	if err := r.switchBody(1, sw.Commands); err != nil {
		return fmt.Errorf("inline switch %d: %w", c.Label, err)
	}
	r.printf("}\n")
	r.inlined[c.Label] = true
	return nil
}

func (r *renderer) switchBody(indent int, cmds []ape.CCCommand) error {
	stmts, err := Statements(cmds)
	if err != nil {
		return err
	}
	return r.block(indent, stmts)
}

func singleSimple(stmts []*Statement) bool {
	return len(stmts) == 1 && !stmts[0].Command.Type.IsControlFlow()
}

func (r *renderer) block(indent int, stmts []*Statement) error {
	for _, s := range stmts {
		if s.Command.Type == ape.SwitchNoOp {
			continue
		}
		r.indent(indent)
		if err := r.statement(indent, s); err != nil {
			return err
		}
	}
	return nil
}

// statement writes s starting at the current column.
func (r *renderer) statement(indent int, s *Statement) error {
	if !s.Command.Type.IsControlFlow() {
		line, err := simpleStatement(s.Command)
		if err != nil {
			return fmt.Errorf("cc %s: %w", ape.CCBinary(s.CC), err)
		}
		r.printf("%s\n", line)
		return nil
	}

	keyword := "if"
	if s.Command.Type == ape.SwitchWhile {
		keyword = "while"
	}
	r.printf("%s (%s)", keyword, ExpressionSource(s.Command.Expr.Expr))

	single := singleSimple(s.Then)
	if single {
		r.printf("\n")
	} else {
		r.printf(" {\n")
	}
	if err := r.block(indent+1, s.Then); err != nil {
		return err
	}
	if !single {
		r.indent(indent)
		r.printf("}")
	}

	if len(s.Else) == 0 {
		if !single {
			r.printf("\n")
		}
		return nil
	}

	if single {
		r.indent(indent)
		r.printf("else")
	} else {
		r.printf(" else")
	}

	switch {
	case len(s.Else) == 1 && s.Else[0].Command.Type == ape.SwitchIf:
		r.printf(" ")
		return r.statement(indent, s.Else[0])
	case singleSimple(s.Else):
		r.printf("\n")
		return r.block(indent+1, s.Else)
	}
	r.printf(" {\n")
	if err := r.block(indent+1, s.Else); err != nil {
		return err
	}
	r.indent(indent)
	r.printf("}\n")
	return nil
}

var simpleStatements = map[ape.SwitchCommandType]struct {
	name   string
	quoted bool
}{
	ape.SwitchGoSub:        {"gosub", false},
	ape.SwitchConsole:      {"console", true},
	ape.SwitchEcho:         {"echo", true},
	ape.SwitchTarget:       {"target", false},
	ape.SwitchPathTarget:   {"pathtarget", false},
	ape.SwitchExtern:       {"extern", false},
	ape.SwitchPlayAmbient:  {"playambient", false},
	ape.SwitchLoopAmbient:  {"loopambient", false},
	ape.SwitchStopAmbient:  {"stopambient", false},
	ape.SwitchPlayScene:    {"playscene", false},
	ape.SwitchLoopScene:    {"loopscene", false},
	ape.SwitchStopScene:    {"stopscene", false},
	ape.SwitchChainScripts: {"chainscripts", false},
	ape.SwitchCloseWindow:  {"closewindow", false},
	ape.SwitchLoadAPE:      {"loadape", true},
	ape.SwitchSetFocus:     {"setfocus", true},
}

func simpleStatement(c ape.SwitchCommand) (string, error) {
	str, hasStr := c.Str.Get()

	switch c.Type {
	case ape.SwitchSetFloat:
		if !hasStr {
			return "", fmt.Errorf("set has no variable name")
		}
		if !c.Expr.Present() {
			return "unset " + string(str) + formatSource(c.Format), nil
		}
		return fmt.Sprintf("set %s = %s%s", str, ExpressionSource(c.Expr.Expr), formatSource(c.Format)), nil

	case ape.SwitchSetString:
		if !hasStr {
			return "", fmt.Errorf("set has no variable name")
		}
		name, assigned, ok := strings.Cut(string(str), "=")
		if !ok {
			return "unset " + string(str), nil
		}
		if strings.HasPrefix(assigned, `"`) {
			if len(assigned) < 2 || !strings.HasSuffix(assigned, `"`) {
				return "", fmt.Errorf("string assignment %q has an unterminated quote", str)
			}
			assigned = Quote(ape.ByteString(assigned[1 : len(assigned)-1]))
		}
		return fmt.Sprintf("set %s = %s%s", name, assigned, formatSource(c.Format)), nil

	case ape.SwitchGoto:
		if !hasStr {
			return "", fmt.Errorf("goto has no target")
		}
		if str == "0:0" {
			return "return", nil
		}
		return "goto " + string(str) + formatSource(c.Format), nil
	}

	form, ok := simpleStatements[c.Type]
	if !ok {
		return "", fmt.Errorf("unexpected %s statement", c.Type)
	}
	if !hasStr {
		return form.name, nil
	}
	arg := string(str)
	if form.quoted {
		arg = Quote(str)
	}
	return form.name + " " + arg + formatSource(c.Format), nil
}
