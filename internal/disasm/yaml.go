package disasm

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"apetools/internal/ape"
	"apetools/internal/decompile"
)

type yamlFile struct {
	Windows  []yamlWindow `yaml:"windows"`
	Switches []yamlSwitch `yaml:"switches,omitempty"`
}

type yamlWindow struct {
	Label    string        `yaml:"label"`
	ID       uint32        `yaml:"id"`
	Offset   int           `yaml:"offset,omitempty"`
	Commands []yamlCommand `yaml:"commands"`
}

type yamlCommand struct {
	Command   string            `yaml:"command"`
	Condition string            `yaml:"condition,omitempty"`
	Text      *string           `yaml:"text,omitempty"`
	Format    []string          `yaml:"format,omitempty"`
	Label     string            `yaml:"label,omitempty"`
	Fields    map[string]string `yaml:"fields,omitempty"`
	Flags     []string          `yaml:"flags,omitempty"`
}

type yamlSwitch struct {
	Label    string              `yaml:"label"`
	ID       uint32              `yaml:"id"`
	Offset   int                 `yaml:"offset,omitempty"`
	Commands []yamlSwitchCommand `yaml:"commands"`
}

type yamlSwitchCommand struct {
	CC      string   `yaml:"cc"`
	Command string   `yaml:"command"`
	Str     *string  `yaml:"str,omitempty"`
	Format  []string `yaml:"format,omitempty"`
	Expr    string   `yaml:"expr,omitempty"`
}

// WriteYAML writes a structured dump of f. Expressions are rendered in
// script syntax and strings are transcoded with opts.Charset.
func WriteYAML(w io.Writer, f *ape.File, layout *ape.Layout, opts Options) error {
	conv := yamlConverter{opts: opts}
	doc := yamlFile{}
	for i, win := range f.Windows {
		yw := yamlWindow{Label: ape.FormatLabel(win.ID), ID: win.ID}
		if layout != nil && i < len(layout.Windows) {
			yw.Offset = layout.Windows[i]
		}
		for _, cmd := range win.Commands {
			yw.Commands = append(yw.Commands, conv.windowCommand(cmd))
		}
		doc.Windows = append(doc.Windows, yw)
	}
	for i, sw := range f.Switches {
		ys := yamlSwitch{Label: ape.FormatLabel(sw.Label), ID: sw.Label}
		if layout != nil && i < len(layout.Switches) {
			ys.Offset = layout.Switches[i]
		}
		for _, c := range sw.Commands {
			ys.Commands = append(ys.Commands, yamlSwitchCommand{
				CC:      ape.CCBinary(c.CC),
				Command: c.Command.Type.String(),
				Str:     conv.optionalString(c.Command.Str),
				Format:  conv.format(c.Command.Format),
				Expr:    conv.expr(c.Command.Expr),
			})
		}
		doc.Switches = append(doc.Switches, ys)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	return enc.Close()
}

type yamlConverter struct {
	opts Options
}

func (c yamlConverter) str(s ape.ByteString) string {
	return c.opts.Charset.Decode(s.Bytes())
}

func (c yamlConverter) text(s ape.ByteString) *string {
	v := c.str(s)
	return &v
}

func (c yamlConverter) optionalString(s ape.OptionalString) *string {
	if v, ok := s.Get(); ok {
		return c.text(v)
	}
	return nil
}

func (c yamlConverter) expr(e ape.OptionalExpression) string {
	if !e.Present() {
		return ""
	}
	return c.opts.Charset.Decode([]byte(decompile.ExpressionSource(e.Expr)))
}

func (c yamlConverter) format(f ape.FormattingValue) []string {
	var out []string
	for _, v := range f {
		src := decompile.OperandSource(v.Type.OperandType(), v.Value)
		out = append(out, c.opts.Charset.Decode([]byte(src)))
	}
	return out
}

func (c yamlConverter) windowCommand(cmd ape.WindowCommand) yamlCommand {
	y := yamlCommand{Command: cmd.Code().String()}
	fields := map[string]string{}
	setExpr := func(name string, e ape.OptionalExpression) {
		if e.Present() {
			fields[name] = c.expr(e)
		}
	}
	setStr := func(name string, s ape.OptionalString) {
		if v := c.optionalString(s); v != nil {
			fields[name] = *v
		}
	}

	switch v := cmd.(type) {
	case *ape.SwitchRefCommand:
		y.Label = ape.FormatLabel(v.Label)
	case *ape.SimpleStringCommand:
		y.Text = c.text(v.Value)
	case *ape.FormattedStringCommand:
		y.Condition = c.expr(v.Condition)
		y.Text = c.text(v.Text)
		y.Format = c.format(v.Format)
	case *ape.ChoiceCommand:
		y.Condition = c.expr(v.Condition)
		y.Text = c.text(v.Text)
		y.Format = c.format(v.Format)
		y.Label = ape.FormatLabel(v.Label)
	case *ape.BackgroundCommand:
		for i, color := range v.Colors {
			fields[fmt.Sprintf("color%d", i+1)] = ape.ColorHex(color)
		}
	case *ape.DimensionsCommand:
		setExpr("xpos", v.XPos)
		setExpr("ypos", v.YPos)
		setExpr("width", v.Width)
		setExpr("height", v.Height)
	case *ape.SubWindowCommand:
		y.Label = ape.FormatLabel(v.Label)
	case *ape.ImageCommand:
		y.Condition = c.expr(v.Condition)
		y.Text = c.text(v.FileName)
		setExpr("xpos", v.XPos)
		setExpr("ypos", v.YPos)
		setExpr("width", v.Width)
		setExpr("height", v.Height)
		y.Flags = v.Flags.Names()
	case *ape.FlagsCommand:
		y.Flags = v.Flags.Names()
	case *ape.CamCommand:
		y.Text = c.text(v.Name)
		setStr("from", v.From)
		setStr("to", v.To)
		setStr("owner", v.Owner)
		params := v.Params
		for name, val := range map[string]uint16{
			"yaw": params.Yaw, "pitch": params.Pitch, "fov": params.Fov,
			"far": params.Far, "near": params.Near, "fwd": params.Fwd,
			"speed": params.Speed, "lift": params.Lift, "lag": params.Lag,
			"occlude": params.Occlude, "restore": params.Restore, "zip": params.Zip,
		} {
			if val != ape.CamUnset {
				fields[name] = fmt.Sprint(val)
			}
		}
	case *ape.XYPrintFXCommand:
		y.Condition = c.expr(v.Condition)
		y.Text = c.text(v.Message)
		y.Format = c.format(v.Format)
		setExpr("x", v.X)
		setExpr("y", v.Y)
		setExpr("alpha", v.Alpha)
		setExpr("red", v.Red)
		setExpr("green", v.Green)
		setExpr("blue", v.Blue)
		setStr("font", v.Font)
	case *ape.TalkCommand:
		fields["animation1"] = c.str(v.Animation1)
		setStr("animation2", v.Animation2)
		fields["name1"] = c.str(v.Name1)
		fields["name2"] = c.str(v.Name2)
		fields["stay1"] = fmt.Sprint(v.Stay1)
		fields["stay2"] = fmt.Sprint(v.Stay2)
	}

	if len(fields) > 0 {
		y.Fields = fields
	}
	return y
}
