package ape

import "fmt"

// CommandCode is the single-byte discriminant that starts every window
// command on disk.
type CommandCode uint8

const (
	CodeStartSwitch   CommandCode = 49
	CodeThinkSwitch   CommandCode = 50
	CodeFinishSwitch  CommandCode = 51
	CodeStartConsole  CommandCode = 65
	CodeBody          CommandCode = 66
	CodeChoice        CommandCode = 67
	CodeBackground    CommandCode = 68
	CodeEnd           CommandCode = 69
	CodeFont          CommandCode = 70
	CodeDimensions    CommandCode = 71
	CodeSubWindow     CommandCode = 72
	CodeImage         CommandCode = 73
	CodeFlags         CommandCode = 76
	CodeCam           CommandCode = 77
	CodeFinishConsole CommandCode = 78
	CodeNextWindow    CommandCode = 79
	CodeXYPrintFX     CommandCode = 80
	CodeTitle         CommandCode = 84
	CodeStyle         CommandCode = 87
	CodeTalk          CommandCode = 89
)

var commandCodeNames = map[CommandCode]string{
	CodeStartSwitch:   "StartSwitchCommand",
	CodeThinkSwitch:   "ThinkSwitchCommand",
	CodeFinishSwitch:  "FinishSwitchCommand",
	CodeStartConsole:  "StartConsoleCommand",
	CodeBody:          "BodyCommand",
	CodeChoice:        "ChoiceCommand",
	CodeBackground:    "BackgroundCommand",
	CodeEnd:           "EndCommand",
	CodeFont:          "FontCommand",
	CodeDimensions:    "DimensionsCommand",
	CodeSubWindow:     "SubWindowCommand",
	CodeImage:         "ImageCommand",
	CodeFlags:         "FlagsCommand",
	CodeCam:           "CamCommand",
	CodeFinishConsole: "FinishConsoleCommand",
	CodeNextWindow:    "NextWindowCommand",
	CodeXYPrintFX:     "XYPrintFXCommand",
	CodeTitle:         "TitleCommand",
	CodeStyle:         "StyleCommand",
	CodeTalk:          "TalkCommand",
}

func (c CommandCode) String() string {
	if name, ok := commandCodeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("CommandCode(%d)", uint8(c))
}

// WindowCommandType groups command codes that share a payload layout.
type WindowCommandType int

const (
	TypeFormattedString WindowCommandType = iota
	TypeTalk
	TypeDimensions
	TypeImage
	TypeFlags
	TypeSubWindow
	TypeChoice
	TypeSimpleString
	TypeXYPrintFX
	TypeSwitch
	TypeBackground
	TypeCam
)

func (t WindowCommandType) String() string {
	switch t {
	case TypeFormattedString:
		return "ConditionalFormattedString"
	case TypeTalk:
		return "Talk"
	case TypeDimensions:
		return "Dimensions"
	case TypeImage:
		return "Image"
	case TypeFlags:
		return "Flags"
	case TypeSubWindow:
		return "SubWindow"
	case TypeChoice:
		return "Choice"
	case TypeSimpleString:
		return "SimpleString"
	case TypeXYPrintFX:
		return "XYPrintFX"
	case TypeSwitch:
		return "Switch"
	case TypeBackground:
		return "Background"
	case TypeCam:
		return "Cam"
	}
	return fmt.Sprintf("WindowCommandType(%d)", int(t))
}

// WindowCommand is one entry of a window's command list. The variants in
// this package form a closed set.
type WindowCommand interface {
	Type() WindowCommandType
	Code() CommandCode
	encodeBody(w *Writer)
}

// FormattedStringCommand is a Body or Title command: conditional text with
// interpolated values.
type FormattedStringCommand struct {
	Kind      CommandCode // CodeBody or CodeTitle
	Condition OptionalExpression
	Text      ByteString
	Format    FormattingValue
}

// TalkCommand plays conversation animations on two characters.
type TalkCommand struct {
	Animation1 ByteString
	Animation2 OptionalString
	Name1      ByteString
	Name2      ByteString
	Stay1      uint32
	Stay2      uint32
}

// DimensionsCommand positions and sizes the window.
type DimensionsCommand struct {
	XPos   OptionalExpression
	YPos   OptionalExpression
	Width  OptionalExpression
	Height OptionalExpression
}

// ImageFlags is the Image command bitset. Bits above ImageSolid are kept
// verbatim.
type ImageFlags uint32

const (
	ImageStretch ImageFlags = 1 << 0
	ImageTile    ImageFlags = 1 << 1
	ImageSolid   ImageFlags = 1 << 2

	imageKnownFlags = ImageStretch | ImageTile | ImageSolid
)

// Has reports whether every bit of b is set.
func (f ImageFlags) Has(b ImageFlags) bool { return f&b == b }

// ImageCommand draws a picture in the window.
type ImageCommand struct {
	Condition OptionalExpression
	FileName  ByteString
	XPos      OptionalExpression
	YPos      OptionalExpression
	Width     OptionalExpression
	Height    OptionalExpression
	Flags     ImageFlags
}

// CanEmitAsBackground reports whether the image is a full-window backdrop
// that the script form can express as a background directive. The
// condition and file name do not participate.
func (c *ImageCommand) CanEmitAsBackground() bool {
	x, ok := c.XPos.ResolveFloatConstant()
	if !ok || x != 0 {
		return false
	}
	y, ok := c.YPos.ResolveFloatConstant()
	if !ok || y != 0 {
		return false
	}
	if c.Width.Present() || c.Height.Present() {
		return false
	}
	return !c.Flags.Has(ImageSolid)
}

// WindowFlags is the Flags command bitset.
type WindowFlags uint32

const (
	FlagPersist      WindowFlags = 1 << 0
	FlagNoBackground WindowFlags = 1 << 1
	FlagNoScroll     WindowFlags = 1 << 2
	FlagNoGrab       WindowFlags = 1 << 3
	FlagNoRelease    WindowFlags = 1 << 4
	FlagSubtitle     WindowFlags = 1 << 5
	FlagPassive2D    WindowFlags = 1 << 29
	FlagPassive      WindowFlags = 1 << 30
)

// Has reports whether every bit of b is set.
func (f WindowFlags) Has(b WindowFlags) bool { return f&b == b }

// FlagsCommand sets window behaviour flags.
type FlagsCommand struct {
	Flags WindowFlags
}

// SubWindowCommand embeds another window by label.
type SubWindowCommand struct {
	Label uint32
}

// ChoiceCommand offers a selectable line that jumps to a window.
type ChoiceCommand struct {
	Condition OptionalExpression
	Text      ByteString
	Format    FormattingValue
	Label     uint32
}

// SimpleStringCommand carries one string: StartConsole, Font,
// FinishConsole, NextWindow, or Style.
type SimpleStringCommand struct {
	Kind  CommandCode
	Value ByteString
}

// XYPrintFXCommand prints text at a position with optional colour and font.
type XYPrintFXCommand struct {
	X         OptionalExpression
	Y         OptionalExpression
	Alpha     OptionalExpression
	Red       OptionalExpression
	Green     OptionalExpression
	Blue      OptionalExpression
	Font      OptionalString
	Message   ByteString
	Condition OptionalExpression
	Format    FormattingValue
}

// SwitchRefCommand runs a switch when the window starts, thinks, or
// finishes.
type SwitchRefCommand struct {
	Kind  CommandCode // CodeStartSwitch, CodeThinkSwitch or CodeFinishSwitch
	Label uint32
}

// BackgroundCommand fills the window with four corner colours.
type BackgroundCommand struct {
	Colors [4]uint32
}

// CamUnset marks a camera parameter that was not given.
const CamUnset uint16 = 0x8001

// CamParams are the numeric camera settings, in wire order.
type CamParams struct {
	Yaw     uint16
	Pitch   uint16
	Fov     uint16
	Far     uint16
	Near    uint16
	Fwd     uint16
	Speed   uint16
	Lift    uint16
	Lag     uint16
	Occlude uint16
	Restore uint16
	Zip     uint16
}

// UnsetCamParams returns params with every field set to CamUnset.
func UnsetCamParams() CamParams {
	u := CamUnset
	return CamParams{u, u, u, u, u, u, u, u, u, u, u, u}
}

func (p *CamParams) fields() []*uint16 {
	return []*uint16{
		&p.Yaw, &p.Pitch, &p.Fov, &p.Far, &p.Near, &p.Fwd,
		&p.Speed, &p.Lift, &p.Lag, &p.Occlude, &p.Restore, &p.Zip,
	}
}

// CamCommand moves the camera for the window.
type CamCommand struct {
	Name   ByteString
	From   OptionalString
	To     OptionalString
	Owner  OptionalString
	Params CamParams
}

func (*FormattedStringCommand) Type() WindowCommandType { return TypeFormattedString }
func (*TalkCommand) Type() WindowCommandType            { return TypeTalk }
func (*DimensionsCommand) Type() WindowCommandType      { return TypeDimensions }
func (*ImageCommand) Type() WindowCommandType           { return TypeImage }
func (*FlagsCommand) Type() WindowCommandType           { return TypeFlags }
func (*SubWindowCommand) Type() WindowCommandType       { return TypeSubWindow }
func (*ChoiceCommand) Type() WindowCommandType          { return TypeChoice }
func (*SimpleStringCommand) Type() WindowCommandType    { return TypeSimpleString }
func (*XYPrintFXCommand) Type() WindowCommandType       { return TypeXYPrintFX }
func (*SwitchRefCommand) Type() WindowCommandType       { return TypeSwitch }
func (*BackgroundCommand) Type() WindowCommandType      { return TypeBackground }
func (*CamCommand) Type() WindowCommandType             { return TypeCam }

func (c *FormattedStringCommand) Code() CommandCode { return c.Kind }
func (*TalkCommand) Code() CommandCode              { return CodeTalk }
func (*DimensionsCommand) Code() CommandCode        { return CodeDimensions }
func (*ImageCommand) Code() CommandCode             { return CodeImage }
func (*FlagsCommand) Code() CommandCode             { return CodeFlags }
func (*SubWindowCommand) Code() CommandCode         { return CodeSubWindow }
func (*ChoiceCommand) Code() CommandCode            { return CodeChoice }
func (c *SimpleStringCommand) Code() CommandCode    { return c.Kind }
func (*XYPrintFXCommand) Code() CommandCode         { return CodeXYPrintFX }
func (c *SwitchRefCommand) Code() CommandCode       { return c.Kind }
func (*BackgroundCommand) Code() CommandCode        { return CodeBackground }
func (*CamCommand) Code() CommandCode               { return CodeCam }

// Window is a numbered command list.
type Window struct {
	ID       uint32
	Commands []WindowCommand
}

func decodeWindowCommands(r *Reader) ([]WindowCommand, error) {
	var cmds []WindowCommand
	for {
		b, err := r.ReadUint8()
		if err != nil {
			return nil, err
		}
		code := CommandCode(b)
		if code == CodeEnd {
			return cmds, nil
		}
		cmd, err := decodeWindowCommand(r, code)
		if err != nil {
			return nil, err
		}
		cmds = append(cmds, cmd)
	}
}

func decodeWindowCommand(r *Reader, code CommandCode) (WindowCommand, error) {
	var err error
	switch code {
	case CodeStartSwitch, CodeThinkSwitch, CodeFinishSwitch:
		c := &SwitchRefCommand{Kind: code}
		c.Label, err = r.ReadUint32()
		return c, err

	case CodeStartConsole, CodeFont, CodeFinishConsole, CodeNextWindow, CodeStyle:
		c := &SimpleStringCommand{Kind: code}
		c.Value, err = decodeByteString(r)
		return c, err

	case CodeBody, CodeTitle:
		c := &FormattedStringCommand{Kind: code}
		if c.Condition, err = decodeOptionalExpression(r); err != nil {
			return nil, err
		}
		if c.Text, err = decodeByteString(r); err != nil {
			return nil, err
		}
		c.Format, err = decodeFormattingValue(r)
		return c, err

	case CodeChoice:
		c := &ChoiceCommand{}
		if c.Condition, err = decodeOptionalExpression(r); err != nil {
			return nil, err
		}
		if c.Text, err = decodeByteString(r); err != nil {
			return nil, err
		}
		if c.Format, err = decodeFormattingValue(r); err != nil {
			return nil, err
		}
		c.Label, err = r.ReadUint32()
		return c, err

	case CodeBackground:
		c := &BackgroundCommand{}
		for i := range c.Colors {
			if c.Colors[i], err = r.ReadUint32(); err != nil {
				return nil, err
			}
		}
		return c, nil

	case CodeDimensions:
		c := &DimensionsCommand{}
		for _, e := range []*OptionalExpression{&c.XPos, &c.YPos, &c.Width, &c.Height} {
			if *e, err = decodeOptionalExpression(r); err != nil {
				return nil, err
			}
		}
		return c, nil

	case CodeSubWindow:
		if err := r.ExpectUint32(0); err != nil {
			return nil, err
		}
		if err := r.ExpectUint32(0); err != nil {
			return nil, err
		}
		c := &SubWindowCommand{}
		c.Label, err = r.ReadUint32()
		return c, err

	case CodeImage:
		c := &ImageCommand{}
		if c.Condition, err = decodeOptionalExpression(r); err != nil {
			return nil, err
		}
		if c.FileName, err = decodeByteString(r); err != nil {
			return nil, err
		}
		for _, e := range []*OptionalExpression{&c.XPos, &c.YPos, &c.Width, &c.Height} {
			if *e, err = decodeOptionalExpression(r); err != nil {
				return nil, err
			}
		}
		flags, err := r.ReadUint32()
		c.Flags = ImageFlags(flags)
		return c, err

	case CodeFlags:
		flags, err := r.ReadUint32()
		return &FlagsCommand{Flags: WindowFlags(flags)}, err

	case CodeCam:
		c := &CamCommand{}
		if c.Name, err = decodeByteString(r); err != nil {
			return nil, err
		}
		for _, s := range []*OptionalString{&c.From, &c.To, &c.Owner} {
			if *s, err = decodeOptionalString(r); err != nil {
				return nil, err
			}
		}
		for _, p := range c.Params.fields() {
			if *p, err = r.ReadUint16(); err != nil {
				return nil, err
			}
		}
		return c, nil

	case CodeXYPrintFX:
		c := &XYPrintFXCommand{}
		for _, e := range []*OptionalExpression{&c.X, &c.Y, &c.Alpha, &c.Red, &c.Green, &c.Blue} {
			if *e, err = decodeOptionalExpression(r); err != nil {
				return nil, err
			}
		}
		if c.Font, err = decodeOptionalString(r); err != nil {
			return nil, err
		}
		if c.Message, err = decodeByteString(r); err != nil {
			return nil, err
		}
		if c.Condition, err = decodeOptionalExpression(r); err != nil {
			return nil, err
		}
		c.Format, err = decodeFormattingValue(r)
		return c, err

	case CodeTalk:
		c := &TalkCommand{}
		if c.Animation1, err = decodeByteString(r); err != nil {
			return nil, err
		}
		if c.Animation2, err = decodeOptionalString(r); err != nil {
			return nil, err
		}
		if c.Name1, err = decodeByteString(r); err != nil {
			return nil, err
		}
		if c.Name2, err = decodeByteString(r); err != nil {
			return nil, err
		}
		if c.Stay1, err = r.ReadUint32(); err != nil {
			return nil, err
		}
		c.Stay2, err = r.ReadUint32()
		return c, err
	}
	return nil, r.Errorf("Unknown command code %d", uint8(code))
}

func encodeWindowCommand(w *Writer, cmd WindowCommand) {
	if cmd == nil {
		w.fail("nil window command")
		return
	}
	w.WriteUint8(uint8(cmd.Code()))
	cmd.encodeBody(w)
}

func (c *FormattedStringCommand) encodeBody(w *Writer) {
	if c.Kind != CodeBody && c.Kind != CodeTitle {
		w.fail("%s is not a body or title command", c.Kind)
		return
	}
	c.Condition.encode(w)
	c.Text.encode(w)
	c.Format.encode(w)
}

func (c *TalkCommand) encodeBody(w *Writer) {
	c.Animation1.encode(w)
	c.Animation2.encode(w)
	c.Name1.encode(w)
	c.Name2.encode(w)
	w.WriteUint32(c.Stay1)
	w.WriteUint32(c.Stay2)
}

func (c *DimensionsCommand) encodeBody(w *Writer) {
	c.XPos.encode(w)
	c.YPos.encode(w)
	c.Width.encode(w)
	c.Height.encode(w)
}

func (c *ImageCommand) encodeBody(w *Writer) {
	c.Condition.encode(w)
	c.FileName.encode(w)
	c.XPos.encode(w)
	c.YPos.encode(w)
	c.Width.encode(w)
	c.Height.encode(w)
	w.WriteUint32(uint32(c.Flags))
}

func (c *FlagsCommand) encodeBody(w *Writer) {
	w.WriteUint32(uint32(c.Flags))
}

func (c *SubWindowCommand) encodeBody(w *Writer) {
	w.WriteUint32(0)
	w.WriteUint32(0)
	w.WriteUint32(c.Label)
}

func (c *ChoiceCommand) encodeBody(w *Writer) {
	c.Condition.encode(w)
	c.Text.encode(w)
	c.Format.encode(w)
	w.WriteUint32(c.Label)
}

func (c *SimpleStringCommand) encodeBody(w *Writer) {
	switch c.Kind {
	case CodeStartConsole, CodeFont, CodeFinishConsole, CodeNextWindow, CodeStyle:
	default:
		w.fail("%s is not a simple string command", c.Kind)
		return
	}
	c.Value.encode(w)
}

func (c *XYPrintFXCommand) encodeBody(w *Writer) {
	c.X.encode(w)
	c.Y.encode(w)
	c.Alpha.encode(w)
	c.Red.encode(w)
	c.Green.encode(w)
	c.Blue.encode(w)
	c.Font.encode(w)
	c.Message.encode(w)
	c.Condition.encode(w)
	c.Format.encode(w)
}

func (c *SwitchRefCommand) encodeBody(w *Writer) {
	switch c.Kind {
	case CodeStartSwitch, CodeThinkSwitch, CodeFinishSwitch:
	default:
		w.fail("%s is not a window switch command", c.Kind)
		return
	}
	w.WriteUint32(c.Label)
}

func (c *BackgroundCommand) encodeBody(w *Writer) {
	for _, color := range c.Colors {
		w.WriteUint32(color)
	}
}

func (c *CamCommand) encodeBody(w *Writer) {
	c.Name.encode(w)
	c.From.encode(w)
	c.To.encode(w)
	c.Owner.encode(w)
	params := c.Params
	for _, p := range params.fields() {
		w.WriteUint16(*p)
	}
}
