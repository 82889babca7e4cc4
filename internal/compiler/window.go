package compiler

import (
	"strings"

	"apetools/internal/ape"
)

// windowBlock is an open if or else in a window body. Unbraced blocks
// govern the next directive only.
type windowBlock struct {
	cond   value
	braced bool
	isElse bool
	used   bool
	loc    Location
}

type dimension int

const (
	dimXPos dimension = iota
	dimYPos
	dimWidth
	dimHeight
)

var dimensionDirectives = map[string]dimension{
	"xpos":   dimXPos,
	"ypos":   dimYPos,
	"width":  dimWidth,
	"height": dimHeight,
}

var imageFlagNames = map[string]ape.ImageFlags{
	"stretch": ape.ImageStretch,
	"tile":    ape.ImageTile,
	"solid":   ape.ImageSolid,
}

// windowBuilder accumulates the commands of one window. Commands are
// collated into the engine's order once the body ends, whatever order the
// source lists them in.
type windowBuilder struct {
	c *compiler

	blocks []windowBlock
	// chain holds the blocks closed by the last directive or brace,
	// outermost first, for a following else to continue.
	chain []windowBlock

	titles        []ape.WindowCommand
	bodies        []ape.WindowCommand
	xyprints      []ape.WindowCommand
	cam           *ape.CamCommand
	talk          *ape.TalkCommand
	startConsole  *ape.SimpleStringCommand
	finishConsole *ape.SimpleStringCommand
	startSwitch   *ape.SwitchRefCommand
	thinkSwitch   *ape.SwitchRefCommand
	finishSwitch  *ape.SwitchRefCommand
	style         *ape.SimpleStringCommand
	font          *ape.SimpleStringCommand
	flags         ape.WindowFlags
	colors        [4]uint32
	hasBackground bool
	dims          [4]ape.OptionalExpression
	subwindows    []ape.WindowCommand
	images        []ape.WindowCommand
	choices       []ape.WindowCommand
	nextWindow    *ape.SimpleStringCommand
}

// compileWindow compiles a window body after `#window`.
func (c *compiler) compileWindow() (ape.Window, bool, error) {
	label, err := c.parseDefinitionLabel()
	if err != nil {
		return ape.Window{}, false, err
	}
	tok, err := c.lx.next()
	if err != nil {
		return ape.Window{}, false, err
	}
	if tok.Type != TokenEOL && tok.Type != TokenEOF {
		return ape.Window{}, false, errorAt(tok.Loc, "Expected token of type %s but found %s", TokenEOL, tok.Type)
	}

	b := &windowBuilder{c: c}
	afterTLD := false

loop:
	for {
		tok, err := c.lx.peekNormal()
		if err != nil {
			return ape.Window{}, false, err
		}
		switch tok.Type {
		case TokenHash:
			c.lx.consume()
			isDefine, err := c.defineFollows()
			if err != nil {
				return ape.Window{}, false, err
			}
			if !isDefine {
				afterTLD = true
				break loop
			}
			continue
		case TokenEOF:
			break loop
		}

		c.lx.consume()
		if err := b.directive(tok); err != nil {
			return ape.Window{}, false, err
		}
	}

	if len(b.blocks) > 0 {
		return ape.Window{}, false, errorAt(b.blocks[len(b.blocks)-1].loc, "Unterminated 'if' block")
	}
	if !b.hasBackground {
		b.flags |= ape.FlagNoBackground
	}
	return ape.Window{ID: label, Commands: b.collate()}, afterTLD, nil
}

func (b *windowBuilder) directive(tok Token) error {
	switch {
	case tok.Type == TokenEOL:
		return nil
	case tok.Type == TokenRBrace:
		b.chain = nil
		return b.closeBrace(tok)
	case tok.is("else"):
		return b.openElse(tok)
	case tok.Type != TokenIdentifier:
		return errorAt(tok.Loc, "Expected window directive but found something else")
	}

	b.chain = nil
	if tok.Text == "if" {
		return b.openIf(tok)
	}

	if err := b.command(tok); err != nil {
		return err
	}
	for i := range b.blocks {
		b.blocks[i].used = true
	}
	b.closeUnbraced()

	next, err := b.c.lx.peekNormal()
	if err != nil {
		return err
	}
	if next.Type != TokenEOF && next.Type != TokenEOL {
		return errorAt(next.Loc, "Expected end of line after directive")
	}
	return nil
}

// closeUnbraced pops the unbraced blocks on top of the stack into the
// else chain.
func (b *windowBuilder) closeUnbraced() {
	for len(b.blocks) > 0 {
		top := b.blocks[len(b.blocks)-1]
		if top.braced {
			return
		}
		b.blocks = b.blocks[:len(b.blocks)-1]
		b.chain = append([]windowBlock{top}, b.chain...)
	}
}

func (b *windowBuilder) closeBrace(tok Token) error {
	if len(b.blocks) == 0 || !b.blocks[len(b.blocks)-1].braced {
		return errorAt(tok.Loc, "Brace closes non-existent control flow block")
	}
	top := b.blocks[len(b.blocks)-1]
	if !top.used && !b.c.opts.AllowEmptyConditionBlocks {
		return errorAt(top.loc, "Empty condition block")
	}
	b.blocks = b.blocks[:len(b.blocks)-1]
	b.chain = []windowBlock{top}
	b.closeUnbraced()
	return nil
}

// openBlock pushes a block, bracing it when '{' follows.
func (b *windowBuilder) openBlock(block windowBlock) error {
	lx := b.c.lx
	if err := lx.skipEOLs(); err != nil {
		return err
	}
	tok, err := lx.peekNormal()
	if err != nil {
		return err
	}
	if tok.Type == TokenLBrace {
		lx.consume()
		block.braced = true
	}
	b.blocks = append(b.blocks, block)
	return nil
}

func (b *windowBuilder) openIf(tok Token) error {
	lx := b.c.lx
	if _, err := lx.expect(TokenLParen); err != nil {
		return err
	}
	cond, err := b.c.parseExpr()
	if err != nil {
		return err
	}
	if _, err := lx.expect(TokenRParen); err != nil {
		return err
	}
	if cond.result() != resultFloat {
		return errorAt(tok.Loc, "Expression didn't evaluate to a number")
	}
	return b.openBlock(windowBlock{cond: cond, loc: tok.Loc})
}

func (b *windowBuilder) openElse(tok Token) error {
	if len(b.chain) == 0 {
		return errorAt(tok.Loc, "'else' without matching 'if'")
	}
	inner := b.chain[len(b.chain)-1]
	if inner.isElse {
		return errorAt(tok.Loc, "'else' after 'else'")
	}
	inverted := invert(inner.cond)
	if inverted.result() != resultFloat {
		return errorAt(tok.Loc, "Condition of the matching 'if' can not be inverted")
	}

	b.blocks = append(b.blocks, b.chain[:len(b.chain)-1]...)
	b.chain = nil
	return b.openBlock(windowBlock{cond: inverted, isElse: true, loc: tok.Loc})
}

// activeCondition converts the conjunction of every open block. emit is
// false when the condition can never hold.
func (b *windowBuilder) activeCondition() (ape.OptionalExpression, bool, error) {
	if len(b.blocks) == 0 {
		return ape.OptionalExpression{}, true, nil
	}
	conds := make([]value, len(b.blocks))
	for i, blk := range b.blocks {
		conds[i] = blk.cond
	}
	return b.c.convertCondition(conjoin(conds), b.blocks[0].loc)
}

func (b *windowBuilder) checkNoCondition(loc Location) error {
	if len(b.blocks) != 0 {
		return errorAt(loc, "Unconditional command inside of a condition")
	}
	return nil
}

func (b *windowBuilder) command(tok Token) error {
	if d, ok := dimensionDirectives[tok.Text]; ok {
		return b.dimension(tok.Loc, d)
	}

	switch tok.Text {
	case "title":
		return b.formattedString(ape.CodeTitle, &b.titles)
	case "body":
		return b.formattedString(ape.CodeBody, &b.bodies)
	case "talk":
		return b.talkDirective(tok.Loc)
	case "talk_ex":
		return b.talkExDirective(tok.Loc)
	case "image":
		return b.image()
	case "flags":
		return b.flagsDirective(tok.Loc)
	case "subwindow":
		return b.subwindow(tok.Loc)
	case "choice":
		return b.choice()
	case "startconsole":
		return b.console(tok.Loc, ape.CodeStartConsole, &b.startConsole)
	case "finishconsole":
		return b.console(tok.Loc, ape.CodeFinishConsole, &b.finishConsole)
	case "font":
		return b.namedString(tok.Loc, ape.CodeFont, &b.font, "font command is already defined")
	case "style":
		return b.namedString(tok.Loc, ape.CodeStyle, &b.style, "Style is already defined")
	case "goto", "nextwindow":
		return b.nextWindowDirective(tok.Loc, false)
	case "return":
		return b.nextWindowDirective(tok.Loc, true)
	case "xyprint":
		return b.xyprint(false)
	case "xyprintfx":
		return b.xyprint(true)
	case "startswitch":
		return b.switchRef(tok.Loc, ape.CodeStartSwitch, &b.startSwitch)
	case "thinkswitch":
		return b.switchRef(tok.Loc, ape.CodeThinkSwitch, &b.thinkSwitch)
	case "finishswitch":
		return b.switchRef(tok.Loc, ape.CodeFinishSwitch, &b.finishSwitch)
	case "background":
		return b.background()
	case "cam":
		return b.camDirective(tok.Loc)
	}
	return errorAt(tok.Loc, "Unknown directive")
}

func (b *windowBuilder) formattedString(kind ape.CommandCode, out *[]ape.WindowCommand) error {
	cond, emit, err := b.activeCondition()
	if err != nil {
		return err
	}
	lx := b.c.lx
	tok, err := lx.read(modeQuoted, flagAllowNewLine)
	if err != nil {
		return err
	}
	text, err := unescape(unquote(tok), tok.Loc, true, true)
	if err != nil {
		return err
	}
	format, err := b.c.parseFormatList()
	if err != nil {
		return err
	}
	if emit {
		*out = append(*out, &ape.FormattedStringCommand{
			Kind:      kind,
			Condition: cond,
			Text:      ape.ByteString(text),
			Format:    format,
		})
	}
	return nil
}

// floatArg parses one numeric argument, optionally after a comma.
func (b *windowBuilder) floatArg(comma bool) (ape.OptionalExpression, error) {
	if comma {
		if _, err := b.c.lx.expect(TokenComma); err != nil {
			return ape.OptionalExpression{}, err
		}
	}
	loc := b.c.lx.location()
	v, err := b.c.parseExprPreferFloat()
	if err != nil {
		return ape.OptionalExpression{}, err
	}
	return b.c.toOptional(v, loc)
}

func (b *windowBuilder) xyprint(fx bool) error {
	cond, emit, err := b.activeCondition()
	if err != nil {
		return err
	}

	cmd := &ape.XYPrintFXCommand{Condition: cond}
	args := []*ape.OptionalExpression{&cmd.X, &cmd.Y, &cmd.Alpha}
	if fx {
		args = append(args, &cmd.Red, &cmd.Green, &cmd.Blue)
	}
	for i, arg := range args {
		if *arg, err = b.floatArg(i > 0); err != nil {
			return err
		}
	}

	lx := b.c.lx
	if fx {
		if _, err := lx.expect(TokenComma); err != nil {
			return err
		}
		font, err := b.c.parseIdentifierAsString(true)
		if err != nil {
			return err
		}
		cmd.Font = ape.SomeString(ape.ByteString(font))
	}

	if _, err := lx.expect(TokenComma); err != nil {
		return err
	}
	tok, err := lx.read(modeQuoted, flagAllowNewLine)
	if err != nil {
		return err
	}
	msg, err := unescape(unquote(tok), tok.Loc, true, true)
	if err != nil {
		return err
	}
	cmd.Message = ape.ByteString(msg)

	if cmd.Format, err = b.c.parseFormatList(); err != nil {
		return err
	}
	if emit {
		b.xyprints = append(b.xyprints, cmd)
	}
	return nil
}

func (b *windowBuilder) console(loc Location, kind ape.CommandCode, slot **ape.SimpleStringCommand) error {
	if err := b.checkNoCondition(loc); err != nil {
		return err
	}
	if *slot != nil {
		return errorAt(loc, "Console directive is already defined")
	}
	b.c.rep.warn(loc, "Console commands are deprecated")

	tok, err := b.c.lx.read(modeQuoted, flagAllowNewLine)
	if err != nil {
		return err
	}
	s, err := unescape(unquote(tok), tok.Loc, true, true)
	if err != nil {
		return err
	}
	*slot = &ape.SimpleStringCommand{Kind: kind, Value: ape.ByteString(s + "\n")}
	return nil
}

func (b *windowBuilder) namedString(loc Location, kind ape.CommandCode, slot **ape.SimpleStringCommand, dupMsg string) error {
	if err := b.checkNoCondition(loc); err != nil {
		return err
	}
	if *slot != nil {
		return errorAt(loc, "%s", dupMsg)
	}
	name, err := b.c.readOptionallyQuotedName()
	if err != nil {
		return err
	}
	*slot = &ape.SimpleStringCommand{Kind: kind, Value: ape.ByteString(name)}
	return nil
}

func (b *windowBuilder) nextWindowDirective(loc Location, isReturn bool) error {
	if err := b.checkNoCondition(loc); err != nil {
		return err
	}
	if b.nextWindow != nil {
		return errorAt(loc, "nextwindow/goto/return is already defined")
	}

	target := "0:0"
	if !isReturn {
		tok, err := b.c.lx.read(modeRaw, 0)
		if err != nil {
			return err
		}
		if tok.Type == TokenEOL || tok.Type == TokenEOF {
			return errorAt(tok.Loc, "Expected window label")
		}
		target = tok.Text
	}
	b.nextWindow = &ape.SimpleStringCommand{Kind: ape.CodeNextWindow, Value: ape.ByteString(target)}
	return nil
}

func (b *windowBuilder) switchRef(loc Location, kind ape.CommandCode, slot **ape.SwitchRefCommand) error {
	if err := b.checkNoCondition(loc); err != nil {
		return err
	}
	if *slot != nil {
		return errorAt(loc, "Switch command type was specified multiple times")
	}

	c := b.c
	next, err := c.lx.peekNormal()
	if err != nil {
		return err
	}
	if next.Type != TokenEOL && next.Type != TokenLBrace {
		label, err := c.parseLabel()
		if err != nil {
			return err
		}
		*slot = &ape.SwitchRefCommand{Kind: kind, Label: label}
		return nil
	}

	if err := c.lx.skipEOLs(); err != nil {
		return err
	}
	if _, err := c.lx.expect(TokenLBrace); err != nil {
		return err
	}
	id, ok := c.ids.nextID()
	if !ok {
		return errorAt(c.lx.location(), "Too many inline switches")
	}
	sw, afterTLD, err := c.compileSwitch(id, true)
	if err != nil {
		return err
	}
	if afterTLD {
		return errorAt(c.lx.location(), "Inline switch statement ended at unexpected TLD")
	}
	if _, err := c.lx.expect(TokenRBrace); err != nil {
		return err
	}
	c.inline = append(c.inline, sw)
	*slot = &ape.SwitchRefCommand{Kind: kind, Label: id}
	return nil
}

func (b *windowBuilder) subwindow(loc Location) error {
	if err := b.checkNoCondition(loc); err != nil {
		return err
	}
	label, err := b.c.parseLabel()
	if err != nil {
		return err
	}
	b.subwindows = append(b.subwindows, &ape.SubWindowCommand{Label: label})
	return nil
}

func (b *windowBuilder) flagsDirective(loc Location) error {
	if err := b.checkNoCondition(loc); err != nil {
		return err
	}
	lx := b.c.lx
	for {
		tok, err := lx.peekNormal()
		if err != nil {
			return err
		}
		if tok.Type == TokenEOL || tok.Type == TokenEOF {
			return nil
		}
		if tok, err = lx.expect(TokenIdentifier); err != nil {
			return err
		}
		flag, ok := ape.WindowFlagByName(tok.Text)
		if !ok || flag == ape.FlagNoBackground {
			return errorAt(tok.Loc, "Invalid flag")
		}
		b.flags |= flag
	}
}

func (b *windowBuilder) dimension(loc Location, d dimension) error {
	if err := b.checkNoCondition(loc); err != nil {
		return err
	}
	if b.dims[d].Present() {
		return errorAt(loc, "Dimension value is already set")
	}
	exprLoc := b.c.lx.location()
	v, err := b.c.parseExpr()
	if err != nil {
		return err
	}
	b.dims[d], err = b.c.toOptional(v, exprLoc)
	return err
}

func (b *windowBuilder) warnIfImageFlag(v value, loc Location) {
	if fv, ok := v.(floatVar); ok {
		if _, isFlag := imageFlagNames[fv.name]; isFlag {
			b.c.rep.warn(loc, "Image flag name was used as a parameter that accepts a float variable")
		}
	}
}

func (b *windowBuilder) image() error {
	cond, emit, err := b.activeCondition()
	if err != nil {
		return err
	}

	c := b.c
	name, err := c.readOptionallyQuotedName()
	if err != nil {
		return err
	}
	cmd := &ape.ImageCommand{Condition: cond, FileName: ape.ByteString(name)}

	if cmd.XPos, err = b.floatArg(false); err != nil {
		return err
	}
	if cmd.YPos, err = b.floatArg(true); err != nil {
		return err
	}

	// Width, height and then flags are each optional, introduced by a comma.
	for _, slot := range []*ape.OptionalExpression{&cmd.Width, &cmd.Height} {
		tok, err := c.lx.peekNormal()
		if err != nil {
			return err
		}
		if tok.Type != TokenComma {
			break
		}
		c.lx.consume()

		loc := c.lx.location()
		v, err := c.parseExprPreferFloat()
		if err != nil {
			return err
		}
		b.warnIfImageFlag(v, loc)
		if *slot, err = c.toOptional(v, loc); err != nil {
			return err
		}
	}

	if cmd.Height.Present() {
		if err := b.imageFlags(cmd); err != nil {
			return err
		}
	}

	if emit {
		b.images = append(b.images, cmd)
	}
	return nil
}

func (b *windowBuilder) imageFlags(cmd *ape.ImageCommand) error {
	lx := b.c.lx
	tok, err := lx.peekNormal()
	if err != nil {
		return err
	}
	if tok.Type != TokenComma {
		return nil
	}
	lx.consume()

	for {
		tok, err := lx.expect(TokenIdentifier)
		if err != nil {
			return err
		}
		flag, ok := imageFlagNames[tok.Text]
		if !ok {
			return errorAt(tok.Loc, "Unknown image flag")
		}
		if cmd.Flags.Has(flag) {
			return errorAt(tok.Loc, "Image flag was specified multiple times")
		}
		cmd.Flags |= flag

		next, err := lx.peekNormal()
		if err != nil {
			return err
		}
		if next.Type == TokenEOL || next.Type == TokenEOF {
			return nil
		}
	}
}

func (b *windowBuilder) choice() error {
	cond, emit, err := b.activeCondition()
	if err != nil {
		return err
	}

	c := b.c
	tok, err := c.lx.read(modeQuoted, 0)
	if err != nil {
		return err
	}
	text, err := unescape(unquote(tok), tok.Loc, true, false)
	if err != nil {
		return err
	}
	cmd := &ape.ChoiceCommand{Condition: cond, Text: ape.ByteString(text)}

	next, err := c.lx.peekNormal()
	if err != nil {
		return err
	}
	if next.Type != TokenComma {
		if cmd.Label, err = c.parseLabel(); err != nil {
			return err
		}
	} else {
		c.lx.consume()
		if err := b.choiceArgs(cmd); err != nil {
			return err
		}
	}

	if emit {
		b.choices = append(b.choices, cmd)
	}
	return nil
}

// choiceArgs reads the formatting values of a choice up to its label. A
// number followed by a colon starts the label.
func (b *windowBuilder) choiceArgs(cmd *ape.ChoiceCommand) error {
	lx := b.c.lx
	for {
		arg, err := lx.peek(modeNormal, flagIgnoreEscapes)
		if err != nil {
			return err
		}

		if arg.Type == TokenNumber {
			lx.consume()
			colon, err := lx.peekNormal()
			if err != nil {
				return err
			}
			if colon.Type == TokenColon {
				lx.consume()
				low, err := lx.expect(TokenNumber)
				if err != nil {
					return err
				}
				cmd.Label, err = labelFromTokens(arg, low)
				return err
			}
			f, err := parseFloatToken(arg)
			if err != nil {
				return err
			}
			cmd.Format = append(cmd.Format, ape.TypedFormattingValue{Type: ape.FormatFloat, Value: ape.FloatOperand{Value: f}})
		} else {
			v, err := b.c.parseFormattingValue()
			if err != nil {
				return err
			}
			cmd.Format = append(cmd.Format, v)
		}

		if _, err := lx.expect(TokenComma); err != nil {
			return err
		}
	}
}

func (b *windowBuilder) talkDirective(loc Location) error {
	if err := b.checkNoCondition(loc); err != nil {
		return err
	}
	if b.talk != nil {
		return errorAt(loc, "talk command already defined")
	}

	c := b.c
	target, err := c.lx.expect(TokenIdentifier)
	if err != nil {
		return err
	}
	cmd := &ape.TalkCommand{Stay1: 1, Stay2: 1}
	switch target.Text {
	case "npc":
		cmd.Name1, cmd.Name2 = "_click_", "playerchar0"
	case "player":
		cmd.Name1, cmd.Name2 = "playerchar0", "_click_"
	default:
		return errorAt(target.Loc, "Target must be either 'player' or 'npc'")
	}

	anim, err := c.parseIdentifierAsString(false)
	if err != nil {
		return err
	}
	cmd.Animation1 = ape.ByteString(anim)

	staySet := false
	for {
		tok, err := c.lx.peekNormal()
		if err != nil {
			return err
		}
		if tok.Type == TokenEOL || tok.Type == TokenEOF {
			break
		}
		if tok, err = c.lx.expect(TokenIdentifier); err != nil {
			return err
		}
		if tok.Text != "stay" && tok.Text != "nostay" {
			return errorAt(tok.Loc, "Unexpected flag token")
		}
		if staySet {
			return errorAt(tok.Loc, "'stay' or 'nostay' specified multiple times")
		}
		staySet = true
		if tok.Text == "nostay" {
			cmd.Stay2 = 0
		}
	}

	b.talk = cmd
	return nil
}

func (b *windowBuilder) talkExDirective(loc Location) error {
	if err := b.checkNoCondition(loc); err != nil {
		return err
	}
	if b.talk != nil {
		return errorAt(loc, "talk command already defined")
	}

	c := b.c
	var words [4]string
	for i := range words {
		w, err := c.parseIdentifierAsString(false)
		if err != nil {
			return err
		}
		words[i] = w
	}
	cmd := &ape.TalkCommand{
		Name1:      ape.ByteString(words[0]),
		Name2:      ape.ByteString(words[1]),
		Animation1: ape.ByteString(words[2]),
		Animation2: ape.SomeString(ape.ByteString(words[3])),
		Stay1:      1,
		Stay2:      1,
	}

	tok, err := c.lx.peekNormal()
	if err != nil {
		return err
	}
	if tok.Type != TokenEOL && tok.Type != TokenEOF {
		for _, stay := range []*uint32{&cmd.Stay1, &cmd.Stay2} {
			flag, err := c.lx.expect(TokenIdentifier)
			if err != nil {
				return err
			}
			switch flag.Text {
			case "stay":
				*stay = 1
			case "nostay":
				*stay = 0
			default:
				return errorAt(flag.Loc, "Talk flag must be 'stay' or 'nostay'")
			}
		}
	}

	b.talk = cmd
	return nil
}

// backgroundColor reads `= rrggbbaa`. Each byte is two hex digits, high
// nibble first, lowest byte first.
func (b *windowBuilder) backgroundColor() (uint32, error) {
	lx := b.c.lx
	if _, err := lx.expect(TokenAssign); err != nil {
		return 0, err
	}
	tok, err := lx.read(modeRaw, 0)
	if err != nil {
		return 0, err
	}
	if len(tok.Text) != 8 {
		return 0, errorAt(tok.Loc, "Expected 8-digit hex value for background color")
	}

	var color uint32
	for i := 0; i < 8; i++ {
		ch := tok.Text[i]
		var nibble uint32
		switch {
		case ch >= '0' && ch <= '9':
			nibble = uint32(ch - '0')
		case ch >= 'a' && ch <= 'f':
			nibble = uint32(ch-'a') + 10
		case ch >= 'A' && ch <= 'F':
			nibble = uint32(ch-'A') + 10
		default:
			return 0, errorAt(tok.Loc, "Expected 8-digit hex value for background color")
		}
		shift := uint(i/2)*8 + 4 - uint(i%2)*4
		color |= nibble << shift
	}
	return color, nil
}

func (b *windowBuilder) background() error {
	cond, emit, err := b.activeCondition()
	if err != nil {
		return err
	}

	var (
		name                       string
		haveName                   bool
		stretch, tile, solid, none bool
	)
	lx := b.c.lx
	colorSlots := map[string]int{"color1": 0, "color2": 1, "color3": 2, "color4": 3}

	for {
		tok, err := lx.next()
		if err != nil {
			return err
		}
		switch tok.Type {
		case TokenString:
			name = unquote(tok)
			haveName = true
			if name == "" {
				return errorAt(tok.Loc, "Background image name was empty")
			}
		case TokenIdentifier:
			if slot, ok := colorSlots[tok.Text]; ok {
				if b.colors[slot], err = b.backgroundColor(); err != nil {
					return err
				}
				break
			}
			switch tok.Text {
			case "stretch":
				stretch = true
			case "tile":
				tile = true
			case "solid":
				solid = true
			case "none":
				none = true
			default:
				return errorAt(tok.Loc, "Unexpected background command flag")
			}
		default:
			return errorAt(tok.Loc, "Background flag expected")
		}

		next, err := lx.peekNormal()
		if err != nil {
			return err
		}
		if next.Type == TokenEOL || next.Type == TokenEOF {
			break
		}
	}

	exclusive := 0
	for _, set := range []bool{stretch, tile, none} {
		if set {
			exclusive++
		}
	}
	if exclusive > 1 {
		return errorAt(lx.location(), "Background contained multiple mutually-exclusive flags (stretch, tile, none)")
	}

	if !haveName {
		switch {
		case stretch:
			name, haveName = "default_stretch", true
		case tile:
			name, haveName = "default_tile", true
		}
	}

	if emit && haveName && !none {
		img := &ape.ImageCommand{
			Condition: cond,
			FileName:  ape.ByteString(name),
			XPos:      ape.SomeExpression(ape.ConstantExpression(0)),
			YPos:      ape.SomeExpression(ape.ConstantExpression(0)),
		}
		if stretch {
			img.Flags |= ape.ImageStretch
		}
		if tile {
			img.Flags |= ape.ImageTile
		}
		if solid {
			img.Flags |= ape.ImageSolid
		}
		b.images = append(b.images, img)
	}

	b.hasBackground = true
	return nil
}

func (b *windowBuilder) camString() (ape.OptionalString, error) {
	lx := b.c.lx
	if _, err := lx.expect(TokenLParen); err != nil {
		return ape.OptionalString{}, err
	}
	tok, err := lx.read(modeRaw, flagIgnoreEscapes|flagIgnoreQuotes|flagIgnoreWhitespace|flagStopAtCloseParen)
	if err != nil {
		return ape.OptionalString{}, err
	}

	text := tok.Text
	if tok.Type == TokenString {
		// Only reachable through a macro.
		if text, err = unescape(unquote(tok), tok.Loc, true, false); err != nil {
			return ape.OptionalString{}, err
		}
	}
	if text == "" {
		return ape.OptionalString{}, errorAt(tok.Loc, "Cam param string was empty")
	}
	if _, err := lx.expect(TokenRParen); err != nil {
		return ape.OptionalString{}, err
	}
	return ape.SomeString(ape.ByteString(text)), nil
}

func (b *windowBuilder) camParam() (uint16, error) {
	lx := b.c.lx
	if _, err := lx.expect(TokenLParen); err != nil {
		return 0, err
	}
	tok, err := lx.expect(TokenNumber)
	if err != nil {
		return 0, err
	}
	if _, err := lx.expect(TokenRParen); err != nil {
		return 0, err
	}

	var n uint32
	for i := 0; i < len(tok.Text); i++ {
		ch := tok.Text[i]
		if !isDigit(ch) {
			return 0, errorAt(tok.Loc, "Invalid camera parameter")
		}
		n = n*10 + uint32(ch-'0')
		if n > 0xffff {
			return 0, errorAt(tok.Loc, "Camera parameter is too large")
		}
	}
	if uint16(n) == ape.CamUnset {
		return 0, errorAt(tok.Loc, "Camera parameter is set to a a reserved value")
	}
	return uint16(n), nil
}

func (b *windowBuilder) camDirective(loc Location) error {
	if b.cam != nil {
		return errorAt(loc, "cam command already defined")
	}
	if err := b.checkNoCondition(loc); err != nil {
		return err
	}

	c := b.c
	var nameTok Token
	var err error
	if c.opts.LegacyCam {
		if nameTok, err = c.lx.read(modeRaw, 0); err != nil {
			return err
		}
		if strings.IndexByte(nameTok.Text, '(') >= 0 {
			c.rep.warn(nameTok.Loc, "First parameter to 'cam' is the camera name, but this is formatted as if it's a parameter")
		}
	} else if nameTok, err = c.lx.expect(TokenIdentifier); err != nil {
		return err
	}

	cmd := &ape.CamCommand{Name: ape.ByteString(nameTok.Text), Params: ape.UnsetCamParams()}
	p := &cmd.Params
	numeric := map[string]*uint16{
		"yaw": &p.Yaw, "pitch": &p.Pitch, "fov": &p.Fov, "far": &p.Far,
		"near": &p.Near, "fwd": &p.Fwd, "speed": &p.Speed, "lift": &p.Lift,
		"lag": &p.Lag, "occlude": &p.Occlude,
	}
	strs := map[string]*ape.OptionalString{"from": &cmd.From, "to": &cmd.To, "owner": &cmd.Owner}

	for {
		tok, err := c.lx.peekNormal()
		if err != nil {
			return err
		}
		if tok.Type == TokenEOL || tok.Type == TokenEOF {
			break
		}
		if tok, err = c.lx.expect(TokenIdentifier); err != nil {
			return err
		}

		if s, ok := strs[tok.Text]; ok {
			if *s, err = b.camString(); err != nil {
				return err
			}
			continue
		}
		if n, ok := numeric[tok.Text]; ok {
			if *n, err = b.camParam(); err != nil {
				return err
			}
			if tok.Text == "occlude" && *n > 1 {
				return errorAt(tok.Loc, "Only 1 and 0 are allowed for 'occlude'")
			}
			continue
		}
		switch tok.Text {
		case "restore":
			p.Restore = 1
		case "zip":
			p.Zip = 1
		default:
			return errorAt(tok.Loc, "Invalid cam parameter")
		}
	}

	b.cam = cmd
	return nil
}

// collate lays the commands out in the order the engine reads them.
func (b *windowBuilder) collate() []ape.WindowCommand {
	var cmds []ape.WindowCommand
	cmds = append(cmds, b.titles...)
	cmds = append(cmds, b.bodies...)
	cmds = append(cmds, b.xyprints...)

	if b.cam != nil {
		cmds = append(cmds, b.cam)
	}
	if b.talk != nil {
		cmds = append(cmds, b.talk)
	}
	for _, s := range []*ape.SimpleStringCommand{b.startConsole, b.finishConsole} {
		if s != nil {
			cmds = append(cmds, s)
		}
	}
	for _, s := range []*ape.SwitchRefCommand{b.startSwitch, b.thinkSwitch, b.finishSwitch} {
		if s != nil {
			cmds = append(cmds, s)
		}
	}
	for _, s := range []*ape.SimpleStringCommand{b.style, b.font} {
		if s != nil {
			cmds = append(cmds, s)
		}
	}

	if b.flags != 0 {
		cmds = append(cmds, &ape.FlagsCommand{Flags: b.flags})
	}
	if b.colors != [4]uint32{} {
		cmds = append(cmds, &ape.BackgroundCommand{Colors: b.colors})
	}
	cmds = append(cmds, &ape.DimensionsCommand{
		XPos:   b.dims[dimXPos],
		YPos:   b.dims[dimYPos],
		Width:  b.dims[dimWidth],
		Height: b.dims[dimHeight],
	})

	cmds = append(cmds, b.subwindows...)
	cmds = append(cmds, b.images...)
	cmds = append(cmds, b.choices...)
	if b.nextWindow != nil {
		cmds = append(cmds, b.nextWindow)
	}
	return cmds
}
