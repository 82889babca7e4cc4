package compiler

import (
	"strings"

	"apetools/internal/ape"
)

// switchStmt is a parsed switch statement. Only if and while carry nested
// statements.
type switchStmt struct {
	cmd    ape.SwitchCommandType
	str    ape.OptionalString
	format ape.FormattingValue
	expr   value
	loc    Location

	ifTrue  []*switchStmt
	ifFalse []*switchStmt
}

// Statements whose only argument is an optional bare word.
var optionalWordStatements = map[string]ape.SwitchCommandType{
	"target":       ape.SwitchTarget,
	"pathtarget":   ape.SwitchPathTarget,
	"playambient":  ape.SwitchPlayAmbient,
	"loopambient":  ape.SwitchLoopAmbient,
	"stopambient":  ape.SwitchStopAmbient,
	"playscene":    ape.SwitchPlayScene,
	"loopscene":    ape.SwitchLoopScene,
	"stopscene":    ape.SwitchStopScene,
	"chainscripts": ape.SwitchChainScripts,
}

// Statements taking a quoted string and formatting values.
var quotedStatements = map[string]ape.SwitchCommandType{
	"console":  ape.SwitchConsole,
	"echo":     ape.SwitchEcho,
	"loadape":  ape.SwitchLoadAPE,
	"setfocus": ape.SwitchSetFocus,
}

const restOfLineFlags = flagStopAtNewLine | flagIgnoreWhitespace | flagIgnoreEscapes | flagIgnoreQuotes

// compileSwitch compiles statements up to the next top level directive, or
// up to the closing brace of an inline block. afterTLD reports that the
// '#' of the next directive was consumed.
func (c *compiler) compileSwitch(label uint32, inline bool) (sw ape.Switch, afterTLD bool, err error) {
	loc := c.lx.location()
	var stmts []*switchStmt

loop:
	for {
		tok, err := c.lx.peekNormal()
		if err != nil {
			return ape.Switch{}, false, err
		}

		switch {
		case tok.Type == TokenHash:
			c.lx.consume()
			isDefine, err := c.defineFollows()
			if err != nil {
				return ape.Switch{}, false, err
			}
			if !isDefine {
				afterTLD = true
				break loop
			}
		case tok.Type == TokenEOF:
			if inline {
				return ape.Switch{}, false, errorAt(loc, "Expected close brace to close switch command block")
			}
			break loop
		case tok.Type == TokenRBrace && inline:
			break loop
		case tok.Type == TokenEOL:
			c.lx.consume()
		default:
			tok, err := c.lx.expect(TokenIdentifier)
			if err != nil {
				return ape.Switch{}, false, err
			}
			stmt, err := c.statement(tok, false)
			if err != nil {
				return ape.Switch{}, false, err
			}
			stmts = append(stmts, stmt)
		}
	}

	cmds, err := c.flushStatements(stmts, loc)
	if err != nil {
		return ape.Switch{}, false, err
	}
	return ape.Switch{Label: label, Commands: cmds}, afterTLD, nil
}

// defineFollows handles `#define` inside a window or switch body. It
// reports false, leaving the directive name unread, for any other
// directive.
func (c *compiler) defineFollows() (bool, error) {
	tok, err := c.lx.peek(modeNormal, flagNoMacros)
	if err != nil {
		return false, err
	}
	if !tok.is("define") {
		return false, nil
	}
	c.lx.consume()
	return true, c.lx.defineMacro()
}

// statement compiles one statement and checks that it ends its line. An
// if's true branch may also be followed by else on the same line.
func (c *compiler) statement(tok Token, elseMayFollow bool) (*switchStmt, error) {
	stmt, needsCheck, err := c.statementBody(tok)
	if err != nil {
		return nil, err
	}
	if !needsCheck {
		return stmt, nil
	}

	next, err := c.lx.peekNormal()
	if err != nil {
		return nil, err
	}
	switch {
	case next.Type == TokenEOL, next.Type == TokenEOF, next.Type == TokenRBrace:
	case elseMayFollow && next.is("else"):
	default:
		return nil, errorAt(next.Loc, "Expected end of line after switch directive")
	}
	return stmt, nil
}

func (c *compiler) statementBody(tok Token) (*switchStmt, bool, error) {
	if tok.Type != TokenIdentifier {
		return nil, false, errorAt(tok.Loc, "Expected switch statement")
	}

	if t, ok := optionalWordStatements[tok.Text]; ok {
		stmt, err := c.compileOptionalWord(t, tok.Loc)
		return stmt, true, err
	}
	if t, ok := quotedStatements[tok.Text]; ok {
		stmt, err := c.compileQuotedStatement(t, tok.Loc)
		return stmt, true, err
	}

	var (
		stmt *switchStmt
		err  error
	)
	switch tok.Text {
	case "if":
		return c.compileIf(tok.Loc)
	case "while":
		stmt, err = c.compileWhile(tok.Loc)
	case "set":
		var dest Token
		if dest, err = c.readSetDestination(); err == nil {
			stmt, err = c.compileSet(dest)
		}
	case "unset":
		var dest Token
		if dest, err = c.readSetDestination(); err == nil {
			stmt = compileUnset(dest)
		}
	case "goto":
		stmt, err = c.compileGoto(tok.Loc)
	case "return":
		stmt = &switchStmt{cmd: ape.SwitchGoto, str: ape.SomeString("0:0"), loc: tok.Loc}
	case "gosub":
		stmt, err = c.compileLabeled(ape.SwitchGoSub, tok.Loc)
	case "closewindow":
		stmt, err = c.compileLabeled(ape.SwitchCloseWindow, tok.Loc)
	case "extern":
		stmt, err = c.compileExtern(tok.Loc)
	default:
		stmt, err = c.compileSet(tok)
	}
	return stmt, true, err
}

// body reads the statement or braced block controlled by an if, else or
// while.
func (c *compiler) body(elseMayFollow bool) ([]*switchStmt, error) {
	if err := c.lx.skipEOLs(); err != nil {
		return nil, err
	}
	tok, err := c.lx.next()
	if err != nil {
		return nil, err
	}
	if tok.Type != TokenLBrace {
		stmt, err := c.statement(tok, elseMayFollow)
		if err != nil {
			return nil, err
		}
		return []*switchStmt{stmt}, nil
	}

	var stmts []*switchStmt
	for {
		next, err := c.lx.peekNormal()
		if err != nil {
			return nil, err
		}
		switch next.Type {
		case TokenRBrace:
			c.lx.consume()
			if len(stmts) == 0 && !c.opts.AllowEmptyConditionBlocks {
				return nil, errorAt(tok.Loc, "Empty condition block")
			}
			return stmts, nil
		case TokenEOL:
			c.lx.consume()
			continue
		case TokenEOF:
			return nil, errorAt(tok.Loc, "Expected close brace to close switch command block")
		}

		id, err := c.lx.expect(TokenIdentifier)
		if err != nil {
			return nil, err
		}
		stmt, err := c.statement(id, false)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
	}
}

func (c *compiler) parseCondition() (value, error) {
	if _, err := c.lx.expect(TokenLParen); err != nil {
		return nil, err
	}
	cond, err := c.parseExprPreferFloat()
	if err != nil {
		return nil, err
	}
	if _, err := c.lx.expect(TokenRParen); err != nil {
		return nil, err
	}
	return cond, nil
}

func (c *compiler) compileIf(loc Location) (*switchStmt, bool, error) {
	cond, err := c.parseCondition()
	if err != nil {
		return nil, false, err
	}

	stmt := &switchStmt{cmd: ape.SwitchIf, expr: cond, loc: loc}
	if stmt.ifTrue, err = c.body(true); err != nil {
		return nil, false, err
	}

	next, err := c.lx.peekNormal()
	if err != nil {
		return nil, false, err
	}
	eolAfterTrue := next.Type == TokenEOL

	if err := c.lx.skipEOLs(); err != nil {
		return nil, false, err
	}
	next, err = c.lx.peekNormal()
	if err != nil {
		return nil, false, err
	}
	if !next.is("else") {
		return stmt, !eolAfterTrue, nil
	}
	c.lx.consume()

	if stmt.ifFalse, err = c.body(false); err != nil {
		return nil, false, err
	}
	return stmt, true, nil
}

func (c *compiler) compileWhile(loc Location) (*switchStmt, error) {
	cond, err := c.parseCondition()
	if err != nil {
		return nil, err
	}
	stmt := &switchStmt{cmd: ape.SwitchWhile, expr: cond, loc: loc}
	if stmt.ifTrue, err = c.body(false); err != nil {
		return nil, err
	}
	return stmt, nil
}

func (c *compiler) readSetDestination() (Token, error) {
	if !c.opts.LegacySetNaming {
		return c.lx.expect(TokenIdentifier)
	}
	tok, err := c.lx.read(modeRaw, flagStopAtAssign|flagIgnoreEscapes|flagIgnoreQuotes)
	if err != nil {
		return Token{}, err
	}
	tok.Text = strings.TrimSpace(tok.Text)
	if tok.Type == TokenEOL || tok.Type == TokenEOF || tok.Text == "" {
		return Token{}, errorAt(tok.Loc, "Expected variable name")
	}
	return tok, nil
}

func isStringVariable(name string) bool {
	return name != "" && name[len(name)-1] == '$'
}

// compileSet compiles `dest = value` after dest was read. A string
// variable's assignment is stored as one `name=value` string.
func (c *compiler) compileSet(dest Token) (*switchStmt, error) {
	if dest.Type != TokenIdentifier && dest.Type != TokenRaw {
		return nil, errorAt(dest.Loc, "Expected variable name")
	}
	if _, err := c.lx.expect(TokenAssign); err != nil {
		return nil, err
	}

	stmt := &switchStmt{loc: dest.Loc}
	if !isStringVariable(dest.Text) {
		expr, err := c.parseExpr()
		if err != nil {
			return nil, err
		}
		stmt.cmd = ape.SwitchSetFloat
		stmt.str = ape.SomeString(ape.ByteString(dest.Text))
		stmt.expr = expr
	} else {
		assigned, err := c.readStringAssignment()
		if err != nil {
			return nil, err
		}
		stmt.cmd = ape.SwitchSetString
		stmt.str = ape.SomeString(ape.ByteString(dest.Text + "=" + assigned))
	}

	format, err := c.parseFormatList()
	if err != nil {
		return nil, err
	}
	stmt.format = format
	return stmt, nil
}

// readStringAssignment returns the right hand side of a string assignment.
// Quoted values keep their quotes with escapes decoded.
func (c *compiler) readStringAssignment() (string, error) {
	if c.lx.nextIsQuote() {
		tok, err := c.lx.read(modeQuoted, 0)
		if err != nil {
			return "", err
		}
		s, err := unescape(unquote(tok), tok.Loc, true, false)
		if err != nil {
			return "", err
		}
		return `"` + s + `"`, nil
	}

	tok, err := c.lx.read(modeRaw, flagIgnoreEscapes|flagIgnoreQuotes|flagStopAtComma)
	if err != nil {
		return "", err
	}
	if tok.Type == TokenEOL || tok.Type == TokenEOF {
		return "", errorAt(tok.Loc, "Expected value to assign")
	}
	return strings.TrimRight(tok.Text, " \t"), nil
}

func compileUnset(dest Token) *switchStmt {
	stmt := &switchStmt{str: ape.SomeString(ape.ByteString(dest.Text)), loc: dest.Loc}
	if isStringVariable(dest.Text) {
		stmt.cmd = ape.SwitchSetString
	} else {
		stmt.cmd = ape.SwitchSetFloat
	}
	return stmt
}

func (c *compiler) compileLabeled(t ape.SwitchCommandType, loc Location) (*switchStmt, error) {
	label, err := c.parseLabel()
	if err != nil {
		return nil, err
	}
	return &switchStmt{cmd: t, str: ape.SomeString(ape.ByteString(ape.FormatLabel(label))), loc: loc}, nil
}

func (c *compiler) compileGoto(loc Location) (*switchStmt, error) {
	if !c.opts.LegacyLabeledCommands {
		return c.compileLabeled(ape.SwitchGoto, loc)
	}
	target, err := c.readRestOfLine("Expected goto target")
	if err != nil {
		return nil, err
	}
	return &switchStmt{cmd: ape.SwitchGoto, str: ape.SomeString(ape.ByteString(target)), loc: loc}, nil
}

func (c *compiler) compileExtern(loc Location) (*switchStmt, error) {
	command, err := c.readRestOfLine("Expected extern command")
	if err != nil {
		return nil, err
	}
	return &switchStmt{cmd: ape.SwitchExtern, str: ape.SomeString(ape.ByteString(command)), loc: loc}, nil
}

// readRestOfLine returns the raw text up to the end of the line.
func (c *compiler) readRestOfLine(missing string) (string, error) {
	tok, err := c.lx.read(modeRaw, restOfLineFlags)
	if err != nil {
		return "", err
	}
	if tok.Type == TokenEOL || tok.Type == TokenEOF {
		return "", errorAt(tok.Loc, "%s", missing)
	}
	return tok.Text, nil
}

func (c *compiler) compileQuotedStatement(t ape.SwitchCommandType, loc Location) (*switchStmt, error) {
	tok, err := c.lx.read(modeQuoted, 0)
	if err != nil {
		return nil, err
	}
	s, err := unescape(unquote(tok), tok.Loc, true, false)
	if err != nil {
		return nil, err
	}
	format, err := c.parseFormatList()
	if err != nil {
		return nil, err
	}
	return &switchStmt{cmd: t, str: ape.SomeString(ape.ByteString(s)), format: format, loc: loc}, nil
}

func (c *compiler) compileOptionalWord(t ape.SwitchCommandType, loc Location) (*switchStmt, error) {
	stmt := &switchStmt{cmd: t, loc: loc}

	const flags = flagStopAtComma | flagIgnoreWhitespace | flagStopAtNewLine | flagIgnoreEscapes | flagIgnoreQuotes
	tok, err := c.lx.peek(modeRaw, flags)
	if err != nil {
		return nil, err
	}
	if tok.Type == TokenEOL || tok.Type == TokenEOF {
		return stmt, nil
	}
	c.lx.consume()

	text := tok.Text
	if tok.Type == TokenString {
		text = unquote(tok)
	}
	stmt.str = ape.SomeString(ape.ByteString(strings.TrimRight(text, " \t")))

	if stmt.format, err = c.parseFormatList(); err != nil {
		return nil, err
	}
	return stmt, nil
}

// optimizeStatements drops if statements with no body, inverts those with
// only an else body and, when optimizing, replaces constant conditions by
// the branch they select.
func (c *compiler) optimizeStatements(in []*switchStmt) ([]*switchStmt, error) {
	var out []*switchStmt
	for _, s := range in {
		switch s.cmd {
		case ape.SwitchIf:
			cond := s.expr
			if c.opts.Optimize {
				folded, err := fold(cond, s.loc)
				if err != nil {
					return nil, err
				}
				cond = folded
			}
			ifTrue, err := c.optimizeStatements(s.ifTrue)
			if err != nil {
				return nil, err
			}
			ifFalse, err := c.optimizeStatements(s.ifFalse)
			if err != nil {
				return nil, err
			}

			if f, ok := cond.(floatConst); ok && c.opts.Optimize {
				if f.v != 0 {
					out = append(out, ifTrue...)
				} else {
					out = append(out, ifFalse...)
				}
				continue
			}

			switch {
			case len(ifTrue) == 0 && len(ifFalse) == 0:
			case len(ifTrue) == 0:
				inv := invert(cond)
				if inv.result() != resultFloat {
					return nil, errorAt(s.loc, "Conditional 'if' block with no true statements was not invertible")
				}
				out = append(out, &switchStmt{cmd: ape.SwitchIf, expr: inv, loc: s.loc, ifTrue: ifFalse})
			default:
				out = append(out, &switchStmt{cmd: ape.SwitchIf, expr: cond, loc: s.loc, ifTrue: ifTrue, ifFalse: ifFalse})
			}

		case ape.SwitchWhile:
			body, err := c.optimizeStatements(s.ifTrue)
			if err != nil {
				return nil, err
			}
			if len(body) == 0 {
				return nil, errorAt(s.loc, "'while' loop interior has no runnable statements")
			}
			copied := *s
			copied.ifTrue = body
			out = append(out, &copied)

		default:
			out = append(out, s)
		}
	}
	return out, nil
}

// nextCC derives a child position: 1 for the true branch, 2 for the else
// branch and 3 for the following statement.
func nextCC(cc uint64, step uint64, loc Location) (uint64, error) {
	if cc>>62 != 0 {
		return 0, errorAt(loc, "Too many statements in switch")
	}
	return cc<<2 + step, nil
}

func (c *compiler) flushStatements(stmts []*switchStmt, loc Location) ([]ape.CCCommand, error) {
	stmts, err := c.optimizeStatements(stmts)
	if err != nil {
		return nil, err
	}
	if len(stmts) == 0 {
		return []ape.CCCommand{{CC: 1, Command: ape.SwitchCommand{Type: ape.SwitchNoOp}}}, nil
	}
	return c.emitStatements(1, stmts, nil)
}

func (c *compiler) emitStatements(cc uint64, stmts []*switchStmt, out []ape.CCCommand) ([]ape.CCCommand, error) {
	for i, s := range stmts {
		if i > 0 {
			var err error
			if cc, err = nextCC(cc, 3, s.loc); err != nil {
				return nil, err
			}
		}

		expr, err := c.toOptional(s.expr, s.loc)
		if err != nil {
			return nil, err
		}
		out = append(out, ape.CCCommand{CC: cc, Command: ape.SwitchCommand{
			Type:   s.cmd,
			Str:    s.str,
			Format: s.format,
			Expr:   expr,
		}})

		if len(s.ifTrue) > 0 {
			child, err := nextCC(cc, 1, s.loc)
			if err != nil {
				return nil, err
			}
			if out, err = c.emitStatements(child, s.ifTrue, out); err != nil {
				return nil, err
			}
		}
		if len(s.ifFalse) > 0 {
			child, err := nextCC(cc, 2, s.loc)
			if err != nil {
				return nil, err
			}
			if out, err = c.emitStatements(child, s.ifFalse, out); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}
