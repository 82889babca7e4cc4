// Package compiler turns APE script source into an ape.File.
package compiler

import (
	"errors"

	"apetools/internal/ape"
)

type compiler struct {
	lx   *lexer
	opts Options
	rep  *reporter
	prec precedenceTable
	ids  *inlineIDs

	windows  []ape.Window
	switches []ape.Switch
	inline   []ape.Switch
}

// Compile compiles script source. Warnings go to sink, which may be nil.
// A failed compile is also reported to sink as an error diagnostic before
// it is returned.
func Compile(src []byte, opts Options, sink Sink) (*ape.File, error) {
	rep := &reporter{sink: sink}
	f, err := compile(src, opts, rep)
	if err != nil {
		var ce *Error
		if errors.As(err, &ce) {
			rep.report(SeverityError, ce.Location, ce.Message)
		} else {
			rep.report(SeverityError, Location{File: opts.InputFileName}, err.Error())
		}
		return nil, err
	}
	if opts.WarningsAsErrors && rep.firstWarning != nil {
		return nil, rep.firstWarning
	}
	return f, nil
}

func compile(src []byte, opts Options, rep *reporter) (*ape.File, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	opts = opts.effective()

	hash := opts.InlineSwitchHash
	if !opts.UseInlineSwitchHash {
		var err error
		if hash, err = InlineSwitchHash(opts.InputFileName); err != nil {
			return nil, err
		}
	}

	src = normalizeNewlines(src)
	if opts.LegacyComments {
		if err := stripLegacyComments(src, opts.InputFileName); err != nil {
			return nil, err
		}
	}
	if opts.LegacyMacros {
		var err error
		if src, err = applyLegacyMacros(src, opts.InputFileName); err != nil {
			return nil, err
		}
	}

	c := &compiler{
		lx:   newLexer(src, opts.InputFileName, opts.AllowExpFloatSyntax),
		opts: opts,
		rep:  rep,
		prec: precedenceFor(opts),
		ids:  &inlineIDs{hash: hash},
	}
	if err := c.run(); err != nil {
		return nil, err
	}

	switches := make([]ape.Switch, 0, len(c.switches)+len(c.inline))
	switches = append(switches, c.switches...)
	switches = append(switches, c.inline...)
	return &ape.File{Windows: c.windows, Switches: switches}, nil
}

func (c *compiler) run() error {
	if c.opts.LegacyTopLevelDirectives {
		if err := c.skipToDirective(); err != nil {
			return err
		}
	}

	afterTLD := false
	for {
		if !afterTLD {
			tok, err := c.lx.next()
			if err != nil {
				return err
			}
			if tok.Type == TokenEOL {
				continue
			}
			if tok.Type == TokenEOF {
				return nil
			}
			if tok.Type != TokenHash {
				return errorAt(tok.Loc, "Expected a top-level directive")
			}
		}

		kind, err := c.lx.next()
		if err != nil {
			return err
		}
		if kind.Type != TokenIdentifier {
			return errorAt(kind.Loc, "Expected identifier for # directive")
		}

		switch kind.Text {
		case "window":
			var w ape.Window
			if w, afterTLD, err = c.compileWindow(); err != nil {
				return err
			}
			c.windows = append(c.windows, w)
		case "switch":
			label, err := c.parseDefinitionLabel()
			if err != nil {
				return err
			}
			var sw ape.Switch
			if sw, afterTLD, err = c.compileSwitch(label, false); err != nil {
				return err
			}
			c.switches = append(c.switches, sw)
		case "define":
			if err := c.lx.defineMacro(); err != nil {
				return err
			}
			afterTLD = false
		default:
			return errorAt(kind.Loc, "Unknown compile directive")
		}
	}
}

// skipToDirective discards everything before the first '#'. Strings in the
// skipped text end at the end of their line.
func (c *compiler) skipToDirective() error {
	for {
		tok, err := c.lx.peek(modeNormal, flagStopAtNewLine)
		if err != nil {
			return err
		}
		if tok.Type == TokenHash || tok.Type == TokenEOF {
			return nil
		}
		c.lx.consume()
	}
}
