package compiler

import (
	"errors"
	"strconv"

	"apetools/internal/ape"
)

func (c *compiler) parseExpr() (value, error) {
	return c.parseTier(len(c.prec))
}

// parseExprPreferFloat parses an expression that should be numeric. A
// non-numeric result is an error unless malformed expressions are allowed.
func (c *compiler) parseExprPreferFloat() (value, error) {
	loc := c.lx.location()
	v, err := c.parseExpr()
	if err != nil {
		return nil, err
	}
	if v.result() != resultFloat {
		if !c.opts.AllowMalformedExprs {
			return nil, errorAt(loc, "Compiler expression was invalid")
		}
		c.rep.warn(loc, "Expression does not evaluate to a number")
	}
	return v, nil
}

func (c *compiler) parseTier(upper int) (value, error) {
	tier := upper - 1
	if tier < 0 {
		return c.parseNegation()
	}

	left, err := c.parseTier(tier)
	if err != nil {
		return nil, err
	}
	for {
		tok, err := c.lx.peekNormal()
		if err != nil {
			return nil, err
		}
		if tok.Type != TokenOperator {
			return left, nil
		}
		op, ok := c.prec[tier][tok.Text]
		if !ok {
			return left, nil
		}
		c.lx.consume()

		right, err := c.parseTier(tier)
		if err != nil {
			return nil, err
		}
		left = newBinary(left, right, op)
	}
}

func (c *compiler) parseNegation() (value, error) {
	tok, err := c.lx.peekNormal()
	if err != nil {
		return nil, err
	}
	if tok.Type != TokenOperator || tok.Text != "-" {
		return c.parseOperand()
	}
	c.lx.consume()

	sub, err := c.parseNegation()
	if err != nil {
		return nil, err
	}
	if sub.result() != resultFloat {
		return nil, errorAt(tok.Loc, "Expected float expression for negation operator")
	}
	if f, ok := sub.(floatConst); ok {
		return floatConst{v: -f.v}, nil
	}
	return newBinary(floatConst{}, sub, ape.OpSub), nil
}

func (c *compiler) parseOperand() (value, error) {
	tok, err := c.lx.peekNormal()
	if err != nil {
		return nil, err
	}

	switch tok.Type {
	case TokenLParen:
		c.lx.consume()
		v, err := c.parseExpr()
		if err != nil {
			return nil, err
		}
		closing, err := c.lx.next()
		if err != nil {
			return nil, err
		}
		if closing.Type != TokenRParen {
			return nil, errorAt(closing.Loc, "Expected ')' to close expression")
		}
		return v, nil
	case TokenString:
		c.lx.consume()
		return stringConst{raw: unquote(tok)}, nil
	case TokenNumber:
		c.lx.consume()
		f, err := parseFloatToken(tok)
		if err != nil {
			return nil, err
		}
		return floatConst{v: f}, nil
	case TokenIdentifier:
		c.lx.consume()
		return variableValue(tok.Text), nil
	}
	return nil, errorAt(tok.Loc, "Expected expression")
}

func parseFloatToken(tok Token) (float32, error) {
	if tok.Type != TokenNumber {
		return 0, errorAt(tok.Loc, "Expected a number")
	}
	f, err := strconv.ParseFloat(tok.Text, 32)
	if errors.Is(err, strconv.ErrRange) {
		return 0, errorAt(tok.Loc, "Float literal %s is out of range", tok.Text)
	}
	if err != nil {
		return 0, errorAt(tok.Loc, "Could not parse %s as a float", tok.Text)
	}
	return float32(f), nil
}

func parseLabelPart(tok Token, limit uint64) (uint64, error) {
	var n uint64
	for i := 0; i < len(tok.Text); i++ {
		b := tok.Text[i]
		if !isDigit(b) {
			return 0, errorAt(tok.Loc, "%s", ape.ErrLabelNotIntegral)
		}
		n = n*10 + uint64(b-'0')
		if n >= limit {
			return 0, errorAt(tok.Loc, "%s", ape.ErrLabelTooLarge)
		}
	}
	return n, nil
}

func labelFromTokens(high, low Token) (uint32, error) {
	h, err := parseLabelPart(high, 100000)
	if err != nil {
		return 0, err
	}
	l, err := parseLabelPart(low, 10000)
	if err != nil {
		return 0, err
	}
	label, err := ape.MakeLabel(h, l)
	if err != nil {
		return 0, errorAt(high.Loc, "%s", err)
	}
	return label, nil
}

// parseLabel reads `high:low`.
func (c *compiler) parseLabel() (uint32, error) {
	high, err := c.lx.expect(TokenNumber)
	if err != nil {
		return 0, err
	}
	if _, err := c.lx.expect(TokenColon); err != nil {
		return 0, err
	}
	low, err := c.lx.expect(TokenNumber)
	if err != nil {
		return 0, err
	}
	return labelFromTokens(high, low)
}

// parseDefinitionLabel reads the label of a #window or #switch directive.
// Label 0 ends the windows and switches sections on disk, so nothing can be
// defined under it.
func (c *compiler) parseDefinitionLabel() (uint32, error) {
	first, err := c.lx.peekNormal()
	if err != nil {
		return 0, err
	}
	label, err := c.parseLabel()
	if err != nil {
		return 0, err
	}
	if label == 0 {
		return 0, errorAt(first.Loc, "Label 0 is reserved")
	}
	return label, nil
}

func (c *compiler) parseFormattingValue() (ape.TypedFormattingValue, error) {
	tok, err := c.lx.read(modeNormal, flagIgnoreEscapes)
	if err != nil {
		return ape.TypedFormattingValue{}, err
	}
	return formattingValueFromToken(tok)
}

func formattingValueFromToken(tok Token) (ape.TypedFormattingValue, error) {
	switch tok.Type {
	case TokenNumber:
		f, err := parseFloatToken(tok)
		if err != nil {
			return ape.TypedFormattingValue{}, err
		}
		return ape.TypedFormattingValue{Type: ape.FormatFloat, Value: ape.FloatOperand{Value: f}}, nil
	case TokenIdentifier:
		t := ape.FormatVariableName
		if tok.Text[len(tok.Text)-1] == '$' {
			t = ape.FormatStringVariableName
		}
		return ape.TypedFormattingValue{Type: t, Value: ape.StringOperand{Value: ape.ByteString(tok.Text)}}, nil
	case TokenString:
		return ape.TypedFormattingValue{Type: ape.FormatString, Value: ape.QuotedStringOperand{Value: ape.ByteString(unquote(tok))}}, nil
	}
	return ape.TypedFormattingValue{}, errorAt(tok.Loc, "Unexpected token type where a formatting value was expected")
}

// parseFormatList reads any number of `, value` suffixes.
func (c *compiler) parseFormatList() (ape.FormattingValue, error) {
	var values ape.FormattingValue
	for {
		tok, err := c.lx.peekNormal()
		if err != nil {
			return nil, err
		}
		if tok.Type != TokenComma {
			return values, nil
		}
		c.lx.consume()

		v, err := c.parseFormattingValue()
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
}

// readOptionallyQuotedName reads a file, font or style name. A quoted name
// is taken verbatim between the quotes; otherwise the name runs to the next
// whitespace.
func (c *compiler) readOptionallyQuotedName() (string, error) {
	if c.lx.nextIsQuote() {
		tok, err := c.lx.read(modeQuoted, flagIgnoreEscapes)
		if err != nil {
			return "", err
		}
		return unquote(tok), nil
	}

	tok, err := c.lx.read(modeRaw, flagIgnoreEscapes|flagIgnoreQuotes)
	if err != nil {
		return "", err
	}
	switch tok.Type {
	case TokenEOL, TokenEOF:
		return "", errorAt(tok.Loc, "Expected a name")
	case TokenString:
		return unquote(tok), nil
	}
	return tok.Text, nil
}

// parseIdentifierAsString reads a bare word that is stored as a string,
// such as an animation or font name.
func (c *compiler) parseIdentifierAsString(stopAtComma bool) (string, error) {
	flags := flagIgnoreQuotes | flagIgnoreEscapes
	if stopAtComma {
		flags |= flagStopAtComma
	}
	tok, err := c.lx.read(modeRaw, flags)
	if err != nil {
		return "", err
	}

	text := tok.Text
	switch tok.Type {
	case TokenEOL, TokenEOF:
		return "", errorAt(tok.Loc, "Expected a value")
	case TokenString:
		text = unquote(tok)
	case TokenRaw:
		if text != "" && (text[0] == '"' || text[len(text)-1] == '"') {
			c.rep.warn(tok.Loc, "Value is a quoted string, but quotes will be parsed as part of the string in this context")
		}
	}

	if text != "" && text[len(text)-1] == '$' {
		c.rep.warn(tok.Loc, "Value is parsed as a string, but a variable name was specified")
	}
	return text, nil
}
