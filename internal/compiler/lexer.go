package compiler

import (
	"bytes"
	"fmt"
)

// TokenType classifies a lexed token.
type TokenType int

const (
	TokenEOL TokenType = iota
	TokenEOF
	TokenIdentifier
	TokenNumber
	TokenColon
	TokenString
	TokenComma
	TokenOperator
	TokenLParen
	TokenRParen
	TokenLBrace
	TokenRBrace
	TokenHash
	TokenAssign
	TokenRaw
)

var tokenTypeNames = [...]string{
	TokenEOL:        "EndOfLine",
	TokenEOF:        "EndOfFile",
	TokenIdentifier: "Identifier",
	TokenNumber:     "NumericLiteral",
	TokenColon:      "Colon",
	TokenString:     "StringLiteral",
	TokenComma:      "Comma",
	TokenOperator:   "ExprOperator",
	TokenLParen:     "OpenParen",
	TokenRParen:     "CloseParen",
	TokenLBrace:     "OpenBrace",
	TokenRBrace:     "CloseBrace",
	TokenHash:       "TopLevelDirective",
	TokenAssign:     "Assign",
	TokenRaw:        "AbstractString",
}

func (t TokenType) String() string {
	if int(t) >= 0 && int(t) < len(tokenTypeNames) {
		return tokenTypeNames[t]
	}
	return fmt.Sprintf("TokenType(%d)", int(t))
}

// Token is a lexed token. Text holds the source bytes; string literals keep
// their quotes.
type Token struct {
	Type TokenType
	Text string
	Loc  Location
}

// is reports whether t is an identifier spelled word.
func (t Token) is(word string) bool {
	return t.Type == TokenIdentifier && t.Text == word
}

type readMode int

const (
	modeNormal readMode = iota
	modeQuoted          // a quoted string is required
	modeRaw             // everything up to the next whitespace
)

type readFlags uint

const (
	flagStopAtNewLine readFlags = 1 << iota
	flagIgnoreEscapes
	flagAllowNewLine
	flagStopAtCloseParen
	flagIgnoreWhitespace
	flagIgnoreQuotes
	flagStopAtComma
	flagStopAtAssign
	flagNoMacros
)

func (f readFlags) has(b readFlags) bool { return f&b != 0 }

// lexer splits normalized source into tokens on demand. The grammar is
// context sensitive, so every read names the mode to lex the next token in.
// A peeked token is returned as-is by the following read regardless of the
// mode that read asks for.
type lexer struct {
	src  []byte
	pos  int
	loc  Location
	exps bool

	queue  []Token
	macros map[string][]Token
}

func newLexer(src []byte, file string, allowExpFloats bool) *lexer {
	return &lexer{
		src:    src,
		loc:    Location{File: file},
		exps:   allowExpFloats,
		macros: map[string][]Token{},
	}
}

// location is the position of the next unread byte.
func (l *lexer) location() Location { return l.loc }

func (l *lexer) atEOF() bool { return l.pos >= len(l.src) }

func (l *lexer) peekByte() byte { return l.src[l.pos] }

func (l *lexer) advance(n int) {
	for ; n > 0 && l.pos < len(l.src); n-- {
		if l.src[l.pos] == '\n' {
			l.loc.Line++
			l.loc.Col = 0
		} else {
			l.loc.Col++
		}
		l.pos++
	}
}

func (l *lexer) read(mode readMode, flags readFlags) (Token, error) {
	if len(l.queue) > 0 {
		tok := l.queue[0]
		l.queue = l.queue[1:]
		return tok, nil
	}
	return l.lex(mode, flags)
}

func (l *lexer) peek(mode readMode, flags readFlags) (Token, error) {
	if len(l.queue) > 0 {
		return l.queue[0], nil
	}
	tok, err := l.lex(mode, flags)
	if err != nil {
		return Token{}, err
	}
	// lex may have queued the tail of a macro expansion.
	l.queue = append([]Token{tok}, l.queue...)
	return tok, nil
}

// consume drops the token returned by the last peek.
func (l *lexer) consume() {
	if len(l.queue) > 0 {
		l.queue = l.queue[1:]
	}
}

func (l *lexer) next() (Token, error) { return l.read(modeNormal, 0) }

func (l *lexer) peekNormal() (Token, error) { return l.peek(modeNormal, 0) }

func (l *lexer) expect(t TokenType) (Token, error) {
	tok, err := l.next()
	if err != nil {
		return Token{}, err
	}
	if tok.Type != t {
		return Token{}, errorAt(tok.Loc, "Expected token of type %s but found %s", t, tok.Type)
	}
	return tok, nil
}

func (l *lexer) skipEOLs() error {
	for {
		tok, err := l.peekNormal()
		if err != nil {
			return err
		}
		if tok.Type != TokenEOL {
			return nil
		}
		l.consume()
	}
}

// nextIsQuote reports whether the next token starts with a double quote.
// It does not lex, so it is safe before a raw read.
func (l *lexer) nextIsQuote() bool {
	if len(l.queue) > 0 {
		return l.queue[0].Type == TokenString
	}
	for i := l.pos; i < len(l.src); i++ {
		b := l.src[i]
		if b == '\n' || !isWhitespace(b) {
			return b == '"'
		}
	}
	return false
}

// lex skips blanks and comments and reads one token from the source. End
// of file is returned for every read once reached.
func (l *lexer) lex(mode readMode, flags readFlags) (Token, error) {
	inLine, inBlock := false, false
	for {
		if l.atEOF() {
			if inBlock {
				return Token{}, errorAt(l.loc, "Unterminated block comment")
			}
			return Token{Type: TokenEOF, Loc: l.loc}, nil
		}

		b := l.peekByte()
		if b == '\n' {
			loc := l.loc
			l.advance(1)
			if inBlock {
				continue
			}
			return Token{Type: TokenEOL, Text: "\n", Loc: loc}, nil
		}
		if inBlock {
			if bytes.HasPrefix(l.src[l.pos:], []byte("*/")) {
				l.advance(2)
				inBlock = false
			} else {
				l.advance(1)
			}
			continue
		}
		if inLine || isWhitespace(b) {
			l.advance(1)
			continue
		}
		if bytes.HasPrefix(l.src[l.pos:], []byte("//")) {
			l.advance(2)
			inLine = true
			continue
		}
		if bytes.HasPrefix(l.src[l.pos:], []byte("/*")) {
			l.advance(2)
			inBlock = true
			continue
		}
		break
	}

	switch mode {
	case modeRaw:
		return l.lexRaw(flags)
	case modeQuoted:
		return l.lexQuoted(flags)
	}
	return l.lexNormal(flags)
}

func (l *lexer) slice(start int, loc Location, t TokenType) Token {
	return Token{Type: t, Text: string(l.src[start:l.pos]), Loc: loc}
}

func (l *lexer) lexRaw(flags readFlags) (Token, error) {
	loc, start := l.loc, l.pos

	if !(flags.has(flagStopAtCloseParen) && l.peekByte() == ')') {
		l.advance(1)
	}
	for !l.atEOF() {
		b := l.peekByte()
		if b == '\n' && flags.has(flagStopAtNewLine) {
			break
		}
		if b == ')' && flags.has(flagStopAtCloseParen) {
			break
		}
		if b == ',' && flags.has(flagStopAtComma) {
			break
		}
		if b == '=' && flags.has(flagStopAtAssign) {
			break
		}
		if b == '\\' && !flags.has(flagIgnoreEscapes) {
			l.advance(1)
			if l.atEOF() {
				return Token{}, errorAt(loc, "Unterminated string escape")
			}
			l.advance(1)
			continue
		}
		if b == '"' && !flags.has(flagStopAtCloseParen) && !flags.has(flagIgnoreQuotes) {
			l.advance(1)
			break
		}
		if isWhitespace(b) && !flags.has(flagIgnoreWhitespace) {
			break
		}
		l.advance(1)
	}

	tok := l.slice(start, loc, TokenRaw)
	if !flags.has(flagNoMacros) {
		if body, ok := l.macros[tok.Text]; ok && len(body) == 1 {
			sub := body[0]
			sub.Loc = loc
			return sub, nil
		}
	}
	return tok, nil
}

func (l *lexer) lexQuoted(flags readFlags) (Token, error) {
	loc, start := l.loc, l.pos
	if l.peekByte() != '"' {
		return Token{}, errorAt(loc, "Expected quoted string")
	}
	l.advance(1)

	for {
		if l.atEOF() {
			return Token{}, errorAt(l.loc, "Unexpected end of file in string constant")
		}
		b := l.peekByte()
		if b == '\n' {
			if flags.has(flagStopAtNewLine) {
				break
			}
			if !flags.has(flagAllowNewLine) {
				return Token{}, errorAt(l.loc, "Unexpected newline in string constant")
			}
		}
		if b == '"' {
			l.advance(1)
			break
		}
		if b == '\\' && !flags.has(flagIgnoreEscapes) {
			l.advance(1)
			if l.atEOF() {
				return Token{}, errorAt(l.loc, "Unexpected end of file in string constant")
			}
		}
		l.advance(1)
	}
	return l.slice(start, loc, TokenString), nil
}

func (l *lexer) lexNormal(flags readFlags) (Token, error) {
	loc, start := l.loc, l.pos
	b := l.peekByte()

	switch {
	case isDigit(b):
		return l.lexNumber()
	case isIdentifierChar(b):
		for !l.atEOF() && isIdentifierChar(l.peekByte()) {
			l.advance(1)
		}
		tok := l.slice(start, loc, TokenIdentifier)
		if !flags.has(flagNoMacros) {
			if body, ok := l.macros[tok.Text]; ok {
				return l.expandMacro(body, loc, flags)
			}
		}
		return tok, nil
	case b == '"':
		return l.lexQuoted(flags)
	}

	single := map[byte]TokenType{
		',': TokenComma, ':': TokenColon, '#': TokenHash,
		'{': TokenLBrace, '}': TokenRBrace, '(': TokenLParen, ')': TokenRParen,
		'/': TokenOperator, '*': TokenOperator, '-': TokenOperator, '+': TokenOperator,
	}
	if t, ok := single[b]; ok {
		l.advance(1)
		return l.slice(start, loc, t), nil
	}

	switch b {
	case '<', '>':
		l.advance(1)
		if !l.atEOF() && l.peekByte() == '=' {
			l.advance(1)
		}
		return l.slice(start, loc, TokenOperator), nil
	case '=':
		l.advance(1)
		if !l.atEOF() && l.peekByte() == '=' {
			l.advance(1)
			return l.slice(start, loc, TokenOperator), nil
		}
		return l.slice(start, loc, TokenAssign), nil
	case '!', '&', '^', '|':
		l.advance(1)
		if l.atEOF() {
			return Token{}, errorAt(loc, "Unexpected end of file in token")
		}
		second := l.peekByte()
		l.advance(1)
		if (b == '!' && second == '=') || (b != '!' && second == b) {
			return l.slice(start, loc, TokenOperator), nil
		}
	}
	return Token{}, errorAt(loc, "Unrecognized token")
}

type numberStep int

const (
	stepIntegral numberStep = iota
	stepFractionFirst
	stepFraction
	stepExpSign
	stepExpFirst
	stepExp
)

func (l *lexer) lexNumber() (Token, error) {
	loc, start := l.loc, l.pos
	step := stepIntegral

scan:
	for !l.atEOF() {
		b := l.peekByte()
		switch {
		case isDigit(b):
			l.advance(1)
			switch step {
			case stepFractionFirst:
				step = stepFraction
			case stepExpSign, stepExpFirst:
				step = stepExp
			}
		case (b == 'e' || b == 'E') && l.exps && (step == stepIntegral || step == stepFraction):
			step = stepExpSign
			l.advance(1)
		case isIdentifierChar(b):
			return Token{}, errorAt(loc, "Invalid character in float literal")
		case b == '.':
			if step != stepIntegral {
				return Token{}, errorAt(loc, "Multiple decimal points in float literal")
			}
			step = stepFractionFirst
			l.advance(1)
		case (b == '+' || b == '-') && step == stepExpSign:
			step = stepExpFirst
			l.advance(1)
		default:
			break scan
		}
	}

	switch step {
	case stepFractionFirst, stepExpSign, stepExpFirst:
		return Token{}, errorAt(loc, "Unexpected character in float literal")
	}
	return l.slice(start, loc, TokenNumber), nil
}

// expandMacro queues a macro body in place of the identifier that named it.
func (l *lexer) expandMacro(body []Token, loc Location, flags readFlags) (Token, error) {
	if len(body) == 0 {
		return l.lex(modeNormal, flags)
	}
	out := make([]Token, len(body))
	for i, t := range body {
		t.Loc = loc
		out[i] = t
	}
	l.queue = append(l.queue, out[1:]...)
	return out[0], nil
}

// defineMacro parses `NAME tokens...` after a #define directive. The body
// runs to the end of the line, which is left unread.
func (l *lexer) defineMacro() error {
	nameTok, err := l.read(modeNormal, flagNoMacros)
	if err != nil {
		return err
	}
	if nameTok.Type != TokenIdentifier {
		return errorAt(nameTok.Loc, "Expected macro name after #define")
	}
	if _, dup := l.macros[nameTok.Text]; dup {
		return errorAt(nameTok.Loc, "Macro '%s' is already defined", nameTok.Text)
	}

	var body []Token
	for {
		tok, err := l.peek(modeNormal, flagAllowNewLine)
		if err != nil {
			return err
		}
		if tok.Type == TokenEOL || tok.Type == TokenEOF {
			break
		}
		l.consume()
		body = append(body, tok)
	}
	l.macros[nameTok.Text] = body
	return nil
}

func isWhitespace(b byte) bool { return b <= ' ' }

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

func isIdentifierChar(b byte) bool {
	return isDigit(b) || b == '_' || b == '$' || b == '@' ||
		(b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
