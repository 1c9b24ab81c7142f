package query

import (
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokNumber
	tokString
	tokOp
	tokLParen
	tokRParen
	tokComma
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

// lexer produces tokens over a query string. Operators are the two-char
// forms first so ">=" does not split into ">" and "=".
type lexer struct {
	input string
	pos   int
}

func newLexer(input string) *lexer {
	return &lexer{input: input}
}

var twoCharOps = []string{">=", "<=", "!="}

func (l *lexer) next() (token, error) {
	for l.pos < len(l.input) && unicode.IsSpace(rune(l.input[l.pos])) {
		l.pos++
	}
	if l.pos >= len(l.input) {
		return token{kind: tokEOF, pos: l.pos}, nil
	}
	start := l.pos
	c := l.input[l.pos]

	switch c {
	case '(':
		l.pos++
		return token{kind: tokLParen, text: "(", pos: start}, nil
	case ')':
		l.pos++
		return token{kind: tokRParen, text: ")", pos: start}, nil
	case ',':
		l.pos++
		return token{kind: tokComma, text: ",", pos: start}, nil
	case '"', '\'':
		return l.lexString(c)
	}

	for _, op := range twoCharOps {
		if strings.HasPrefix(l.input[l.pos:], op) {
			l.pos += 2
			return token{kind: tokOp, text: op, pos: start}, nil
		}
	}
	switch c {
	case '=', '>', '<', '~':
		l.pos++
		return token{kind: tokOp, text: string(c), pos: start}, nil
	}

	if c == '-' || c >= '0' && c <= '9' {
		// Numbers, negative numbers, relative dates (7d) and ISO dates
		// (2025-12-31) all start with a digit or minus; lex the word and
		// let the parser classify it.
		return l.lexWord(start), nil
	}
	if isIdentStart(rune(c)) {
		return l.lexWord(start), nil
	}
	return token{}, &ParseError{Pos: start, Msg: "unexpected character " + string(c)}
}

func (l *lexer) lexString(quote byte) (token, error) {
	start := l.pos
	l.pos++ // opening quote
	var sb strings.Builder
	for l.pos < len(l.input) {
		c := l.input[l.pos]
		if c == '\\' && l.pos+1 < len(l.input) {
			sb.WriteByte(l.input[l.pos+1])
			l.pos += 2
			continue
		}
		if c == quote {
			l.pos++
			return token{kind: tokString, text: sb.String(), pos: start}, nil
		}
		sb.WriteByte(c)
		l.pos++
	}
	return token{}, &ParseError{Pos: start, Msg: "unterminated string"}
}

func (l *lexer) lexWord(start int) token {
	for l.pos < len(l.input) && isWordChar(rune(l.input[l.pos])) {
		l.pos++
	}
	text := l.input[start:l.pos]
	if isNumeric(text) {
		return token{kind: tokNumber, text: text, pos: start}
	}
	return token{kind: tokIdent, text: text, pos: start}
}

func isIdentStart(r rune) bool {
	return unicode.IsLetter(r) || r == '_' || r == '*'
}

// isWordChar keeps dots for dotted field paths (fields.Status, parent.name),
// dashes for ISO dates, and colons for namespaced identifiers.
func isWordChar(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) ||
		r == '_' || r == '.' || r == '-' || r == ':' || r == '*' || r == '/'
}

func isNumeric(s string) bool {
	if s == "" || s == "-" {
		return false
	}
	dot := false
	for i, r := range s {
		if r == '-' && i == 0 {
			continue
		}
		if r == '.' {
			if dot {
				return false
			}
			dot = true
			continue
		}
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
