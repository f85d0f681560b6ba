package filterexpr

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokQuotedIdent
	tokString
	tokNumber
	tokTrue
	tokFalse
	tokAnd
	tokOr
	tokNot
	tokIn
	tokCompare
	tokLParen
	tokRParen
	tokLBracket
	tokRBracket
	tokComma
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

func (t token) String() string {
	if t.kind == tokEOF {
		return "end of expression"
	}
	return fmt.Sprintf("%q", t.text)
}

var keywords = map[string]tokenKind{
	"and":   tokAnd,
	"or":    tokOr,
	"not":   tokNot,
	"in":    tokIn,
	"true":  tokTrue,
	"false": tokFalse,
}

type lexer struct {
	src  string
	pos  int
	toks []token
}

func lex(src string) ([]token, error) {
	l := &lexer{src: src}
	for {
		l.skipSpace()
		if l.pos >= len(l.src) {
			l.toks = append(l.toks, token{kind: tokEOF, pos: l.pos})
			return l.toks, nil
		}
		if err := l.next(); err != nil {
			return nil, err
		}
	}
}

func (l *lexer) emit(kind tokenKind, text string, pos int) {
	l.toks = append(l.toks, token{kind: kind, text: text, pos: pos})
}

func (l *lexer) last() tokenKind {
	if len(l.toks) == 0 {
		return tokEOF
	}
	return l.toks[len(l.toks)-1].kind
}

func (l *lexer) skipSpace() {
	for l.pos < len(l.src) {
		r, size := utf8.DecodeRuneInString(l.src[l.pos:])
		if !unicode.IsSpace(r) {
			return
		}
		l.pos += size
	}
}

func (l *lexer) peekByte(offset int) byte {
	if l.pos+offset >= len(l.src) {
		return 0
	}
	return l.src[l.pos+offset]
}

func (l *lexer) next() error {
	start := l.pos
	c := l.src[l.pos]
	switch {
	case c == '(':
		l.pos++
		l.emit(tokLParen, "(", start)
	case c == ')':
		l.pos++
		l.emit(tokRParen, ")", start)
	case c == ']':
		l.pos++
		l.emit(tokRBracket, "]", start)
	case c == ',':
		l.pos++
		l.emit(tokComma, ",", start)
	case c == '[':
		if l.last() == tokIn {
			l.pos++
			l.emit(tokLBracket, "[", start)
			return nil
		}
		return l.quotedIdent('[', ']')
	case c == '`':
		return l.quotedIdent('`', '`')
	case c == '\'' || c == '"':
		return l.stringLiteral(c)
	case isDigit(c) || (c == '.' && isDigit(l.peekByte(1))):
		l.number()
	case c == '-' && l.expectsOperand() && (isDigit(l.peekByte(1)) || l.peekByte(1) == '.'):
		l.pos++
		l.number()
		l.toks[len(l.toks)-1].pos = start
		l.toks[len(l.toks)-1].text = l.src[start:l.pos]
	default:
		if l.operator() {
			return nil
		}
		r, _ := utf8.DecodeRuneInString(l.src[l.pos:])
		if r == '_' || unicode.IsLetter(r) {
			l.identifier()
			return nil
		}
		return &SyntaxError{Pos: start, Msg: fmt.Sprintf("unexpected character %q", r)}
	}
	return nil
}

// expectsOperand reports whether a leading minus sign can only start a
// negative number literal.
func (l *lexer) expectsOperand() bool {
	switch l.last() {
	case tokEOF, tokCompare, tokLParen, tokLBracket, tokComma, tokAnd, tokOr, tokNot, tokIn:
		return true
	}
	return false
}

var operators = []struct {
	text string
	kind tokenKind
	norm string
}{
	{"==", tokCompare, "=="},
	{"!=", tokCompare, "!="},
	{"<>", tokCompare, "!="},
	{"<=", tokCompare, "<="},
	{">=", tokCompare, ">="},
	{"&&", tokAnd, "and"},
	{"||", tokOr, "or"},
	{"=", tokCompare, "=="},
	{"<", tokCompare, "<"},
	{">", tokCompare, ">"},
	{"&", tokAnd, "and"},
	{"|", tokOr, "or"},
	{"~", tokNot, "not"},
	{"!", tokNot, "not"},
}

func (l *lexer) operator() bool {
	rest := l.src[l.pos:]
	for _, op := range operators {
		if strings.HasPrefix(rest, op.text) {
			l.emit(op.kind, op.norm, l.pos)
			l.pos += len(op.text)
			return true
		}
	}
	return false
}

func (l *lexer) identifier() {
	start := l.pos
	for l.pos < len(l.src) {
		r, size := utf8.DecodeRuneInString(l.src[l.pos:])
		if r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			break
		}
		l.pos += size
	}
	word := l.src[start:l.pos]
	if kind, ok := keywords[strings.ToLower(word)]; ok {
		l.emit(kind, strings.ToLower(word), start)
		return
	}
	l.emit(tokIdent, word, start)
}

func (l *lexer) number() {
	start := l.pos
	seenDot, seenExp := false, false
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case isDigit(c):
		case c == '.' && !seenDot && !seenExp:
			seenDot = true
		case (c == 'e' || c == 'E') && !seenExp && l.pos > start:
			seenExp = true
			if next := l.peekByte(1); next == '+' || next == '-' {
				l.pos++
			}
		default:
			l.emit(tokNumber, l.src[start:l.pos], start)
			return
		}
		l.pos++
	}
	l.emit(tokNumber, l.src[start:l.pos], start)
}

func (l *lexer) quotedIdent(open, closing byte) error {
	start := l.pos
	end := strings.IndexByte(l.src[l.pos+1:], closing)
	if end < 0 {
		return &SyntaxError{Pos: start, Msg: fmt.Sprintf("unterminated %c quoted column name", open)}
	}
	name := l.src[l.pos+1 : l.pos+1+end]
	if strings.TrimSpace(name) == "" {
		return &SyntaxError{Pos: start, Msg: "empty quoted column name"}
	}
	l.pos += end + 2
	l.emit(tokQuotedIdent, name, start)
	return nil
}

func (l *lexer) stringLiteral(quote byte) error {
	start := l.pos
	l.pos++
	var b strings.Builder
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == '\\' && l.pos+1 < len(l.src):
			b.WriteByte(l.src[l.pos+1])
			l.pos += 2
		case c == quote:
			l.pos++
			l.emit(tokString, b.String(), start)
			return nil
		default:
			b.WriteByte(c)
			l.pos++
		}
	}
	return &SyntaxError{Pos: start, Msg: "unterminated string literal"}
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
