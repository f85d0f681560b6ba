package filterexpr

import (
	"fmt"
	"math"
	"strconv"
)

type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() token {
	return p.toks[p.pos]
}

func (p *parser) advance() token {
	tok := p.toks[p.pos]
	if tok.kind != tokEOF {
		p.pos++
	}
	return tok
}

func (p *parser) errorf(tok token, format string, args ...any) error {
	return &SyntaxError{Pos: tok.pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) parseExpression() (node, error) {
	expr, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokEOF {
		return nil, p.errorf(tok, "unexpected %s", tok)
	}
	return expr, nil
}

func (p *parser) parseOr() (node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokOr {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &logical{and: false, left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokAnd {
		p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &logical{and: true, left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (node, error) {
	if p.peek().kind == tokNot {
		p.advance()
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &negation{inner: inner}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (node, error) {
	if p.peek().kind == tokLParen {
		p.advance()
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if tok := p.advance(); tok.kind != tokRParen {
			return nil, p.errorf(tok, "expected ) but found %s", tok)
		}
		return inner, nil
	}

	left, err := p.parseOperand()
	if err != nil {
		return nil, err
	}

	tok := p.peek()
	switch tok.kind {
	case tokCompare:
		p.advance()
		right, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		if tok.text != "==" && tok.text != "!=" && (left.kind == operandBool || right.kind == operandBool) {
			return nil, p.errorf(tok, "operator %s cannot compare booleans", tok.text)
		}
		return &comparison{op: tok.text, left: left, right: right}, nil
	case tokIn:
		p.advance()
		values, err := p.parseList()
		if err != nil {
			return nil, err
		}
		return &membership{subject: left, values: values}, nil
	case tokNot:
		if p.toks[p.pos+1].kind == tokIn {
			p.advance()
			p.advance()
			values, err := p.parseList()
			if err != nil {
				return nil, err
			}
			return &membership{subject: left, values: values, negate: true}, nil
		}
	}
	return nil, p.errorf(tok, "expected a comparison after %s but found %s", left.describe(), tok)
}

func (p *parser) parseOperand() (operand, error) {
	tok := p.advance()
	switch tok.kind {
	case tokIdent, tokQuotedIdent:
		return operand{kind: operandColumn, text: tok.text}, nil
	case tokString:
		return operand{kind: operandString, text: tok.text}, nil
	case tokNumber:
		value, err := strconv.ParseFloat(tok.text, 64)
		if err != nil || math.IsInf(value, 0) || math.IsNaN(value) {
			return operand{}, p.errorf(tok, "invalid number %s", tok)
		}
		return operand{kind: operandNumber, text: tok.text, num: value}, nil
	case tokTrue, tokFalse:
		return operand{kind: operandBool, text: tok.text, boolean: tok.kind == tokTrue}, nil
	}
	return operand{}, p.errorf(tok, "expected a column or literal but found %s", tok)
}

func (p *parser) parseList() ([]operand, error) {
	open := p.advance()
	var closing tokenKind
	switch open.kind {
	case tokLBracket:
		closing = tokRBracket
	case tokLParen:
		closing = tokRParen
	default:
		return nil, p.errorf(open, "expected a list after in but found %s", open)
	}

	var values []operand
	for {
		if p.peek().kind == closing {
			p.advance()
			return values, nil
		}
		value, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		if value.kind == operandColumn {
			return nil, p.errorf(p.toks[p.pos-1], "list elements must be literals")
		}
		values = append(values, value)

		switch tok := p.advance(); tok.kind {
		case tokComma:
		case closing:
			return values, nil
		default:
			return nil, p.errorf(tok, "expected , or end of list but found %s", tok)
		}
	}
}
