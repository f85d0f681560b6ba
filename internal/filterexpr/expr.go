// Package filterexpr implements the only filter language a model-generated
// count query may use: comparisons and membership tests over table columns
// and literals, combined with and/or/not. Anything else (function calls,
// attribute access, arithmetic, assignment) fails to parse.
package filterexpr

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/sheetsense/sheetsense/internal/table"
)

const maxSourceLength = 4096

var ErrEmptyExpression = errors.New("empty filter expression")

type SyntaxError struct {
	Pos int
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at offset %d: %s", e.Pos, e.Msg)
}

type UnknownColumnError struct {
	Column string
}

func (e *UnknownColumnError) Error() string {
	return fmt.Sprintf("unknown column %q", e.Column)
}

// Row resolves a column name to the cell value of one row.
type Row func(column string) (string, bool)

// Expression is a parsed filter. It is safe for concurrent use.
type Expression struct {
	source string
	root   node
}

// Parse parses src without checking column names.
func Parse(src string) (*Expression, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return nil, ErrEmptyExpression
	}
	if len(src) > maxSourceLength {
		return nil, fmt.Errorf("filter expression longer than %d bytes", maxSourceLength)
	}
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	root, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	return &Expression{source: src, root: root}, nil
}

// Compile parses src and checks every referenced column against columns.
func Compile(src string, columns []string) (*Expression, error) {
	expr, err := Parse(src)
	if err != nil {
		return nil, err
	}
	if err := expr.Validate(columns); err != nil {
		return nil, err
	}
	return expr, nil
}

func (e *Expression) String() string { return e.source }

// Columns returns the referenced column names, sorted and deduplicated.
func (e *Expression) Columns() []string {
	seen := map[string]struct{}{}
	e.root.columns(seen)
	out := make([]string, 0, len(seen))
	for column := range seen {
		out = append(out, column)
	}
	sort.Strings(out)
	return out
}

func (e *Expression) Validate(columns []string) error {
	known := make(map[string]struct{}, len(columns))
	for _, column := range columns {
		known[column] = struct{}{}
	}
	for _, column := range e.Columns() {
		if _, ok := known[column]; !ok {
			return &UnknownColumnError{Column: column}
		}
	}
	return nil
}

// Match evaluates the expression against one row.
func (e *Expression) Match(row Row) (bool, error) {
	return e.root.eval(row)
}

type node interface {
	eval(row Row) (bool, error)
	columns(into map[string]struct{})
}

type logical struct {
	and         bool
	left, right node
}

func (n *logical) eval(row Row) (bool, error) {
	left, err := n.left.eval(row)
	if err != nil {
		return false, err
	}
	if n.and && !left {
		return false, nil
	}
	if !n.and && left {
		return true, nil
	}
	return n.right.eval(row)
}

func (n *logical) columns(into map[string]struct{}) {
	n.left.columns(into)
	n.right.columns(into)
}

type negation struct {
	inner node
}

func (n *negation) eval(row Row) (bool, error) {
	matched, err := n.inner.eval(row)
	return !matched, err
}

func (n *negation) columns(into map[string]struct{}) {
	n.inner.columns(into)
}

type comparison struct {
	op          string
	left, right operand
}

func (n *comparison) eval(row Row) (bool, error) {
	left, err := n.left.resolve(row)
	if err != nil {
		return false, err
	}
	right, err := n.right.resolve(row)
	if err != nil {
		return false, err
	}
	return compare(n.op, left, right), nil
}

func (n *comparison) columns(into map[string]struct{}) {
	n.left.addColumn(into)
	n.right.addColumn(into)
}

type membership struct {
	subject operand
	values  []operand
	negate  bool
}

func (n *membership) eval(row Row) (bool, error) {
	subject, err := n.subject.resolve(row)
	if err != nil {
		return false, err
	}
	found := false
	for _, candidate := range n.values {
		if compare("==", subject, candidate.value()) {
			found = true
			break
		}
	}
	return found != n.negate, nil
}

func (n *membership) columns(into map[string]struct{}) {
	n.subject.addColumn(into)
}

type operandKind int

const (
	operandColumn operandKind = iota
	operandString
	operandNumber
	operandBool
)

type operand struct {
	kind    operandKind
	text    string
	num     float64
	boolean bool
}

func (o operand) describe() string {
	if o.kind == operandColumn {
		return fmt.Sprintf("column %q", o.text)
	}
	return fmt.Sprintf("literal %q", o.text)
}

func (o operand) addColumn(into map[string]struct{}) {
	if o.kind == operandColumn {
		into[o.text] = struct{}{}
	}
}

// value is the comparable form of a resolved operand. strict marks number
// and boolean literals, which never fall back to text comparison.
type value struct {
	text    string
	num     float64
	isNum   bool
	boolean bool
	isBool  bool
	strict  bool
}

func (o operand) value() value {
	switch o.kind {
	case operandNumber:
		return value{text: o.text, num: o.num, isNum: true, strict: true}
	case operandBool:
		return value{text: o.text, boolean: o.boolean, isBool: true, strict: true}
	default:
		return textValue(o.text)
	}
}

func (o operand) resolve(row Row) (value, error) {
	if o.kind != operandColumn {
		return o.value(), nil
	}
	cell, ok := row(o.text)
	if !ok {
		return value{}, &UnknownColumnError{Column: o.text}
	}
	return textValue(cell), nil
}

func textValue(text string) value {
	v := value{text: text}
	if num, ok := table.ParseNumber(text); ok {
		v.num, v.isNum = num, true
	}
	return v
}

func compare(op string, left, right value) bool {
	if left.isBool || right.isBool {
		lb, lok := asBool(left)
		rb, rok := asBool(right)
		if !lok || !rok {
			return op == "!="
		}
		if op == "==" {
			return lb == rb
		}
		return lb != rb
	}

	var cmp int
	switch {
	case left.isNum && right.isNum:
		switch {
		case left.num < right.num:
			cmp = -1
		case left.num > right.num:
			cmp = 1
		}
	case left.strict || right.strict:
		return op == "!="
	default:
		cmp = strings.Compare(left.text, right.text)
	}

	switch op {
	case "==":
		return cmp == 0
	case "!=":
		return cmp != 0
	case "<":
		return cmp < 0
	case "<=":
		return cmp <= 0
	case ">":
		return cmp > 0
	case ">=":
		return cmp >= 0
	}
	return false
}

func asBool(v value) (bool, bool) {
	if v.isBool {
		return v.boolean, true
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v.text))
	if err != nil {
		return false, false
	}
	return b, true
}
