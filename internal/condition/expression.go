package condition

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/gyaneshwarpardhi/circuitflow/internal/transition"
)

// Expr is a parsed predicate over named port values.
type Expr interface {
	exprNode()
}

// BinaryExpr joins two predicates with AND or OR.
type BinaryExpr struct {
	Op    string
	Left  Expr
	Right Expr
}

// NotExpr negates a predicate.
type NotExpr struct {
	Expr Expr
}

// ComparisonExpr is <operand> <operator> <operand>.
type ComparisonExpr struct {
	Left  Operand
	Op    Operator
	Right Operand
}

// TruthExpr tests a single operand for truthiness, e.g. a bare Bool input.
type TruthExpr struct {
	Operand Operand
}

func (*BinaryExpr) exprNode()     {}
func (*NotExpr) exprNode()        {}
func (*ComparisonExpr) exprNode() {}
func (*TruthExpr) exprNode()      {}

// Operand is a literal, the null keyword or a port name.
type Operand interface {
	operandNode()
}

// LiteralOperand holds a constant. Integers parse as Int, decimals as Float.
type LiteralOperand struct {
	Value transition.Transition
}

// NullOperand is the `null` keyword; it only makes sense with == and !=.
type NullOperand struct{}

// NameOperand refers to an input port by name.
type NameOperand struct {
	Name string
}

func (*LiteralOperand) operandNode() {}
func (*NullOperand) operandNode()    {}
func (*NameOperand) operandNode()    {}

// -----------------------------------------------------------------------
// Lexer
// -----------------------------------------------------------------------

type tokenKind int

const (
	tokWord tokenKind = iota
	tokOp
	tokString
	tokNumber
	tokBool
	tokNull
	tokLParen
	tokRParen
	tokEOF
)

type token struct {
	kind tokenKind
	val  string
	pos  int
}

type lexer struct {
	src    string
	pos    int
	tokens []token
}

func (l *lexer) emit(kind tokenKind, val string, at int) {
	l.tokens = append(l.tokens, token{kind: kind, val: val, pos: at})
}

func isWordByte(ch byte) bool {
	return ch == '_' || unicode.IsLetter(rune(ch)) || unicode.IsDigit(rune(ch))
}

func tokenize(src string) ([]token, error) {
	l := &lexer{src: src}
	for l.pos < len(src) {
		start := l.pos
		ch := src[l.pos]
		switch {
		case unicode.IsSpace(rune(ch)):
			l.pos++
		case ch == '(':
			l.emit(tokLParen, "(", start)
			l.pos++
		case ch == ')':
			l.emit(tokRParen, ")", start)
			l.pos++
		case strings.IndexByte("=!<>", ch) >= 0:
			if l.pos+1 < len(src) && src[l.pos+1] == '=' {
				l.pos += 2
			} else {
				l.pos++
			}
			op := src[start:l.pos]
			if op == "=" || op == "!" {
				return nil, fmt.Errorf("condition: unknown operator %q at %d", op, start)
			}
			l.emit(tokOp, op, start)
		case ch == '&' || ch == '|':
			if l.pos+1 >= len(src) || src[l.pos+1] != ch {
				return nil, fmt.Errorf("condition: unexpected %q at %d", ch, start)
			}
			l.pos += 2
			if ch == '&' {
				l.emit(tokWord, "AND", start)
			} else {
				l.emit(tokWord, "OR", start)
			}
		case ch == '"' || ch == '\'':
			s, err := l.quoted(ch)
			if err != nil {
				return nil, err
			}
			l.emit(tokString, s, start)
		case unicode.IsDigit(rune(ch)) || (ch == '-' && l.pos+1 < len(src) && unicode.IsDigit(rune(src[l.pos+1]))):
			l.pos++
			for l.pos < len(src) && (unicode.IsDigit(rune(src[l.pos])) || src[l.pos] == '.') {
				l.pos++
			}
			l.emit(tokNumber, src[start:l.pos], start)
		case isWordByte(ch):
			for l.pos < len(src) && isWordByte(src[l.pos]) {
				l.pos++
			}
			word := src[start:l.pos]
			switch strings.ToLower(word) {
			case "true", "false":
				l.emit(tokBool, strings.ToLower(word), start)
			case "null":
				l.emit(tokNull, "null", start)
			default:
				l.emit(tokWord, word, start)
			}
		default:
			return nil, fmt.Errorf("condition: unexpected character %q at %d", ch, start)
		}
	}
	l.emit(tokEOF, "", len(src))
	return l.tokens, nil
}

func (l *lexer) quoted(quote byte) (string, error) {
	start := l.pos
	var b strings.Builder
	l.pos++
	for l.pos < len(l.src) {
		ch := l.src[l.pos]
		switch {
		case ch == quote:
			l.pos++
			return b.String(), nil
		case ch == '\\' && l.pos+1 < len(l.src):
			b.WriteByte(l.src[l.pos+1])
			l.pos += 2
		default:
			b.WriteByte(ch)
			l.pos++
		}
	}
	return "", fmt.Errorf("condition: unterminated string starting at %d", start)
}

// -----------------------------------------------------------------------
// Parser
// -----------------------------------------------------------------------

type parser struct {
	tokens []token
	pos    int
}

func (p *parser) peek() token { return p.tokens[p.pos] }

func (p *parser) next() token {
	t := p.tokens[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) keyword(kw string) bool {
	t := p.peek()
	return t.kind == tokWord && strings.EqualFold(t.val, kw)
}

// Parse turns an expression into an AST.
//
//	or      = and { "OR" and }
//	and     = unary { "AND" unary }
//	unary   = "NOT" unary | "(" or ")" | test
//	test    = operand [ operator operand ]
func Parse(src string) (Expr, error) {
	tokens, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}
	e, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, fmt.Errorf("condition: unexpected %q at %d", t.val, t.pos)
	}
	return e, nil
}

func (p *parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.keyword("OR") {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: "OR", Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.keyword("AND") {
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: "AND", Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (Expr, error) {
	if p.keyword("NOT") {
		p.next()
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &NotExpr{Expr: inner}, nil
	}
	if p.peek().kind == tokLParen {
		p.next()
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if t := p.next(); t.kind != tokRParen {
			return nil, fmt.Errorf("condition: expected ) at %d, got %q", t.pos, t.val)
		}
		return inner, nil
	}
	return p.parseTest()
}

func (p *parser) parseTest() (Expr, error) {
	left, err := p.parseOperand()
	if err != nil {
		return nil, err
	}

	var op Operator
	switch t := p.peek(); {
	case t.kind == tokOp:
		op = Operator(t.val)
	case t.kind == tokWord && strings.EqualFold(t.val, "contains"):
		op = OpContains
	case t.kind == tokWord && strings.EqualFold(t.val, "matches"):
		op = OpMatches
	default:
		return &TruthExpr{Operand: left}, nil
	}
	p.next()

	right, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	return &ComparisonExpr{Left: left, Op: op, Right: right}, nil
}

func (p *parser) parseOperand() (Operand, error) {
	t := p.next()
	switch t.kind {
	case tokString:
		return &LiteralOperand{Value: transition.OfString(t.val)}, nil
	case tokNumber:
		if strings.Contains(t.val, ".") {
			f, err := strconv.ParseFloat(t.val, 64)
			if err != nil {
				return nil, fmt.Errorf("condition: invalid number %q", t.val)
			}
			return &LiteralOperand{Value: transition.OfFloat(f)}, nil
		}
		n, err := strconv.Atoi(t.val)
		if err != nil {
			return nil, fmt.Errorf("condition: invalid integer %q", t.val)
		}
		return &LiteralOperand{Value: transition.OfInt(n)}, nil
	case tokBool:
		return &LiteralOperand{Value: transition.OfBool(t.val == "true")}, nil
	case tokNull:
		return &NullOperand{}, nil
	case tokWord:
		return &NameOperand{Name: t.val}, nil
	default:
		return nil, fmt.Errorf("condition: expected operand at %d, got %q", t.pos, t.val)
	}
}

// Names returns every port name referenced by e, in first-seen order.
func Names(e Expr) []string {
	var out []string
	seen := map[string]bool{}
	add := func(o Operand) {
		if n, ok := o.(*NameOperand); ok && !seen[n.Name] {
			seen[n.Name] = true
			out = append(out, n.Name)
		}
	}
	var walk func(Expr)
	walk = func(e Expr) {
		switch x := e.(type) {
		case *BinaryExpr:
			walk(x.Left)
			walk(x.Right)
		case *NotExpr:
			walk(x.Expr)
		case *ComparisonExpr:
			add(x.Left)
			add(x.Right)
		case *TruthExpr:
			add(x.Operand)
		}
	}
	walk(e)
	return out
}
