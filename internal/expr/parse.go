package expr

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ErrSyntax is returned when expression text cannot be parsed.
var ErrSyntax = errors.New("expression syntax error")

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokNumber
	tokChar
	tokString
	tokOp
)

type token struct {
	kind       tokenKind
	text       string
	start, end int
}

// operators ordered longest first so the lexer matches greedily.
var operators = []string{
	">>>=", "<<=", ">>=", ">>>",
	"++", "--", "&&", "||", "==", "!=", "<=", ">=",
	"+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=", "<<", ">>",
	"+", "-", "*", "/", "%", "<", ">", "!", "~", "&", "|", "^",
	"=", "?", ":", "(", ")", "[", "]", ".", ",",
}

func lex(src string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(src) {
		r, w := utf8.DecodeRuneInString(src[i:])
		switch {
		case unicode.IsSpace(r):
			i += w
		case r == '_' || r == '$' || unicode.IsLetter(r):
			j := i + w
			for j < len(src) {
				r, w := utf8.DecodeRuneInString(src[j:])
				if r != '_' && r != '$' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
					break
				}
				j += w
			}
			toks = append(toks, token{tokIdent, src[i:j], i, j})
			i = j
		case unicode.IsDigit(r) || (r == '.' && i+1 < len(src) && isDigit(src[i+1])):
			j := scanNumber(src, i)
			toks = append(toks, token{tokNumber, src[i:j], i, j})
			i = j
		case r == '\'' || r == '"':
			j, err := scanQuoted(src, i, byte(r))
			if err != nil {
				return nil, err
			}
			kind := tokChar
			if r == '"' {
				kind = tokString
			}
			toks = append(toks, token{kind, src[i:j], i, j})
			i = j
		default:
			op := ""
			for _, o := range operators {
				if strings.HasPrefix(src[i:], o) {
					op = o
					break
				}
			}
			if op == "" {
				return nil, fmt.Errorf("%w: unexpected %q at offset %d", ErrSyntax, r, i)
			}
			toks = append(toks, token{tokOp, op, i, i + len(op)})
			i += len(op)
		}
	}
	toks = append(toks, token{tokEOF, "", len(src), len(src)})
	return toks, nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func scanNumber(src string, i int) int {
	j := i
	if strings.HasPrefix(src[i:], "0x") || strings.HasPrefix(src[i:], "0X") {
		j += 2
		for j < len(src) && (isDigit(src[j]) || strings.IndexByte("abcdefABCDEF_", src[j]) >= 0) {
			j++
		}
	} else {
		for j < len(src) && (isDigit(src[j]) || src[j] == '_' || src[j] == '.') {
			j++
		}
		if j < len(src) && (src[j] == 'e' || src[j] == 'E') {
			j++
			if j < len(src) && (src[j] == '+' || src[j] == '-') {
				j++
			}
			for j < len(src) && isDigit(src[j]) {
				j++
			}
		}
	}
	if j < len(src) && strings.IndexByte("lLfFdD", src[j]) >= 0 {
		j++
	}
	return j
}

func scanQuoted(src string, i int, quote byte) (int, error) {
	for j := i + 1; j < len(src); j++ {
		switch src[j] {
		case '\\':
			j++
		case quote:
			return j + 1, nil
		}
	}
	return 0, fmt.Errorf("%w: unterminated literal at offset %d", ErrSyntax, i)
}

// binaryLevels lists binary operators from lowest to highest
// precedence.
var binaryLevels = [][]string{
	{"||"},
	{"&&"},
	{"|"},
	{"^"},
	{"&"},
	{"==", "!="},
	{"<", ">", "<=", ">=", "instanceof"},
	{"<<", ">>", ">>>"},
	{"+", "-"},
	{"*", "/", "%"},
}

var assignOps = map[string]bool{
	"=": true, "+=": true, "-=": true, "*=": true, "/=": true, "%=": true,
	"&=": true, "|=": true, "^=": true, "<<=": true, ">>=": true, ">>>=": true,
}

type parser struct {
	src  string
	toks []token
	pos  int
}

// Parse parses a single expression.
func Parse(src string) (*Node, error) {
	p, err := newParser(src)
	if err != nil {
		return nil, err
	}
	n, err := p.expression()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, p.unexpected(t)
	}
	return n, nil
}

// ParseAssertion parses the condition of an assert statement. The
// leading "assert" keyword, a trailing ";" and a ": message" detail
// expression are all optional and discarded.
func ParseAssertion(stmt string) (*Node, error) {
	s := strings.TrimSpace(stmt)
	s = strings.TrimSuffix(s, ";")
	if rest, ok := strings.CutPrefix(s, "assert"); ok && (rest == "" || !isIdentRune(rest)) {
		s = rest
	}
	p, err := newParser(s)
	if err != nil {
		return nil, err
	}
	n, err := p.expression()
	if err != nil {
		return nil, err
	}
	switch t := p.peek(); {
	case t.kind == tokEOF:
	case t.kind == tokOp && t.text == ":":
		// detail message, not part of the condition
	default:
		return nil, p.unexpected(t)
	}
	return n, nil
}

func isIdentRune(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return r == '_' || r == '$' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func newParser(src string) (*parser, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	return &parser{src: src, toks: toks}, nil
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) peekAt(k int) token {
	if p.pos+k >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.pos+k]
}

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) isOp(text string) bool {
	t := p.peek()
	return t.kind == tokOp && t.text == text
}

func (p *parser) expect(text string) (token, error) {
	if !p.isOp(text) {
		return token{}, p.unexpected(p.peek())
	}
	return p.next(), nil
}

func (p *parser) unexpected(t token) error {
	if t.kind == tokEOF {
		return fmt.Errorf("%w: unexpected end of expression", ErrSyntax)
	}
	return fmt.Errorf("%w: unexpected %q at offset %d", ErrSyntax, t.text, t.start)
}

// node builds a node spanning source offsets [start, end).
func (p *parser) node(kind Kind, op string, start, end int, children ...*Node) *Node {
	return &Node{
		kind:     kind,
		op:       op,
		text:     strings.TrimSpace(p.src[start:end]),
		children: children,
	}
}

func (p *parser) lastEnd() int { return p.toks[p.pos-1].end }

func (p *parser) expression() (*Node, error) {
	start := p.peek().start
	lhs, err := p.ternary()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind == tokOp && assignOps[t.text] {
		p.next()
		rhs, err := p.expression()
		if err != nil {
			return nil, err
		}
		return p.node(Assignment, t.text, start, p.lastEnd(), lhs, rhs), nil
	}
	return lhs, nil
}

func (p *parser) ternary() (*Node, error) {
	start := p.peek().start
	cond, err := p.binary(0)
	if err != nil {
		return nil, err
	}
	if !p.isOp("?") {
		return cond, nil
	}
	p.next()
	then, err := p.expression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(":"); err != nil {
		return nil, err
	}
	els, err := p.ternary()
	if err != nil {
		return nil, err
	}
	return p.node(Ternary, "?:", start, p.lastEnd(), cond, then, els), nil
}

func (p *parser) binaryOp(level int) (string, bool) {
	t := p.peek()
	if t.kind != tokOp && !(t.kind == tokIdent && t.text == "instanceof") {
		return "", false
	}
	for _, op := range binaryLevels[level] {
		if t.text == op {
			return op, true
		}
	}
	return "", false
}

func (p *parser) binary(level int) (*Node, error) {
	if level == len(binaryLevels) {
		return p.unary()
	}
	start := p.peek().start
	left, err := p.binary(level + 1)
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.binaryOp(level)
		if !ok {
			return left, nil
		}
		p.next()
		if op == "instanceof" {
			typ, err := p.typeName()
			if err != nil {
				return nil, err
			}
			left = p.node(InstanceOf, typ, start, p.lastEnd(), left)
			continue
		}
		right, err := p.binary(level + 1)
		if err != nil {
			return nil, err
		}
		left = p.node(Binary, op, start, p.lastEnd(), left, right)
	}
}

func (p *parser) unary() (*Node, error) {
	t := p.peek()
	if t.kind == tokOp {
		switch t.text {
		case "!", "-", "+", "~":
			p.next()
			operand, err := p.unary()
			if err != nil {
				return nil, err
			}
			return p.node(Unary, t.text, t.start, p.lastEnd(), operand), nil
		case "++", "--":
			p.next()
			operand, err := p.unary()
			if err != nil {
				return nil, err
			}
			return p.node(Update, t.text, t.start, p.lastEnd(), operand), nil
		case "(":
			if p.looksLikeCast() {
				p.next()
				typ, err := p.typeName()
				if err != nil {
					return nil, err
				}
				if _, err := p.expect(")"); err != nil {
					return nil, err
				}
				operand, err := p.unary()
				if err != nil {
					return nil, err
				}
				return p.node(Cast, typ, t.start, p.lastEnd(), operand), nil
			}
		}
	}
	return p.postfix()
}

var primitiveTypes = map[string]bool{
	"int": true, "long": true, "short": true, "byte": true, "char": true,
	"boolean": true, "float": true, "double": true,
}

// looksLikeCast reports whether the tokens at the cursor read as
// "(Type) operand". A parenthesized name followed by an operator is a
// parenthesized expression instead.
func (p *parser) looksLikeCast() bool {
	k := 1
	if p.peekAt(k).kind != tokIdent {
		return false
	}
	primitive := primitiveTypes[p.peekAt(k).text]
	k++
	for p.peekAt(k).kind == tokOp && p.peekAt(k).text == "." && p.peekAt(k+1).kind == tokIdent {
		k += 2
	}
	for p.peekAt(k).kind == tokOp && p.peekAt(k).text == "[" && p.peekAt(k+1).text == "]" {
		k += 2
	}
	if p.peekAt(k).kind != tokOp || p.peekAt(k).text != ")" {
		return false
	}
	if primitive {
		return true
	}
	switch after := p.peekAt(k + 1); after.kind {
	case tokIdent, tokNumber, tokChar, tokString:
		return after.text != "instanceof"
	case tokOp:
		return after.text == "(" || after.text == "!" || after.text == "~"
	}
	return false
}

func (p *parser) typeName() (string, error) {
	t := p.next()
	if t.kind != tokIdent {
		return "", p.unexpected(t)
	}
	start := t.start
	for p.isOp(".") && p.peekAt(1).kind == tokIdent {
		p.next()
		p.next()
	}
	for p.isOp("[") && p.peekAt(1).text == "]" {
		p.next()
		p.next()
	}
	return strings.Join(strings.Fields(p.src[start:p.lastEnd()]), ""), nil
}

func (p *parser) postfix() (*Node, error) {
	start := p.peek().start
	n, err := p.primary()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.isOp("."):
			p.next()
			name := p.next()
			if name.kind != tokIdent {
				return nil, p.unexpected(name)
			}
			if p.isOp("(") {
				args, err := p.arguments()
				if err != nil {
					return nil, err
				}
				n = p.call(name.text, start, n, args)
				continue
			}
			n = p.node(FieldAccess, name.text, start, p.lastEnd(), n)
		case p.isOp("(") && n.kind == Identifier:
			args, err := p.arguments()
			if err != nil {
				return nil, err
			}
			n = p.call(n.text, start, nil, args)
		case p.isOp("["):
			p.next()
			idx, err := p.expression()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect("]"); err != nil {
				return nil, err
			}
			n = p.node(ArrayAccess, "[]", start, p.lastEnd(), n, idx)
		case p.isOp("++"), p.isOp("--"):
			op := p.next()
			n = p.node(Update, op.text, start, p.lastEnd(), n)
		default:
			return n, nil
		}
	}
}

func (p *parser) call(name string, start int, recv *Node, args []*Node) *Node {
	children := args
	if recv != nil {
		children = append([]*Node{recv}, args...)
	}
	n := p.node(Call, name, start, p.lastEnd(), children...)
	n.receiver = recv != nil
	return n
}

func (p *parser) arguments() ([]*Node, error) {
	if _, err := p.expect("("); err != nil {
		return nil, err
	}
	var args []*Node
	if p.isOp(")") {
		p.next()
		return args, nil
	}
	for {
		a, err := p.expression()
		if err != nil {
			return nil, err
		}
		args = append(args, a)
		if p.isOp(",") {
			p.next()
			continue
		}
		if _, err := p.expect(")"); err != nil {
			return nil, err
		}
		return args, nil
	}
}

func (p *parser) primary() (*Node, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		kind := IntLiteral
		body := strings.TrimRight(t.text, "lL")
		isHex := strings.HasPrefix(body, "0x") || strings.HasPrefix(body, "0X")
		if !isHex && (strings.ContainsAny(body, ".eE") || strings.ContainsAny(body[len(body)-1:], "fFdD")) {
			kind = DecimalLiteral
		}
		return p.node(kind, "", t.start, t.end), nil
	case tokChar:
		return p.node(CharLiteral, "", t.start, t.end), nil
	case tokString:
		return p.node(StringLiteral, "", t.start, t.end), nil
	case tokIdent:
		switch t.text {
		case "true":
			return p.node(True, "", t.start, t.end), nil
		case "false":
			return p.node(False, "", t.start, t.end), nil
		case "null":
			return p.node(Null, "", t.start, t.end), nil
		}
		return p.node(Identifier, "", t.start, t.end), nil
	case tokOp:
		if t.text == "(" {
			inner, err := p.expression()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(")"); err != nil {
				return nil, err
			}
			return p.node(Paren, "", t.start, p.lastEnd(), inner), nil
		}
	}
	return nil, p.unexpected(t)
}
