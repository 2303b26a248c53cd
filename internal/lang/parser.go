package lang

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultMaxDepth caps list nesting so a pathological strategy source
// fails with a ParseError instead of exhausting the stack.
const DefaultMaxDepth = 512

type ParseError struct {
	Line    int
	Col     int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at %d:%d: %s", e.Line, e.Col, e.Message)
}

func newParseError(pos Pos, format string, args ...interface{}) *ParseError {
	return &ParseError{Line: pos.Line, Col: pos.Col, Message: fmt.Sprintf(format, args...)}
}

// Parse reads a single strategy expression from source. The grammar is
// s-expressions: parenthesized lists, bare symbols, exact-decimal
// numeric literals, double-quoted strings, true/false, and brace-delimited
// map literals whose elements must pair evenly.
func Parse(source string) (*Node, error) {
	return ParseWithLimit(source, DefaultMaxDepth)
}

func ParseWithLimit(source string, maxDepth int) (*Node, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	tokens, err := lex(source)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens, maxDepth: maxDepth}
	node, err := p.parseExpr(0)
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokenEOF {
		return nil, newParseError(tok.pos, "unexpected trailing input %q", tok.text)
	}
	return node, nil
}

type tokenKind int

const (
	tokenEOF tokenKind = iota
	tokenLParen
	tokenRParen
	tokenLBrace
	tokenRBrace
	tokenNumber
	tokenString
	tokenSymbol
)

type token struct {
	kind tokenKind
	text string
	pos  Pos
}

type lexer struct {
	src  string
	i    int
	line int
	col  int
}

func lex(src string) ([]token, error) {
	lx := &lexer{src: src, line: 1, col: 1}
	tokens := []token{}
	for {
		tok, err := lx.next()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.kind == tokenEOF {
			return tokens, nil
		}
	}
}

func (lx *lexer) pos() Pos {
	return Pos{Line: lx.line, Col: lx.col}
}

func (lx *lexer) advance() byte {
	c := lx.src[lx.i]
	lx.i++
	if c == '\n' {
		lx.line++
		lx.col = 1
	} else {
		lx.col++
	}
	return c
}

func (lx *lexer) skipWhitespaceAndComments() {
	for lx.i < len(lx.src) {
		c := lx.src[lx.i]
		if c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == ',' {
			lx.advance()
			continue
		}
		// line comments run to end of line
		if c == ';' {
			for lx.i < len(lx.src) && lx.src[lx.i] != '\n' {
				lx.advance()
			}
			continue
		}
		return
	}
}

func (lx *lexer) next() (token, error) {
	lx.skipWhitespaceAndComments()
	start := lx.pos()
	if lx.i >= len(lx.src) {
		return token{kind: tokenEOF, pos: start}, nil
	}

	switch c := lx.src[lx.i]; c {
	case '(':
		lx.advance()
		return token{kind: tokenLParen, text: "(", pos: start}, nil
	case ')':
		lx.advance()
		return token{kind: tokenRParen, text: ")", pos: start}, nil
	case '{':
		lx.advance()
		return token{kind: tokenLBrace, text: "{", pos: start}, nil
	case '}':
		lx.advance()
		return token{kind: tokenRBrace, text: "}", pos: start}, nil
	case '"':
		return lx.lexString(start)
	}

	text := lx.lexBareToken()
	if looksNumeric(text) {
		return token{kind: tokenNumber, text: text, pos: start}, nil
	}
	return token{kind: tokenSymbol, text: text, pos: start}, nil
}

func (lx *lexer) lexString(start Pos) (token, error) {
	lx.advance() // opening quote
	var sb strings.Builder
	for lx.i < len(lx.src) {
		c := lx.advance()
		switch c {
		case '"':
			return token{kind: tokenString, text: sb.String(), pos: start}, nil
		case '\\':
			if lx.i >= len(lx.src) {
				return token{}, newParseError(start, "unterminated string literal")
			}
			esc := lx.advance()
			switch esc {
			case '"':
				sb.WriteByte('"')
			case '\\':
				sb.WriteByte('\\')
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			default:
				return token{}, newParseError(start, "invalid escape sequence \\%c", esc)
			}
		default:
			sb.WriteByte(c)
		}
	}
	return token{}, newParseError(start, "unterminated string literal")
}

func (lx *lexer) lexBareToken() string {
	var sb strings.Builder
	for lx.i < len(lx.src) {
		c := lx.src[lx.i]
		if c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == ',' ||
			c == '(' || c == ')' || c == '{' || c == '}' || c == '"' || c == ';' {
			break
		}
		sb.WriteByte(lx.advance())
	}
	return sb.String()
}

// looksNumeric decides whether a bare token must parse as a number.
// Anything starting with a digit, or a sign/dot followed by a digit,
// is numeric; a malformed remainder is a parse error, not a symbol.
func looksNumeric(text string) bool {
	if text == "" {
		return false
	}
	c := text[0]
	if c >= '0' && c <= '9' {
		return true
	}
	if (c == '+' || c == '-' || c == '.') && len(text) > 1 {
		n := text[1]
		return n >= '0' && n <= '9' || n == '.'
	}
	return false
}

type parser struct {
	tokens   []token
	i        int
	maxDepth int
}

func (p *parser) peek() token {
	return p.tokens[p.i]
}

func (p *parser) advance() token {
	tok := p.tokens[p.i]
	if tok.kind != tokenEOF {
		p.i++
	}
	return tok
}

func (p *parser) parseExpr(depth int) (*Node, error) {
	if depth > p.maxDepth {
		tok := p.peek()
		return nil, newParseError(tok.pos, "expression nesting exceeds max depth %d", p.maxDepth)
	}

	tok := p.advance()
	switch tok.kind {
	case tokenEOF:
		return nil, newParseError(tok.pos, "unexpected end of input")
	case tokenLParen:
		return p.parseList(tok, tokenRParen, ListPlain, depth)
	case tokenLBrace:
		return p.parseList(tok, tokenRBrace, ListMapLiteral, depth)
	case tokenRParen:
		return nil, newParseError(tok.pos, "unbalanced closing parenthesis")
	case tokenRBrace:
		return nil, newParseError(tok.pos, "unbalanced closing brace")
	case tokenString:
		return NewStringNode(tok.text, tok.pos), nil
	case tokenNumber:
		d, err := decimal.NewFromString(tok.text)
		if err != nil {
			return nil, newParseError(tok.pos, "malformed numeric literal %q", tok.text)
		}
		return NewNumberNode(d, tok.pos), nil
	case tokenSymbol:
		switch tok.text {
		case "true":
			return NewBoolNode(true, tok.pos), nil
		case "false":
			return NewBoolNode(false, tok.pos), nil
		}
		return NewSymbolNode(tok.text, tok.pos), nil
	}
	return nil, newParseError(tok.pos, "unexpected token %q", tok.text)
}

func (p *parser) parseList(open token, closer tokenKind, subtype ListSubtype, depth int) (*Node, error) {
	children := []*Node{}
	for {
		tok := p.peek()
		if tok.kind == tokenEOF {
			what := "parenthesis"
			if closer == tokenRBrace {
				what = "brace"
			}
			return nil, newParseError(open.pos, "unbalanced opening %s", what)
		}
		if tok.kind == closer {
			p.advance()
			break
		}
		child, err := p.parseExpr(depth + 1)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}

	if subtype == ListMapLiteral && len(children)%2 != 0 {
		last := children[len(children)-1]
		return nil, newParseError(last.Pos, "unpaired map key %s", last.String())
	}

	return NewListNode(children, subtype, open.pos), nil
}
