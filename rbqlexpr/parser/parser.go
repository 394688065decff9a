// Package parser implements a small precedence-climbing parser over the
// rbqlexpr token set. It only ever parses one expression fragment at a
// time (a WHERE clause, one SELECT output expression, one UPDATE
// assignment's right-hand side, ...) — never a whole query, since the
// surrounding query shape belongs to the excluded RBQL query compiler.
package parser

import (
	"fmt"
	"sync"

	"github.com/mechatroner/rbql-go/rbqlexpr/ast"
	"github.com/mechatroner/rbql-go/rbqlexpr/lexer"
	"github.com/mechatroner/rbql-go/rbqlexpr/token"
)

// Parser is a recursive-descent/precedence-climbing expression parser.
type Parser struct {
	lexer  *lexer.Lexer
	errors []ParseError
	cur    token.Item
}

// ParseError reports a syntax error with its source position.
type ParseError struct {
	Pos     token.Pos
	Message string
}

func (e ParseError) Error() string {
	return fmt.Sprintf("line %d, column %d: %s", e.Pos.Line, e.Pos.Column, e.Message)
}

// New creates a Parser over input.
func New(input string) *Parser {
	p := &Parser{lexer: lexer.New(input)}
	p.advance()
	return p
}

var parserPool = sync.Pool{New: func() any { return &Parser{} }}

// Get returns a pooled Parser for input. Call Put when done.
func Get(input string) *Parser {
	p := parserPool.Get().(*Parser)
	p.lexer = lexer.Get(input)
	p.errors = p.errors[:0]
	p.cur = token.Item{}
	p.advance()
	return p
}

// Put returns p and its lexer to their pools.
func Put(p *Parser) {
	if p.lexer != nil {
		lexer.Put(p.lexer)
		p.lexer = nil
	}
	parserPool.Put(p)
}

// ParseExpr parses a single expression and checks that it consumes all
// input (trailing garbage is a syntax error, not silently ignored).
func (p *Parser) ParseExpr() (ast.Expr, error) {
	expr := p.parseExpr(precLowest)
	if len(p.errors) > 0 {
		return nil, p.errors[0]
	}
	if !p.curIs(token.EOF) {
		p.errorf("unexpected token %v after expression", p.cur.Type)
		return nil, p.errors[0]
	}
	return expr, nil
}

func (p *Parser) advance()                 { p.cur = p.lexer.Next() }
func (p *Parser) curIs(t token.Token) bool { return p.cur.Type == t }
func (p *Parser) peek() token.Item         { return p.lexer.Peek() }

func (p *Parser) expect(t token.Token) bool {
	if p.curIs(t) {
		p.advance()
		return true
	}
	p.errorf("expected %v, got %v", t, p.cur.Type)
	return false
}

func (p *Parser) errorf(format string, args ...interface{}) {
	p.errors = append(p.errors, ParseError{Pos: p.cur.Pos, Message: fmt.Sprintf(format, args...)})
}

// Operator precedence, tightest last.
const (
	precLowest = iota
	precOr
	precAnd
	precNot
	precComparison
	precAdditive
	precMultiply
	precUnary
)

func precedence(t token.Token) int {
	switch t {
	case token.OR:
		return precOr
	case token.AND:
		return precAnd
	case token.EQ, token.NEQ, token.LT, token.GT, token.LTE, token.GTE, token.IN:
		return precComparison
	case token.PLUS, token.MINUS:
		return precAdditive
	case token.ASTERISK, token.SLASH, token.PERCENT:
		return precMultiply
	default:
		return precLowest
	}
}

func (p *Parser) parseExpr(minPrec int) ast.Expr {
	left := p.parseUnary()
	if left == nil {
		return nil
	}
	for {
		if p.curIs(token.NOT) && p.peek().Type == token.IN {
			pos := p.cur.Pos
			p.advance() // NOT
			p.advance() // IN
			list := p.parseList()
			left = &ast.InExpr{StartPos: pos, Left: left, Not: true, List: list}
			continue
		}
		if p.curIs(token.IN) {
			pos := p.cur.Pos
			p.advance()
			list := p.parseList()
			left = &ast.InExpr{StartPos: pos, Left: left, Not: false, List: list}
			continue
		}
		op := p.cur.Type
		prec := precedence(op)
		if prec == precLowest || prec <= minPrec {
			break
		}
		pos := p.cur.Pos
		p.advance()
		right := p.parseExpr(prec)
		if right == nil {
			return nil
		}
		bin := ast.GetBinaryExpr()
		bin.StartPos, bin.Op, bin.Left, bin.Right = pos, op, left, right
		left = bin
	}
	return left
}

func (p *Parser) parseUnary() ast.Expr {
	if p.curIs(token.NOT) || p.curIs(token.MINUS) {
		pos, op := p.cur.Pos, p.cur.Type
		p.advance()
		operand := p.parseExpr(precUnary)
		if operand == nil {
			return nil
		}
		return &ast.UnaryExpr{StartPos: pos, Op: op, Operand: operand}
	}
	return p.parsePrimary()
}

func (p *Parser) parsePrimary() ast.Expr {
	switch p.cur.Type {
	case token.LPAREN:
		pos := p.cur.Pos
		p.advance()
		inner := p.parseExpr(precLowest)
		if inner == nil {
			return nil
		}
		if !p.expect(token.RPAREN) {
			return nil
		}
		return &ast.ParenExpr{StartPos: pos, Inner: inner}
	case token.INT:
		lit := &ast.Literal{StartPos: p.cur.Pos, Kind: ast.LitInt, Text: p.cur.Value}
		p.advance()
		return lit
	case token.FLOAT:
		lit := &ast.Literal{StartPos: p.cur.Pos, Kind: ast.LitFloat, Text: p.cur.Value}
		p.advance()
		return lit
	case token.STRING:
		lit := &ast.Literal{StartPos: p.cur.Pos, Kind: ast.LitString, Text: p.cur.Value}
		p.advance()
		return lit
	case token.TRUE, token.FALSE:
		lit := &ast.Literal{StartPos: p.cur.Pos, Kind: ast.LitBool, Text: p.cur.Value}
		p.advance()
		return lit
	case token.NULL:
		lit := &ast.Literal{StartPos: p.cur.Pos, Kind: ast.LitNull}
		p.advance()
		return lit
	case token.ASTERISK:
		pos := p.cur.Pos
		p.advance()
		return &ast.Ident{StartPos: pos, Name: "*"}
	case token.LBRACKET:
		return p.parseBracketList()
	case token.IDENT:
		return p.parseIdentOrCall()
	}
	p.errorf("unexpected token %v in expression", p.cur.Type)
	return nil
}

func (p *Parser) parseIdentOrCall() ast.Expr {
	name := p.cur.Value
	pos := p.cur.Pos
	if col, ok := parseColRef(name, pos); ok {
		p.advance()
		return col
	}
	p.advance()
	if !p.curIs(token.LPAREN) {
		return &ast.Ident{StartPos: pos, Name: name}
	}
	p.advance() // (
	call := ast.GetCallExpr()
	call.StartPos, call.Name = pos, name
	if p.curIs(token.ASTERISK) && p.peek().Type == token.RPAREN {
		call.Star = true
		p.advance()
	} else if !p.curIs(token.RPAREN) {
		for {
			arg := p.parseExpr(precLowest)
			if arg == nil {
				return nil
			}
			call.Args = append(call.Args, arg)
			if p.curIs(token.COMMA) {
				p.advance()
				continue
			}
			break
		}
	}
	if !p.expect(token.RPAREN) {
		return nil
	}
	return call
}

// parseBracketList parses a "[expr, expr, ...]" literal list, the spelling
// UNNEST()'s argument uses.
func (p *Parser) parseBracketList() *ast.ListExpr {
	pos := p.cur.Pos
	p.advance() // [
	list := &ast.ListExpr{StartPos: pos}
	if !p.curIs(token.RBRACKET) {
		for {
			e := p.parseExpr(precLowest)
			if e == nil {
				return nil
			}
			list.Elements = append(list.Elements, e)
			if p.curIs(token.COMMA) {
				p.advance()
				continue
			}
			break
		}
	}
	if !p.expect(token.RBRACKET) {
		return nil
	}
	return list
}

func (p *Parser) parseList() *ast.ListExpr {
	pos := p.cur.Pos
	if !p.expect(token.LPAREN) {
		return nil
	}
	list := &ast.ListExpr{StartPos: pos}
	if !p.curIs(token.RPAREN) {
		for {
			e := p.parseExpr(precLowest)
			if e == nil {
				return nil
			}
			list.Elements = append(list.Elements, e)
			if p.curIs(token.COMMA) {
				p.advance()
				continue
			}
			break
		}
	}
	p.expect(token.RPAREN)
	return list
}

// parseColRef recognizes the a<N>, a<N>?, b<N>, b<N>? spelling of a
// positional field reference without committing the lexer to a
// dedicated token — it is indistinguishable from a generic identifier
// until the full text is in hand.
func parseColRef(name string, pos token.Pos) (*ast.ColRef, bool) {
	if len(name) < 2 {
		return nil, false
	}
	prefix := name[0]
	if prefix != 'a' && prefix != 'b' {
		return nil, false
	}
	body := name[1:]
	optional := false
	if len(body) > 0 && body[len(body)-1] == '?' {
		optional = true
		body = body[:len(body)-1]
	}
	if body == "" {
		return nil, false
	}
	idx := 0
	for _, ch := range body {
		if ch < '0' || ch > '9' {
			return nil, false
		}
		idx = idx*10 + int(ch-'0')
	}
	if idx == 0 {
		return nil, false
	}
	return &ast.ColRef{StartPos: pos, Prefix: prefix, Index: idx, Optional: optional}, true
}
