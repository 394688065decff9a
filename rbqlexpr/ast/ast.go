// Package ast defines the expression tree rbqlexpr compiles RBQL
// fragments into. Unlike machparse's ast package there is no Statement
// hierarchy here: an RBQL query's shape (SELECT/FROM/JOIN/GROUP BY/ORDER
// BY/LIMIT) is owned by the excluded query compiler and arrives at the
// engine already decomposed into the §6 contract; this package only
// needs to model the *expressions* hanging off that shape.
package ast

import "github.com/mechatroner/rbql-go/rbqlexpr/token"

// Node is the base interface for every expression node.
type Node interface {
	Pos() token.Pos
}

// Expr is a value-producing expression.
type Expr interface {
	Node
	exprNode()
}

// ColRef is a positional field reference: a1, a2, b3, ... The prefix
// ('a' for the left/current record, 'b' for a joined record) and the
// 1-based index are split out so the evaluator can route to the correct
// side without re-parsing the identifier text.
type ColRef struct {
	StartPos token.Pos
	Prefix   byte // 'a' or 'b'
	Index    int  // 1-based
	Optional bool // true for the "a1?" safe-access spelling
}

func (*ColRef) exprNode()       {}
func (c *ColRef) Pos() token.Pos { return c.StartPos }

// Ident is a bare identifier that is not a column reference: a function
// name, NR, NF, or a join-table alias.
type Ident struct {
	StartPos token.Pos
	Name     string
}

func (*Ident) exprNode()        {}
func (i *Ident) Pos() token.Pos { return i.StartPos }

// LiteralKind tags the Go type a Literal carries.
type LiteralKind int

const (
	LitNull LiteralKind = iota
	LitInt
	LitFloat
	LitString
	LitBool
)

// Literal is a constant value.
type Literal struct {
	StartPos token.Pos
	Kind     LiteralKind
	Text     string // raw lexeme, parsed lazily by the evaluator
}

func (*Literal) exprNode()        {}
func (l *Literal) Pos() token.Pos { return l.StartPos }

// BinaryExpr is a two-operand operator application.
type BinaryExpr struct {
	StartPos token.Pos
	Op       token.Token
	Left     Expr
	Right    Expr
}

func (*BinaryExpr) exprNode()        {}
func (b *BinaryExpr) Pos() token.Pos { return b.StartPos }

// UnaryExpr is a one-operand prefix operator application (NOT, unary -).
type UnaryExpr struct {
	StartPos token.Pos
	Op       token.Token
	Operand  Expr
}

func (*UnaryExpr) exprNode()        {}
func (u *UnaryExpr) Pos() token.Pos { return u.StartPos }

// ParenExpr is a parenthesized sub-expression, kept in the tree so
// re-formatting an expression for an error message round-trips.
type ParenExpr struct {
	StartPos token.Pos
	Inner    Expr
}

func (*ParenExpr) exprNode()        {}
func (p *ParenExpr) Pos() token.Pos { return p.StartPos }

// CallExpr is a function call: an aggregate (MIN/MAX/SUM/AVG/VARIANCE/
// MEDIAN/COUNT/ARRAY_AGG), UNNEST, or any other identifier the evaluator
// resolves at runtime.
type CallExpr struct {
	StartPos token.Pos
	Name     string
	Star     bool // COUNT(*)
	Args     []Expr
}

func (*CallExpr) exprNode()        {}
func (c *CallExpr) Pos() token.Pos { return c.StartPos }

// ListExpr is a comma-separated list: parenthesized for IN (...)
// right-hand sides, bracketed for UNNEST's argument.
type ListExpr struct {
	StartPos token.Pos
	Elements []Expr
}

func (*ListExpr) exprNode()        {}
func (l *ListExpr) Pos() token.Pos { return l.StartPos }

// InExpr is `expr IN (list)` / `expr NOT IN (list)`.
type InExpr struct {
	StartPos token.Pos
	Left     Expr
	Not      bool
	List     *ListExpr
}

func (*InExpr) exprNode()        {}
func (i *InExpr) Pos() token.Pos { return i.StartPos }
