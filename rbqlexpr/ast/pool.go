package ast

import "sync"

// Node pools mirror machparse/ast's pooling: rbqlrun recompiles the same
// handful of expressions (WHERE, SELECT, sort key, ...) once per query,
// not once per record, so pooling matters far less here than it does for
// a parser consuming a whole query log — but the shape is kept so that a
// future batch-compilation caller (compiling many small queries, e.g. one
// per CSV column in a wide-table pivot) gets it for free.
var (
	binaryExprPool = sync.Pool{New: func() any { return &BinaryExpr{} }}
	callExprPool   = sync.Pool{New: func() any { return &CallExpr{} }}
)

// GetBinaryExpr returns a BinaryExpr from the pool.
func GetBinaryExpr() *BinaryExpr { return binaryExprPool.Get().(*BinaryExpr) }

// ReleaseBinaryExpr returns a BinaryExpr to the pool.
func ReleaseBinaryExpr(b *BinaryExpr) {
	*b = BinaryExpr{}
	binaryExprPool.Put(b)
}

// GetCallExpr returns a CallExpr from the pool.
func GetCallExpr() *CallExpr { return callExprPool.Get().(*CallExpr) }

// ReleaseCallExpr returns a CallExpr to the pool.
func ReleaseCallExpr(c *CallExpr) {
	*c = CallExpr{}
	callExprPool.Put(c)
}

// Release recursively returns the pooled node kinds (BinaryExpr, CallExpr)
// found within expr to their pools. Called once compilation has produced
// closures that no longer reference the tree, mirroring machparse's
// ReleaseAST cascade.
func Release(expr Expr) {
	switch n := expr.(type) {
	case *BinaryExpr:
		Release(n.Left)
		Release(n.Right)
		ReleaseBinaryExpr(n)
	case *UnaryExpr:
		Release(n.Operand)
	case *ParenExpr:
		Release(n.Inner)
	case *CallExpr:
		for _, a := range n.Args {
			Release(a)
		}
		ReleaseCallExpr(n)
	case *ListExpr:
		for _, e := range n.Elements {
			Release(e)
		}
	case *InExpr:
		Release(n.Left)
		if n.List != nil {
			Release(n.List)
		}
	}
}
