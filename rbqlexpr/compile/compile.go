// Package compile turns rbqlexpr fragments into the closures engine.
// CompiledQuery expects. It is the reference query compiler spec.md §2
// scopes out of the core engine: a real RBQL frontend would produce the
// same closures from full SELECT/JOIN/GROUP BY/ORDER BY grammar, but
// compile only ever sees one expression fragment at a time, exactly like
// rbqlexpr/parser.
package compile

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/mechatroner/rbql-go/agg"
	"github.com/mechatroner/rbql-go/engine"
	"github.com/mechatroner/rbql-go/rbqlerr"
	"github.com/mechatroner/rbql-go/record"
	"github.com/mechatroner/rbql-go/rbqlexpr/ast"
	"github.com/mechatroner/rbql-go/rbqlexpr/parser"
	"github.com/mechatroner/rbql-go/rbqlexpr/token"
	"github.com/mechatroner/rbql-go/value"
)

// Compiler accumulates state across every expression compiled for a single
// query: the aggregator-index assignment and the UNNEST call count must be
// consistent across the whole SELECT list, not reset per column.
type Compiler struct {
	aggIndex    int
	aggregators []func() agg.Aggregator
	sawUnnest   bool
}

func NewCompiler() *Compiler { return &Compiler{} }

// parseOne parses a single fragment and releases its tree back to the pool
// once compilation (which only reads the tree, never retains it) finishes.
func parseOne(src string) (ast.Expr, error) {
	p := parser.Get(src)
	defer parser.Put(p)
	tree, err := p.ParseExpr()
	if err != nil {
		return nil, rbqlerr.NewParsing(err.Error())
	}
	return tree, nil
}

// CompileExpr compiles one scalar expression fragment.
func (c *Compiler) CompileExpr(src string) (engine.RowExpr, error) {
	tree, err := parseOne(src)
	if err != nil {
		return nil, err
	}
	fn, err := c.compileNode(tree)
	ast.Release(tree)
	return fn, err
}

// CompileBool compiles a predicate fragment (WHERE, JOIN ON).
func (c *Compiler) CompileBool(src string) (engine.BoolExpr, error) {
	fn, err := c.CompileExpr(src)
	if err != nil {
		return nil, err
	}
	return func(ctx *engine.EvalContext) (bool, error) {
		v, err := fn(ctx)
		if err != nil {
			return false, err
		}
		return v.Bool(), nil
	}, nil
}

// CompileJoinKey compiles the left-hand join key expression, coercing its
// result to a string the way join.Map lookups require.
func (c *Compiler) CompileJoinKey(src string) (engine.JoinKeyExpr, error) {
	fn, err := c.CompileExpr(src)
	if err != nil {
		return nil, err
	}
	return func(ctx *engine.EvalContext) (string, error) {
		v, err := fn(ctx)
		if err != nil {
			return "", err
		}
		return v.String()
	}, nil
}

// CompileAggregationKey compiles a GROUP BY expression.
func (c *Compiler) CompileAggregationKey(src string) (engine.RowExpr, error) {
	return c.CompileExpr(src)
}

// CompileSelectList compiles every column of a SELECT list in order,
// returning the combined ListExpr the engine evaluates per row and the
// per-column OutputColumnSpec describing which positions are aggregate
// calls. Aggregator indices are assigned left to right across the whole
// list in the same pass, matching spec.md §4.4's ordering rule.
func (c *Compiler) CompileSelectList(columns []string) (engine.ListExpr, []engine.OutputColumnSpec, error) {
	fns := make([]engine.RowExpr, len(columns))
	specs := make([]engine.OutputColumnSpec, len(columns))

	for i, col := range columns {
		tree, err := parseOne(col)
		if err != nil {
			return nil, nil, err
		}
		aggBefore := c.aggIndex
		fn, err := c.compileNode(tree)
		if err != nil {
			ast.Release(tree)
			return nil, nil, err
		}
		if call, ok := tree.(*ast.CallExpr); ok && c.aggIndex == aggBefore+1 && isAggregateFuncName(call.Name) {
			specs[i] = engine.OutputColumnSpec{IsAggregate: true, NewAggregator: c.aggregators[aggBefore]}
		}
		ast.Release(tree)
		fns[i] = fn
	}

	list := func(ctx *engine.EvalContext) ([]value.Value, error) {
		out := make([]value.Value, len(fns))
		for i, fn := range fns {
			v, err := fn(ctx)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	}
	return list, specs, nil
}

// CompileUpdateAssignments compiles one RowExpr per `a<N> = expr` clause.
func (c *Compiler) CompileUpdateAssignments(colIndices []int, exprs []string) ([]engine.Assignment, error) {
	if len(colIndices) != len(exprs) {
		return nil, rbqlerr.NewParsing("UPDATE has a mismatched number of columns and expressions")
	}
	out := make([]engine.Assignment, len(exprs))
	for i, src := range exprs {
		fn, err := c.CompileExpr(src)
		if err != nil {
			return nil, err
		}
		out[i] = engine.Assignment{ColIndex1Based: colIndices[i], Expr: fn}
	}
	return out, nil
}

// CompileSortKey builds a SortKeyFunc from 1-based output-column positions.
// Every position is checked against numOutputColumns at compile time —
// spec.md §9 resolves a mismatched-length or out-of-range sort key as a
// compile-time ParsingError rather than a per-row RuntimeError.
func CompileSortKey(columns []int, numOutputColumns int) (engine.SortKeyFunc, error) {
	for _, col := range columns {
		if col < 1 || col > numOutputColumns {
			return nil, rbqlerr.NewParsing(fmt.Sprintf("ORDER BY column %d is out of range for a %d-column SELECT", col, numOutputColumns))
		}
	}
	cols := append([]int(nil), columns...)
	return func(out record.Record) ([]value.Value, error) {
		key := make([]value.Value, len(cols))
		for i, col := range cols {
			v, err := record.SafeJoinGet(out, col-1)
			if err != nil {
				return nil, err
			}
			key[i] = v
		}
		return key, nil
	}, nil
}

func (c *Compiler) compileNode(n ast.Expr) (engine.RowExpr, error) {
	switch node := n.(type) {
	case *ast.Literal:
		return compileLiteral(node)
	case *ast.Ident:
		return compileIdent(node)
	case *ast.ColRef:
		return compileColRef(node), nil
	case *ast.ParenExpr:
		return c.compileNode(node.Inner)
	case *ast.UnaryExpr:
		return c.compileUnary(node)
	case *ast.BinaryExpr:
		return c.compileBinary(node)
	case *ast.ListExpr:
		return nil, rbqlerr.NewParsing("a list literal is only valid as an argument to UNNEST or inside IN(...)")
	case *ast.InExpr:
		return c.compileIn(node)
	case *ast.CallExpr:
		return c.compileCall(node)
	}
	return nil, fmt.Errorf("compile: unhandled node type %T", n)
}

func compileLiteral(n *ast.Literal) (engine.RowExpr, error) {
	switch n.Kind {
	case ast.LitNull:
		return func(*engine.EvalContext) (value.Value, error) { return value.NullValue(), nil }, nil
	case ast.LitInt:
		i, err := strconv.ParseInt(n.Text, 10, 64)
		if err != nil {
			return nil, rbqlerr.NewParsing(fmt.Sprintf("invalid integer literal %q", n.Text))
		}
		return func(*engine.EvalContext) (value.Value, error) { return value.IntValue(i), nil }, nil
	case ast.LitFloat:
		f, err := strconv.ParseFloat(n.Text, 64)
		if err != nil {
			return nil, rbqlerr.NewParsing(fmt.Sprintf("invalid float literal %q", n.Text))
		}
		return func(*engine.EvalContext) (value.Value, error) { return value.FloatValue(f), nil }, nil
	case ast.LitString:
		s := n.Text
		return func(*engine.EvalContext) (value.Value, error) { return value.StringValue(s), nil }, nil
	case ast.LitBool:
		b := strings.EqualFold(n.Text, "true")
		return func(*engine.EvalContext) (value.Value, error) { return value.BoolValue(b), nil }, nil
	}
	return nil, fmt.Errorf("compile: unknown literal kind %d", n.Kind)
}

func compileIdent(n *ast.Ident) (engine.RowExpr, error) {
	switch n.Name {
	case "NR":
		return func(ctx *engine.EvalContext) (value.Value, error) { return value.IntValue(ctx.NR), nil }, nil
	case "NF":
		return func(ctx *engine.EvalContext) (value.Value, error) { return value.IntValue(int64(ctx.NF)), nil }, nil
	case "*":
		return nil, rbqlerr.NewParsing("'*' is only valid as COUNT(*)'s argument")
	}
	return nil, rbqlerr.NewParsing(fmt.Sprintf("Unknown variable: %s", n.Name))
}

func compileColRef(n *ast.ColRef) engine.RowExpr {
	idx := n.Index - 1
	prefix := n.Prefix
	optional := n.Optional
	return func(ctx *engine.EvalContext) (value.Value, error) {
		var rec record.Record
		if prefix == 'a' {
			rec = ctx.Left
		} else {
			rec = ctx.RHS
		}
		v, ok := record.SafeGet(rec, idx)
		if !ok {
			if optional {
				return value.NullValue(), nil
			}
			return value.Value{}, rbqlerr.NewBadField(idx)
		}
		return v, nil
	}
}

func (c *Compiler) compileUnary(n *ast.UnaryExpr) (engine.RowExpr, error) {
	operand, err := c.compileNode(n.Operand)
	if err != nil {
		return nil, err
	}
	switch n.Op {
	case token.NOT:
		return func(ctx *engine.EvalContext) (value.Value, error) {
			v, err := operand(ctx)
			if err != nil {
				return value.Value{}, err
			}
			return value.BoolValue(!v.Bool()), nil
		}, nil
	case token.MINUS:
		return func(ctx *engine.EvalContext) (value.Value, error) {
			v, err := operand(ctx)
			if err != nil {
				return value.Value{}, err
			}
			f, err := value.ParseNumber(v)
			if err != nil {
				return value.Value{}, err
			}
			return value.FloatValue(-f), nil
		}, nil
	}
	return nil, fmt.Errorf("compile: unknown unary operator %v", n.Op)
}

func (c *Compiler) compileBinary(n *ast.BinaryExpr) (engine.RowExpr, error) {
	left, err := c.compileNode(n.Left)
	if err != nil {
		return nil, err
	}
	right, err := c.compileNode(n.Right)
	if err != nil {
		return nil, err
	}

	switch n.Op {
	case token.AND:
		return func(ctx *engine.EvalContext) (value.Value, error) {
			lv, err := left(ctx)
			if err != nil {
				return value.Value{}, err
			}
			if !lv.Bool() {
				return value.BoolValue(false), nil
			}
			rv, err := right(ctx)
			if err != nil {
				return value.Value{}, err
			}
			return value.BoolValue(rv.Bool()), nil
		}, nil
	case token.OR:
		return func(ctx *engine.EvalContext) (value.Value, error) {
			lv, err := left(ctx)
			if err != nil {
				return value.Value{}, err
			}
			if lv.Bool() {
				return value.BoolValue(true), nil
			}
			rv, err := right(ctx)
			if err != nil {
				return value.Value{}, err
			}
			return value.BoolValue(rv.Bool()), nil
		}, nil
	case token.EQ, token.NEQ, token.LT, token.GT, token.LTE, token.GTE:
		op := n.Op
		return func(ctx *engine.EvalContext) (value.Value, error) {
			lv, err := left(ctx)
			if err != nil {
				return value.Value{}, err
			}
			rv, err := right(ctx)
			if err != nil {
				return value.Value{}, err
			}
			return compareOp(op, lv, rv)
		}, nil
	case token.PLUS:
		return func(ctx *engine.EvalContext) (value.Value, error) {
			lv, err := left(ctx)
			if err != nil {
				return value.Value{}, err
			}
			rv, err := right(ctx)
			if err != nil {
				return value.Value{}, err
			}
			if lv.Kind() == value.Str || rv.Kind() == value.Str {
				ls, err := lv.String()
				if err != nil {
					return value.Value{}, err
				}
				rs, err := rv.String()
				if err != nil {
					return value.Value{}, err
				}
				return value.StringValue(ls + rs), nil
			}
			a, err := value.ParseNumber(lv)
			if err != nil {
				return value.Value{}, err
			}
			b, err := value.ParseNumber(rv)
			if err != nil {
				return value.Value{}, err
			}
			return value.FloatValue(a + b), nil
		}, nil
	case token.MINUS, token.ASTERISK, token.SLASH, token.PERCENT:
		op := n.Op
		return func(ctx *engine.EvalContext) (value.Value, error) {
			lv, err := left(ctx)
			if err != nil {
				return value.Value{}, err
			}
			rv, err := right(ctx)
			if err != nil {
				return value.Value{}, err
			}
			a, err := value.ParseNumber(lv)
			if err != nil {
				return value.Value{}, err
			}
			b, err := value.ParseNumber(rv)
			if err != nil {
				return value.Value{}, err
			}
			switch op {
			case token.MINUS:
				return value.FloatValue(a - b), nil
			case token.ASTERISK:
				return value.FloatValue(a * b), nil
			case token.SLASH:
				if b == 0 {
					return value.Value{}, rbqlerr.NewRuntime("Division by zero")
				}
				return value.FloatValue(a / b), nil
			case token.PERCENT:
				if b == 0 {
					return value.Value{}, rbqlerr.NewRuntime("Division by zero")
				}
				return value.FloatValue(math.Mod(a, b)), nil
			}
			return value.Value{}, fmt.Errorf("compile: unreachable operator %v", op)
		}, nil
	}
	return nil, fmt.Errorf("compile: unknown binary operator %v", n.Op)
}

func compareOp(op token.Token, a, b value.Value) (value.Value, error) {
	var cmp int
	if isComparableNumeric(a) && isComparableNumeric(b) {
		af, err := value.ParseNumber(a)
		if err != nil {
			return value.Value{}, err
		}
		bf, err := value.ParseNumber(b)
		if err != nil {
			return value.Value{}, err
		}
		switch {
		case af < bf:
			cmp = -1
		case af > bf:
			cmp = 1
		}
	} else {
		as, err := a.String()
		if err != nil {
			return value.Value{}, err
		}
		bs, err := b.String()
		if err != nil {
			return value.Value{}, err
		}
		switch {
		case as < bs:
			cmp = -1
		case as > bs:
			cmp = 1
		}
	}
	switch op {
	case token.EQ:
		return value.BoolValue(cmp == 0), nil
	case token.NEQ:
		return value.BoolValue(cmp != 0), nil
	case token.LT:
		return value.BoolValue(cmp < 0), nil
	case token.GT:
		return value.BoolValue(cmp > 0), nil
	case token.LTE:
		return value.BoolValue(cmp <= 0), nil
	case token.GTE:
		return value.BoolValue(cmp >= 0), nil
	}
	return value.Value{}, fmt.Errorf("compile: unknown comparison operator %v", op)
}

func isComparableNumeric(v value.Value) bool {
	return v.Kind() == value.Int || v.Kind() == value.Float || v.Kind() == value.Bool
}

func (c *Compiler) compileIn(n *ast.InExpr) (engine.RowExpr, error) {
	left, err := c.compileNode(n.Left)
	if err != nil {
		return nil, err
	}
	elems := make([]engine.RowExpr, len(n.List.Elements))
	for i, e := range n.List.Elements {
		fn, err := c.compileNode(e)
		if err != nil {
			return nil, err
		}
		elems[i] = fn
	}
	not := n.Not
	return func(ctx *engine.EvalContext) (value.Value, error) {
		lv, err := left(ctx)
		if err != nil {
			return value.Value{}, err
		}
		ls, err := lv.String()
		if err != nil {
			return value.Value{}, err
		}
		found := false
		for _, fn := range elems {
			rv, err := fn(ctx)
			if err != nil {
				return value.Value{}, err
			}
			rs, err := rv.String()
			if err != nil {
				return value.Value{}, err
			}
			if ls == rs {
				found = true
				break
			}
		}
		if not {
			found = !found
		}
		return value.BoolValue(found), nil
	}, nil
}

// aggregateFactory maps an aggregate function name to its Aggregator
// constructor, or nil if name is not an aggregate function.
func aggregateFactory(name string) func() agg.Aggregator {
	switch strings.ToUpper(name) {
	case "MIN":
		return func() agg.Aggregator { return agg.NewMin() }
	case "MAX":
		return func() agg.Aggregator { return agg.NewMax() }
	case "SUM":
		return func() agg.Aggregator { return agg.NewSum() }
	case "AVG":
		return func() agg.Aggregator { return agg.NewAvg() }
	case "VARIANCE":
		return func() agg.Aggregator { return agg.NewVariance() }
	case "MEDIAN":
		return func() agg.Aggregator { return agg.NewMedian() }
	case "COUNT":
		return func() agg.Aggregator { return agg.NewCount() }
	}
	return nil
}

func isAggregateFuncName(name string) bool {
	if strings.EqualFold(name, "ARRAY_AGG") {
		return true
	}
	return aggregateFactory(name) != nil
}

func (c *Compiler) compileCall(n *ast.CallExpr) (engine.RowExpr, error) {
	name := strings.ToUpper(n.Name)

	if name == "UNNEST" {
		return c.compileUnnest(n)
	}
	if name == "ARRAY_AGG" {
		return c.compileArrayAgg(n)
	}
	if factory := aggregateFactory(name); factory != nil {
		return c.compileAggregateCall(name, factory, n)
	}
	return nil, rbqlerr.NewParsing(fmt.Sprintf("Unknown function: %s", n.Name))
}

func (c *Compiler) compileUnnest(n *ast.CallExpr) (engine.RowExpr, error) {
	if c.sawUnnest {
		return nil, rbqlerr.NewParsing("Only one UNNEST is allowed per query")
	}
	if len(n.Args) != 1 {
		return nil, rbqlerr.NewParsing("UNNEST() takes exactly one argument")
	}
	list, ok := n.Args[0].(*ast.ListExpr)
	if !ok {
		return nil, rbqlerr.NewParsing("UNNEST()'s argument must be a [a, b, c] list literal")
	}
	c.sawUnnest = true

	elems := make([]engine.RowExpr, len(list.Elements))
	for i, e := range list.Elements {
		fn, err := c.compileNode(e)
		if err != nil {
			return nil, err
		}
		elems[i] = fn
	}
	return func(ctx *engine.EvalContext) (value.Value, error) {
		if ctx.Unnest.Called {
			return value.Value{}, rbqlerr.NewParsing("Only one UNNEST is allowed per query")
		}
		ctx.Unnest.Called = true
		vals := make([]value.Value, len(elems))
		for i, fn := range elems {
			v, err := fn(ctx)
			if err != nil {
				return value.Value{}, err
			}
			vals[i] = v
		}
		return value.UnnestValue(vals), nil
	}, nil
}

func (c *Compiler) compileArrayAgg(n *ast.CallExpr) (engine.RowExpr, error) {
	if len(n.Args) == 0 || len(n.Args) > 2 {
		return nil, rbqlerr.NewParsing("ARRAY_AGG() takes one value argument and an optional separator")
	}
	arg, err := c.compileNode(n.Args[0])
	if err != nil {
		return nil, err
	}
	sep := "|"
	if len(n.Args) == 2 {
		lit, ok := n.Args[1].(*ast.Literal)
		if !ok || lit.Kind != ast.LitString {
			return nil, rbqlerr.NewParsing("ARRAY_AGG()'s separator argument must be a string literal")
		}
		sep = lit.Text
	}
	idx := c.aggIndex
	c.aggIndex++
	c.aggregators = append(c.aggregators, func() agg.Aggregator { return agg.NewArrayAgg(sep) })
	return func(ctx *engine.EvalContext) (value.Value, error) {
		v, err := arg(ctx)
		if err != nil {
			return value.Value{}, err
		}
		return value.AggTokenValue(idx, v), nil
	}, nil
}

func (c *Compiler) compileAggregateCall(name string, factory func() agg.Aggregator, n *ast.CallExpr) (engine.RowExpr, error) {
	idx := c.aggIndex
	c.aggIndex++
	c.aggregators = append(c.aggregators, factory)

	var arg engine.RowExpr
	switch {
	case n.Star:
		if name != "COUNT" {
			return nil, rbqlerr.NewParsing(fmt.Sprintf("%s(*) is not valid, only COUNT(*) is", name))
		}
		arg = func(*engine.EvalContext) (value.Value, error) { return value.NullValue(), nil }
	case len(n.Args) == 1:
		fn, err := c.compileNode(n.Args[0])
		if err != nil {
			return nil, err
		}
		arg = fn
	default:
		return nil, rbqlerr.NewParsing(fmt.Sprintf("%s() takes exactly one argument", name))
	}

	return func(ctx *engine.EvalContext) (value.Value, error) {
		v, err := arg(ctx)
		if err != nil {
			return value.Value{}, err
		}
		return value.AggTokenValue(idx, v), nil
	}, nil
}
