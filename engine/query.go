// Package engine implements the RBQL record-processing core of spec.md:
// the record driver, the aggregation state machine, the SELECT/UPDATE
// row processors, and the ExecutionContext that owns them for exactly
// one query (spec.md §3's lifecycle & ownership rules).
package engine

import (
	"github.com/mechatroner/rbql-go/agg"
	"github.com/mechatroner/rbql-go/record"
	"github.com/mechatroner/rbql-go/value"
)

// EvalContext is the per-row state every compiled expression closure
// sees: the current left record, the matched right-hand record (nil
// outside a JOIN; for a LEFT JOIN miss, the null-filled record the
// joiner supplies), NF/NR, and the single UNNEST slot a row may populate.
type EvalContext struct {
	NF     int
	NR     int64
	Left   record.Record
	RHS    record.Record
	Unnest *UnnestState
}

// UnnestState tracks whether UNNEST(...) has already been called once
// for the current row — spec.md §4.6 allows at most one call per row.
type UnnestState struct {
	Called bool
	List   []value.Value
}

// BoolExpr evaluates a predicate (WHERE).
type BoolExpr func(ctx *EvalContext) (bool, error)

// RowExpr evaluates a single scalar expression.
type RowExpr func(ctx *EvalContext) (value.Value, error)

// ListExpr evaluates an expression list (SELECT columns, a multi-column
// sort key).
type ListExpr func(ctx *EvalContext) ([]value.Value, error)

// JoinKeyExpr evaluates the left-hand join key (lhs_join_var).
type JoinKeyExpr func(ctx *EvalContext) (string, error)

// SortKeyFunc derives a sort key from an already-computed output record —
// ORDER BY in RBQL always reads the SELECT list's output, never the raw
// input fields, so this needs no EvalContext, and it composes identically
// whether the record came straight from SELECT or from aggregation Finish.
type SortKeyFunc func(out record.Record) ([]value.Value, error)

// OutputColumnSpec describes one position of the SELECT output list at
// compile time: whether it holds an aggregate function call and, if so,
// which Aggregator kind backs it. The engine uses this to build the
// Aggregate writer's columns the moment aggregation is detected, and to
// cross-check the AggToken count the first aggregated row actually
// produces (spec.md §4.4's Stage-1/Stage-2 consistency check).
type OutputColumnSpec struct {
	IsAggregate   bool
	NewAggregator func() agg.Aggregator
}

// Assignment is one `a<N> = expr` clause of an UPDATE statement.
type Assignment struct {
	ColIndex1Based int
	Expr           RowExpr
}

// WriterKind selects which uniqueness-flavored writer wraps the chain.
type WriterKind int

const (
	WriterSimple WriterKind = iota
	WriterUniq
	WriterUniqCount
)

// JoinKind selects the Joiner variant (spec.md §4.2).
type JoinKind int

const (
	JoinVoid JoinKind = iota
	JoinInner
	JoinLeft
	JoinStrictLeft
)

// CompiledQuery is the §6 "query compiler output" contract: everything
// the engine needs from the (external) query compiler to run one query.
type CompiledQuery struct {
	IsSelectQuery bool

	// Where is nil when the query has no WHERE clause (always true).
	Where BoolExpr
	// Select is required when IsSelectQuery is true.
	Select ListExpr
	// UpdateAssignments is used when IsSelectQuery is false.
	UpdateAssignments []Assignment

	// LHSJoinVar is nil when JoinOperation is JoinVoid.
	LHSJoinVar JoinKeyExpr
	JoinOperation JoinKind

	// AggregationKey is nil for the single default group.
	AggregationKey RowExpr
	// OutputColumns has exactly one entry per SELECT output column, in
	// order; nil/empty for UPDATE queries.
	OutputColumns []OutputColumnSpec
	// ArrayAggSeparator is not read by the engine: ARRAY_AGG's join
	// separator is fixed when rbqlexpr/compile compiles the call (its
	// optional second argument, "|" when absent).
	ArrayAggSeparator string

	// SortKey is nil when the query has no ORDER BY.
	SortKey     SortKeyFunc
	SortFlag    bool
	ReverseFlag bool

	TopCount   int64
	WriterType WriterKind
}
