package engine

import (
	"fmt"
	"io"

	"github.com/mechatroner/rbql-go/join"
	"github.com/mechatroner/rbql-go/record"
	"github.com/mechatroner/rbql-go/rbqlerr"
	"github.com/mechatroner/rbql-go/writer"
)

// InputIterator is the external source of records (spec.md §6). NextRecord
// returns io.EOF once exhausted, matching the stdlib's own iteration idiom
// rather than a source-specific "has_next" flag. Warnings surfaces any
// non-fatal issues noticed while reading (e.g. a ragged-row count change),
// unioned into the success callback alongside the join and writer warnings.
type InputIterator interface {
	NextRecord() (record.Record, error)
	Finish() error
	Warnings() []string
}

// sortKeyAdapter wraps the next writer stage to inject ORDER BY's sort key
// ahead of it, so both the plain SELECT path and the post-aggregation
// Finish path can write a bare output record without knowing whether
// sorting is active.
type sortKeyAdapter struct {
	next writer.Writer
	key  SortKeyFunc
}

func (a *sortKeyAdapter) Write(rec record.Record) (bool, error) {
	key, err := a.key(rec)
	if err != nil {
		return false, err
	}
	return a.next.Write(writer.MakeSortRow(key, rec))
}
func (a *sortKeyAdapter) Finish(after func() error) error { return a.next.Finish(after) }
func (a *sortKeyAdapter) Warnings() []string              { return a.next.Warnings() }

// buildChain assembles the writer chain in the fixed order spec.md §4.5
// requires: Sorted wraps Uniq/UniqCount wraps Top wraps the sink, so that
// LIMIT truncates the final stream after sorting and de-duplication, and a
// sortKeyAdapter sits outermost only when ORDER BY is present.
func buildChain(q *CompiledQuery, sink writer.Sink) writer.Writer {
	var w writer.Writer = writer.NewSinkWriter(sink)
	w = writer.NewTop(w, q.TopCount)
	switch q.WriterType {
	case WriterUniq:
		w = writer.NewUniq(w)
	case WriterUniqCount:
		w = writer.NewUniqCount(w)
	}
	if q.SortFlag {
		w = writer.NewSorted(w, q.ReverseFlag)
	}
	if q.SortKey != nil {
		w = &sortKeyAdapter{next: w, key: q.SortKey}
	}
	return w
}

// ExecutionContext owns everything needed to run exactly one query, per
// spec.md §3's single-use lifecycle.
type ExecutionContext struct {
	query   *CompiledQuery
	input   InputIterator
	joiner  join.Joiner
	joinMap join.Map
	chain   writer.Writer

	aggStage  aggState
	aggWriter *writer.Aggregate

	nr   int64
	nu   int64
	used bool
}

// RunStats summarizes one completed execution: the NR/NU counters spec.md
// §3 and §4.3 track, plus the join ∪ writer ∪ input warnings spec.md §6's
// success callback must receive.
type RunStats struct {
	Warnings []string
	NR       int64
	NU       int64
}

// Run executes query end to end: builds the joiner (triggering joinMap.Build
// when the query joins), drives every input record through the row
// processor, and reports the outcome via exactly one of onSuccess/onError —
// mirroring the async success_cb/error_cb contract of spec.md §6 even
// though this implementation runs synchronously throughout.
func Run(query *CompiledQuery, input InputIterator, sink writer.Sink, joinMap join.Map, debug bool, onSuccess func(RunStats), onError func(error)) {
	ec := &ExecutionContext{
		query:   query,
		input:   input,
		joinMap: joinMap,
		chain:   buildChain(query, sink),
	}

	joiner, err := resolveJoiner(query, joinMap)
	if err != nil {
		onError(classifyAndFormat(err, 0, debug))
		return
	}
	if joinMap == nil || query.JoinOperation == JoinVoid {
		ec.joiner = joiner
		ec.finishSetupAndRun(debug, onSuccess, onError)
		return
	}
	joinMap.Build(func() {
		ec.joiner = joiner
		ec.finishSetupAndRun(debug, onSuccess, onError)
	}, func(buildErr error) {
		onError(classifyAndFormat(buildErr, 0, debug))
	})
}

func resolveJoiner(query *CompiledQuery, joinMap join.Map) (join.Joiner, error) {
	switch query.JoinOperation {
	case JoinVoid:
		return join.Void{}, nil
	case JoinInner:
		return join.Inner{Map: joinMap}, nil
	case JoinLeft:
		return join.Left{Map: joinMap}, nil
	case JoinStrictLeft:
		return join.StrictLeft{Map: joinMap}, nil
	default:
		return nil, fmt.Errorf("engine: unknown join operation %d", query.JoinOperation)
	}
}

func (ec *ExecutionContext) finishSetupAndRun(debug bool, onSuccess func(RunStats), onError func(error)) {
	if err := ec.run(); err != nil {
		onError(classifyAndFormat(err, ec.nr, debug))
		return
	}
	onSuccess(RunStats{Warnings: ec.warnings(), NR: ec.nr, NU: ec.nu})
}

func classifyAndFormat(err error, nr int64, debug bool) error {
	kind, msg := rbqlerr.Classify(err, nr, debug)
	return fmt.Errorf("[%s] %s", kind, msg)
}

// warnings unions the join-map, input, and writer-chain warnings, per
// spec.md §6's "success_cb(warnings) where warnings = join ∪ writer ∪
// input warnings".
func (ec *ExecutionContext) warnings() []string {
	var all []string
	if ec.joinMap != nil {
		all = append(all, ec.joinMap.Warnings()...)
	}
	all = append(all, ec.input.Warnings()...)
	if ec.aggWriter != nil {
		all = append(all, ec.aggWriter.Warnings()...)
	} else {
		all = append(all, ec.chain.Warnings()...)
	}
	return all
}

// run drives the one-shot record loop: each iteration reads one left
// record, resolves its right-hand matches through the joiner, and feeds
// every (left, rhs) pair to processSelect, or the whole match list to
// processUpdate.
func (ec *ExecutionContext) run() error {
	if ec.used {
		return rbqlerr.NewModuleReused()
	}
	ec.used = true

	for {
		rec, err := ec.input.NextRecord()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		ec.nr++

		rhsRows, err := ec.joiner.GetRHS(ec.leftJoinKey(rec))
		if err != nil {
			return err
		}
		if ec.query.IsSelectQuery {
			for _, rhs := range rhsRows {
				ctx := &EvalContext{NF: len(rec), NR: ec.nr, Left: rec, RHS: rhs, Unnest: &UnnestState{}}
				if err := ec.processSelect(ctx); err != nil {
					return err
				}
			}
		} else if err := ec.processUpdate(rec, rhsRows); err != nil {
			return err
		}
	}

	if err := ec.input.Finish(); err != nil {
		return err
	}
	return ec.finish()
}

// leftJoinKey evaluates lhs_join_var for a left record, or "" when the
// query has no JOIN clause at all.
func (ec *ExecutionContext) leftJoinKey(rec record.Record) string {
	if ec.query.LHSJoinVar == nil {
		return ""
	}
	ctx := &EvalContext{NF: len(rec), NR: ec.nr, Left: rec}
	key, err := ec.query.LHSJoinVar(ctx)
	if err != nil {
		return ""
	}
	return key
}

func (ec *ExecutionContext) finish() error {
	if ec.aggWriter != nil {
		return ec.aggWriter.Finish(func() error { return nil })
	}
	return ec.chain.Finish(func() error { return nil })
}
