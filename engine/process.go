package engine

import (
	"github.com/mechatroner/rbql-go/rbqlerr"
	"github.com/mechatroner/rbql-go/record"
	"github.com/mechatroner/rbql-go/value"
)

// processSelect evaluates WHERE and, if it passes, the SELECT list; expands
// at most one UNNEST column into multiple output rows, then routes each
// through the Stage 0/1/2 aggregation decision and on to the writer chain.
func (ec *ExecutionContext) processSelect(ctx *EvalContext) error {
	if ec.query.Where != nil {
		ok, err := ec.query.Where(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
	}

	out, err := ec.query.Select(ctx)
	if err != nil {
		return err
	}

	var groupKey string
	if ec.query.AggregationKey != nil {
		kv, err := ec.query.AggregationKey(ctx)
		if err != nil {
			return err
		}
		groupKey, err = kv.String()
		if err != nil {
			return err
		}
	}

	rows, err := expandUnnest(out)
	if err != nil {
		return err
	}
	for _, row := range rows {
		if err := ec.emitSelectRow(groupKey, row); err != nil {
			return err
		}
	}
	return nil
}

// emitSelectRow applies the aggregation state machine to one (possibly
// UNNEST-expanded) output row, then either writes it straight through the
// chain (no aggregation) or folds it into the group accumulators (Stage 2).
func (ec *ExecutionContext) emitSelectRow(groupKey string, row []value.Value) error {
	if err := ec.decideAggregation(row); err != nil {
		return err
	}
	if ec.aggStage == aggEnabled {
		return ec.incrementAggregate(groupKey, row)
	}

	rec := make(record.Record, len(row))
	copy(rec, row)
	_, err := ec.chain.Write(rec)
	return err
}

// expandUnnest scans an output row for an UnnestMark column. With none, the
// row passes through unchanged; with exactly one, it explodes into one row
// per element of the unnested list, substituting that column; with more
// than one, UNNEST was called twice in the same SELECT list, which spec.md
// §4.6 forbids.
func expandUnnest(row []value.Value) ([][]value.Value, error) {
	unnestPos := -1
	for i, v := range row {
		if v.Kind() == value.UnnestMark {
			if unnestPos != -1 {
				return nil, rbqlerr.NewParsing("Only one UNNEST is allowed per query")
			}
			unnestPos = i
		}
	}
	if unnestPos == -1 {
		return [][]value.Value{row}, nil
	}

	list := row[unnestPos].UnnestList()
	rows := make([][]value.Value, len(list))
	for i, elem := range list {
		expanded := make([]value.Value, len(row))
		copy(expanded, row)
		expanded[unnestPos] = elem
		rows[i] = expanded
	}
	return rows, nil
}

// processUpdate sees the whole rhs_records match list for one left row, per
// spec.md §4.3: with a JOIN in play, UPDATE requires at most one right-hand
// match — unlike SELECT, which fans a row out once per match, UPDATE has
// only one output slot per left row, so a second match can't be resolved.
// On exactly one match it evaluates WHERE and, if it passes, applies every
// assignment in order; the row (updated or not) is then written through
// ec.chain, the same writer chain SELECT uses. No aggregation applies,
// since no SELECT list is evaluated.
func (ec *ExecutionContext) processUpdate(left record.Record, rhsRows []record.Record) error {
	if len(rhsRows) > 1 {
		return rbqlerr.NewRuntime("More than one record in UPDATE query matched A-key in join table B")
	}
	var rhs record.Record
	if len(rhsRows) == 1 {
		rhs = rhsRows[0]
	}
	ctx := &EvalContext{NF: len(left), NR: ec.nr, Left: left, RHS: rhs, Unnest: &UnnestState{}}

	matched := len(rhsRows) == 1
	if matched && ec.query.Where != nil {
		var err error
		matched, err = ec.query.Where(ctx)
		if err != nil {
			return err
		}
	}

	rec := left
	if matched {
		ec.nu++
		rec = record.Clone(left)
		for _, assign := range ec.query.UpdateAssignments {
			v, err := assign.Expr(ctx)
			if err != nil {
				return err
			}
			if err := record.SafeSet(rec, assign.ColIndex1Based, v); err != nil {
				return err
			}
		}
	}
	_, err := ec.chain.Write(rec)
	return err
}
