package engine

import (
	"fmt"

	"github.com/mechatroner/rbql-go/agg"
	"github.com/mechatroner/rbql-go/rbqlerr"
	"github.com/mechatroner/rbql-go/value"
	"github.com/mechatroner/rbql-go/writer"
)

// aggState is the Stage 0/1/2 state machine of spec.md §4.4: a query
// starts in aggUnknown and commits to one of the other two states the
// first time its SELECT list is evaluated, based on whether any column
// produced an AggToken. The transition is one-shot: once decided, every
// later row is checked for consistency rather than re-deciding.
type aggState int

const (
	aggUnknown aggState = iota
	aggDisabled
	aggEnabled
)

// decideAggregation performs the Stage-0 -> Stage-1/Stage-2 transition on
// the first row, or validates consistency with an already-decided stage on
// every later row.
func (ec *ExecutionContext) decideAggregation(row []value.Value) error {
	hasToken := false
	for _, v := range row {
		if v.Kind() == value.AggToken {
			hasToken = true
			break
		}
	}

	switch ec.aggStage {
	case aggUnknown:
		if hasToken {
			tokens, aggCols := 0, 0
			for _, v := range row {
				if v.Kind() == value.AggToken {
					tokens++
				}
			}
			for _, c := range ec.query.OutputColumns {
				if c.IsAggregate {
					aggCols++
				}
			}
			if len(ec.query.OutputColumns) > 0 && tokens != aggCols {
				return rbqlerr.NewParsing("Usage of RBQL aggregation functions inside JavaScript expressions is not allowed, see the docs")
			}
			ec.aggStage = aggEnabled
			return ec.initAggregateWriter()
		}
		ec.aggStage = aggDisabled
		return nil
	case aggDisabled:
		if hasToken {
			return rbqlerr.NewParsing("Inconsistent aggregate query: an aggregate function appears in some output rows but not others")
		}
		return nil
	case aggEnabled:
		if !hasToken && len(ec.query.OutputColumns) > 0 && anyAggregateColumn(ec.query.OutputColumns) {
			return rbqlerr.NewParsing("Inconsistent aggregate query: an aggregate function appears in some output rows but not others")
		}
		return nil
	}
	return fmt.Errorf("engine: unreachable aggregation state %d", ec.aggStage)
}

func anyAggregateColumn(cols []OutputColumnSpec) bool {
	for _, c := range cols {
		if c.IsAggregate {
			return true
		}
	}
	return false
}

// initAggregateWriter builds the Aggregate writer the moment Stage 2 is
// entered, one Aggregator per output column: a real accumulator for
// aggregate columns, a ConstGroupVerifier for the rest.
func (ec *ExecutionContext) initAggregateWriter() error {
	columns := make([]agg.Aggregator, len(ec.query.OutputColumns))
	for i, spec := range ec.query.OutputColumns {
		if spec.IsAggregate {
			columns[i] = spec.NewAggregator()
		} else {
			columns[i] = agg.NewConstGroupVerifier(i + 1)
		}
	}
	ec.aggWriter = writer.NewAggregate(ec.chain, columns)
	return nil
}

// incrementAggregate folds one aggregated output row into the group's
// accumulators. row[i] is either an AggToken (unwrapped to its contributed
// value) or a plain scalar that must match every other row's value for
// that column within the group (enforced by ConstGroupVerifier).
func (ec *ExecutionContext) incrementAggregate(groupKey string, row []value.Value) error {
	expected := len(ec.query.OutputColumns)
	if expected != 0 && len(row) != expected {
		return rbqlerr.NewParsing(fmt.Sprintf(
			"Inconsistent aggregate query: output has %d columns, expected %d", len(row), expected))
	}

	contributions := make([]value.Value, len(row))
	for i, v := range row {
		if v.Kind() == value.AggToken {
			_, contributed := v.AggToken()
			contributions[i] = contributed
		} else {
			contributions[i] = v
		}
	}
	return ec.aggWriter.Increment(groupKey, contributions)
}
