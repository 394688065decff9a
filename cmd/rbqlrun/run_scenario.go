package main

import (
	"os"
	"strings"

	"github.com/mechatroner/rbql-go/engine"
	"github.com/mechatroner/rbql-go/iowriter"
	"github.com/mechatroner/rbql-go/iter"
	"github.com/mechatroner/rbql-go/join"
	"github.com/mechatroner/rbql-go/joinmap"
	"github.com/mechatroner/rbql-go/rbqlexpr/compile"
	"github.com/mechatroner/rbql-go/sqlbridge"
)

// runScenario compiles sc's expressions and drives the engine against its
// input/output files, returning the engine's run stats (NR, NU, and the
// joined/input/writer warnings) on success.
func runScenario(sc *Scenario, debug bool) (engine.RunStats, error) {
	inFile, err := os.Open(sc.Input)
	if err != nil {
		return engine.RunStats{}, err
	}
	outFile, err := os.Create(sc.Output)
	if err != nil {
		inFile.Close()
		return engine.RunStats{}, err
	}

	input := iter.NewCSVIterator(inFile)
	sink := iowriter.NewCSVWriter(outFile)
	c := compile.NewCompiler()

	query := &engine.CompiledQuery{IsSelectQuery: !sc.Update}

	whereSrc := sc.Where
	if whereSrc == "" && sc.SQL != "" {
		extracted, err := sqlbridge.ExtractWhere(sc.SQL)
		if err != nil {
			return engine.RunStats{}, err
		}
		whereSrc = extracted
	}
	if whereSrc != "" {
		where, err := c.CompileBool(whereSrc)
		if err != nil {
			return engine.RunStats{}, err
		}
		query.Where = where
	}

	if sc.Update {
		assigns, err := c.CompileUpdateAssignments(sc.UpdateCols, sc.UpdateExprs)
		if err != nil {
			return engine.RunStats{}, err
		}
		query.UpdateAssignments = assigns
	} else {
		selectFn, specs, err := c.CompileSelectList(sc.Columns)
		if err != nil {
			return engine.RunStats{}, err
		}
		query.Select = selectFn
		query.OutputColumns = specs

		if sc.GroupBy != "" {
			keyFn, err := c.CompileAggregationKey(sc.GroupBy)
			if err != nil {
				return engine.RunStats{}, err
			}
			query.AggregationKey = keyFn
		}
		if len(sc.SortColumns) > 0 {
			sortFn, err := compile.CompileSortKey(sc.SortColumns, len(sc.Columns))
			if err != nil {
				return engine.RunStats{}, err
			}
			query.SortKey = sortFn
			query.SortFlag = true
			query.ReverseFlag = sc.Reverse
		}
		switch {
		case sc.DistinctCnt:
			query.WriterType = engine.WriterUniqCount
		case sc.Distinct:
			query.WriterType = engine.WriterUniq
		default:
			query.WriterType = engine.WriterSimple
		}
		query.TopCount = sc.Limit
	}

	var joinMap join.Map
	if sc.JoinFile != "" {
		joinFile, err := os.Open(sc.JoinFile)
		if err != nil {
			return engine.RunStats{}, err
		}
		joinKeyFn, err := c.CompileJoinKey(sc.JoinOn)
		if err != nil {
			return engine.RunStats{}, err
		}
		query.LHSJoinVar = joinKeyFn
		mjm := joinmap.NewMemoryJoinMap(iter.NewCSVIterator(joinFile), joinKeyFn)
		joinMap = mjm
		switch strings.ToUpper(sc.JoinType) {
		case "LEFT":
			query.JoinOperation = engine.JoinLeft
		case "STRICT LEFT", "STRICT_LEFT":
			query.JoinOperation = engine.JoinStrictLeft
		default:
			query.JoinOperation = engine.JoinInner
		}
	}

	var stats engine.RunStats
	var runErr error
	engine.Run(query, input, sink, joinMap, debug,
		func(s engine.RunStats) { stats = s },
		func(err error) { runErr = err })

	if runErr != nil {
		return engine.RunStats{}, runErr
	}
	return stats, nil
}
