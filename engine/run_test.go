package engine

import (
	"io"
	"testing"

	"github.com/mechatroner/rbql-go/join"
	"github.com/mechatroner/rbql-go/record"
	"github.com/mechatroner/rbql-go/rbqlexpr/compile"
	"github.com/mechatroner/rbql-go/value"
)

// sliceIterator is a fixed in-memory InputIterator for driving Run in tests.
type sliceIterator struct {
	rows []record.Record
	pos  int
}

func (it *sliceIterator) NextRecord() (record.Record, error) {
	if it.pos >= len(it.rows) {
		return nil, io.EOF
	}
	rec := it.rows[it.pos]
	it.pos++
	return rec, nil
}
func (it *sliceIterator) Finish() error      { return nil }
func (it *sliceIterator) Warnings() []string { return nil }

// sliceSink is a minimal writer.Sink collecting every row written to it.
type sliceSink struct {
	rows []record.Record
}

func (s *sliceSink) Write(rec record.Record) (bool, error) {
	s.rows = append(s.rows, rec)
	return true, nil
}
func (s *sliceSink) Finish(after func() error) error { return after() }
func (s *sliceSink) Warnings() []string              { return nil }

func runQuery(t *testing.T, query *CompiledQuery, rows []record.Record) (*sliceSink, error) {
	t.Helper()
	_, sink, err := runQueryWithJoin(t, query, rows, nil)
	return sink, err
}

func runQueryWithJoin(t *testing.T, query *CompiledQuery, rows []record.Record, joinMap join.Map) (RunStats, *sliceSink, error) {
	t.Helper()
	input := &sliceIterator{rows: rows}
	sink := &sliceSink{}
	var stats RunStats
	var runErr error
	Run(query, input, sink, joinMap, false,
		func(s RunStats) { stats = s },
		func(err error) { runErr = err })
	return stats, sink, runErr
}

func TestSelectWithWhere(t *testing.T) {
	c := compile.NewCompiler()
	selectFn, specs, err := c.CompileSelectList([]string{"a1", "a2"})
	if err != nil {
		t.Fatalf("CompileSelectList() error = %v", err)
	}
	where, err := c.CompileBool("a1 > 1")
	if err != nil {
		t.Fatalf("CompileBool() error = %v", err)
	}
	query := &CompiledQuery{
		IsSelectQuery: true,
		Where:         where,
		Select:        selectFn,
		OutputColumns: specs,
		WriterType:    WriterSimple,
	}
	rows := []record.Record{
		{value.IntValue(1), value.StringValue("a")},
		{value.IntValue(2), value.StringValue("b")},
		{value.IntValue(3), value.StringValue("c")},
	}
	sink, err := runQuery(t, query, rows)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(sink.rows) != 2 {
		t.Fatalf("rows = %v, want 2", sink.rows)
	}
	if sink.rows[0][0].Int64() != 2 || sink.rows[1][0].Int64() != 3 {
		t.Fatalf("rows = %v, want [2,...],[3,...]", sink.rows)
	}
}

func TestUpdateAppliesAssignmentsOnMatch(t *testing.T) {
	c := compile.NewCompiler()
	where, err := c.CompileBool("a1 == 1")
	if err != nil {
		t.Fatalf("CompileBool() error = %v", err)
	}
	assigns, err := c.CompileUpdateAssignments([]int{2}, []string{"a2 + 100"})
	if err != nil {
		t.Fatalf("CompileUpdateAssignments() error = %v", err)
	}
	query := &CompiledQuery{
		IsSelectQuery:     false,
		Where:             where,
		UpdateAssignments: assigns,
		WriterType:        WriterSimple,
	}
	rows := []record.Record{
		{value.IntValue(1), value.IntValue(5)},
		{value.IntValue(2), value.IntValue(9)},
	}
	sink, err := runQuery(t, query, rows)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(sink.rows) != 2 {
		t.Fatalf("rows = %v, want 2", sink.rows)
	}
	if sink.rows[0][1].Float64() != 105 {
		t.Errorf("updated row = %v, want a2 = 105", sink.rows[0])
	}
	if sink.rows[1][1].Int64() != 9 {
		t.Errorf("non-matching row was mutated: %v", sink.rows[1])
	}
}

func TestAggregationGroupsByKeyAndSortsOutput(t *testing.T) {
	c := compile.NewCompiler()
	selectFn, specs, err := c.CompileSelectList([]string{"a1", "SUM(a2)"})
	if err != nil {
		t.Fatalf("CompileSelectList() error = %v", err)
	}
	groupKey, err := c.CompileAggregationKey("a1")
	if err != nil {
		t.Fatalf("CompileAggregationKey() error = %v", err)
	}
	query := &CompiledQuery{
		IsSelectQuery:  true,
		Select:         selectFn,
		OutputColumns:  specs,
		AggregationKey: groupKey,
		WriterType:     WriterSimple,
	}
	rows := []record.Record{
		{value.StringValue("b"), value.IntValue(1)},
		{value.StringValue("a"), value.IntValue(2)},
		{value.StringValue("b"), value.IntValue(3)},
	}
	sink, err := runQuery(t, query, rows)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(sink.rows) != 2 {
		t.Fatalf("rows = %v, want 2 groups", sink.rows)
	}
	if sink.rows[0][0].MustString() != "a" || sink.rows[0][1].Float64() != 2 {
		t.Errorf("group 'a' row = %v, want a, 2", sink.rows[0])
	}
	if sink.rows[1][0].MustString() != "b" || sink.rows[1][1].Float64() != 4 {
		t.Errorf("group 'b' row = %v, want b, 4", sink.rows[1])
	}
}

func TestAggregationRejectsInconsistentNonConstColumn(t *testing.T) {
	c := compile.NewCompiler()
	selectFn, specs, err := c.CompileSelectList([]string{"a2", "SUM(a3)"})
	if err != nil {
		t.Fatalf("CompileSelectList() error = %v", err)
	}
	groupKey, err := c.CompileAggregationKey("a1")
	if err != nil {
		t.Fatalf("CompileAggregationKey() error = %v", err)
	}
	query := &CompiledQuery{
		IsSelectQuery:  true,
		Select:         selectFn,
		OutputColumns:  specs,
		AggregationKey: groupKey,
		WriterType:     WriterSimple,
	}
	rows := []record.Record{
		{value.StringValue("g"), value.StringValue("x"), value.IntValue(1)},
		{value.StringValue("g"), value.StringValue("y"), value.IntValue(2)},
	}
	_, err = runQuery(t, query, rows)
	if err == nil {
		t.Fatal("expected an error for a non-constant non-grouped column")
	}
}

func TestUnnestExpandsOneRowPerElement(t *testing.T) {
	c := compile.NewCompiler()
	selectFn, specs, err := c.CompileSelectList([]string{"a1", "UNNEST([a2, a3])"})
	if err != nil {
		t.Fatalf("CompileSelectList() error = %v", err)
	}
	query := &CompiledQuery{
		IsSelectQuery: true,
		Select:        selectFn,
		OutputColumns: specs,
		WriterType:    WriterSimple,
	}
	rows := []record.Record{
		{value.StringValue("row"), value.IntValue(10), value.IntValue(20)},
	}
	sink, err := runQuery(t, query, rows)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(sink.rows) != 2 {
		t.Fatalf("rows = %v, want 2 (one per unnested element)", sink.rows)
	}
	if sink.rows[0][1].Int64() != 10 || sink.rows[1][1].Int64() != 20 {
		t.Fatalf("unnested values = %v, %v, want 10, 20", sink.rows[0][1], sink.rows[1][1])
	}
}

func TestLimitTruncatesOutput(t *testing.T) {
	c := compile.NewCompiler()
	selectFn, specs, err := c.CompileSelectList([]string{"a1"})
	if err != nil {
		t.Fatalf("CompileSelectList() error = %v", err)
	}
	query := &CompiledQuery{
		IsSelectQuery: true,
		Select:        selectFn,
		OutputColumns: specs,
		WriterType:    WriterSimple,
		TopCount:      2,
	}
	rows := []record.Record{
		{value.IntValue(1)}, {value.IntValue(2)}, {value.IntValue(3)},
	}
	sink, err := runQuery(t, query, rows)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(sink.rows) != 2 {
		t.Fatalf("rows = %v, want 2", sink.rows)
	}
}

func TestDistinctDropsDuplicateRows(t *testing.T) {
	c := compile.NewCompiler()
	selectFn, specs, err := c.CompileSelectList([]string{"a1"})
	if err != nil {
		t.Fatalf("CompileSelectList() error = %v", err)
	}
	query := &CompiledQuery{
		IsSelectQuery: true,
		Select:        selectFn,
		OutputColumns: specs,
		WriterType:    WriterUniq,
	}
	rows := []record.Record{
		{value.IntValue(1)}, {value.IntValue(1)}, {value.IntValue(2)},
	}
	sink, err := runQuery(t, query, rows)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(sink.rows) != 2 {
		t.Fatalf("rows = %v, want 2 distinct rows", sink.rows)
	}
}

func TestOrderByOnOutputColumns(t *testing.T) {
	c := compile.NewCompiler()
	selectFn, specs, err := c.CompileSelectList([]string{"a1"})
	if err != nil {
		t.Fatalf("CompileSelectList() error = %v", err)
	}
	sortFn, err := compile.CompileSortKey([]int{1}, 1)
	if err != nil {
		t.Fatalf("CompileSortKey() error = %v", err)
	}
	query := &CompiledQuery{
		IsSelectQuery: true,
		Select:        selectFn,
		OutputColumns: specs,
		WriterType:    WriterSimple,
		SortKey:       sortFn,
		SortFlag:      true,
	}
	rows := []record.Record{{value.IntValue(3)}, {value.IntValue(1)}, {value.IntValue(2)}}
	sink, err := runQuery(t, query, rows)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(sink.rows) != 3 || sink.rows[0][0].Int64() != 1 || sink.rows[2][0].Int64() != 3 {
		t.Fatalf("rows = %v, want ascending order", sink.rows)
	}
}

func TestModuleReusedFailsSecondRun(t *testing.T) {
	c := compile.NewCompiler()
	selectFn, specs, err := c.CompileSelectList([]string{"a1"})
	if err != nil {
		t.Fatalf("CompileSelectList() error = %v", err)
	}
	query := &CompiledQuery{IsSelectQuery: true, Select: selectFn, OutputColumns: specs}

	ec := &ExecutionContext{query: query, input: &sliceIterator{}, joiner: nil}
	ec.chain = buildChain(query, &sliceSink{})
	ec.joiner = mustVoidJoiner(t)
	if err := ec.run(); err != nil {
		t.Fatalf("first run() error = %v", err)
	}
	if err := ec.run(); err == nil {
		t.Fatal("expected a ModuleReusedError on the second run")
	}
}

func mustVoidJoiner(t *testing.T) joinerStub { t.Helper(); return joinerStub{} }

type joinerStub struct{}

func (joinerStub) GetRHS(string) ([]record.Record, error) { return []record.Record{nil}, nil }

// fakeJoinMap is a join.Map fake whose right-hand matches and warnings are
// set up directly by the test, without going through a real InputIterator.
type fakeJoinMap struct {
	matches  map[string][]record.Record
	maxLen   int
	warnings []string
}

func (m *fakeJoinMap) GetJoinRecords(key string) []record.Record   { return m.matches[key] }
func (m *fakeJoinMap) MaxRecordLen() int                           { return m.maxLen }
func (m *fakeJoinMap) Build(onSuccess func(), onError func(error)) { onSuccess() }
func (m *fakeJoinMap) Warnings() []string                          { return m.warnings }

func TestUpdateWithJoinRejectsMultipleMatches(t *testing.T) {
	c := compile.NewCompiler()
	joinKey, err := c.CompileJoinKey("a1")
	if err != nil {
		t.Fatalf("CompileJoinKey() error = %v", err)
	}
	assigns, err := c.CompileUpdateAssignments([]int{2}, []string{"b2"})
	if err != nil {
		t.Fatalf("CompileUpdateAssignments() error = %v", err)
	}
	query := &CompiledQuery{
		IsSelectQuery:     false,
		LHSJoinVar:        joinKey,
		JoinOperation:     JoinInner,
		UpdateAssignments: assigns,
		WriterType:        WriterSimple,
	}
	jm := &fakeJoinMap{matches: map[string][]record.Record{
		"1": {{value.IntValue(100)}, {value.IntValue(200)}},
	}}
	rows := []record.Record{{value.IntValue(1), value.IntValue(5)}}
	_, _, err = runQueryWithJoin(t, query, rows, jm)
	if err == nil {
		t.Fatal("expected an error when an UPDATE's join key matches more than one RHS record")
	}
}

func TestUpdateIncrementsNUOnlyOnMatchedRows(t *testing.T) {
	c := compile.NewCompiler()
	where, err := c.CompileBool("a1 == 1")
	if err != nil {
		t.Fatalf("CompileBool() error = %v", err)
	}
	assigns, err := c.CompileUpdateAssignments([]int{2}, []string{"a2 + 100"})
	if err != nil {
		t.Fatalf("CompileUpdateAssignments() error = %v", err)
	}
	query := &CompiledQuery{
		IsSelectQuery:     false,
		Where:             where,
		UpdateAssignments: assigns,
		WriterType:        WriterSimple,
	}
	rows := []record.Record{
		{value.IntValue(1), value.IntValue(5)},
		{value.IntValue(2), value.IntValue(9)},
		{value.IntValue(1), value.IntValue(3)},
	}
	stats, _, err := runQueryWithJoin(t, query, rows, nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if stats.NR != 3 {
		t.Errorf("NR = %d, want 3", stats.NR)
	}
	if stats.NU != 2 {
		t.Errorf("NU = %d, want 2 (rows where a1 == 1)", stats.NU)
	}
}

func TestWarningsUnionJoinInputAndWriter(t *testing.T) {
	c := compile.NewCompiler()
	selectFn, specs, err := c.CompileSelectList([]string{"a1"})
	if err != nil {
		t.Fatalf("CompileSelectList() error = %v", err)
	}
	joinKey, err := c.CompileJoinKey("a1")
	if err != nil {
		t.Fatalf("CompileJoinKey() error = %v", err)
	}
	query := &CompiledQuery{
		IsSelectQuery: true,
		Select:        selectFn,
		OutputColumns: specs,
		LHSJoinVar:    joinKey,
		JoinOperation: JoinInner,
		WriterType:    WriterSimple,
	}
	jm := &fakeJoinMap{
		matches:  map[string][]record.Record{"1": {{value.IntValue(1)}}},
		warnings: []string{"join warning"},
	}
	rows := []record.Record{{value.IntValue(1)}}
	stats, _, err := runQueryWithJoin(t, query, rows, jm)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(stats.Warnings) != 1 || stats.Warnings[0] != "join warning" {
		t.Fatalf("warnings = %v, want [\"join warning\"]", stats.Warnings)
	}
}
