package joinmap

import (
	"io"
	"testing"

	"github.com/mechatroner/rbql-go/engine"
	"github.com/mechatroner/rbql-go/record"
	"github.com/mechatroner/rbql-go/value"
)

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

func firstColumnKey(ctx *engine.EvalContext) (string, error) {
	return ctx.Left[0].String()
}

func TestBuildBucketsByKey(t *testing.T) {
	input := &sliceIterator{rows: []record.Record{
		{value.StringValue("k1"), value.IntValue(1)},
		{value.StringValue("k2"), value.IntValue(2)},
		{value.StringValue("k1"), value.IntValue(3)},
	}}
	m := NewMemoryJoinMap(input, firstColumnKey)

	var succeeded bool
	m.Build(func() { succeeded = true }, func(error) { t.Fatal("unexpected build error") })
	if !succeeded {
		t.Fatal("Build() did not call onSuccess")
	}
	if got := m.GetJoinRecords("k1"); len(got) != 2 {
		t.Fatalf("GetJoinRecords(k1) = %v, want 2 rows", got)
	}
	if got := m.GetJoinRecords("k2"); len(got) != 1 {
		t.Fatalf("GetJoinRecords(k2) = %v, want 1 row", got)
	}
	if got := m.GetJoinRecords("missing"); got != nil {
		t.Fatalf("GetJoinRecords(missing) = %v, want nil", got)
	}
}

func TestBuildTracksMaxRecordLen(t *testing.T) {
	input := &sliceIterator{rows: []record.Record{
		{value.StringValue("a")},
		{value.StringValue("b"), value.IntValue(1), value.IntValue(2)},
	}}
	m := NewMemoryJoinMap(input, firstColumnKey)
	m.Build(func() {}, func(error) { t.Fatal("unexpected build error") })
	if m.MaxRecordLen() != 3 {
		t.Fatalf("MaxRecordLen() = %d, want 3", m.MaxRecordLen())
	}
}

func TestBuildWarnsOnDuplicateKey(t *testing.T) {
	input := &sliceIterator{rows: []record.Record{
		{value.StringValue("k")},
		{value.StringValue("k")},
	}}
	m := NewMemoryJoinMap(input, firstColumnKey)
	m.Build(func() {}, func(error) { t.Fatal("unexpected build error") })
	if len(m.Warnings()) == 0 {
		t.Fatal("expected a duplicate-key warning")
	}
}

func TestBuildIsIdempotent(t *testing.T) {
	input := &sliceIterator{rows: []record.Record{{value.StringValue("k")}}}
	m := NewMemoryJoinMap(input, firstColumnKey)
	calls := 0
	m.Build(func() { calls++ }, func(error) { t.Fatal("unexpected build error") })
	m.Build(func() { calls++ }, func(error) { t.Fatal("unexpected build error") })
	if calls != 2 {
		t.Fatalf("onSuccess called %d times, want 2", calls)
	}
	if len(m.GetJoinRecords("k")) != 1 {
		t.Fatal("second Build() call re-read the input and duplicated rows")
	}
}
