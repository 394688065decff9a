// Package writer implements the composable output-transform chain of
// spec.md §4.5: Top (LIMIT), Uniq (DISTINCT), UniqCount (DISTINCT
// COUNT), Sorted (ORDER BY), and Aggregate. Each is a capability pair
// {Write, Finish} wrapping the next stage — an owning linked chain
// rather than inheritance, per spec.md §9's guidance.
package writer

import (
	"sort"

	"github.com/mechatroner/rbql-go/agg"
	"github.com/mechatroner/rbql-go/record"
	"github.com/mechatroner/rbql-go/value"
)

// Writer is one stage of the output chain.
type Writer interface {
	// Write forwards rec downstream. Returning false means the chain is
	// saturated (e.g. LIMIT reached); Top then drops every later record.
	// The engine's record loop does not stop on false: it still reads the
	// input to the end.
	Write(rec record.Record) (bool, error)
	// Finish flushes any buffered state, then invokes after exactly
	// once, even if Finish is itself a no-op.
	Finish(after func() error) error
	// Warnings returns any writer-local warnings to fold into the final
	// success callback.
	Warnings() []string
}

// Sink is the terminal stage: the external OutputWriter of spec.md §6.
type Sink interface {
	Write(rec record.Record) (bool, error)
	Finish(after func() error) error
	Warnings() []string
}

// sinkAdapter lets any Sink satisfy Writer, closing the chain.
type sinkAdapter struct{ Sink }

// NewSinkWriter wraps the external output sink as the innermost Writer.
func NewSinkWriter(s Sink) Writer { return sinkAdapter{s} }

// Top enforces LIMIT. It must be the innermost wrapper around the
// output sink so that LIMIT counts rows actually produced — for
// aggregate queries that means post-aggregation rows, since Aggregate
// only emits during Finish.
type Top struct {
	Next  Writer
	Limit int64 // <=0 means unlimited
	count int64
}

func NewTop(next Writer, limit int64) *Top { return &Top{Next: next, Limit: limit} }

func (w *Top) Write(rec record.Record) (bool, error) {
	if w.Limit > 0 && w.count >= w.Limit {
		return false, nil
	}
	w.count++
	ok, err := w.Next.Write(rec)
	if err != nil {
		return false, err
	}
	if w.Limit > 0 && w.count >= w.Limit {
		return false, nil
	}
	return ok, nil
}

func (w *Top) Finish(after func() error) error { return w.Next.Finish(after) }
func (w *Top) Warnings() []string              { return w.Next.Warnings() }

// Uniq implements DISTINCT: duplicates (by canonical encoding) are
// silently dropped; the pipeline keeps running either way.
type Uniq struct {
	Next Writer
	seen map[string]struct{}
}

func NewUniq(next Writer) *Uniq { return &Uniq{Next: next, seen: map[string]struct{}{}} }

func (w *Uniq) Write(rec record.Record) (bool, error) {
	key := record.CanonicalString(rec)
	if _, dup := w.seen[key]; dup {
		return true, nil
	}
	w.seen[key] = struct{}{}
	return w.Next.Write(rec)
}

func (w *Uniq) Finish(after func() error) error { return w.Next.Finish(after) }
func (w *Uniq) Warnings() []string              { return w.Next.Warnings() }

// uniqCountEntry uses an explicit "present" flag rather than relying on
// a truthy zero-value check — spec.md §9 flags the source's reliance on
// truthiness as correct-by-luck (count is always >= 1) but fragile.
type uniqCountEntry struct {
	present bool
	count   int64
	rec     record.Record
}

// UniqCount implements DISTINCT COUNT: tallies occurrences and, on
// Finish, emits each distinct record prefixed by its count, in the order
// each was first seen.
type UniqCount struct {
	Next  Writer
	order []string
	rows  map[string]*uniqCountEntry
}

func NewUniqCount(next Writer) *UniqCount {
	return &UniqCount{Next: next, rows: map[string]*uniqCountEntry{}}
}

func (w *UniqCount) Write(rec record.Record) (bool, error) {
	key := record.CanonicalString(rec)
	entry, ok := w.rows[key]
	if !ok {
		entry = &uniqCountEntry{present: true, rec: rec}
		w.rows[key] = entry
		w.order = append(w.order, key)
	}
	entry.count++
	return true, nil
}

func (w *UniqCount) Finish(after func() error) error {
	for _, key := range w.order {
		entry := w.rows[key]
		out := make(record.Record, 0, len(entry.rec)+1)
		out = append(out, value.IntValue(entry.count))
		out = append(out, entry.rec...)
		if ok, err := w.Next.Write(out); err != nil {
			return err
		} else if !ok {
			break
		}
	}
	return w.Next.Finish(after)
}

func (w *UniqCount) Warnings() []string { return w.Next.Warnings() }

// sortEntry pairs a buffered row's sort key with its payload. No NR
// tiebreak is appended; equal keys keep arrival order via sort.SliceStable.
type sortEntry struct {
	key     []value.Value
	payload record.Record
}

// Sorted implements ORDER BY: buffers every row, then sorts by the
// leading sort-key components using a stable, lexicographic, elementwise
// comparison on Finish.
type Sorted struct {
	Next    Writer
	Reverse bool
	entries []sortEntry
}

func NewSorted(next Writer, reverse bool) *Sorted { return &Sorted{Next: next, Reverse: reverse} }

// MakeSortRow packages a sort key and its output row into the single
// Record SortedWriter.Write expects: the key's components, followed by
// the payload wrapped in a single trailing Payload value ([...sortKey,
// payload]), whose last element is read back on finish.
func MakeSortRow(sortKey []value.Value, payload record.Record) record.Record {
	row := make(record.Record, 0, len(sortKey)+1)
	row = append(row, sortKey...)
	row = append(row, value.PayloadValue(payload))
	return row
}

// Write accepts a row built by MakeSortRow: every element but the last is
// the sort key, the last is the Payload-wrapped output row.
func (w *Sorted) Write(rec record.Record) (bool, error) {
	if len(rec) == 0 {
		return true, nil
	}
	key := rec[:len(rec)-1]
	payload := record.Record(rec[len(rec)-1].Payload())
	w.entries = append(w.entries, sortEntry{key: key, payload: payload})
	return true, nil
}

func (w *Sorted) Finish(after func() error) error {
	sort.SliceStable(w.entries, func(i, j int) bool {
		less, _ := lessKey(w.entries[i].key, w.entries[j].key)
		return less
	})
	if w.Reverse {
		for i, j := 0, len(w.entries)-1; i < j; i, j = i+1, j-1 {
			w.entries[i], w.entries[j] = w.entries[j], w.entries[i]
		}
	}
	for _, e := range w.entries {
		if ok, err := w.Next.Write(e.payload); err != nil {
			return err
		} else if !ok {
			break
		}
	}
	return w.Next.Finish(after)
}

func (w *Sorted) Warnings() []string { return w.Next.Warnings() }

// lessKey compares two sort keys elementwise; a[i] != b[i] decides via
// <. rbqlexpr/compile guarantees equal-length, equal-shape keys for a
// single query, so a length mismatch here can only mean mixed-shape
// keys slipped past compilation — treated as "equal" on the shared
// prefix (sort.SliceStable in Finish keeps such rows in arrival order),
// per spec.md §9's resolution.
func lessKey(a, b []value.Value) (bool, bool) {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		c := compareValues(a[i], b[i])
		if c < 0 {
			return true, true
		}
		if c > 0 {
			return false, true
		}
	}
	return false, false
}

// compareValues defines a total order across the value kinds that can
// legally appear in a sort key: numbers compare numerically, everything
// else compares as its string form. Null sorts before everything.
func compareValues(a, b value.Value) int {
	if a.IsNull() && b.IsNull() {
		return 0
	}
	if a.IsNull() {
		return -1
	}
	if b.IsNull() {
		return 1
	}
	if isNumeric(a) && isNumeric(b) {
		af, bf := a.Float64(), b.Float64()
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}
	as, bs := a.MustString(), b.MustString()
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	default:
		return 0
	}
}

func isNumeric(v value.Value) bool {
	return v.Kind() == value.Int || v.Kind() == value.Float
}

// Aggregate implements the aggregation state machine's Stage-2 emission
// (spec.md §4.4): one Aggregator or ConstGroupVerifier per output
// position, keyed by group. Finish sorts group keys lexicographically
// and emits [col[0].Final(k), col[1].Final(k), ...] per key.
type Aggregate struct {
	Next    Writer
	Columns []agg.Aggregator
}

func NewAggregate(next Writer, columns []agg.Aggregator) *Aggregate {
	return &Aggregate{Next: next, Columns: columns}
}

// Increment folds one aggregated row's per-column contributions into
// their aggregators. Called once per input row once aggregation has been
// detected (engine's Stage 2).
func (w *Aggregate) Increment(groupKey string, values []value.Value) error {
	for i, col := range w.Columns {
		if err := col.Increment(groupKey, values[i]); err != nil {
			return err
		}
	}
	return nil
}

// Write is never called directly on Aggregate by the row processor —
// aggregated rows go through Increment instead — but Aggregate still
// satisfies Writer so it can sit in the chain built by select_aggregated.
func (w *Aggregate) Write(rec record.Record) (bool, error) { return w.Next.Write(rec) }

func (w *Aggregate) Finish(after func() error) error {
	keys := map[string]struct{}{}
	for _, col := range w.Columns {
		for _, k := range col.Groups() {
			keys[k] = struct{}{}
		}
	}
	sorted := make([]string, 0, len(keys))
	for k := range keys {
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)

	for _, key := range sorted {
		out := make(record.Record, len(w.Columns))
		for i, col := range w.Columns {
			v, err := col.Final(key)
			if err != nil {
				return err
			}
			out[i] = v
		}
		if ok, err := w.Next.Write(out); err != nil {
			return err
		} else if !ok {
			break
		}
	}
	return w.Next.Finish(after)
}

func (w *Aggregate) Warnings() []string { return w.Next.Warnings() }
