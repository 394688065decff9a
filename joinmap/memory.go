// Package joinmap provides MemoryJoinMap, the reference join.Map
// implementation: it reads an entire right-hand InputIterator into memory
// once, keyed by a caller-supplied key expression, before any left record
// is processed — spec.md §4.2's JOIN precondition.
package joinmap

import (
	"io"

	"github.com/mechatroner/rbql-go/engine"
	"github.com/mechatroner/rbql-go/record"
)

// MemoryJoinMap buckets every right-hand record by its join key.
type MemoryJoinMap struct {
	input   engine.InputIterator
	keyExpr engine.JoinKeyExpr

	rows     map[string][]record.Record
	maxLen   int
	warnings []string
	built    bool
}

// NewMemoryJoinMap builds a map that will read every record out of input,
// keying each by keyExpr evaluated with that record as the EvalContext's
// Left side (RHS-table rows have no "b" side of their own).
func NewMemoryJoinMap(input engine.InputIterator, keyExpr engine.JoinKeyExpr) *MemoryJoinMap {
	return &MemoryJoinMap{input: input, keyExpr: keyExpr, rows: map[string][]record.Record{}}
}

// Build reads input to completion exactly once. Implementations of
// join.Map.Build are permitted to run synchronously, as this one does, as
// long as they still honor the callback contract — matching an async
// table-scan (e.g. over a network-backed source) without requiring the
// engine itself to know which case it's in.
func (m *MemoryJoinMap) Build(onSuccess func(), onError func(error)) {
	if m.built {
		onSuccess()
		return
	}
	for {
		rec, err := m.input.NextRecord()
		if err == io.EOF {
			break
		}
		if err != nil {
			onError(err)
			return
		}
		if len(rec) > m.maxLen {
			m.maxLen = len(rec)
		}
		key, err := m.keyExpr(&engine.EvalContext{NF: len(rec), Left: rec})
		if err != nil {
			onError(err)
			return
		}
		if existing := m.rows[key]; len(existing) > 0 {
			m.warnings = append(m.warnings, "IMPORTANT: join key is not unique in the right-hand table")
		}
		m.rows[key] = append(m.rows[key], rec)
	}
	if err := m.input.Finish(); err != nil {
		onError(err)
		return
	}
	m.built = true
	onSuccess()
}

// GetJoinRecords implements join.Map.
func (m *MemoryJoinMap) GetJoinRecords(key string) []record.Record { return m.rows[key] }

// MaxRecordLen implements join.Map.
func (m *MemoryJoinMap) MaxRecordLen() int { return m.maxLen }

// Warnings implements join.Map.
func (m *MemoryJoinMap) Warnings() []string { return m.warnings }
