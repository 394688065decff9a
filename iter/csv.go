// Package iter provides reference InputIterator implementations: CSVIterator
// wraps encoding/csv, the only interface the engine actually depends on
// (spec.md §6's InputIterator contract is intentionally narrow so any
// tabular source — CSV, a database cursor, an in-memory table — can plug
// in without the engine knowing the difference).
package iter

import (
	"encoding/csv"
	"io"

	"github.com/mechatroner/rbql-go/record"
	"github.com/mechatroner/rbql-go/value"
)

// CSVIterator reads records from an underlying io.Reader through
// encoding/csv, converting each row's raw strings to value.Value lazily —
// RBQL keeps input fields as strings until an expression coerces them, so
// no numeric sniffing happens here.
type CSVIterator struct {
	reader    *csv.Reader
	closer    io.Closer
	delimiter rune
}

// NewCSVIterator wraps r, using comma as the field delimiter. Pass a
// different rune via WithDelimiter for TSV or other single-char-delimited
// input.
func NewCSVIterator(r io.Reader) *CSVIterator {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1 // RBQL tables may have ragged rows; NF varies.
	cr.LazyQuotes = true
	closer, _ := r.(io.Closer)
	return &CSVIterator{reader: cr, closer: closer, delimiter: ','}
}

// WithDelimiter overrides the field separator (e.g. '\t' for TSV).
func (it *CSVIterator) WithDelimiter(d rune) *CSVIterator {
	it.delimiter = d
	it.reader.Comma = d
	return it
}

// NextRecord implements engine.InputIterator.
func (it *CSVIterator) NextRecord() (record.Record, error) {
	fields, err := it.reader.Read()
	if err != nil {
		return nil, err // io.EOF propagates as-is
	}
	rec := make(record.Record, len(fields))
	for i, f := range fields {
		rec[i] = value.FromString(f)
	}
	return rec, nil
}

// Finish closes the underlying reader if it is an io.Closer.
func (it *CSVIterator) Finish() error {
	if it.closer != nil {
		c := it.closer
		it.closer = nil
		return c.Close()
	}
	return nil
}

// Warnings implements engine.InputIterator. encoding/csv with
// FieldsPerRecord = -1 never rejects a ragged row, so this reference
// iterator never has anything to report.
func (it *CSVIterator) Warnings() []string { return nil }
