// Package iowriter provides reference OutputWriter (writer.Sink)
// implementations — the terminal stage of the writer chain spec.md §4.5
// builds around. CSVWriter is the default: it renders each output Record
// back through encoding/csv, mirroring the CSVIterator on the input side.
package iowriter

import (
	"encoding/csv"
	"io"

	"github.com/mechatroner/rbql-go/record"
)

// CSVWriter renders records as CSV via encoding/csv.Writer, flushing once
// on Finish.
type CSVWriter struct {
	w        *csv.Writer
	closer   io.Closer
	warnings []string
}

// NewCSVWriter wraps w, using comma as the field separator.
func NewCSVWriter(w io.Writer) *CSVWriter {
	closer, _ := w.(io.Closer)
	return &CSVWriter{w: csv.NewWriter(w), closer: closer}
}

// WithDelimiter overrides the field separator.
func (cw *CSVWriter) WithDelimiter(d rune) *CSVWriter {
	cw.w.Comma = d
	return cw
}

// Write implements writer.Sink.
func (cw *CSVWriter) Write(rec record.Record) (bool, error) {
	fields := make([]string, len(rec))
	for i, v := range rec {
		s, err := v.String()
		if err != nil {
			return false, err
		}
		fields[i] = s
	}
	if err := cw.w.Write(fields); err != nil {
		return false, err
	}
	return true, nil
}

// Finish flushes the buffered writer, calls after, then closes the
// underlying writer if it is an io.Closer.
func (cw *CSVWriter) Finish(after func() error) error {
	cw.w.Flush()
	if err := cw.w.Error(); err != nil {
		return err
	}
	if err := after(); err != nil {
		return err
	}
	if cw.closer != nil {
		return cw.closer.Close()
	}
	return nil
}

func (cw *CSVWriter) Warnings() []string { return cw.warnings }
