package iowriter

import (
	"bytes"
	"strings"
	"testing"

	"github.com/mechatroner/rbql-go/record"
	"github.com/mechatroner/rbql-go/value"
)

func TestWriteAndFinishProducesCSV(t *testing.T) {
	var buf bytes.Buffer
	w := NewCSVWriter(&buf)
	if _, err := w.Write(record.Record{value.IntValue(1), value.StringValue("x")}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := w.Finish(func() error { return nil }); err != nil {
		t.Fatalf("Finish() error = %v", err)
	}
	if got := buf.String(); !strings.Contains(got, "1,x") {
		t.Fatalf("output = %q, want it to contain %q", got, "1,x")
	}
}

func TestFinishInvokesAfterBeforeReturning(t *testing.T) {
	var buf bytes.Buffer
	w := NewCSVWriter(&buf)
	called := false
	if err := w.Finish(func() error { called = true; return nil }); err != nil {
		t.Fatalf("Finish() error = %v", err)
	}
	if !called {
		t.Fatal("after() was not called")
	}
}

func TestWithDelimiterChangesSeparator(t *testing.T) {
	var buf bytes.Buffer
	w := NewCSVWriter(&buf).WithDelimiter('\t')
	w.Write(record.Record{value.IntValue(1), value.IntValue(2)})
	w.Finish(func() error { return nil })
	if got := buf.String(); !strings.Contains(got, "1\t2") {
		t.Fatalf("output = %q, want tab-separated", got)
	}
}
