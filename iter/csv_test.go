package iter

import (
	"io"
	"strings"
	"testing"
)

func TestNextRecordSplitsFields(t *testing.T) {
	it := NewCSVIterator(strings.NewReader("a,b,c\n1,2,3\n"))
	rec, err := it.NextRecord()
	if err != nil {
		t.Fatalf("NextRecord() error = %v", err)
	}
	if len(rec) != 3 {
		t.Fatalf("rec = %v, want 3 fields", rec)
	}
	got, _ := rec[0].String()
	if got != "a" {
		t.Errorf("rec[0] = %q, want %q", got, "a")
	}
}

func TestNextRecordReturnsEOFAtEnd(t *testing.T) {
	it := NewCSVIterator(strings.NewReader("1,2\n"))
	if _, err := it.NextRecord(); err != nil {
		t.Fatalf("first NextRecord() error = %v", err)
	}
	if _, err := it.NextRecord(); err != io.EOF {
		t.Fatalf("second NextRecord() error = %v, want io.EOF", err)
	}
}

func TestRaggedRowsAreAllowed(t *testing.T) {
	it := NewCSVIterator(strings.NewReader("1,2,3\n4\n"))
	first, err := it.NextRecord()
	if err != nil {
		t.Fatalf("NextRecord() error = %v", err)
	}
	second, err := it.NextRecord()
	if err != nil {
		t.Fatalf("NextRecord() error = %v", err)
	}
	if len(first) != 3 || len(second) != 1 {
		t.Fatalf("rows = %v, %v, want lengths 3, 1", first, second)
	}
}

func TestWithDelimiterOverridesSeparator(t *testing.T) {
	it := NewCSVIterator(strings.NewReader("1\t2\t3\n")).WithDelimiter('\t')
	rec, err := it.NextRecord()
	if err != nil {
		t.Fatalf("NextRecord() error = %v", err)
	}
	if len(rec) != 3 {
		t.Fatalf("rec = %v, want 3 tab-separated fields", rec)
	}
}
