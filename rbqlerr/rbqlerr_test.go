package rbqlerr

import "testing"

func TestClassifyParsing(t *testing.T) {
	kind, msg := Classify(NewParsing("bad query"), 0, false)
	if kind != KindParsing || msg != "bad query" {
		t.Fatalf("Classify() = %v, %q", kind, msg)
	}
}

func TestClassifyRuntime(t *testing.T) {
	kind, msg := Classify(NewRuntime("division by zero"), 5, false)
	if kind != KindExecution || msg != "division by zero" {
		t.Fatalf("Classify() = %v, %q", kind, msg)
	}
}

func TestClassifyBadField(t *testing.T) {
	kind, msg := Classify(NewBadField(2), 7, false)
	if kind != KindExecution {
		t.Fatalf("Classify() kind = %v, want KindExecution", kind)
	}
	want := "No 'a3' column at record: 7"
	if msg != want {
		t.Fatalf("Classify() msg = %q, want %q", msg, want)
	}
}

func TestClassifyModuleReused(t *testing.T) {
	kind, _ := Classify(NewModuleReused(), 0, false)
	if kind != KindUnexpected {
		t.Fatalf("Classify() kind = %v, want KindUnexpected", kind)
	}
}

func TestClassifyUnexpectedIncludesRecordNumber(t *testing.T) {
	kind, msg := Classify(errPlain("boom"), 3, false)
	if kind != KindUnexpected {
		t.Fatalf("Classify() kind = %v, want KindUnexpected", kind)
	}
	want := "At record: 3, Details: boom"
	if msg != want {
		t.Fatalf("Classify() msg = %q, want %q", msg, want)
	}
}

type errPlain string

func (e errPlain) Error() string { return string(e) }
