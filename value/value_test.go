package value

import "testing"

func TestStringConversions(t *testing.T) {
	cases := []struct {
		name string
		v    Value
		want string
	}{
		{"null", NullValue(), ""},
		{"int", IntValue(42), "42"},
		{"float", FloatValue(3.5), "3.5"},
		{"str", StringValue("hi"), "hi"},
		{"bool true", BoolValue(true), "True"},
		{"bool false", BoolValue(false), "False"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := c.v.String()
			if err != nil {
				t.Fatalf("String() error = %v", err)
			}
			if got != c.want {
				t.Errorf("String() = %q, want %q", got, c.want)
			}
		})
	}
}

func TestAggTokenCannotStringify(t *testing.T) {
	tok := AggTokenValue(0, IntValue(5))
	if _, err := tok.String(); err == nil {
		t.Fatal("expected error stringifying an AggToken")
	}
	if _, err := ParseNumber(tok); err == nil {
		t.Fatal("expected error using an AggToken as a number")
	}
}

func TestUnnestMarkCannotStringify(t *testing.T) {
	mark := UnnestValue([]Value{IntValue(1), IntValue(2)})
	if _, err := mark.String(); err == nil {
		t.Fatal("expected error stringifying an UnnestMark")
	}
	list := mark.UnnestList()
	if len(list) != 2 {
		t.Fatalf("UnnestList() len = %d, want 2", len(list))
	}
}

func TestPayloadRoundTrip(t *testing.T) {
	rec := []Value{IntValue(1), StringValue("a")}
	p := PayloadValue(rec)
	if p.Kind() != Payload {
		t.Fatalf("Kind() = %v, want Payload", p.Kind())
	}
	got := p.Payload()
	if len(got) != 2 || got[0].Int64() != 1 {
		t.Fatalf("Payload() = %v", got)
	}
}

func TestPayloadPanicsOnWrongKind(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic calling Payload() on a non-payload value")
		}
	}()
	IntValue(1).Payload()
}

func TestParseNumberCoercions(t *testing.T) {
	cases := []struct {
		name string
		v    Value
		want float64
	}{
		{"int", IntValue(7), 7},
		{"float", FloatValue(1.5), 1.5},
		{"bool true", BoolValue(true), 1},
		{"bool false", BoolValue(false), 0},
		{"numeric string", StringValue(" 3.25 "), 3.25},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := ParseNumber(c.v)
			if err != nil {
				t.Fatalf("ParseNumber() error = %v", err)
			}
			if got != c.want {
				t.Errorf("ParseNumber() = %v, want %v", got, c.want)
			}
		})
	}
}

func TestParseNumberRejectsNullAndGarbage(t *testing.T) {
	if _, err := ParseNumber(NullValue()); err == nil {
		t.Fatal("expected error converting Null to a number")
	}
	if _, err := ParseNumber(StringValue("not a number")); err == nil {
		t.Fatal("expected error converting a non-numeric string")
	}
}
