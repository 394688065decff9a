// Package value defines the dynamically-typed value RBQL expressions
// produce. Instead of carrying values as interface{} the way the
// original JavaScript-hosted engine does, this is a closed Go sum type —
// the same tagged-node modeling machparse/ast uses for AST nodes, applied
// here to runtime values: a Value is always exactly one of the Kinds
// below, and the two sentinel kinds (AggToken, Unnest) are only ever
// legal in specific positions in the pipeline.
package value

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mechatroner/rbql-go/rbqlerr"
)

// Kind tags which field of Value is meaningful.
type Kind int

const (
	Null Kind = iota
	Int
	Float
	Str
	Bool
	AggToken   // sentinel produced by an aggregate function call
	UnnestMark // sentinel produced by UNNEST(list)
	Payload    // a whole Record smuggled through a single Value slot
)

// Value is a dynamically-typed RBQL runtime value.
type Value struct {
	kind Kind

	i   int64
	f   float64
	s   string
	b   bool

	aggIndex int   // AggToken: which aggregator this contributes to
	aggValue *Value // AggToken: the value being contributed
	nested   []Value
}

// Kind reports the dynamic type of v.
func (v Value) Kind() Kind { return v.kind }

func NullValue() Value          { return Value{kind: Null} }
func IntValue(i int64) Value    { return Value{kind: Int, i: i} }
func FloatValue(f float64) Value { return Value{kind: Float, f: f} }
func StringValue(s string) Value { return Value{kind: Str, s: s} }
func BoolValue(b bool) Value    { return Value{kind: Bool, b: b} }

// AggTokenValue wraps a per-row contribution destined for aggregator
// aggIndex. It must never be stringified or used in arithmetic — doing
// so raises the ParsingError spec.md §3 requires ("can't compose
// aggregates").
func AggTokenValue(aggIndex int, contributed Value) Value {
	return Value{kind: AggToken, aggIndex: aggIndex, aggValue: &contributed}
}

// UnnestValue wraps the list an UNNEST(...) call expands into.
func UnnestValue(row []Value) Value { return Value{kind: UnnestMark, nested: row} }

// PayloadValue wraps a whole record so it can travel as the trailing
// element of a SortedWriter entry: the sort key occupies the leading
// elements of the row Write receives, and the actual output row rides
// along as a Payload in the final slot.
func PayloadValue(rec []Value) Value { return Value{kind: Payload, nested: rec} }

// Payload unwraps a PayloadValue. Panics if v is not a Payload.
func (v Value) Payload() []Value {
	if v.kind != Payload {
		panic("value: Payload called on non-payload value")
	}
	return v.nested
}

// AggToken returns the (aggregator index, contributed value) pair. Panics
// if v is not an AggToken — callers must check Kind first.
func (v Value) AggToken() (int, Value) {
	if v.kind != AggToken {
		panic("value: AggToken called on non-token value")
	}
	return v.aggIndex, *v.aggValue
}

// UnnestList returns the wrapped list. Panics if v is not an UnnestMark.
func (v Value) UnnestList() []Value {
	if v.kind != UnnestMark {
		panic("value: UnnestList called on non-unnest value")
	}
	return v.nested
}

func (v Value) IsNull() bool { return v.kind == Null }

// Int64/Float64/Bool return the wrapped scalar, coercing where sensible.
func (v Value) Int64() int64 {
	switch v.kind {
	case Int:
		return v.i
	case Float:
		return int64(v.f)
	}
	return 0
}

func (v Value) Float64() float64 {
	switch v.kind {
	case Int:
		return float64(v.i)
	case Float:
		return v.f
	}
	return 0
}

func (v Value) Bool() bool {
	switch v.kind {
	case Bool:
		return v.b
	case Int:
		return v.i != 0
	case Float:
		return v.f != 0
	case Str:
		return v.s != ""
	case Null:
		return false
	}
	return false
}

// String renders v for output/formatting purposes. It is a ParsingError
// to call this on an AggToken (the source's "stringifying an aggregate
// token throws" rule from spec.md §3) and also a ParsingError on an
// UnnestMark, since a bare UNNEST() leaking into output means it wasn't
// expanded (at most one per row, always replaced before output).
func (v Value) String() (string, error) {
	switch v.kind {
	case Null:
		return "", nil
	case Int:
		return strconv.FormatInt(v.i, 10), nil
	case Float:
		return strconv.FormatFloat(v.f, 'f', -1, 64), nil
	case Str:
		return v.s, nil
	case Bool:
		if v.b {
			return "True", nil
		}
		return "False", nil
	case AggToken:
		return "", rbqlerr.NewParsing(aggMisuseMsg)
	case UnnestMark:
		return "", rbqlerr.NewParsing("Only one UNNEST is allowed per query")
	}
	return "", fmt.Errorf("value: unknown kind %d", v.kind)
}

// aggMisuseMsg is raised whenever an AggToken escapes into a plain
// expression context (stringified or used in arithmetic) instead of
// surfacing directly as a SELECT column — e.g. MIN(a1)+1.
const aggMisuseMsg = "Usage of RBQL aggregation functions inside JavaScript expressions is not allowed, see the docs"

// MustString is String but panics on error; only used where the caller
// has already established v cannot be a sentinel (e.g. after grouping).
func (v Value) MustString() string {
	s, err := v.String()
	if err != nil {
		panic(err)
	}
	return s
}

// ParseNumber coerces v to a float64, mirroring the source's
// parse_number helper used by arithmetic and numeric aggregates: strings
// are parsed, bools count as 0/1, Null is a RuntimeError (can't add null
// to a number), tokens/unnest markers are always an error.
func ParseNumber(v Value) (float64, error) {
	switch v.kind {
	case Int:
		return float64(v.i), nil
	case Float:
		return v.f, nil
	case Bool:
		if v.b {
			return 1, nil
		}
		return 0, nil
	case Str:
		trimmed := strings.TrimSpace(v.s)
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return 0, rbqlerr.NewRuntime(fmt.Sprintf("Unable to convert value %q to a number", v.s))
		}
		return f, nil
	case Null:
		return 0, rbqlerr.NewRuntime("Unable to convert None to a number")
	case AggToken:
		return 0, rbqlerr.NewParsing(aggMisuseMsg)
	case UnnestMark:
		return 0, rbqlerr.NewParsing("Only one UNNEST is allowed per query")
	}
	return 0, fmt.Errorf("value: unknown kind %d", v.kind)
}

// FromString is the canonical way to wrap a raw input field as a Value:
// records come in as strings (CSV, TSV, ...) and are kept as strings
// until an expression coerces them, matching RBQL's dynamic-typing
// source semantics.
func FromString(s string) Value { return StringValue(s) }
