// Package record defines the Record type the engine passes between
// pipeline stages and the three safe-access helpers spec.md §4.7
// requires (safe_get, safe_join_get, safe_set), plus the canonical
// byte encoding used as a grouping/uniqueness key.
package record

import (
	"encoding/binary"

	"golang.org/x/text/unicode/norm"

	"github.com/mechatroner/rbql-go/rbqlerr"
	"github.com/mechatroner/rbql-go/value"
)

// Record is an ordered sequence of field values.
type Record []value.Value

// NF returns the number of fields in r.
func (r Record) NF() int { return len(r) }

// SafeGet returns (value, true) or (Null, false) for an out-of-range
// index, used by the "?" optional field-access form.
func SafeGet(r Record, idx int) (value.Value, bool) {
	if idx < 0 || idx >= len(r) {
		return value.NullValue(), false
	}
	return r[idx], true
}

// SafeJoinGet returns r[idx] or a BadFieldError, used by mandatory
// references like a5.
func SafeJoinGet(r Record, idx int) (value.Value, error) {
	if idx < 0 || idx >= len(r) {
		return value.Value{}, rbqlerr.NewBadField(idx)
	}
	return r[idx], nil
}

// SafeSet assigns r[idx1Based-1] = v or returns a BadFieldError, used by
// UPDATE assignments. idx1Based is the 1-based column index (a<N> means
// idx1Based == N).
func SafeSet(r Record, idx1Based int, v value.Value) error {
	idx := idx1Based - 1
	if idx < 0 || idx >= len(r) {
		return rbqlerr.NewBadField(idx)
	}
	r[idx] = v
	return nil
}

// NullFilled returns a Record of width n whose fields are all Null, used
// by LEFT JOIN to fill in a right-hand side with no match.
func NullFilled(n int) Record {
	r := make(Record, n)
	for i := range r {
		r[i] = value.NullValue()
	}
	return r
}

// Concat returns a ++ b without mutating either operand.
func Concat(a, b Record) Record {
	out := make(Record, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	return out
}

// Clone returns a shallow copy of r, used wherever a row processor must
// not mutate the record the input iterator still owns (process_update
// starts from a copy of the left fields before applying assignments).
func Clone(r Record) Record {
	out := make(Record, len(r))
	copy(out, r)
	return out
}

// canonical type tags for the encoding below. Kept distinct from
// value.Kind's ordering so the wire encoding doesn't silently change if
// value.Kind's iota values are reordered.
const (
	tagNull byte = iota
	tagInt
	tagFloat
	tagStr
	tagBool
)

// Canonical returns a deterministic, total-order byte encoding of r
// suitable as a grouping key (aggregation_key_expression) or a
// uniqueness key (DISTINCT). Strings are first normalized to Unicode NFC
// via golang.org/x/text/unicode/norm so that two byte-distinct encodings
// of the same visual string (e.g. combining vs. precomposed accents)
// canonicalize identically — the concrete resolution of the "canonical
// JSON" pragmatic choice spec.md §9 leaves open.
func Canonical(r Record) []byte {
	// Rough capacity estimate: a type tag + ~8 bytes per field.
	buf := make([]byte, 0, len(r)*9+4)
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(r)))
	buf = append(buf, lenBuf[:]...)
	for _, v := range r {
		buf = appendCanonicalValue(buf, v)
	}
	return buf
}

func appendCanonicalValue(buf []byte, v value.Value) []byte {
	switch v.Kind() {
	case value.Null:
		return append(buf, tagNull)
	case value.Int:
		buf = append(buf, tagInt)
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], uint64(v.Int64()))
		return append(buf, b[:]...)
	case value.Float:
		buf = append(buf, tagFloat)
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], uint64(int64(v.Float64()*1e9)))
		return append(buf, b[:]...)
	case value.Bool:
		buf = append(buf, tagBool)
		if v.Bool() {
			return append(buf, 1)
		}
		return append(buf, 0)
	default:
		s, err := v.String()
		if err != nil {
			// Aggregation/uniqueness keys are never built from sentinel
			// values in a well-formed query; treat as empty string rather
			// than propagating a spurious error from a key helper.
			s = ""
		}
		normalized := norm.NFC.String(s)
		buf = append(buf, tagStr)
		var lenBuf [4]byte
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(normalized)))
		buf = append(buf, lenBuf[:]...)
		return append(buf, normalized...)
	}
}

// CanonicalString is Canonical rendered as a string, used as a map key.
func CanonicalString(r Record) string { return string(Canonical(r)) }
