// Package join implements the four JOIN variants of spec.md §4.2: Void
// (no FROM JOIN), Inner, Left, and StrictLeft, all sharing the
// get_rhs(left_key) -> []Record contract.
package join

import (
	"fmt"

	"github.com/mechatroner/rbql-go/rbqlerr"
	"github.com/mechatroner/rbql-go/record"
)

// Map is the external, pre-built right-hand-side table (spec.md §6's
// JoinMapImpl), exposing keyed lookup and the width to pad LEFT JOIN
// null-fills to.
type Map interface {
	// GetJoinRecords returns every right-hand record whose join key
	// equals key, or nil if there is no match.
	GetJoinRecords(key string) []record.Record
	// MaxRecordLen is the field width of a null-filled LEFT JOIN row.
	MaxRecordLen() int
	// Build preloads the map, invoking exactly one of onSuccess/onError.
	// Implementations that build synchronously still call back through
	// this shape to honor the async contract of spec.md §5.
	Build(onSuccess func(), onError func(error))
	// Warnings returns any non-fatal issues noticed while building.
	Warnings() []string
}

// Joiner produces the right-hand-side rows for one left-hand join key.
type Joiner interface {
	GetRHS(leftKey string) ([]record.Record, error)
}

// Void is used when the query has no JOIN clause at all: it always
// yields exactly one synthetic nil record so the row processor iterates
// the left row once, uniformly with the joined case.
type Void struct{}

func (Void) GetRHS(string) ([]record.Record, error) {
	return []record.Record{nil}, nil
}

// Inner returns the matches verbatim, possibly empty — an empty result
// means the left row produces no output rows at all.
type Inner struct{ Map Map }

func (j Inner) GetRHS(leftKey string) ([]record.Record, error) {
	return j.Map.GetJoinRecords(leftKey), nil
}

// Left returns the matches, or a single null-filled record of width
// Map.MaxRecordLen() when there are none.
type Left struct{ Map Map }

func (j Left) GetRHS(leftKey string) ([]record.Record, error) {
	matches := j.Map.GetJoinRecords(leftKey)
	if len(matches) > 0 {
		return matches, nil
	}
	return []record.Record{record.NullFilled(j.Map.MaxRecordLen())}, nil
}

// StrictLeft requires exactly one match per left key.
type StrictLeft struct{ Map Map }

func (j StrictLeft) GetRHS(leftKey string) ([]record.Record, error) {
	matches := j.Map.GetJoinRecords(leftKey)
	if len(matches) != 1 {
		return nil, rbqlerr.NewRuntime(fmt.Sprintf(
			"In 'STRICT LEFT JOIN' each key in A must have exactly one match in B. Bad A key: '%s'", leftKey))
	}
	return matches, nil
}
