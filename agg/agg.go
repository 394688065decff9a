// Package agg implements the eight aggregator kinds of spec.md §3: Min,
// Max, Sum, Avg, Variance, Median, Count, ArrayAgg, plus the
// ConstGroupVerifier used for non-aggregated output columns of an
// aggregate query. Each holds one partial_state per group key and
// supports Increment/Final uniformly, the tagged-variant-with-uniform-
// contract shape spec.md §9 calls for.
package agg

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mechatroner/rbql-go/rbqlerr"
	"github.com/mechatroner/rbql-go/value"
)

// Aggregator is a stateful per-group accumulator.
type Aggregator interface {
	// Increment folds v into the partial state for groupKey.
	Increment(groupKey string, v value.Value) error
	// Final returns the finished value for groupKey. Called once all
	// input has been seen, during AggregateWriter.finish.
	Final(groupKey string) (value.Value, error)
	// Groups returns every group key this aggregator has seen. The order
	// is not defined (keys come from a map); AggregateWriter sorts the
	// keys before emitting.
	Groups() []string
}

type numericState struct {
	seen  bool
	value float64
}

// Min tracks the minimum of parse_number(v) per group.
type Min struct{ states map[string]*numericState }

func NewMin() *Min { return &Min{states: map[string]*numericState{}} }

func (a *Min) Increment(key string, v value.Value) error {
	n, err := value.ParseNumber(v)
	if err != nil {
		return err
	}
	st := a.get(key)
	if !st.seen || n < st.value {
		st.value, st.seen = n, true
	}
	return nil
}
func (a *Min) Final(key string) (value.Value, error) { return numericFinal(a.states, key) }
func (a *Min) Groups() []string                      { return groupsOf(a.states) }
func (a *Min) get(key string) *numericState {
	st, ok := a.states[key]
	if !ok {
		st = &numericState{}
		a.states[key] = st
	}
	return st
}

// Max tracks the maximum of parse_number(v) per group.
type Max struct{ states map[string]*numericState }

func NewMax() *Max { return &Max{states: map[string]*numericState{}} }

func (a *Max) Increment(key string, v value.Value) error {
	n, err := value.ParseNumber(v)
	if err != nil {
		return err
	}
	st := a.get(key)
	if !st.seen || n > st.value {
		st.value, st.seen = n, true
	}
	return nil
}
func (a *Max) Final(key string) (value.Value, error) { return numericFinal(a.states, key) }
func (a *Max) Groups() []string                      { return groupsOf(a.states) }
func (a *Max) get(key string) *numericState {
	st, ok := a.states[key]
	if !ok {
		st = &numericState{}
		a.states[key] = st
	}
	return st
}

// Sum tracks the running total of parse_number(v) per group.
type Sum struct{ states map[string]*numericState }

func NewSum() *Sum { return &Sum{states: map[string]*numericState{}} }

func (a *Sum) Increment(key string, v value.Value) error {
	n, err := value.ParseNumber(v)
	if err != nil {
		return err
	}
	st := a.get(key)
	st.value += n
	st.seen = true
	return nil
}
func (a *Sum) Final(key string) (value.Value, error) { return numericFinal(a.states, key) }
func (a *Sum) Groups() []string                      { return groupsOf(a.states) }
func (a *Sum) get(key string) *numericState {
	st, ok := a.states[key]
	if !ok {
		st = &numericState{}
		a.states[key] = st
	}
	return st
}

func numericFinal(states map[string]*numericState, key string) (value.Value, error) {
	st, ok := states[key]
	if !ok {
		return value.Value{}, fmt.Errorf("agg: unknown group %q", key)
	}
	return value.FloatValue(st.value), nil
}

func groupsOf(states map[string]*numericState) []string {
	keys := make([]string, 0, len(states))
	for k := range states {
		keys = append(keys, k)
	}
	return keys
}

type avgState struct {
	sum   float64
	count int64
}

// Avg tracks (sum, count) per group; Final divides.
type Avg struct{ states map[string]*avgState }

func NewAvg() *Avg { return &Avg{states: map[string]*avgState{}} }

func (a *Avg) Increment(key string, v value.Value) error {
	n, err := value.ParseNumber(v)
	if err != nil {
		return err
	}
	st, ok := a.states[key]
	if !ok {
		st = &avgState{}
		a.states[key] = st
	}
	st.sum += n
	st.count++
	return nil
}
func (a *Avg) Final(key string) (value.Value, error) {
	st, ok := a.states[key]
	if !ok || st.count == 0 {
		return value.Value{}, fmt.Errorf("agg: unknown group %q", key)
	}
	return value.FloatValue(st.sum / float64(st.count)), nil
}
func (a *Avg) Groups() []string {
	keys := make([]string, 0, len(a.states))
	for k := range a.states {
		keys = append(keys, k)
	}
	return keys
}

type varianceState struct {
	sum, sumSq float64
	count      int64
}

// Variance computes population variance (E[x^2] - E[x]^2), divide-by-N
// as spec.md §3/§9 specifies; sample variance is not provided.
type Variance struct{ states map[string]*varianceState }

func NewVariance() *Variance { return &Variance{states: map[string]*varianceState{}} }

func (a *Variance) Increment(key string, v value.Value) error {
	n, err := value.ParseNumber(v)
	if err != nil {
		return err
	}
	st, ok := a.states[key]
	if !ok {
		st = &varianceState{}
		a.states[key] = st
	}
	st.sum += n
	st.sumSq += n * n
	st.count++
	return nil
}
func (a *Variance) Final(key string) (value.Value, error) {
	st, ok := a.states[key]
	if !ok || st.count == 0 {
		return value.Value{}, fmt.Errorf("agg: unknown group %q", key)
	}
	mean := st.sum / float64(st.count)
	meanSq := st.sumSq / float64(st.count)
	return value.FloatValue(meanSq - mean*mean), nil
}
func (a *Variance) Groups() []string {
	keys := make([]string, 0, len(a.states))
	for k := range a.states {
		keys = append(keys, k)
	}
	return keys
}

// Median buffers every value per group and sorts on Final — the
// post-linear-time cost spec.md §9 flags as one of the two aggregators
// (with ArrayAgg) that must hold O(group size) memory, unlike the others.
type Median struct{ states map[string][]float64 }

func NewMedian() *Median { return &Median{states: map[string][]float64{}} }

func (a *Median) Increment(key string, v value.Value) error {
	n, err := value.ParseNumber(v)
	if err != nil {
		return err
	}
	a.states[key] = append(a.states[key], n)
	return nil
}
func (a *Median) Final(key string) (value.Value, error) {
	vals, ok := a.states[key]
	if !ok || len(vals) == 0 {
		return value.Value{}, fmt.Errorf("agg: unknown group %q", key)
	}
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return value.FloatValue(sorted[n/2]), nil
	}
	return value.FloatValue((sorted[n/2-1] + sorted[n/2]) / 2), nil
}
func (a *Median) Groups() []string {
	keys := make([]string, 0, len(a.states))
	for k := range a.states {
		keys = append(keys, k)
	}
	return keys
}

// Count always increments by 1 regardless of the incoming value —
// COUNT(expr) and COUNT(*) are not distinguished, preserved as-is per
// spec.md §9's open question.
type Count struct{ states map[string]int64 }

func NewCount() *Count { return &Count{states: map[string]int64{}} }

func (a *Count) Increment(key string, _ value.Value) error {
	a.states[key]++
	return nil
}
func (a *Count) Final(key string) (value.Value, error) {
	n, ok := a.states[key]
	if !ok {
		return value.Value{}, fmt.Errorf("agg: unknown group %q", key)
	}
	return value.IntValue(n), nil
}
func (a *Count) Groups() []string {
	keys := make([]string, 0, len(a.states))
	for k := range a.states {
		keys = append(keys, k)
	}
	return keys
}

// ArrayAggPostProcess turns an ArrayAgg group's buffered values into the
// final Value. The default, Join, concatenates with "|".
type ArrayAggPostProcess func([]string) (value.Value, error)

// Join is the default ArrayAgg post-processor.
func Join(sep string) ArrayAggPostProcess {
	return func(parts []string) (value.Value, error) {
		return value.StringValue(strings.Join(parts, sep)), nil
	}
}

// ArrayAgg buffers every value per group (second of the two
// memory-holding aggregators) and applies PostProcess on Final.
type ArrayAgg struct {
	states      map[string][]string
	PostProcess ArrayAggPostProcess
}

func NewArrayAgg(sep string) *ArrayAgg {
	return &ArrayAgg{states: map[string][]string{}, PostProcess: Join(sep)}
}

func (a *ArrayAgg) Increment(key string, v value.Value) error {
	s, err := v.String()
	if err != nil {
		return err
	}
	a.states[key] = append(a.states[key], s)
	return nil
}
func (a *ArrayAgg) Final(key string) (value.Value, error) {
	parts, ok := a.states[key]
	if !ok {
		return value.Value{}, fmt.Errorf("agg: unknown group %q", key)
	}
	return a.PostProcess(parts)
}
func (a *ArrayAgg) Groups() []string {
	keys := make([]string, 0, len(a.states))
	for k := range a.states {
		keys = append(keys, k)
	}
	return keys
}

// ConstGroupVerifier stands in for a non-aggregated output column in an
// otherwise-aggregated query: RBQL requires every row in a group to have
// produced the same value there (e.g. SELECT a1, SUM(a2) requires every
// row sharing a group key to agree on a1). OutputColumn is the 1-based
// position, used to name the offending column in the RuntimeError.
type ConstGroupVerifier struct {
	OutputColumn int
	states       map[string]string
}

func NewConstGroupVerifier(outputColumn int) *ConstGroupVerifier {
	return &ConstGroupVerifier{OutputColumn: outputColumn, states: map[string]string{}}
}

func (a *ConstGroupVerifier) Increment(key string, v value.Value) error {
	s, err := v.String()
	if err != nil {
		return err
	}
	if prev, ok := a.states[key]; ok {
		if prev != s {
			return rbqlerr.NewRuntime(fmt.Sprintf(
				"When GROUP BY is used, column a%d must be in GROUP BY list or it must be a part of an aggregate function",
				a.OutputColumn))
		}
		return nil
	}
	a.states[key] = s
	return nil
}
func (a *ConstGroupVerifier) Final(key string) (value.Value, error) {
	s, ok := a.states[key]
	if !ok {
		return value.Value{}, fmt.Errorf("agg: unknown group %q", key)
	}
	return value.StringValue(s), nil
}
func (a *ConstGroupVerifier) Groups() []string {
	keys := make([]string, 0, len(a.states))
	for k := range a.states {
		keys = append(keys, k)
	}
	return keys
}
