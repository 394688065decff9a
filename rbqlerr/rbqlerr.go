// Package rbqlerr defines the engine's error taxonomy (spec.md §7):
// ParsingError, RuntimeError, BadFieldError, and the catch-all
// Unexpected classification, plus the (kind, message) mapping the record
// driver uses to report them to the external error callback.
//
// Errors are annotated with github.com/juju/errors so that, in debug
// mode, an Unexpected error can surface a full stack trace the way the
// source's debug_flag does — mirrored on the classification-by-recover
// pattern cockroach's vectorized engine uses (CatchVectorizedRuntimeError)
// to turn a panic into a typed, reportable error.
package rbqlerr

import (
	"fmt"

	"github.com/juju/errors"
)

// Kind is one of the three wire-visible error classes from §6/§7.
type Kind string

const (
	KindParsing    Kind = "query parsing"
	KindExecution  Kind = "query execution"
	KindUnexpected Kind = "unexpected"
)

// ParsingError is misuse the compiler/engine can statically name: an
// aggregate used inside an arithmetic expression, two UNNEST calls,
// DISTINCT/ORDER BY combined with aggregation.
type ParsingError struct{ msg string }

func NewParsing(msg string) error { return errors.Trace(ParsingError{msg: msg}) }
func (e ParsingError) Error() string { return e.msg }

// RuntimeError is a failure that can only be known while processing a
// specific record: a parse_number coercion failure, a JOIN/UPDATE
// cardinality violation, a non-constant aggregate output column.
type RuntimeError struct{ msg string }

func NewRuntime(msg string) error { return errors.Trace(RuntimeError{msg: msg}) }
func (e RuntimeError) Error() string { return e.msg }

// BadFieldError is a dynamic out-of-range field access. idx is 0-based;
// the driver formats it as the 1-based "a<idx+1>" column name per §4.1.
type BadFieldError struct{ Index int }

func NewBadField(idx int) error { return errors.Trace(BadFieldError{Index: idx}) }
func (e BadFieldError) Error() string {
	return fmt.Sprintf("No 'a%d' column at record", e.Index+1)
}

// ModuleReusedError is returned when an ExecutionContext is run a second
// time — spec.md §5's "module_was_used_failsafe".
type ModuleReusedError struct{}

func NewModuleReused() error { return errors.Trace(ModuleReusedError{}) }
func (ModuleReusedError) Error() string { return "Module can only be used once" }

// Classify maps any error into the (kind, message) pair the external
// error_cb receives, applying the driver's formatting rules from §4.1.
// nr is the 1-based record number being processed when err occurred (0
// if the error is not record-scoped, e.g. a setup error before the first
// record).
func Classify(err error, nr int64, debug bool) (Kind, string) {
	cause := errors.Cause(err)
	switch e := cause.(type) {
	case BadFieldError:
		return KindExecution, fmt.Sprintf("No 'a%d' column at record: %d", e.Index+1, nr)
	case ParsingError:
		return KindParsing, e.msg
	case RuntimeError:
		return KindExecution, e.msg
	case ModuleReusedError:
		return KindUnexpected, e.Error()
	default:
		msg := fmt.Sprintf("At record: %d, Details: %s", nr, err.Error())
		if debug {
			if trace := errors.ErrorStack(err); trace != "" {
				msg = msg + "\n" + trace
			}
		}
		return KindUnexpected, msg
	}
}
