package main

import (
	"github.com/kr/pretty"
	"github.com/rs/zerolog"
)

// logDebugError logs a failed run's error, dumping its full Go-syntax
// representation via kr/pretty when debug is on — useful for telling an
// Unexpected-classified error (a bug) apart from an expected
// Parsing/Runtime one, since pretty.Sprint shows the concrete wrapped type
// github.com/juju/errors otherwise hides behind Error().
func logDebugError(logger zerolog.Logger, execID string, err error, debug bool) {
	event := logger.Error().Str("execution_id", execID)
	if debug {
		event = event.Str("detail", pretty.Sprint(err))
	}
	event.Msg(err.Error())
}
