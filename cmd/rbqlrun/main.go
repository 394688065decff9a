// Command rbqlrun is a reference driver for the rbql-go engine: it loads a
// declarative query Scenario, compiles its expressions with
// rbqlexpr/compile, and runs it end to end against CSV input/output.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
