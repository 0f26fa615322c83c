// Package main provides the sliceworker subprocess used by the
// process-parallel batch mode. It reads one encoded task from stdin,
// slices it, and writes the encoded result to stdout.
package main

import (
	"fmt"
	"os"

	"github.com/slicekit/slicekit/internal/batch"
)

func main() {
	if err := batch.ServeWorker(os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "sliceworker: %v\n", err)
		os.Exit(1)
	}
}
