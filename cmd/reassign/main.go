// Command reassign is the CLI driver of the machine-reassignment search
// engine: it parses a problem instance and an initial solution, builds
// an Engine over a configured set of heuristics, waits for a wall-clock
// deadline, and writes the best solution found.
package main

import (
	"context"
	"fmt"
	"os"

	"k8s.io/klog/v2"

	"reassign/cmd/reassign/app"
)

func main() {
	os.Exit(run())
}

func run() int {
	defer klog.Flush()

	code, err := app.Execute(context.Background(), os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	return code
}
