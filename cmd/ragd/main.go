// Command ragd is the entry point for the retrieval-augmented question
// answering daemon. It provides a CLI interface (via Cobra) and an HTTP
// server fronting the per-user QA agent.
package main

import (
	"fmt"
	"os"

	"github.com/ragd-io/ragd/cmd/ragd/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
