// Command gpt is a terminal chat client for OpenAI, Anthropic, Google and
// local models, with support for remote assistant threads.
package main

import (
	"context"
	"fmt"
	"os"
)

var version = "dev"

func main() {
	cmd := newRootCmd(os.Stdin, os.Stdout, os.Stderr)
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
