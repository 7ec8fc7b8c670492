// Package main is the entry point for the dirsnap CLI.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"

	"github.com/jtarrant/dirsnap/cmd/dirsnap/commands"
	"github.com/jtarrant/dirsnap/internal/errors"
)

func main() {
	if err := commands.Execute(); err != nil {
		red := color.New(color.FgRed).FprintfFunc()
		red(os.Stderr, "✗ %s\n", err)

		var exitErr *errors.ExitError
		if errors.As(err, &exitErr) && exitErr.Suggestion != "" {
			fmt.Fprintf(os.Stderr, "  %s\n", exitErr.Suggestion)
		}

		os.Exit(errors.CodeFor(err))
	}
}
