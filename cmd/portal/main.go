package main

import (
	"fmt"
	"os"

	"github.com/gravitrone/portal-cli/internal/cmd"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	// Force truecolor so hex colors render correctly
	// Must be set before any lipgloss style initialization
	os.Setenv("COLORTERM", "truecolor")
}

func run(args []string) error {
	root := cmd.NewRootCmd()
	root.SetArgs(args)
	return root.Execute()
}
