// Package cmd holds the portal command tree.
package cmd

import (
	"github.com/spf13/cobra"
)

// NewRootCmd returns the `portal` command. Without a subcommand it starts
// the TUI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "portal",
		Short: "Portal - analyses and live bindings",
		Long:  "Portal CLI: browse analyses, bind their inputs to values or references to other entities, and follow evaluations live.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTUI(cmd)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "config file (default ~/.portal/config)")
	flags.String("base-url", "", "portal server address")
	flags.String("api-key", "", "API key (prefer PORTAL_API_KEY)")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.String("log-file", "", "write logs to this file")

	root.AddCommand(LoginCmd())
	root.AddCommand(AnalysesCmd())
	root.AddCommand(BindCmd())
	root.AddCommand(SuggestCmd())
	root.AddCommand(WatchCmd())
	return root
}
