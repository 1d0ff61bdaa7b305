package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/sahilm/fuzzy"
	"github.com/spf13/cobra"

	"github.com/gravitrone/portal-cli/internal/api"
	"github.com/gravitrone/portal-cli/internal/expr"
)

// AnalysesCmd returns the `portal analyses` command group.
func AnalysesCmd() *cobra.Command {
	c := &cobra.Command{
		Use:     "analyses",
		Aliases: []string{"analysis", "a"},
		Short:   "List and manage analyses",
	}
	c.AddCommand(analysesListCmd())
	c.AddCommand(analysesShowCmd())
	c.AddCommand(analysesCreateCmd())
	c.AddCommand(analysesDeleteCmd())
	c.AddCommand(analysesEvaluateCmd())
	c.AddCommand(BindCmd())
	return c
}

func analysesListCmd() *cobra.Command {
	var asJSON bool
	c := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List analyses",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := newSession(cmd, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.store.Refresh(); err != nil {
				return fmt.Errorf("list analyses: %w", err)
			}
			items := s.store.List()
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), items)
			}
			if len(items) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no analyses")
				return nil
			}
			t := newTable(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"ID", "Name", "Status", "Inputs", "Updated"})
			for _, a := range items {
				t.AppendRow(table.Row{a.ID, a.Name, statusText(a.ComputationStatus), len(a.Bindings), formatTime(a)})
			}
			t.Render()
			return nil
		},
	}
	c.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return c
}

func analysesShowCmd() *cobra.Command {
	var asJSON bool
	c := &cobra.Command{
		Use:   "show <analysis>",
		Short: "Show the bindings and outputs of an analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer s.Close()

			a, err := resolveAnalysis(s.client, args[0])
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), a)
			}
			printAnalysis(cmd.OutOrStdout(), a)
			return nil
		},
	}
	c.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return c
}

func analysesCreateCmd() *cobra.Command {
	var (
		template string
		bindings map[string]string
	)
	c := &cobra.Command{
		Use:   "create <name>",
		Short: "Create an analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.TrimSpace(args[0])
			if name == "" {
				return fmt.Errorf("name is required")
			}
			s, err := newSession(cmd, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer s.Close()

			a, err := s.client.CreateAnalysis(api.CreateAnalysisInput{
				Name:     name,
				Template: template,
				Bindings: bindings,
			})
			if err != nil {
				return fmt.Errorf("create analysis: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s)\n", a.Name, a.ID)
			return nil
		},
	}
	c.Flags().StringVar(&template, "template", "", "analysis template")
	c.Flags().StringToStringVar(&bindings, "bind", nil, "initial binding input=value (repeatable)")
	return c
}

func analysesDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <analysis>",
		Aliases: []string{"rm"},
		Short:   "Delete an analysis",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer s.Close()

			a, err := resolveAnalysis(s.client, args[0])
			if err != nil {
				return err
			}
			if err := s.client.DeleteAnalysis(a.ID); err != nil {
				return fmt.Errorf("delete analysis: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s (%s)\n", a.Name, a.ID)
			return nil
		},
	}
}

func analysesEvaluateCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "evaluate <analysis>",
		Aliases: []string{"eval"},
		Short:   "Re-run an analysis and print its outputs",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer s.Close()

			a, err := resolveAnalysis(s.client, args[0])
			if err != nil {
				return err
			}
			evaluated, err := s.client.EvaluateAnalysis(a.ID)
			if err != nil {
				return fmt.Errorf("evaluate: %w", err)
			}
			printOutputs(cmd.OutOrStdout(), *evaluated)
			return nil
		},
	}
}

// BindCmd returns `portal bind`, which sets one input and re-evaluates.
func BindCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bind <analysis> <input> <value>",
		Short: "Set one input of an analysis to a value or #ENTITY.property reference",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer s.Close()

			a, err := resolveAnalysis(s.client, args[0])
			if err != nil {
				return err
			}
			input := args[1]
			previous, ok := a.BindingValue(input)
			if !ok {
				return unknownInputError(a, input)
			}
			s.store.Upsert(a)

			ctl := s.bindings()
			if _, err := ctl.StartEdit(a.ID, input); err != nil {
				return err
			}
			saved, err := ctl.Save(args[2])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %s -> %s (%s)\n", input, orDash(previous), args[2], expr.ClassifyBinding(args[2]))
			printOutputs(out, *saved)
			return nil
		},
	}
}

// resolveAnalysis finds an analysis by id, then by case-insensitive name.
func resolveAnalysis(client *api.Client, ref string) (api.Analysis, error) {
	items, err := client.ListAnalyses()
	if err != nil {
		return api.Analysis{}, fmt.Errorf("list analyses: %w", err)
	}
	for _, a := range items {
		if a.ID == ref {
			return a, nil
		}
	}
	for _, a := range items {
		if strings.EqualFold(a.Name, ref) {
			return a, nil
		}
	}

	names := make([]string, len(items))
	for i, a := range items {
		names[i] = a.Name
	}
	return api.Analysis{}, notFoundError("analysis", ref, names)
}

func unknownInputError(a api.Analysis, input string) error {
	names := make([]string, len(a.Bindings))
	for i, b := range a.Bindings {
		names[i] = b.Input
	}
	return notFoundError(fmt.Sprintf("input of %s", a.Name), input, names)
}

// notFoundError names up to three close matches from candidates.
func notFoundError(what, ref string, candidates []string) error {
	matches := fuzzy.Find(ref, candidates)
	if len(matches) == 0 {
		return fmt.Errorf("%s %q not found", what, ref)
	}
	suggestions := make([]string, 0, 3)
	for _, m := range matches {
		suggestions = append(suggestions, strconv.Quote(m.Str))
		if len(suggestions) == 3 {
			break
		}
	}
	return fmt.Errorf("%s %q not found, did you mean %s?", what, ref, strings.Join(suggestions, ", "))
}

// --- Output ---

func newTable(out io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	return t
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printAnalysis(out io.Writer, a api.Analysis) {
	fmt.Fprintf(out, "%s (%s)  %s\n", a.Name, a.ID, statusText(a.ComputationStatus))
	if len(a.Bindings) == 0 {
		fmt.Fprintln(out, "no inputs")
	} else {
		t := newTable(out)
		t.AppendHeader(table.Row{"Input", "Value", "Kind", "Depends on"})
		for _, b := range a.Bindings {
			t.AppendRow(table.Row{b.Input, orDash(b.Value), expr.ClassifyBinding(b.Value).String(), dependencies(b.Value)})
		}
		t.Render()
	}
	printOutputs(out, a)
}

func printOutputs(out io.Writer, a api.Analysis) {
	if len(a.Outputs) == 0 {
		fmt.Fprintf(out, "status: %s, no outputs\n", statusText(a.ComputationStatus))
		return
	}
	t := newTable(out)
	t.AppendHeader(table.Row{"Output", "Value", "Unit"})
	for _, o := range a.Outputs {
		value := "-"
		switch {
		case o.Error != "":
			value = "error: " + o.Error
		case o.Value != nil:
			value = strconv.FormatFloat(*o.Value, 'g', -1, 64)
		}
		t.AppendRow(table.Row{o.Name, value, o.Unit})
	}
	t.Render()
}

func dependencies(value string) string {
	refs := expr.ExtractReferences(value)
	if len(refs) == 0 {
		return "-"
	}
	names := make([]string, len(refs))
	for i, r := range refs {
		names[i] = r.String()
	}
	return strings.Join(names, ", ")
}

func statusText(status string) string {
	if status == "" {
		return "-"
	}
	return status
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func formatTime(a api.Analysis) string {
	if a.UpdatedAt.IsZero() {
		return "-"
	}
	return a.UpdatedAt.Local().Format("2006-01-02 15:04")
}
