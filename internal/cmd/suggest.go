package cmd

import (
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/gravitrone/portal-cli/internal/expr"
)

// SuggestCmd returns `portal suggest`, which completes the reference at a
// cursor the way the editor's ghost text does.
func SuggestCmd() *cobra.Command {
	var cursor int
	c := &cobra.Command{
		Use:   "suggest <expression>",
		Short: "Complete the #ENTITY.property reference at the cursor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			// One lookup does not pay for a seeding batch.
			cfg.Suggest.SeedLimit = 0
			s, err := newSessionFromConfig(cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer s.Close()

			text := args[0]
			offset, err := runeOffset(text, cursor)
			if err != nil {
				return err
			}
			return runSuggest(cmd.OutOrStdout(), s, text, offset)
		},
	}
	c.Flags().IntVar(&cursor, "cursor", -1, "cursor position in characters (default end of expression)")
	return c
}

// runeOffset converts a cursor counted in runes to a byte offset. A negative
// cursor means the end of text.
func runeOffset(text string, cursor int) (int, error) {
	if cursor < 0 {
		return len(text), nil
	}
	if cursor > utf8.RuneCountInString(text) {
		return 0, fmt.Errorf("cursor %d is past the end of the expression", cursor)
	}
	offset := 0
	for i := 0; i < cursor; i++ {
		_, size := utf8.DecodeRuneInString(text[offset:])
		offset += size
	}
	return offset, nil
}

func runSuggest(out io.Writer, s *session, text string, offset int) error {
	ref, ok := expr.ParseReference(text, offset)
	if !ok {
		fmt.Fprintln(out, "no reference at cursor")
		return nil
	}

	engine := s.engine()
	if ref.HasDot {
		engine.SuggestProperty(ref.EntityPart, ref.PropertyPart)
	} else {
		engine.SuggestEntity(ref.EntityPart)
	}
	engine.Wait()
	ghost := engine.Ghost()

	kind := "entity"
	if ref.HasDot {
		kind = "property of #" + ref.EntityPart
	}
	fmt.Fprintf(out, "reference:  %s (%s)\n", ref.RawText, kind)
	if ghost.Empty() {
		fmt.Fprintln(out, "completion: none")
	} else {
		fmt.Fprintf(out, "completion: %s%s\n", ref.RawText, ghost.Text)
	}

	t := newTable(out)
	if ref.HasDot {
		items, _ := s.index.Properties(ref.EntityPart, ref.PropertyPart)
		if len(items) == 0 {
			return nil
		}
		t.AppendHeader(table.Row{"Property", "Unit", "Type", "Has value"})
		for _, p := range items {
			t.AppendRow(table.Row{p.Name, p.Unit, p.Type, p.HasValue})
		}
	} else {
		items, _ := s.index.Entities(ref.EntityPart)
		if len(items) == 0 {
			return nil
		}
		t.AppendHeader(table.Row{"Code", "Name", "Kind", "Category"})
		for _, e := range items {
			t.AppendRow(table.Row{e.Code, e.Name, e.Kind, e.Category})
		}
	}
	t.Render()
	return nil
}
