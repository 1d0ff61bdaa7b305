package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	dialogTitleStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#7f57b4")).
				Bold(true)
	dialogFieldStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#436b77"))
	dialogProblemStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#e06c75"))
	dialogWarnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#c78854"))
)

func dialogHints(hints ...Segment) string {
	parts := make([]string, 0, len(hints))
	for _, h := range hints {
		parts = append(parts, h.Render())
	}
	return strings.Join(parts, "  ")
}

// NameDialog prompts for a new analysis name. problem, when set, is shown
// under the field and explains why the last submit was refused.
func NameDialog(value, problem string, width int) string {
	field := dialogFieldStyle.Render("> " + SanitizeOneLine(value) + "█")
	body := dialogTitleStyle.Render("New Analysis") + "\n\n" + field
	if problem != "" {
		body += "\n" + dialogProblemStyle.Render(SanitizeOneLine(problem))
	}
	body += "\n\n" + dialogHints(Hint("enter", "create"), Hint("esc", "cancel"))
	return ActiveBox(body, width)
}

// DeleteDialog confirms deleting an analysis. Its fields and any computed
// outputs are listed so the user sees what goes with it.
func DeleteDialog(fields []Field, outputs int, width int) string {
	sections := []string{Fields("", fields, width)}
	if outputs > 0 {
		sections = append(sections, dialogWarnStyle.Render(
			fmt.Sprintf("%d computed %s will be discarded.", outputs, plural(outputs, "output", "outputs"))))
	}
	sections = append(sections, dialogHints(Hint("y", "delete"), Hint("n", "keep")))
	return TitledBox("Delete Analysis", strings.Join(sections, "\n\n"), width)
}

// DiscardDialog asks before quitting over an unsaved edit. input names the
// binding being edited; empty means the pending change is elsewhere.
func DiscardDialog(input string, width int) string {
	msg := "You have unsaved changes. Quit anyway?"
	if input != "" {
		msg = fmt.Sprintf("The new value for %s is not saved. Quit anyway?", SanitizeOneLine(input))
	}
	body := dialogTitleStyle.Render("Quit") + "\n\n" + hintDescStyle.Render(msg) +
		"\n\n" + dialogHints(Hint("y", "quit"), Hint("n", "stay"))
	return Box(body, width)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
