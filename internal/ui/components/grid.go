package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// GridColumn is one column of a Grid. Width is a request; the last column
// absorbs whatever is left of the grid width.
type GridColumn struct {
	Header string
	Width  int
	Align  lipgloss.Position
}

// GridCell is one cell. Color, when set, tints the text, e.g. a binding kind
// or a computation status.
type GridCell struct {
	Text  string
	Color string
}

// Cell is an untinted cell.
func Cell(text string) GridCell { return GridCell{Text: text} }

// Tinted is a cell drawn in color.
func Tinted(text, color string) GridCell { return GridCell{Text: text, Color: color} }

const gridIndent = 2

var (
	gridRuleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#273540"))
	gridHeaderStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#436b77")).
			Bold(true)
	gridActiveBg = lipgloss.Color("#1f2530")
)

// Grid renders rows under a header and rule. Every line is exactly width
// cells wide. active highlights one row by index; -1 highlights none.
func Grid(columns []GridColumn, rows [][]GridCell, width, active int) string {
	if width <= 0 || len(columns) == 0 {
		return ""
	}
	widths := gridWidths(columns, width)

	header := make([]GridCell, len(columns))
	for i, c := range columns {
		header[i] = GridCell{Text: c.Header}
	}
	lines := make([]string, 0, len(rows)+2)
	lines = append(lines, gridLine(columns, widths, header, width, gridHeaderStyle, false))

	var rule strings.Builder
	rule.WriteString(strings.Repeat(" ", gridIndent))
	for i, w := range widths {
		if i > 0 {
			rule.WriteString("┼")
		}
		rule.WriteString(strings.Repeat("─", w))
	}
	lines = append(lines, gridRuleStyle.Render(padRight(rule.String(), width)))

	for i, row := range rows {
		lines = append(lines, gridLine(columns, widths, row, width, lipgloss.NewStyle(), i == active))
	}
	return strings.Join(lines, "\n")
}

// gridWidths fits the requested column widths into width, minus the indent
// and one separator between neighbours.
func gridWidths(columns []GridColumn, width int) []int {
	widths := make([]int, len(columns))
	used := 0
	for i, c := range columns {
		widths[i] = max(c.Width, 1)
		used += widths[i]
	}
	avail := width - gridIndent - (len(columns) - 1)
	last := len(widths) - 1
	widths[last] = max(widths[last]+avail-used, 1)
	return widths
}

func gridLine(columns []GridColumn, widths []int, cells []GridCell, width int, base lipgloss.Style, active bool) string {
	sep := gridRuleStyle
	if active {
		base = base.Background(gridActiveBg).Bold(true)
		sep = sep.Background(gridActiveBg)
	}

	var b strings.Builder
	b.WriteString(strings.Repeat(" ", gridIndent))
	for i, w := range widths {
		if i > 0 {
			b.WriteString(sep.Render("│"))
		}
		var cell GridCell
		if i < len(cells) {
			cell = cells[i]
		}
		style := base
		if cell.Color != "" {
			style = style.Foreground(lipgloss.Color(cell.Color))
		}
		b.WriteString(style.Inline(true).Render(alignCell(cell.Text, w, columns[i].Align)))
	}
	return padRight(b.String(), width)
}

func alignCell(text string, width int, align lipgloss.Position) string {
	text = truncateRunes(ClampTextWidth(text, width), width)
	pad := width - lipgloss.Width(text)
	if pad <= 0 {
		return text
	}
	switch align {
	case lipgloss.Right:
		return strings.Repeat(" ", pad) + text
	case lipgloss.Center:
		return strings.Repeat(" ", pad/2) + text + strings.Repeat(" ", pad-pad/2)
	default:
		return text + strings.Repeat(" ", pad)
	}
}
