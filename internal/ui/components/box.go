package components

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
)

var (
	frameColor       = lipgloss.Color("#273540")
	frameActiveColor = lipgloss.Color("#7f57b4")
	frameErrorColor  = lipgloss.Color("#7a2f3a")

	frameStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(frameColor).
			Padding(1, 2)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7f57b4")).
			Bold(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#436b77")).
			Bold(true)

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#d7d9da"))

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#9ba0bf"))

	errorTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#e06c75")).
			Bold(true)

	errorTextStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#d6b5b5"))

	changeFromStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff4d6d"))
	changeToStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#ffbf3f"))
)

// frameWidth is the outer width of a box on a terminal this wide: 70% of
// it, kept between 40 and 80 columns but never wider than the terminal.
// 0 means unknown and lets the content decide.
func frameWidth(width int) int {
	if width <= 0 {
		return 0
	}
	return min(max(width*70/100, 40), 80, width)
}

// BoxContentWidth is the room left inside a box after border and padding.
func BoxContentWidth(width int) int {
	return max(frameWidth(width)-6, 0)
}

// ClampTextWidth flattens text to one sanitized line no wider than width.
func ClampTextWidth(text string, width int) string {
	cleaned := SanitizeOneLine(text)
	if width <= 0 || lipgloss.Width(cleaned) <= width {
		return cleaned
	}
	return truncateRunes(cleaned, width)
}

// Box renders content inside a plain frame.
func Box(content string, width int) string {
	return frameStyle.Width(frameWidth(width)).Render(content)
}

// ActiveBox frames content that owns the keyboard, such as the binding
// editor.
func ActiveBox(content string, width int) string {
	return frameStyle.BorderForeground(frameActiveColor).Width(frameWidth(width)).Render(content)
}

// ErrorBox frames a failure message.
func ErrorBox(title, message string, width int) string {
	body := errorTextStyle.Render(message)
	if title != "" {
		body = errorTitleStyle.Render(title) + "\n\n" + body
	}
	return frameStyle.BorderForeground(frameErrorColor).Width(frameWidth(width)).Render(body)
}

// TitledBox is Box with the title set into the top border.
func TitledBox(title, content string, width int) string {
	boxed := Box(content, width)
	if title == "" {
		return boxed
	}
	lines := strings.Split(boxed, "\n")
	outer := lipgloss.Width(lines[0])
	if outer < 4 {
		return boxed
	}

	inner := outer - 2
	label := truncateRunes(fmt.Sprintf(" [ %s ] ", title), inner)
	left := (inner - lipgloss.Width(label)) / 2
	right := inner - lipgloss.Width(label) - left

	border := lipgloss.RoundedBorder()
	edge := lipgloss.NewStyle().Foreground(frameColor)
	lines[0] = edge.Render(border.TopLeft+strings.Repeat(border.Top, left)) +
		titleStyle.Render(label) +
		edge.Render(strings.Repeat(border.Top, right)+border.TopRight)
	return strings.Join(lines, "\n")
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func padRight(s string, width int) string {
	if w := lipgloss.Width(s); w < width {
		return s + strings.Repeat(" ", width-w)
	}
	return s
}

// InfoRow renders "label: value" on one line.
func InfoRow(label, value string) string {
	return mutedStyle.Render(SanitizeOneLine(label)+": ") + valueStyle.Render(SanitizeOneLine(value))
}

// Field is a labelled value. Color, when set, tints the value; outputs use
// it to mark errors and values not computed yet.
type Field struct {
	Label string
	Value string
	Color string
}

// Fields renders aligned label/value pairs in a box. Labels take at most
// half the content width (and never more than 24 columns); values are
// clipped to what remains.
func Fields(title string, fields []Field, width int) string {
	if len(fields) == 0 {
		return ""
	}

	longest := 0
	for _, f := range fields {
		longest = max(longest, lipgloss.Width(SanitizeOneLine(f.Label)))
	}
	content := BoxContentWidth(width)
	if content == 0 {
		content = longest + 32
	}
	labelWidth := max(min(longest, 24, content/2), 4)
	valueWidth := max(content-labelWidth-2, 4)

	lines := make([]string, len(fields))
	for i, f := range fields {
		style := valueStyle
		if f.Color != "" {
			style = style.Foreground(lipgloss.Color(f.Color))
		}
		lines[i] = labelStyle.Render(padRight(ClampTextWidth(f.Label, labelWidth), labelWidth)) +
			"  " + style.Render(ClampTextWidth(f.Value, valueWidth))
	}
	return TitledBox(title, strings.Join(lines, "\n"), width)
}

// Indent shifts every line right by spaces columns.
func Indent(s string, spaces int) string {
	pad := strings.Repeat(" ", spaces)
	return pad + strings.ReplaceAll(s, "\n", "\n"+pad)
}

// CenterLine centers one line within the box width.
func CenterLine(s string, width int) string {
	w := frameWidth(width)
	pad := (w - lipgloss.Width(s)) / 2
	if pad <= 0 {
		return s
	}
	return strings.Repeat(" ", pad) + s
}

// Change is one binding value before and after an edit.
type Change struct {
	Input string
	From  string
	To    string
}

// ChangeBox shows binding changes as "- old" and "+ new" lines. An input
// that had no value shows "(unset)".
func ChangeBox(title string, changes []Change, width int) string {
	if len(changes) == 0 {
		return ""
	}
	blocks := make([]string, len(changes))
	for i, c := range changes {
		blocks[i] = labelStyle.Render(SanitizeOneLine(c.Input)) + "\n" +
			changeLines(changeFromStyle, "  - ", c.From) + "\n" +
			changeLines(changeToStyle, "  + ", c.To)
	}
	return TitledBox(title, strings.Join(blocks, "\n\n"), width)
}

func changeLines(style lipgloss.Style, marker, value string) string {
	value = SanitizeText(value)
	if value == "" {
		value = "(unset)"
	}
	cont := strings.Repeat(" ", len(marker))
	lines := strings.Split(value, "\n")
	for i, l := range lines {
		if i == 0 {
			lines[i] = style.Render(marker + l)
		} else {
			lines[i] = style.Render(cont + l)
		}
	}
	return strings.Join(lines, "\n")
}
