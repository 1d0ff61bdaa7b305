package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	keyCapStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#16161d")).
			Background(lipgloss.Color("#888ba4")).
			Bold(true).
			Padding(0, 1)
	hintDescStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#9ba0bf"))
	segmentGap = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#273540")).
			Render(" │ ")
)

// Segment is one cell of the status bar. A segment with a Key is a key
// hint; one without is a state readout such as "saving" or the pending
// completion.
type Segment struct {
	Key   string
	Text  string
	Color string
}

// Hint is a key hint segment.
func Hint(key, desc string) Segment {
	return Segment{Key: key, Text: desc}
}

// State is a readout segment drawn in color.
func State(text, color string) Segment {
	return Segment{Text: text, Color: color}
}

// Render draws the segment on its own.
func (s Segment) Render() string {
	text := SanitizeOneLine(s.Text)
	if s.Key == "" {
		style := hintDescStyle
		if s.Color != "" {
			style = style.Foreground(lipgloss.Color(s.Color)).Bold(true)
		}
		return style.Render(text)
	}
	return keyCapStyle.Render(s.Key) + hintDescStyle.Render(" "+text)
}

// StatusBar renders the bottom bar. State readouts come first, then the
// hints, wrapped onto as many centered lines as width needs.
func StatusBar(segments []Segment, width int) string {
	ordered := make([]string, 0, len(segments))
	for _, s := range segments {
		if s.Key == "" && s.Text != "" {
			ordered = append(ordered, s.Render())
		}
	}
	for _, s := range segments {
		if s.Key != "" {
			ordered = append(ordered, s.Render())
		}
	}
	if len(ordered) == 0 {
		return ""
	}

	lines := packSegments(ordered, width-2)
	if width <= 0 {
		return "  " + lines[0]
	}
	for i, line := range lines {
		lines[i] = lipgloss.PlaceHorizontal(width, lipgloss.Center, line)
	}
	return strings.Join(lines, "\n")
}

// packSegments joins rendered segments with a gap, starting a new line
// whenever the next one would overflow width. width <= 0 packs one line.
func packSegments(rendered []string, width int) []string {
	gapWidth := lipgloss.Width(segmentGap)
	var lines []string
	var cur strings.Builder
	curWidth := 0
	for _, seg := range rendered {
		w := lipgloss.Width(seg)
		if curWidth > 0 && width > 0 && curWidth+gapWidth+w > width {
			lines = append(lines, cur.String())
			cur.Reset()
			curWidth = 0
		}
		if curWidth > 0 {
			cur.WriteString(segmentGap)
			curWidth += gapWidth
		}
		cur.WriteString(seg)
		curWidth += w
	}
	return append(lines, cur.String())
}
