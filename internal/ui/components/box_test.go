package components

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
)

func maxLineWidth(s string) int {
	w := 0
	for _, line := range strings.Split(s, "\n") {
		w = max(w, lipgloss.Width(line))
	}
	return w
}

func TestFrameWidthBounds(t *testing.T) {
	assert.Equal(t, 0, frameWidth(0))
	assert.Equal(t, 20, frameWidth(20))
	assert.Equal(t, 40, frameWidth(50))
	assert.Equal(t, 70, frameWidth(100))
	assert.Equal(t, 80, frameWidth(200))
	assert.Equal(t, 64, BoxContentWidth(100))
}

func TestTitledBoxFitsNarrowTerminal(t *testing.T) {
	out := TitledBox("Bindings", "height", 20)
	assert.LessOrEqual(t, maxLineWidth(out), 20)
	assert.Contains(t, out, "Bindings")
}

func TestTitledBoxTitleSitsInTopBorder(t *testing.T) {
	out := TitledBox("Outputs", "deflection", 80)
	lines := strings.Split(SanitizeText(out), "\n")
	assert.Contains(t, lines[0], "[ Outputs ]")
	assert.True(t, strings.HasPrefix(lines[0], "╭"))
	assert.Equal(t, lipgloss.Width(lines[0]), lipgloss.Width(lines[1]))
}

func TestTitledBoxEmptyTitleIsPlainBox(t *testing.T) {
	assert.Equal(t, Box("Content", 80), TitledBox("", "Content", 80))
}

func TestErrorBoxIncludesTitleAndMessage(t *testing.T) {
	clean := SanitizeText(ErrorBox("Error", "save height: conflict", 80))
	assert.Contains(t, clean, "Error")
	assert.Contains(t, clean, "save height: conflict")
}

func TestActiveBoxClampsWidth(t *testing.T) {
	assert.LessOrEqual(t, maxLineWidth(ActiveBox("#STEEL.density\n#ALU", 40)), 40)
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "", truncateRunes("hello", 0))
	assert.Equal(t, "he", truncateRunes("hello", 2))
	assert.Equal(t, "你", truncateRunes("你好", 1))
}

func TestClampTextWidthFlattensAndClips(t *testing.T) {
	assert.Equal(t, "#STEEL.den", ClampTextWidth("#STEEL.density", 10))
	assert.Equal(t, "a b", ClampTextWidth("a\nb", 0))
}

func TestInfoRowSanitizesLabelAndValue(t *testing.T) {
	out := InfoRow("Edi\u202Eting\x1b]0;evil\x07", "wid\x1b[2Jt\u202Eh")
	assert.NotContains(t, out, "\u202E")
	assert.NotContains(t, out, "\x1b]")
	assert.NotContains(t, out, "\x1b[2J")
	assert.Contains(t, SanitizeText(out), "Editing: width")
}

func TestFieldsClampLongValues(t *testing.T) {
	out := Fields("Outputs", []Field{
		{Label: strings.Repeat("deflection", 4), Value: strings.Repeat("1.5e-3 ", 30)},
	}, 60)
	assert.LessOrEqual(t, maxLineWidth(out), frameWidth(60))
}

func TestFieldsTintValuesAndSanitize(t *testing.T) {
	out := Fields("Outputs", []Field{
		{Label: "stress", Value: "division by zero\x1b]0;x\x07", Color: "#6d424b"},
		{Label: "deflection", Value: "0.25 mm"},
	}, 60)
	assert.NotContains(t, out, "\x1b]")
	clean := SanitizeText(out)
	assert.Contains(t, clean, "division by zero")
	assert.Contains(t, clean, "0.25 mm")
}

func TestFieldsEmptyRendersNothing(t *testing.T) {
	assert.Equal(t, "", Fields("Outputs", nil, 60))
}

func TestIndentPadsEveryLine(t *testing.T) {
	lines := strings.Split(Indent("a\nb\nc", 2), "\n")
	assert.Len(t, lines, 3)
	for _, line := range lines {
		assert.True(t, strings.HasPrefix(line, "  "))
	}
}

func TestCenterLineAddsLeftPadding(t *testing.T) {
	out := CenterLine("hi", 80)
	pad := (frameWidth(80) - lipgloss.Width("hi")) / 2
	assert.Equal(t, strings.Repeat(" ", pad)+"hi", out)
	assert.Equal(t, "hi", CenterLine("hi", 0))
}

func TestChangeBoxShowsOldAndNewValues(t *testing.T) {
	out := ChangeBox("Last Change", []Change{
		{Input: "width\u202E\x1b]0;bad\x07", From: "5\n\x1b[2J6", To: "#STEEL.density"},
	}, 60)
	assert.NotContains(t, out, "\x1b]")
	assert.NotContains(t, out, "\u202E")
	assert.NotContains(t, out, "\x1b[2J")

	clean := SanitizeText(out)
	assert.Contains(t, clean, "Last Change")
	assert.Contains(t, clean, "width")
	assert.Contains(t, clean, "- 5")
	assert.Contains(t, clean, "    6")
	assert.Contains(t, clean, "+ #STEEL.density")
}

func TestChangeBoxMarksUnsetInputs(t *testing.T) {
	clean := SanitizeText(ChangeBox("Last Change", []Change{{Input: "height", To: "10"}}, 60))
	assert.Contains(t, clean, "- (unset)")
	assert.Contains(t, clean, "+ 10")
}
