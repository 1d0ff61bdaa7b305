package components

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bindingColumns() []GridColumn {
	return []GridColumn{
		{Header: "Input", Width: 10},
		{Header: "Value", Width: 16},
		{Header: "Kind", Width: 9, Align: lipgloss.Right},
	}
}

func TestGridLinesFillWidth(t *testing.T) {
	out := Grid(bindingColumns(), [][]GridCell{
		{Cell("height"), Cell("10"), Tinted("literal", "#d7d9da")},
		{Cell(strings.Repeat("width", 10)), Cell("#STEEL.density"), Tinted("reference", "#436b77")},
	}, 50, 1)

	lines := strings.Split(out, "\n")
	require.Len(t, lines, 4)
	for _, line := range lines {
		assert.Equal(t, 50, lipgloss.Width(line))
	}
	clean := SanitizeText(out)
	assert.Contains(t, clean, "Input")
	assert.Contains(t, clean, "#STEEL.density")
	assert.Contains(t, clean, "┼")
}

func TestGridTintKeepsText(t *testing.T) {
	plain := Grid(bindingColumns(), [][]GridCell{{Cell("width"), Cell("#STEEL"), Cell("reference")}}, 50, 0)
	tinted := Grid(bindingColumns(), [][]GridCell{{Cell("width"), Cell("#STEEL"), Tinted("reference", "#436b77")}}, 50, 0)
	assert.Equal(t, SanitizeText(plain), SanitizeText(tinted))
	assert.Equal(t, Tinted("reference", "#436b77"), GridCell{Text: "reference", Color: "#436b77"})
}

func TestGridAlignsRight(t *testing.T) {
	assert.Equal(t, "   10", alignCell("10", 5, lipgloss.Right))
	assert.Equal(t, "10   ", alignCell("10", 5, lipgloss.Left))
	assert.Equal(t, " 10  ", alignCell("10", 5, lipgloss.Center))
	assert.Equal(t, "liter", alignCell("literal", 5, lipgloss.Left))
}

func TestGridWidthsGiveRemainderToLastColumn(t *testing.T) {
	widths := gridWidths(bindingColumns(), 50)
	assert.Equal(t, []int{10, 16, 20}, widths)
	assert.Equal(t, 1, gridWidths(bindingColumns(), 10)[2])
}

func TestGridZeroWidthIsEmpty(t *testing.T) {
	assert.Equal(t, "", Grid(bindingColumns(), nil, 0, -1))
	assert.Equal(t, "", Grid(nil, nil, 40, -1))
}
