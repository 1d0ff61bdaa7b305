package ui

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gravitrone/portal-cli/internal/ui/components"
)

func TestSplitLinesSplitsOnNewlines(t *testing.T) {
	lines := splitLines("a\nb\nc")
	assert.Equal(t, []string{"a", "b", "c"}, lines)
}

func TestSplitLinesKeepsLeadingEmptyLine(t *testing.T) {
	lines := splitLines("\nx")
	assert.Equal(t, []string{"", "x"}, lines)
}

func TestRenderBannerIncludesSubtitleAndNoOSC(t *testing.T) {
	out := RenderBanner()
	assert.NotContains(t, out, "\x1b]")

	clean := components.SanitizeText(out)
	assert.Contains(t, clean, "Analyses & Live Bindings")
	assert.Contains(t, clean, "Command-Line Interface")
	assert.Contains(t, clean, "─")
}
