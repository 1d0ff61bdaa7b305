package ui

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/gravitrone/portal-cli/internal/editor"
	"github.com/gravitrone/portal-cli/internal/expr"
	"github.com/gravitrone/portal-cli/internal/ui/components"
)

// renderExpression draws the editor buffer on one line: text before the
// cursor, the cursor block, any ghost completion in muted italics, then the
// rest of the text.
func renderExpression(ed *editor.Editor) string {
	value := ed.Value()
	cursor := ed.Cursor()
	if cursor > len(value) {
		cursor = len(value)
	}
	before := components.SanitizeText(value[:cursor])
	after := components.SanitizeText(value[cursor:])

	var b strings.Builder
	b.WriteString(NormalStyle.Render(before))
	if ghost := components.SanitizeOneLine(ed.GhostText()); ghost != "" {
		r, size := utf8.DecodeRuneInString(ghost)
		b.WriteString(CursorStyle.Render(string(r)))
		b.WriteString(GhostStyle.Render(ghost[size:]))
		b.WriteString(NormalStyle.Render(after))
		return b.String()
	}
	if after == "" {
		b.WriteString(CursorStyle.Render(" "))
		return b.String()
	}
	r, size := utf8.DecodeRuneInString(after)
	b.WriteString(CursorStyle.Render(string(r)))
	b.WriteString(NormalStyle.Render(after[size:]))
	return b.String()
}

// renderEditorStatus describes what the editor is completing.
func renderEditorStatus(ed *editor.Editor) string {
	ref, ok := ed.Reference()
	if !ok {
		return MutedStyle.Render("type # to reference another entity")
	}
	target := "entity"
	if ref.HasDot {
		target = "property of " + ReferenceStyle.Render(string(expr.Sigil)+ref.EntityPart)
	}
	line := fmt.Sprintf("%s · %s", ed.State(), target)
	if ed.State() == editor.Suggesting {
		line += " · tab to accept"
	}
	return MutedStyle.Render(line)
}

// renderDependencies lists the complete references in value.
func renderDependencies(value string) string {
	refs := expr.ExtractReferences(value)
	if len(refs) == 0 {
		return "-"
	}
	parts := make([]string, len(refs))
	for i, ref := range refs {
		parts[i] = ref.String()
	}
	return strings.Join(parts, ", ")
}
