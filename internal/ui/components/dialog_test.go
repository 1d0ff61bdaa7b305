package components

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNameDialogShowsFieldAndHints(t *testing.T) {
	clean := SanitizeText(NameDialog("Beam", "", 80))
	assert.Contains(t, clean, "New Analysis")
	assert.Contains(t, clean, "> Beam")
	assert.Contains(t, clean, "enter create")
	assert.Contains(t, clean, "esc cancel")
}

func TestNameDialogShowsProblem(t *testing.T) {
	clean := SanitizeText(NameDialog("", "a name is required", 80))
	assert.Contains(t, clean, "a name is required")
}

func TestDeleteDialogWarnsAboutOutputs(t *testing.T) {
	fields := []Field{{Label: "Name", Value: "Beam Deflection"}, {Label: "Inputs", Value: "2"}}

	clean := SanitizeText(DeleteDialog(fields, 3, 80))
	assert.Contains(t, clean, "Delete Analysis")
	assert.Contains(t, clean, "Beam Deflection")
	assert.Contains(t, clean, "3 computed outputs will be discarded.")
	assert.Contains(t, clean, "y delete")
	assert.Contains(t, clean, "n keep")

	assert.Contains(t, SanitizeText(DeleteDialog(fields, 1, 80)), "1 computed output will")
	assert.NotContains(t, SanitizeText(DeleteDialog(fields, 0, 80)), "computed")
}

func TestDiscardDialogNamesEditedInput(t *testing.T) {
	assert.Contains(t, SanitizeText(DiscardDialog("width", 80)), "The new value for width is not saved.")
	assert.Contains(t, SanitizeText(DiscardDialog("", 80)), "You have unsaved changes.")
}
