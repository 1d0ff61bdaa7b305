package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyBinding(t *testing.T) {
	cases := map[string]BindingKind{
		"":              BindingEmpty,
		"   ":           BindingEmpty,
		"10":            BindingLiteral,
		" -2.5e3 ":      BindingLiteral,
		"#AB12.width":   BindingReference,
		"#42":           BindingReference,
		"lookup(steel)": BindingLookup,
		"2 * #AB.width": BindingLookup,
		"ten":           BindingLookup,
	}
	for value, want := range cases {
		assert.Equal(t, want, ClassifyBinding(value), "value %q", value)
	}
}

func TestBindingKindString(t *testing.T) {
	assert.Equal(t, "literal", BindingLiteral.String())
	assert.Equal(t, "reference", BindingReference.String())
	assert.Equal(t, "lookup", BindingLookup.String())
	assert.Equal(t, "empty", BindingEmpty.String())
}
