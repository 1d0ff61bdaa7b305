package expr

import (
	"strconv"
	"strings"
)

// BindingKind tells how an input's stored value is encoded.
type BindingKind int

const (
	// BindingEmpty is an input with no committed value.
	BindingEmpty BindingKind = iota
	// BindingLiteral is a plain number.
	BindingLiteral
	// BindingReference starts with the sigil and points at another entity.
	BindingReference
	// BindingLookup is any other free-form expression.
	BindingLookup
)

func (k BindingKind) String() string {
	switch k {
	case BindingLiteral:
		return "literal"
	case BindingReference:
		return "reference"
	case BindingLookup:
		return "lookup"
	default:
		return "empty"
	}
}

// ClassifyBinding decides the encoding of a binding value. The encodings are
// mutually exclusive: a leading sigil wins over everything, then a value
// that parses as a number, then free-form lookup.
func ClassifyBinding(value string) BindingKind {
	v := strings.TrimSpace(value)
	switch {
	case v == "":
		return BindingEmpty
	case v[0] == Sigil:
		return BindingReference
	}
	if _, err := strconv.ParseFloat(v, 64); err == nil {
		return BindingLiteral
	}
	return BindingLookup
}
