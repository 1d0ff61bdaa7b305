// Package expr parses the reference syntax used in binding expressions.
//
// A reference points at another entity's property: #CODE.property. While the
// user types, the token under the cursor is only partially written, so the
// parser works on text plus a cursor offset rather than on complete input.
package expr

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Sigil starts every reference token.
const Sigil = '#'

// Reference is the in-progress reference token under the cursor.
type Reference struct {
	// RawText is the token from the sigil up to the cursor, sigil included.
	RawText string
	// StartOffset is the byte offset of the sigil in the full text.
	StartOffset  int
	EntityPart   string
	PropertyPart string
	// HasDot selects property suggestions scoped to EntityPart.
	HasDot bool
}

// Query returns the fragment suggestions should complete.
func (r Reference) Query() string {
	if r.HasDot {
		return r.PropertyPart
	}
	return r.EntityPart
}

// ParseReference extracts the reference being typed at cursor, a byte offset
// into text. It reports false when the cursor is not inside a reference, or
// when whitespace or an operator closed the reference before the cursor.
func ParseReference(text string, cursor int) (Reference, bool) {
	if cursor < 0 {
		return Reference{}, false
	}
	if cursor > len(text) {
		cursor = len(text)
	}
	before := text[:cursor]

	start := -1
	for i := len(before); i > 0; {
		r, size := utf8.DecodeLastRuneInString(before[:i])
		i -= size
		if r == Sigil {
			start = i
			break
		}
		if isTerminator(r) {
			return Reference{}, false
		}
	}
	if start < 0 {
		return Reference{}, false
	}

	token := before[start+1:]
	ref := Reference{
		RawText:     before[start:],
		StartOffset: start,
		EntityPart:  token,
	}
	if dot := strings.IndexByte(token, '.'); dot >= 0 {
		ref.EntityPart = token[:dot]
		ref.PropertyPart = token[dot+1:]
		ref.HasDot = true
	}
	return ref, true
}

const operators = "+-*/^%()[]{},=<>"

func isTerminator(r rune) bool {
	return unicode.IsSpace(r) || strings.ContainsRune(operators, r)
}

// Ref is a complete entity.property reference found in an expression.
type Ref struct {
	Entity   string
	Property string
}

func (r Ref) String() string {
	return string(Sigil) + r.Entity + "." + r.Property
}

var refPattern = regexp.MustCompile(`#([^\s.+\-*/^%()\[\]{},=<>#]+)\.([^\s.+\-*/^%()\[\]{},=<>#]+)`)

// ExtractReferences returns the complete references of an expression in
// order of appearance, without duplicates.
func ExtractReferences(text string) []Ref {
	matches := refPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	refs := make([]Ref, 0, len(matches))
	seen := make(map[Ref]bool, len(matches))
	for _, m := range matches {
		ref := Ref{Entity: m[1], Property: m[2]}
		if seen[ref] {
			continue
		}
		seen[ref] = true
		refs = append(refs, ref)
	}
	return refs
}
