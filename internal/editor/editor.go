// Package editor implements the inline expression editor: a text buffer with
// a cursor that offers ghost-text completion for the reference being typed.
package editor

import (
	"unicode/utf8"

	"github.com/gravitrone/portal-cli/internal/expr"
	"github.com/gravitrone/portal-cli/internal/suggest"
)

// State of the editor relative to the token under the cursor.
type State int

const (
	// Idle: the cursor is not inside a reference.
	Idle State = iota
	// Typing: inside a reference, no usable ghost yet.
	Typing
	// Suggesting: inside a reference with ghost text on offer.
	Suggesting
)

func (s State) String() string {
	switch s {
	case Typing:
		return "typing"
	case Suggesting:
		return "suggesting"
	default:
		return "idle"
	}
}

// Suggester is the autocomplete backend of an editor.
type Suggester interface {
	SuggestEntity(query string)
	SuggestProperty(entityCode, query string)
	Clear()
	Ghost() suggest.Ghost
}

// Options configures an Editor.
type Options struct {
	// OnSubmit receives the value when the user presses Enter.
	OnSubmit func(value string)
	// OnCancel runs when the user presses Escape.
	OnCancel func()
}

// Editor holds one expression being edited. It is not safe for concurrent
// use; the suggester may publish ghosts from other goroutines.
type Editor struct {
	suggester Suggester
	opts      Options

	value  string
	cursor int // byte offset into value

	ref   expr.Reference
	inRef bool
}

// New creates an empty editor.
func New(suggester Suggester, opts Options) *Editor {
	return &Editor{suggester: suggester, opts: opts}
}

// Value returns the current text.
func (e *Editor) Value() string { return e.value }

// Cursor returns the cursor as a byte offset.
func (e *Editor) Cursor() int { return e.cursor }

// Reference returns the reference under the cursor, if any.
func (e *Editor) Reference() (expr.Reference, bool) { return e.ref, e.inRef }

// SetValue replaces the text and moves the cursor to the end.
func (e *Editor) SetValue(value string) {
	e.value = value
	e.cursor = len(value)
	e.refresh()
}

// Insert types s at the cursor.
func (e *Editor) Insert(s string) {
	if s == "" {
		return
	}
	e.value = e.value[:e.cursor] + s + e.value[e.cursor:]
	e.cursor += len(s)
	e.refresh()
}

// Backspace deletes the rune before the cursor.
func (e *Editor) Backspace() {
	if e.cursor == 0 {
		return
	}
	_, size := utf8.DecodeLastRuneInString(e.value[:e.cursor])
	e.value = e.value[:e.cursor-size] + e.value[e.cursor:]
	e.cursor -= size
	e.refresh()
}

// Delete removes the rune after the cursor.
func (e *Editor) Delete() {
	if e.cursor >= len(e.value) {
		return
	}
	_, size := utf8.DecodeRuneInString(e.value[e.cursor:])
	e.value = e.value[:e.cursor] + e.value[e.cursor+size:]
	e.refresh()
}

// Left moves the cursor back one rune.
func (e *Editor) Left() {
	if e.cursor == 0 {
		return
	}
	_, size := utf8.DecodeLastRuneInString(e.value[:e.cursor])
	e.cursor -= size
	e.refresh()
}

// Right moves the cursor forward one rune.
func (e *Editor) Right() {
	if e.cursor >= len(e.value) {
		return
	}
	_, size := utf8.DecodeRuneInString(e.value[e.cursor:])
	e.cursor += size
	e.refresh()
}

// Home moves the cursor to the start of the value.
func (e *Editor) Home() {
	e.cursor = 0
	e.refresh()
}

// End moves the cursor past the last rune.
func (e *Editor) End() {
	e.cursor = len(e.value)
	e.refresh()
}

// State derives the editor state from the reference under the cursor and
// the suggester's current ghost.
func (e *Editor) State() State {
	if !e.inRef {
		return Idle
	}
	if _, ok := e.ghost(); ok {
		return Suggesting
	}
	return Typing
}

// GhostText returns the completion to render after the cursor, or "".
func (e *Editor) GhostText() string {
	g, ok := e.ghost()
	if !ok {
		return ""
	}
	return g.Text
}

// Accept splices the ghost text in at the cursor. Accepting an entity also
// types the dot so property suggestions start right away. It reports false
// when there was nothing to accept.
func (e *Editor) Accept() bool {
	g, ok := e.ghost()
	if !ok {
		return false
	}
	insert := g.Text
	if g.Kind == suggest.KindEntity {
		insert += "."
	}
	e.value = e.value[:e.cursor] + insert + e.value[e.cursor:]
	e.cursor += len(insert)
	e.refresh()
	return true
}

// Submit hands the current value to OnSubmit.
func (e *Editor) Submit() {
	if e.opts.OnSubmit != nil {
		e.opts.OnSubmit(e.value)
	}
}

// Cancel drops any ghost and runs OnCancel.
func (e *Editor) Cancel() {
	e.suggester.Clear()
	if e.opts.OnCancel != nil {
		e.opts.OnCancel()
	}
}

// ghost returns the suggester's ghost if it belongs to the reference under
// the cursor. Late or unrelated ghosts are ignored.
func (e *Editor) ghost() (suggest.Ghost, bool) {
	if !e.inRef {
		return suggest.Ghost{}, false
	}
	g := e.suggester.Ghost()
	if g.Empty() {
		return suggest.Ghost{}, false
	}
	if e.ref.HasDot {
		return g, g.Matches(suggest.KindProperty, e.ref.EntityPart, e.ref.PropertyPart)
	}
	return g, g.Matches(suggest.KindEntity, "", e.ref.EntityPart)
}

func (e *Editor) refresh() {
	prev, hadRef := e.ref, e.inRef
	e.ref, e.inRef = expr.ParseReference(e.value, e.cursor)
	switch {
	case !e.inRef:
		if hadRef {
			e.suggester.Clear()
		}
	case hadRef && prev == e.ref:
		// cursor moved without changing the token; keep the current lookup
	case e.ref.HasDot:
		e.suggester.SuggestProperty(e.ref.EntityPart, e.ref.PropertyPart)
	default:
		e.suggester.SuggestEntity(e.ref.EntityPart)
	}
}
