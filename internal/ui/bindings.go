package ui

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/gravitrone/portal-cli/internal/api"
	"github.com/gravitrone/portal-cli/internal/binding"
	"github.com/gravitrone/portal-cli/internal/editor"
	"github.com/gravitrone/portal-cli/internal/expr"
	"github.com/gravitrone/portal-cli/internal/store"
	"github.com/gravitrone/portal-cli/internal/ui/components"
)

// --- Messages ---

type bindingSavedMsg struct {
	analysis *api.Analysis
	input    string
	from     string
	to       string
	err      error
}

type analysisEvaluatedMsg struct {
	analysis api.Analysis
}

// --- Bindings Model ---

// BindingsModel shows the inputs and outputs of one analysis and edits one
// input at a time through the expression editor.
type BindingsModel struct {
	client  *api.Client
	store   *store.Store
	control *binding.Controller
	editor  *editor.Editor
	spinner spinner.Model
	list    *components.List

	analysisID string
	inputs     []string

	editing    bool
	editInput  string
	committed  string
	saving     bool
	lastChange *components.Change

	width  int
	height int
}

// NewBindingsModel creates the bindings view. suggester drives the ghost
// text of the inline editor.
func NewBindingsModel(client *api.Client, st *store.Store, control *binding.Controller, suggester editor.Suggester) BindingsModel {
	return BindingsModel{
		client:  client,
		store:   st,
		control: control,
		editor:  editor.New(suggester, editor.Options{OnCancel: control.Cancel}),
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(AccentStyle)),
		list:    components.NewList(12),
	}
}

// Open switches the view to analysis id and drops any edit in progress.
func (m BindingsModel) Open(id string) BindingsModel {
	if m.editing && m.analysisID != id {
		m.editor.Cancel()
		m.editing = false
	}
	m.analysisID = id
	m.lastChange = nil
	m.list.SetItems(nil)
	m.sync()
	return m
}

func (m BindingsModel) Init() tea.Cmd {
	if m.analysisID == "" || m.store == nil {
		return nil
	}
	st, id := m.store, m.analysisID
	return func() tea.Msg {
		if _, err := st.RefreshDetail(id); err != nil && !api.IsNotFound(err) {
			return errMsg{err}
		}
		return nil
	}
}

func (m BindingsModel) Update(msg tea.Msg) (BindingsModel, tea.Cmd) {
	switch msg := msg.(type) {
	case storeChangedMsg:
		m.sync()
		return m, nil
	case spinner.TickMsg:
		if !m.saving {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case bindingSavedMsg:
		m.saving = false
		if msg.err != nil {
			return m, nil
		}
		if m.editInput == msg.input {
			m.editing = false
		}
		m.lastChange = &components.Change{Input: msg.input, From: msg.from, To: msg.to}
		m.sync()
		return m, nil
	case analysisEvaluatedMsg:
		if m.store != nil {
			m.store.Upsert(msg.analysis)
		}
		return m, nil
	case tea.KeyMsg:
		if m.editing {
			return m.handleEditKeys(msg)
		}
		return m.handleListKeys(msg)
	}
	return m, nil
}

// Editing reports whether the inline editor owns the keyboard.
func (m BindingsModel) Editing() bool {
	return m.editing
}

// Unsaved reports whether the editor holds a value that differs from the
// last committed one.
func (m BindingsModel) Unsaved() bool {
	return m.editing && m.editor.Value() != m.committed
}

func (m *BindingsModel) sync() {
	if m.store == nil || m.analysisID == "" {
		m.inputs = nil
		m.list.Sync(nil)
		return
	}
	a, ok := m.store.Get(m.analysisID)
	if !ok {
		m.inputs = nil
		m.list.Sync(nil)
		if m.editing && !m.saving {
			m.editor.Cancel()
			m.editing = false
		}
		return
	}
	names := make([]string, len(a.Bindings))
	for i, b := range a.Bindings {
		names[i] = b.Input
	}
	m.inputs = names
	m.list.Sync(names)
}

func (m BindingsModel) selectedInput() (string, bool) {
	idx := m.list.Selected()
	if idx < 0 || idx >= len(m.inputs) {
		return "", false
	}
	return m.inputs[idx], true
}

func (m BindingsModel) handleListKeys(msg tea.KeyMsg) (BindingsModel, tea.Cmd) {
	switch {
	case isDown(msg):
		m.list.Down()
	case isUp(msg):
		m.list.Up()
	case isEnter(msg), isSpace(msg):
		input, ok := m.selectedInput()
		if !ok {
			return m, nil
		}
		value, err := m.control.StartEdit(m.analysisID, input)
		if err != nil {
			return m, func() tea.Msg { return errMsg{err} }
		}
		m.editing = true
		m.editInput = input
		m.committed = value
		m.editor.SetValue(value)
	case isKey(msg, "e"):
		return m, m.evaluateCmd()
	case isKey(msg, "r"):
		return m, m.Init()
	}
	return m, nil
}

func (m BindingsModel) handleEditKeys(msg tea.KeyMsg) (BindingsModel, tea.Cmd) {
	if m.saving {
		return m, nil
	}
	switch {
	case isBack(msg):
		m.editor.Cancel()
		m.editing = false
	case isEnter(msg):
		m.saving = true
		return m, tea.Batch(m.saveCmd(m.editInput, m.committed, m.editor.Value()), m.spinner.Tick)
	case isAccept(msg):
		m.editor.Accept()
	case isKey(msg, "left"):
		m.editor.Left()
	case isKey(msg, "right"):
		m.editor.Right()
	case isKey(msg, "home", "ctrl+a"):
		m.editor.Home()
	case isKey(msg, "end", "ctrl+e"):
		m.editor.End()
	case isKey(msg, "backspace"):
		m.editor.Backspace()
	case isKey(msg, "delete", "ctrl+d"):
		m.editor.Delete()
	default:
		m.editor.Insert(typedText(msg))
	}
	return m, nil
}

func (m BindingsModel) saveCmd(input, from, to string) tea.Cmd {
	control := m.control
	return func() tea.Msg {
		a, err := control.Save(to)
		return bindingSavedMsg{analysis: a, input: input, from: from, to: to, err: err}
	}
}

func (m BindingsModel) evaluateCmd() tea.Cmd {
	if m.client == nil || m.analysisID == "" {
		return nil
	}
	client, id := m.client, m.analysisID
	return func() tea.Msg {
		a, err := client.EvaluateAnalysis(id)
		if err != nil {
			return errMsg{fmt.Errorf("evaluate: %w", err)}
		}
		if a == nil {
			return errMsg{errors.New("evaluate: empty response")}
		}
		return analysisEvaluatedMsg{analysis: *a}
	}
}

// --- View ---

func (m BindingsModel) View() string {
	if m.analysisID == "" {
		return components.Indent(components.Box(MutedStyle.Render("Select an analysis first."), m.width), 1)
	}
	a, ok := m.store.Get(m.analysisID)
	if !ok {
		return components.Indent(components.Box(MutedStyle.Render("This analysis no longer exists."), m.width), 1)
	}

	sections := []string{m.renderInputs(a)}
	if m.editing {
		sections = append(sections, m.renderEditor())
	}
	if outputs := m.renderOutputs(a); outputs != "" {
		sections = append(sections, outputs)
	}
	if m.lastChange != nil {
		sections = append(sections, components.ChangeBox("Last Change", []components.Change{*m.lastChange}, m.width))
	}
	return components.Indent(strings.Join(sections, "\n\n"), 1)
}

func (m BindingsModel) renderInputs(a api.Analysis) string {
	status := statusLabel(a.ComputationStatus)
	header := NormalStyle.Render(components.SanitizeOneLine(a.Name)) + "  " +
		lipgloss.NewStyle().Foreground(lipgloss.Color(statusColor(a.ComputationStatus))).Render(status)

	if len(a.Bindings) == 0 {
		return components.TitledBox("Bindings", header+"\n\n"+MutedStyle.Render("No inputs."), m.width)
	}

	tableWidth := components.BoxContentWidth(m.width)
	if tableWidth <= 0 {
		tableWidth = 72
	}
	cols := []components.GridColumn{
		{Header: "Input", Width: 14},
		{Header: "Value", Width: 22},
		{Header: "Kind", Width: 9},
		{Header: "Depends on", Width: 20},
	}
	rows := make([][]components.GridCell, 0, len(a.Bindings))
	active := -1
	for rel := range m.list.Visible() {
		i := m.list.RelToAbs(rel)
		if i >= len(a.Bindings) {
			break
		}
		b := a.Bindings[i]
		kind := expr.ClassifyBinding(b.Value)
		value := components.Cell(b.Value)
		switch {
		case m.saving && m.editInput == b.Input:
			value = components.Tinted(m.spinner.View()+" saving", string(ColorWarning))
		case kind == expr.BindingEmpty:
			value = components.Tinted("-", string(ColorMuted))
		}
		rows = append(rows, []components.GridCell{
			components.Cell(b.Input),
			value,
			components.Tinted(kind.String(), kindColor(kind)),
			components.Tinted(renderDependencies(b.Value), string(ColorSecondary)),
		})
		if m.list.IsSelected(i) {
			active = len(rows) - 1
		}
	}
	grid := components.Grid(cols, rows, tableWidth, active)
	return components.TitledBox("Bindings", header+"\n\n"+grid, m.width)
}

func (m BindingsModel) renderEditor() string {
	body := components.InfoRow("Editing", m.editInput) + "\n\n" +
		renderExpression(m.editor) + "\n\n" + renderEditorStatus(m.editor)
	return components.ActiveBox(body, m.width)
}

func (m BindingsModel) renderOutputs(a api.Analysis) string {
	if len(a.Outputs) == 0 {
		return ""
	}
	fields := make([]components.Field, 0, len(a.Outputs))
	for _, out := range a.Outputs {
		fields = append(fields, outputRow(out))
	}
	return components.Fields("Outputs", fields, m.width)
}

func outputRow(out api.Output) components.Field {
	switch {
	case out.Error != "":
		return components.Field{Label: out.Name, Value: out.Error, Color: string(ColorError)}
	case out.Value == nil:
		return components.Field{Label: out.Name, Value: "-", Color: string(ColorMuted)}
	}
	value := strconv.FormatFloat(*out.Value, 'g', -1, 64)
	if out.Unit != "" {
		value += " " + out.Unit
	}
	return components.Field{Label: out.Name, Value: value}
}

// kindColor tints the Kind column so references stand out from literals.
func kindColor(kind expr.BindingKind) string {
	switch kind {
	case expr.BindingReference:
		return string(ColorSecondary)
	case expr.BindingLookup:
		return string(ColorAccent)
	case expr.BindingLiteral:
		return string(ColorText)
	default:
		return string(ColorMuted)
	}
}

// statusSegments reports what the editor is doing for the status bar: the
// input being edited, a pending save, and the completion tab would accept.
func (m BindingsModel) statusSegments() []components.Segment {
	if !m.editing {
		return nil
	}
	segments := []components.Segment{components.State("editing "+m.editInput, string(ColorPrimary))}
	if m.saving {
		segments = append(segments, components.State("saving", string(ColorWarning)))
	}
	accept := "Accept"
	if ghost := m.editor.GhostText(); ghost != "" {
		accept += " " + ghost
	}
	return append(segments,
		components.Hint("tab", accept),
		components.Hint("enter", "Save"),
		components.Hint("esc", "Cancel"),
	)
}
