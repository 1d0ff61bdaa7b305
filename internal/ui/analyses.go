package ui

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/gravitrone/portal-cli/internal/api"
	"github.com/gravitrone/portal-cli/internal/store"
	"github.com/gravitrone/portal-cli/internal/ui/components"
)

// --- Messages ---

type analysesLoadedMsg struct{}

type analysisCreatedMsg struct {
	analysis api.Analysis
}

type analysisDeletedMsg struct {
	id   string
	name string
}

type openAnalysisMsg struct {
	id string
}

var statusCaser = cases.Title(language.English)

// statusLabel renders a computation status for display.
func statusLabel(status string) string {
	if status == "" {
		return "-"
	}
	return statusCaser.String(status)
}

// --- Analyses Model ---

// AnalysesModel lists the cached analyses and creates or deletes them.
type AnalysesModel struct {
	client *api.Client
	store  *store.Store
	list   *components.List
	items  []api.Analysis

	loading       bool
	creating      bool
	nameBuf       string
	nameProblem   string
	confirmDelete bool

	width  int
	height int
}

// NewAnalysesModel creates the analyses list view.
func NewAnalysesModel(client *api.Client, st *store.Store) AnalysesModel {
	return AnalysesModel{
		client: client,
		store:  st,
		list:   components.NewList(12),
	}
}

func (m AnalysesModel) Init() tea.Cmd {
	if m.store == nil {
		return nil
	}
	st := m.store
	return func() tea.Msg {
		if err := st.Refresh(); err != nil {
			return errMsg{fmt.Errorf("load analyses: %w", err)}
		}
		return analysesLoadedMsg{}
	}
}

func (m AnalysesModel) Update(msg tea.Msg) (AnalysesModel, tea.Cmd) {
	switch msg := msg.(type) {
	case analysesLoadedMsg:
		m.loading = false
		m.sync()
		return m, nil
	case storeChangedMsg:
		m.sync()
		return m, nil
	case errMsg:
		m.loading = false
		return m, nil
	case analysisCreatedMsg:
		m.store.Upsert(msg.analysis)
		m.sync()
		m.selectID(msg.analysis.ID)
		return m, nil
	case analysisDeletedMsg:
		m.store.Delete(msg.id)
		m.sync()
		return m, nil
	case tea.KeyMsg:
		switch {
		case m.creating:
			return m.handleCreateKeys(msg)
		case m.confirmDelete:
			return m.handleDeleteKeys(msg)
		}
		return m.handleListKeys(msg)
	}
	return m, nil
}

// Capturing reports whether a dialog owns the keyboard.
func (m AnalysesModel) Capturing() bool {
	return m.creating || m.confirmDelete
}

func (m *AnalysesModel) sync() {
	if m.store == nil {
		return
	}
	m.items = m.store.List()
	labels := make([]string, len(m.items))
	for i, a := range m.items {
		labels[i] = a.Name
	}
	m.list.Sync(labels)
}

func (m *AnalysesModel) selectID(id string) {
	for i, a := range m.items {
		if a.ID != id {
			continue
		}
		for m.list.Selected() < i {
			m.list.Down()
		}
		for m.list.Selected() > i {
			m.list.Up()
		}
		return
	}
}

func (m AnalysesModel) selected() (api.Analysis, bool) {
	idx := m.list.Selected()
	if idx < 0 || idx >= len(m.items) {
		return api.Analysis{}, false
	}
	return m.items[idx], true
}

func (m AnalysesModel) handleListKeys(msg tea.KeyMsg) (AnalysesModel, tea.Cmd) {
	switch {
	case isDown(msg):
		m.list.Down()
	case isUp(msg):
		m.list.Up()
	case isEnter(msg), isSpace(msg):
		if a, ok := m.selected(); ok {
			id := a.ID
			return m, func() tea.Msg { return openAnalysisMsg{id: id} }
		}
	case isKey(msg, "n"):
		m.creating = true
		m.nameBuf = ""
		m.nameProblem = ""
	case isKey(msg, "d"):
		if _, ok := m.selected(); ok {
			m.confirmDelete = true
		}
	case isKey(msg, "r"):
		m.loading = true
		return m, m.Init()
	}
	return m, nil
}

func (m AnalysesModel) handleCreateKeys(msg tea.KeyMsg) (AnalysesModel, tea.Cmd) {
	switch {
	case isBack(msg):
		m.creating = false
		m.nameBuf = ""
	case isEnter(msg):
		name := strings.TrimSpace(m.nameBuf)
		if name == "" {
			m.nameProblem = "a name is required"
			return m, nil
		}
		m.creating = false
		m.nameBuf = ""
		return m, m.createCmd(name)
	case isKey(msg, "backspace"):
		if m.nameBuf != "" {
			runes := []rune(m.nameBuf)
			m.nameBuf = string(runes[:len(runes)-1])
		}
	default:
		m.nameBuf += typedText(msg)
		m.nameProblem = ""
	}
	return m, nil
}

func (m AnalysesModel) handleDeleteKeys(msg tea.KeyMsg) (AnalysesModel, tea.Cmd) {
	switch {
	case isKey(msg, "y"):
		m.confirmDelete = false
		if a, ok := m.selected(); ok {
			return m, m.deleteCmd(a.ID, a.Name)
		}
	case isKey(msg, "n"), isBack(msg):
		m.confirmDelete = false
	}
	return m, nil
}

func (m AnalysesModel) createCmd(name string) tea.Cmd {
	client := m.client
	return func() tea.Msg {
		if client == nil {
			return errMsg{errors.New("create analysis: not connected")}
		}
		a, err := client.CreateAnalysis(api.CreateAnalysisInput{Name: name})
		if err != nil {
			return errMsg{fmt.Errorf("create analysis: %w", err)}
		}
		return analysisCreatedMsg{analysis: *a}
	}
}

func (m AnalysesModel) deleteCmd(id, name string) tea.Cmd {
	client := m.client
	return func() tea.Msg {
		if client == nil {
			return errMsg{errors.New("delete analysis: not connected")}
		}
		if err := client.DeleteAnalysis(id); err != nil && !api.IsNotFound(err) {
			return errMsg{fmt.Errorf("delete analysis: %w", err)}
		}
		return analysisDeletedMsg{id: id, name: name}
	}
}

// --- View ---

func (m AnalysesModel) View() string {
	if m.creating {
		return components.Indent(components.NameDialog(m.nameBuf, m.nameProblem, m.width), 1)
	}
	if m.confirmDelete {
		if a, ok := m.selected(); ok {
			fields := []components.Field{
				{Label: "Name", Value: a.Name},
				{Label: "ID", Value: a.ID},
				{Label: "Inputs", Value: strconv.Itoa(len(a.Bindings))},
				{Label: "Status", Value: statusLabel(a.ComputationStatus), Color: statusColor(a.ComputationStatus)},
			}
			return components.Indent(components.DeleteDialog(fields, len(a.Outputs), m.width), 1)
		}
	}
	if m.loading && len(m.items) == 0 {
		return components.CenterLine(MutedStyle.Render("Loading analyses..."), m.width)
	}
	if len(m.items) == 0 {
		return components.Indent(components.Box(MutedStyle.Render("No analyses yet. Press n to create one."), m.width), 1)
	}

	tableWidth := components.BoxContentWidth(m.width)
	if tableWidth <= 0 {
		tableWidth = 72
	}
	cols := []components.GridColumn{
		{Header: "Name", Width: 24},
		{Header: "Status", Width: 11},
		{Header: "Inputs", Width: 6, Align: lipgloss.Right},
		{Header: "Updated", Width: 16},
	}
	rows := make([][]components.GridCell, 0, m.list.PageSize)
	active := -1
	for rel := range m.list.Visible() {
		i := m.list.RelToAbs(rel)
		if i >= len(m.items) {
			break
		}
		a := m.items[i]
		updated := "-"
		if !a.UpdatedAt.IsZero() {
			updated = a.UpdatedAt.Local().Format("2006-01-02 15:04")
		}
		rows = append(rows, []components.GridCell{
			components.Cell(a.Name),
			components.Tinted(statusLabel(a.ComputationStatus), statusColor(a.ComputationStatus)),
			components.Cell(strconv.Itoa(len(a.Bindings))),
			components.Tinted(updated, string(ColorMuted)),
		})
		if m.list.IsSelected(i) {
			active = len(rows) - 1
		}
	}

	countLine := fmt.Sprintf("%d total", len(m.items))
	if m.store.Stale() {
		countLine += " · refreshing"
	}
	content := MutedStyle.Render(countLine) + "\n\n" + components.Grid(cols, rows, tableWidth, active)
	return components.Indent(components.TitledBox("Analyses", content, m.width), 1)
}
