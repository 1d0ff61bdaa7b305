package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/gravitrone/portal-cli/internal/api"
	"github.com/gravitrone/portal-cli/internal/binding"
	"github.com/gravitrone/portal-cli/internal/config"
	"github.com/gravitrone/portal-cli/internal/realtime"
	"github.com/gravitrone/portal-cli/internal/store"
	"github.com/gravitrone/portal-cli/internal/suggest"
	"github.com/gravitrone/portal-cli/internal/ui/components"
)

// --- Tab Constants ---

const (
	tabAnalyses = 0
	tabBindings = 1
	tabCount    = 2
)

var tabNames = []string{"Analyses", "Bindings"}

// --- Messages ---

type errMsg struct{ err error }
type clearToastMsg struct{}

type appToast struct {
	level string
	text  string
}

// Deps are the session services the TUI drives. Live may be nil when
// realtime updates are disabled.
type Deps struct {
	Client   *api.Client
	Config   *config.Config
	Store    *store.Store
	Bindings *binding.Controller
	Engine   *suggest.Engine
	Live     *realtime.Client
}

// --- App Model ---

// App is the root TUI model that routes between tabs.
type App struct {
	config *config.Config
	store  *store.Store
	engine *suggest.Engine
	live   *realtime.Client

	storeCh chan uint64
	ghostCh chan suggest.Ghost
	liveCh  chan realtime.State

	tab         int
	width       int
	height      int
	err         string
	helpOpen    bool
	quitConfirm bool
	liveState   realtime.State
	toast       *appToast

	analyses AnalysesModel
	bindings BindingsModel
}

// NewApp creates the root application model and subscribes it to the
// store, the suggestion engine and the realtime connection.
func NewApp(deps Deps) App {
	a := App{
		config:   deps.Config,
		store:    deps.Store,
		engine:   deps.Engine,
		live:     deps.Live,
		tab:      tabAnalyses,
		analyses: NewAnalysesModel(deps.Client, deps.Store),
		bindings: NewBindingsModel(deps.Client, deps.Store, deps.Bindings, deps.Engine),
	}
	a.analyses.loading = true
	if deps.Store != nil {
		a.storeCh = deps.Store.Subscribe()
	}
	if deps.Engine != nil {
		a.ghostCh = deps.Engine.Subscribe()
	}
	if deps.Live != nil {
		a.liveCh = deps.Live.Subscribe()
		a.liveState = deps.Live.State()
	}
	return a
}

// Close releases the subscriptions taken by NewApp.
func (a App) Close() {
	if a.store != nil && a.storeCh != nil {
		a.store.Unsubscribe(a.storeCh)
	}
	if a.engine != nil && a.ghostCh != nil {
		a.engine.Unsubscribe(a.ghostCh)
	}
	if a.live != nil && a.liveCh != nil {
		a.live.Unsubscribe(a.liveCh)
	}
}

func (a App) Init() tea.Cmd {
	return tea.Batch(
		a.analyses.Init(),
		waitForStore(a.storeCh),
		waitForGhost(a.ghostCh),
		waitForLive(a.liveCh),
	)
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.analyses.width = msg.Width
		a.analyses.height = msg.Height
		a.bindings.width = msg.Width
		a.bindings.height = msg.Height
		return a, nil

	case errMsg:
		a.err = msg.err.Error()
		a.analyses, _ = a.analyses.Update(msg)
		return a, nil
	case clearToastMsg:
		a.toast = nil
		return a, nil

	case storeChangedMsg:
		var c1, c2 tea.Cmd
		a.analyses, c1 = a.analyses.Update(msg)
		a.bindings, c2 = a.bindings.Update(msg)
		return a, tea.Batch(c1, c2, waitForStore(a.storeCh))
	case ghostChangedMsg:
		return a, waitForGhost(a.ghostCh)
	case liveStateMsg:
		prev := a.liveState
		a.liveState = msg.state
		toast := a.liveToast(prev, msg.state)
		return a, tea.Batch(toast, waitForLive(a.liveCh))

	case openAnalysisMsg:
		a.bindings = a.bindings.Open(msg.id)
		a.tab = tabBindings
		return a, a.bindings.Init()

	case tea.KeyMsg:
		if a.quitConfirm {
			switch {
			case isKey(msg, "y"):
				return a, tea.Quit
			case isKey(msg, "n"), isBack(msg):
				a.quitConfirm = false
			}
			return a, nil
		}
		if a.helpOpen {
			if isBack(msg) || isKey(msg, "?") {
				a.helpOpen = false
			}
			return a, nil
		}
		if a.err != "" {
			a.err = ""
		}
		if a.capturingInput() {
			if isKey(msg, "ctrl+c") {
				return a.quit()
			}
			return a.delegateKey(msg)
		}

		// Global keys
		if isKey(msg, "?") {
			a.helpOpen = true
			return a, nil
		}
		if isQuit(msg) {
			return a.quit()
		}
		for i := 0; i < tabCount; i++ {
			if isTab(msg, i+1) {
				a.tab = i
				return a, nil
			}
		}
		if a.tab == tabBindings && isBack(msg) {
			a.tab = tabAnalyses
			return a, nil
		}
		return a.delegateKey(msg)
	}

	// Everything else goes to both views; each ignores what it does not own.
	var c1, c2 tea.Cmd
	a.analyses, c1 = a.analyses.Update(msg)
	a.bindings, c2 = a.bindings.Update(msg)
	toast := a.toastCmdForMsg(msg)
	return a, tea.Batch(c1, c2, toast)
}

func (a App) delegateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch a.tab {
	case tabAnalyses:
		a.analyses, cmd = a.analyses.Update(msg)
	case tabBindings:
		a.bindings, cmd = a.bindings.Update(msg)
	}
	return a, cmd
}

func (a App) quit() (tea.Model, tea.Cmd) {
	if a.hasUnsaved() {
		a.quitConfirm = true
		return a, nil
	}
	return a, tea.Quit
}

// capturingInput reports whether the active view is taking free text, in
// which case global single-letter keys must not fire.
func (a App) capturingInput() bool {
	switch a.tab {
	case tabAnalyses:
		return a.analyses.Capturing()
	case tabBindings:
		return a.bindings.Editing()
	}
	return false
}

func (a App) hasUnsaved() bool {
	return a.bindings.Unsaved() || (a.analyses.creating && strings.TrimSpace(a.analyses.nameBuf) != "")
}

func (a App) View() string {
	banner := centerBlockUniform(RenderBanner(), a.width)
	tabs := centerBlockUniform(a.renderTabs(), a.width)

	var content string
	switch {
	case a.quitConfirm:
		content = a.renderQuitConfirm()
	case a.helpOpen:
		content = a.renderHelp()
	case a.tab == tabBindings:
		content = a.bindings.View()
	default:
		content = a.analyses.View()
	}
	content = centerBlockUniform(content, a.width)

	hints := components.StatusBar(a.statusHints(), a.width)

	feedback := ""
	if a.err != "" {
		feedback = "\n\n" + centerBlockUniform(components.ErrorBox("Error", a.err, a.width), a.width)
	} else if a.toast != nil {
		feedback = "\n\n" + centerBlockUniform(a.renderToast(), a.width)
	}

	return fmt.Sprintf("%s\n%s\n\n%s\n\n\n%s%s", banner, tabs, content, hints, feedback)
}

func (a App) renderTabs() string {
	segments := make([]string, 0, len(tabNames)+1)
	for i, name := range tabNames {
		if i == a.tab {
			segments = append(segments, TabActiveStyle.Render(name))
		} else {
			segments = append(segments, TabInactiveStyle.Render(name))
		}
	}
	segments = append(segments, a.renderLive())
	if a.config != nil && a.config.Username != "" {
		segments = append(segments, MutedStyle.Render("@"+components.SanitizeOneLine(a.config.Username)))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, segments...)
}

// renderLive shows the realtime connection state next to the tabs.
func (a App) renderLive() string {
	if a.live == nil {
		return TabInactiveStyle.Render("○ offline")
	}
	state := a.liveState.String()
	dot := "○"
	if a.liveState == realtime.Connected {
		dot = "●"
	}
	style := lipgloss.NewStyle().Foreground(lipgloss.Color(statusColor(state))).Padding(0, 1)
	return style.Render(dot + " " + state)
}

func (a App) statusHints() []components.Segment {
	if a.quitConfirm {
		return []components.Segment{
			components.Hint("y", "Quit"),
			components.Hint("n", "Stay"),
		}
	}
	if a.helpOpen {
		return []components.Segment{
			components.Hint("esc", "Back"),
		}
	}
	return a.statusHintsForTab()
}

func (a App) statusHintsForTab() []components.Segment {
	base := []components.Segment{
		components.Hint("1-2", "Tabs"),
		components.Hint("?", "Help"),
		components.Hint("q", "Quit"),
	}

	switch a.tab {
	case tabAnalyses:
		switch {
		case a.analyses.creating:
			return []components.Segment{
				components.Hint("enter", "Create"),
				components.Hint("esc", "Cancel"),
			}
		case a.analyses.confirmDelete:
			return []components.Segment{
				components.Hint("y", "Delete"),
				components.Hint("n", "Keep"),
			}
		}
		return append(base,
			components.Hint("↑/↓", "Select"),
			components.Hint("enter", "Bindings"),
			components.Hint("n", "New"),
			components.Hint("d", "Delete"),
			components.Hint("r", "Refresh"),
		)
	case tabBindings:
		if a.bindings.Editing() {
			return a.bindings.statusSegments()
		}
		return append(base,
			components.Hint("↑/↓", "Select"),
			components.Hint("enter", "Edit"),
			components.Hint("e", "Evaluate"),
			components.Hint("r", "Refresh"),
			components.Hint("esc", "Back"),
		)
	}
	return base
}

func (a App) renderHelp() string {
	hints := a.statusHintsForTab()
	lines := make([]string, 0, len(hints)+4)
	lines = append(lines, MutedStyle.Render("esc to close"))
	lines = append(lines, "")
	for _, hint := range hints {
		lines = append(lines, "  "+hint.Render())
	}
	lines = append(lines, "", MutedStyle.Render("In an expression, #CODE.property references another entity."))
	body := strings.Join(lines, "\n")
	return components.Indent(components.TitledBox("Help", body, a.width), 1)
}

func (a App) renderQuitConfirm() string {
	input := ""
	if a.bindings.Unsaved() {
		input = a.bindings.editInput
	}
	return components.Indent(components.DiscardDialog(input, a.width), 1)
}

func (a *App) setToast(level, text string) tea.Cmd {
	a.toast = &appToast{
		level: level,
		text:  components.SanitizeOneLine(text),
	}
	return tea.Tick(2500*time.Millisecond, func(time.Time) tea.Msg {
		return clearToastMsg{}
	})
}

func (a App) renderToast() string {
	if a.toast == nil {
		return ""
	}
	title := "Info"
	switch a.toast.level {
	case "success":
		title = "Success"
	case "warning":
		title = "Warning"
	case "error":
		return components.ErrorBox("Error", a.toast.text, a.width)
	}
	return components.TitledBox(title, a.toast.text, a.width)
}

func (a *App) toastCmdForMsg(msg tea.Msg) tea.Cmd {
	var level, text string
	switch msg := msg.(type) {
	case analysisCreatedMsg:
		level, text = "success", fmt.Sprintf("Analysis %q created.", msg.analysis.Name)
	case analysisDeletedMsg:
		level, text = "success", fmt.Sprintf("Analysis %q deleted.", msg.name)
	case analysisEvaluatedMsg:
		level, text = "success", "Evaluation finished: "+statusLabel(msg.analysis.ComputationStatus)+"."
	case bindingSavedMsg:
		if msg.err != nil {
			level, text = "error", msg.err.Error()
		} else {
			level, text = "success", fmt.Sprintf("Saved %s.", msg.input)
		}
	}
	if text == "" {
		return nil
	}
	return a.setToast(level, text)
}

func (a *App) liveToast(prev, next realtime.State) tea.Cmd {
	switch {
	case next == realtime.Reconnecting && prev == realtime.Connected:
		return a.setToast("warning", "Live updates lost, reconnecting.")
	case next == realtime.Connected && prev == realtime.Reconnecting:
		return a.setToast("success", "Live updates restored.")
	case next == realtime.Disconnected && prev != realtime.Disconnected:
		return a.setToast("warning", "Live updates stopped.")
	}
	return nil
}

func centerBlockUniform(s string, width int) string {
	if width <= 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	maxWidth := 0
	for _, line := range lines {
		w := lipgloss.Width(line)
		if w > maxWidth {
			maxWidth = w
		}
	}
	if maxWidth <= 0 || maxWidth >= width {
		return s
	}
	pad := (width - maxWidth) / 2
	if pad <= 0 {
		return s
	}
	prefix := strings.Repeat(" ", pad)
	for i := range lines {
		if lines[i] != "" {
			lines[i] = prefix + lines[i]
		}
	}
	return strings.Join(lines, "\n")
}
