package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/gravitrone/portal-cli/internal/realtime"
	"github.com/gravitrone/portal-cli/internal/suggest"
)

// Subscription channels are drained one value per command; the handler for
// each message re-arms the wait.

type storeChangedMsg struct{ version uint64 }
type ghostChangedMsg struct{ ghost suggest.Ghost }
type liveStateMsg struct{ state realtime.State }

func waitForStore(ch chan uint64) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		v, ok := <-ch
		if !ok {
			return nil
		}
		return storeChangedMsg{version: v}
	}
}

func waitForGhost(ch chan suggest.Ghost) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		g, ok := <-ch
		if !ok {
			return nil
		}
		return ghostChangedMsg{ghost: g}
	}
}

func waitForLive(ch chan realtime.State) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		s, ok := <-ch
		if !ok {
			return nil
		}
		return liveStateMsg{state: s}
	}
}
