package ui

import (
	"strconv"

	tea "github.com/charmbracelet/bubbletea"
)

// --- Key Helpers ---

func isKey(msg tea.KeyMsg, keys ...string) bool {
	for _, k := range keys {
		if msg.String() == k {
			return true
		}
	}
	return false
}

func isQuit(msg tea.KeyMsg) bool {
	return isKey(msg, "q", "ctrl+c")
}

func isBack(msg tea.KeyMsg) bool {
	if msg.Type == tea.KeyEsc {
		return true
	}
	return isKey(msg, "esc", "escape", "ctrl+[")
}

func isUp(msg tea.KeyMsg) bool {
	return isKey(msg, "up")
}

func isDown(msg tea.KeyMsg) bool {
	return isKey(msg, "down")
}

func isEnter(msg tea.KeyMsg) bool {
	return isKey(msg, "enter", "return")
}

func isSpace(msg tea.KeyMsg) bool {
	return isKey(msg, " ")
}

// isAccept takes the ghost completion in the expression editor.
func isAccept(msg tea.KeyMsg) bool {
	return msg.Type == tea.KeyTab
}

// isTab reports whether msg selects the n-th tab (1-based).
func isTab(msg tea.KeyMsg, n int) bool {
	if n < 1 || n > 9 {
		return false
	}
	return isKey(msg, strconv.Itoa(n))
}

// typedText returns the literal text a key inserts, or "" for control keys.
func typedText(msg tea.KeyMsg) string {
	switch msg.Type {
	case tea.KeyRunes:
		return string(msg.Runes)
	case tea.KeySpace:
		return " "
	}
	return ""
}
