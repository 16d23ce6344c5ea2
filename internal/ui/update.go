// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// chromeRows is the vertical space taken by header, banner area, input, and
// status bar around the transcript viewport.
const chromeRows = 7

// Update is the Bubble Tea update loop.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.theme.SetSize(msg.Width, msg.Height)
		m.rebuildRenderer()

		vpHeight := msg.Height - chromeRows
		if vpHeight < 3 {
			vpHeight = 3
		}
		if !m.ready {
			m.viewport = newViewport(msg.Width, vpHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = vpHeight
		}
		m.input.Width = msg.Width - 6
		m.picker.SetSize(msg.Width-4, msg.Height-4)
		m.catalog.SetSize(msg.Width-4, msg.Height-4)

		m.refreshViewport(false)
		return m, nil

	case stateChangedMsg:
		m.syncLists()
		m.refreshViewport(m.app.Transcript.Streaming())
		return m, nil

	case refreshDoneMsg:
		m.syncLists()
		m.refreshViewport(false)
		return m, nil

	case sendDoneMsg, pullDoneMsg, deleteDoneMsg:
		m.syncLists()
		m.refreshViewport(false)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m.updateFocused(msg)
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		return m, tea.Quit
	}

	switch m.activeView {
	case viewPicker:
		return m.handlePickerKey(msg)
	case viewCatalog:
		return m.handleCatalogKey(msg)
	case viewConfirm:
		return m.handleConfirmKey(msg)
	default:
		return m.handleChatKey(msg)
	}
}

// =============================================================================
// CHAT VIEW
// =============================================================================

func (m *Model) handleChatKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	streaming := m.app.Engine.Active()

	switch {
	case key.Matches(msg, m.keys.Stop):
		if streaming {
			m.app.StopStreaming()
		}
		return m, nil

	case key.Matches(msg, m.keys.ModelPicker):
		m.syncLists()
		m.activeView = viewPicker
		return m, nil

	case key.Matches(msg, m.keys.Catalog):
		m.syncLists()
		m.activeView = viewCatalog
		return m, nil

	case key.Matches(msg, m.keys.Refresh):
		return m, m.refreshCmd()

	case key.Matches(msg, m.keys.ClearChat):
		if !streaming {
			m.app.ClearTranscript()
			m.refreshViewport(false)
		}
		return m, nil

	case key.Matches(msg, m.keys.ToggleTheme):
		m.app.Theme.Toggle()
		m.theme = newThemeFor(m.app, m.width, m.height)
		m.rebuildRenderer()
		m.refreshViewport(false)
		return m, nil

	case key.Matches(msg, m.keys.Send):
		text := m.input.Value()
		if streaming || text == "" {
			return m, nil
		}
		m.input.Reset()
		return m, m.sendCmd(text)
	}

	return m.updateFocused(msg)
}

// updateFocused routes remaining messages to the focused components.
func (m *Model) updateFocused(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	switch m.activeView {
	case viewChat:
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)
	case viewPicker:
		m.picker, cmd = m.picker.Update(msg)
		cmds = append(cmds, cmd)
	case viewCatalog:
		m.catalog, cmd = m.catalog.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// =============================================================================
// MODEL PICKER
// =============================================================================

func (m *Model) handlePickerKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// While the list filter is typing, every key belongs to it.
	if m.picker.FilterState() == list.Filtering {
		return m.updateFocused(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Back):
		m.activeView = viewChat
		return m, nil

	case key.Matches(msg, m.keys.Send):
		if item, ok := m.picker.SelectedItem().(modelItem); ok {
			if err := m.app.SelectModel(item.d.Name); err == nil {
				m.activeView = viewChat
			}
		}
		return m, nil

	case key.Matches(msg, m.keys.Delete):
		if item, ok := m.picker.SelectedItem().(modelItem); ok {
			prompt, err := m.app.RequestDelete(item.d.Name)
			if err == nil {
				m.confirmPrompt = prompt
				m.confirmYes = false
				m.activeView = viewConfirm
			}
		}
		return m, nil
	}

	return m.updateFocused(msg)
}

// =============================================================================
// CATALOG
// =============================================================================

func (m *Model) handleCatalogKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.catalog.FilterState() == list.Filtering {
		return m.updateFocused(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Back):
		m.activeView = viewChat
		return m, nil

	case key.Matches(msg, m.keys.Send):
		if item, ok := m.catalog.SelectedItem().(catalogItem); ok {
			m.activeView = viewChat
			return m, m.pullCmd(item.e.Name)
		}
		return m, nil
	}

	return m.updateFocused(msg)
}

// =============================================================================
// DELETE CONFIRMATION
// =============================================================================

func (m *Model) handleConfirmKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "left", "right", "tab", "h", "l":
		m.confirmYes = !m.confirmYes
		return m, nil
	case "y":
		m.activeView = viewChat
		return m, m.confirmDeleteCmd(true)
	case "n", "esc":
		m.activeView = viewChat
		return m, m.confirmDeleteCmd(false)
	case "enter":
		m.activeView = viewChat
		return m, m.confirmDeleteCmd(m.confirmYes)
	}
	return m, nil
}
