// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
)

// Commands run the blocking app operations on their own goroutines and
// settle back into the update loop as messages. Progress along the way
// arrives separately through Signal.

func (m *Model) refreshCmd() tea.Cmd {
	return func() tea.Msg {
		return refreshDoneMsg{err: m.app.RefreshModels(context.Background())}
	}
}

func (m *Model) sendCmd(text string) tea.Cmd {
	return func() tea.Msg {
		return sendDoneMsg{err: m.app.SendMessage(context.Background(), text)}
	}
}

func (m *Model) pullCmd(name string) tea.Cmd {
	return func() tea.Msg {
		return pullDoneMsg{name: name, err: m.app.PullModel(context.Background(), name)}
	}
}

func (m *Model) confirmDeleteCmd(accepted bool) tea.Cmd {
	return func() tea.Msg {
		return deleteDoneMsg{err: m.app.ConfirmDelete(context.Background(), accepted)}
	}
}
