// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

// =============================================================================
// MESSAGES
// =============================================================================

// stateChangedMsg signals that application state changed outside the update
// loop (stream token, pull progress, background refresh) and the view should
// rebuild.
type stateChangedMsg struct{}

// refreshDoneMsg settles a model refresh command.
type refreshDoneMsg struct{ err error }

// sendDoneMsg settles a chat send command.
type sendDoneMsg struct{ err error }

// pullDoneMsg settles a pull command.
type pullDoneMsg struct {
	name string
	err  error
}

// deleteDoneMsg settles a confirmed delete.
type deleteDoneMsg struct{ err error }

// =============================================================================
// PROGRAM BRIDGE
// =============================================================================

// The app core signals state changes from its own goroutines; they reach the
// update loop through the running program reference.
var (
	programMu  sync.Mutex
	programRef *tea.Program
)

// SetProgram registers the running program so Signal can reach it.
func SetProgram(p *tea.Program) {
	programMu.Lock()
	programRef = p
	programMu.Unlock()
}

// Signal wakes the update loop. Safe to call before the program starts.
func Signal() {
	programMu.Lock()
	p := programRef
	programMu.Unlock()
	if p != nil {
		p.Send(stateChangedMsg{})
	}
}
