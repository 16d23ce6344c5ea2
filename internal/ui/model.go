// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ui is the Bubble Tea front end: chat view, model picker, library
// catalog, and delete confirmation, all driving the app core.
package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/modeldeck/internal/app"
	"github.com/jeranaias/modeldeck/internal/registry"
	"github.com/jeranaias/modeldeck/internal/ui/styles"
)

// =============================================================================
// VIEWS
// =============================================================================

// view identifies which surface has focus.
type view int

const (
	viewChat view = iota
	viewPicker
	viewCatalog
	viewConfirm
)

// =============================================================================
// LIST ITEMS
// =============================================================================

// modelItem adapts a registry descriptor for the picker list.
type modelItem struct{ d registry.Descriptor }

func (i modelItem) Title() string { return i.d.Name }
func (i modelItem) Description() string {
	label := i.d.ProvenanceLabel()
	if i.d.Description == "" {
		return label
	}
	return label + " • " + i.d.Description
}
func (i modelItem) FilterValue() string { return i.d.Name + " " + i.d.Description }

// catalogItem adapts a catalog entry for the browse list.
type catalogItem struct{ e registry.CatalogEntry }

func (i catalogItem) Title() string { return i.e.Name }
func (i catalogItem) Description() string {
	var parts []string
	if i.e.Description != "" {
		parts = append(parts, i.e.Description)
	}
	if i.e.ParameterSize != "" {
		parts = append(parts, i.e.ParameterSize)
	}
	if i.e.Pulls > 0 {
		parts = append(parts, fmt.Sprintf("%d pulls", i.e.Pulls))
	}
	if len(i.e.Tags) > 0 {
		parts = append(parts, strings.Join(i.e.Tags, ", "))
	}
	if len(parts) == 0 {
		return "library model"
	}
	return strings.Join(parts, " • ")
}
func (i catalogItem) FilterValue() string {
	return i.e.Name + " " + i.e.Description + " " + strings.Join(i.e.Tags, " ")
}

// =============================================================================
// MODEL
// =============================================================================

// Model is the Bubble Tea model for the whole TUI.
type Model struct {
	app   *app.App
	theme *styles.Theme
	keys  KeyMap

	width  int
	height int
	ready  bool

	activeView view

	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model
	picker   list.Model
	catalog  list.Model

	renderer *glamour.TermRenderer

	// confirmYes tracks the highlighted button in the delete prompt.
	confirmYes bool
	// confirmPrompt is the staged delete question.
	confirmPrompt string
}

// New creates the TUI over an assembled app core.
func New(a *app.App) *Model {
	theme := styles.NewTheme(a.Theme.IsDark())

	input := textinput.New()
	input.Placeholder = "Ask anything... (ctrl+p models, ctrl+b library)"
	input.Prompt = ""
	input.Focus()
	input.CharLimit = 8192

	sp := spinner.New()
	sp.Spinner = spinner.Line
	sp.Style = theme.Spinner

	picker := newListModel("Models", theme)
	catalog := newListModel("Model Library", theme)

	return &Model{
		app:     a,
		theme:   theme,
		keys:    DefaultKeyMap(),
		input:   input,
		spinner: sp,
		picker:  picker,
		catalog: catalog,
	}
}

func newListModel(title string, theme *styles.Theme) list.Model {
	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.
		Foreground(styles.Purple).
		BorderForeground(styles.Purple)
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.
		Foreground(styles.TextSecondary).
		BorderForeground(styles.Purple)

	l := list.New(nil, delegate, 0, 0)
	l.Title = title
	l.Styles.Title = theme.PickerTitle
	l.SetShowStatusBar(false)
	l.SetShowHelp(true)
	return l
}

// Init starts the spinner and the initial model refresh.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.refreshCmd())
}

// rebuildRenderer recreates the markdown renderer for the current width and
// theme.
func (m *Model) rebuildRenderer() {
	style := "light"
	if m.theme.IsDark {
		style = "dark"
	}

	width := m.width - 4
	if width < 20 {
		width = 20
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		m.renderer = nil
		return
	}
	m.renderer = renderer
}

// syncLists feeds the current registry snapshots into both lists.
func (m *Model) syncLists() {
	models := m.app.Registry.Models()
	items := make([]list.Item, len(models))
	for i, d := range models {
		items[i] = modelItem{d}
	}
	m.picker.SetItems(items)

	entries := m.app.Registry.CatalogForDisplay("")
	catalogItems := make([]list.Item, len(entries))
	for i, e := range entries {
		catalogItems[i] = catalogItem{e}
	}
	m.catalog.SetItems(catalogItems)
}
