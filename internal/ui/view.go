// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/jeranaias/modeldeck/internal/app"
	"github.com/jeranaias/modeldeck/internal/chat"
	"github.com/jeranaias/modeldeck/internal/ops"
	"github.com/jeranaias/modeldeck/internal/transcript"
	"github.com/jeranaias/modeldeck/internal/ui/styles"
	"github.com/jeranaias/modeldeck/internal/util"
)

func newViewport(width, height int) viewport.Model {
	vp := viewport.New(width, height)
	vp.SetContent("")
	return vp
}

func newThemeFor(a *app.App, width, height int) *styles.Theme {
	t := styles.NewTheme(a.Theme.IsDark())
	t.SetSize(width, height)
	return t
}

// refreshViewport rebuilds the transcript view. followTail keeps the bottom
// pinned while a response streams in.
func (m *Model) refreshViewport(followTail bool) {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.renderTranscript())
	if followTail || m.viewport.AtBottom() {
		m.viewport.GotoBottom()
	}
}

// =============================================================================
// VIEW
// =============================================================================

// View renders the whole terminal frame.
func (m *Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	switch m.activeView {
	case viewPicker:
		return m.theme.PickerBox.Render(m.picker.View())
	case viewCatalog:
		return m.theme.PickerBox.Render(m.catalog.View())
	case viewConfirm:
		return m.renderConfirm()
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")

	if banner := m.renderBanner(); banner != "" {
		b.WriteString(banner)
		b.WriteString("\n")
	}

	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(m.renderInput())
	b.WriteString("\n")
	b.WriteString(m.renderStatus())
	return b.String()
}

func (m *Model) renderHeader() string {
	brand := m.theme.HeaderBrand.Render("modeldeck")
	model := m.app.ActiveModel()
	if model == "" {
		model = "no model selected"
	}
	title := brand + "  " + m.theme.StatusModel.Render(model)
	return m.theme.Header.Width(m.width).Render(title)
}

// renderBanner shows refresh warnings and operation progress.
func (m *Model) renderBanner() string {
	var lines []string

	for _, w := range m.app.Warnings() {
		lines = append(lines, m.theme.WarningBanner.Render(truncate(w, m.width-4)))
	}

	for _, op := range m.app.Tracker.Operations() {
		line := op.Name + ": " + util.CollapseWhitespace(op.State.Message)
		switch op.State.Phase {
		case ops.PhaseError:
			lines = append(lines, m.theme.ErrorText.Render(truncate(line, m.width-4)))
		case ops.PhaseActive:
			line = m.spinner.View() + " " + line
			lines = append(lines, m.theme.ProgressLine.Render(truncate(line, m.width-4)))
		default:
			lines = append(lines, m.theme.ProgressLine.Render(truncate(line, m.width-4)))
		}
	}

	return strings.Join(lines, "\n")
}

func (m *Model) renderInput() string {
	prompt := m.theme.InputPrompt.Render("> ")
	return m.theme.InputContainer.Width(m.width).Render(prompt + m.input.View())
}

func (m *Model) renderStatus() string {
	status := m.app.Status()
	if m.app.Engine.Active() {
		status = m.spinner.View() + " " + status
	}

	help := strings.Join([]string{
		m.theme.ShortcutKey.Render("ctrl+p") + m.theme.ShortcutDesc.Render(" models"),
		m.theme.ShortcutKey.Render("ctrl+b") + m.theme.ShortcutDesc.Render(" library"),
		m.theme.ShortcutKey.Render("esc") + m.theme.ShortcutDesc.Render(" stop"),
		m.theme.ShortcutKey.Render("ctrl+c") + m.theme.ShortcutDesc.Render(" quit"),
	}, "  ")

	left := truncate(status, m.width-lipgloss.Width(help)-3)
	gap := m.width - lipgloss.Width(left) - lipgloss.Width(help) - 2
	if gap < 1 {
		gap = 1
	}
	return m.theme.StatusBar.Width(m.width).Render(left + strings.Repeat(" ", gap) + help)
}

func (m *Model) renderConfirm() string {
	yes := m.theme.ConfirmNo.Render("Delete")
	no := m.theme.ConfirmNo.Render("Cancel")
	if m.confirmYes {
		yes = m.theme.ConfirmYes.Render("Delete")
	} else {
		no = m.theme.ConfirmYes.Render("Cancel")
	}

	box := m.theme.ConfirmBox.Render(
		m.confirmPrompt + "\n\n" + yes + "  " + no + "\n\n" +
			m.theme.ShortcutDesc.Render("y confirm • n cancel • enter choose"),
	)
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}

// =============================================================================
// TRANSCRIPT RENDERING
// =============================================================================

func (m *Model) renderTranscript() string {
	messages := m.app.Transcript.Messages()
	if len(messages) == 0 {
		return m.theme.SystemNote.Render("\n  Start a conversation, or press ctrl+p to pick a model.\n")
	}

	streaming := m.app.Transcript.Streaming()

	var b strings.Builder
	for i, msg := range messages {
		isTail := i == len(messages)-1
		b.WriteString(m.renderMessage(msg, streaming && isTail))
		b.WriteString("\n")
	}
	return b.String()
}

func (m *Model) renderMessage(msg transcript.Message, streamingTail bool) string {
	switch msg.Role {
	case transcript.RoleSystem:
		return m.theme.SystemNote.Render("— " + msg.Content + " —") + "\n"

	case transcript.RoleUser:
		label := m.theme.UserLabel.Render("You")
		body := m.theme.MessageBody.Render(msg.Content)
		if n := len(msg.Images); n > 0 {
			body += m.theme.SystemNote.Render("\n[" + imageSummary(msg.Images, n) + "]")
		}
		return label + "\n" + body + "\n"

	default:
		label := m.theme.AssistantLabel.Render(msg.Model)
		if msg.Model == "" {
			label = m.theme.AssistantLabel.Render("Assistant")
		}
		return label + "\n" + m.renderAssistantBody(msg.Content, streamingTail) + "\n"
	}
}

// renderAssistantBody renders markdown for settled messages; the streaming
// tail stays plain so every token repaint is cheap.
func (m *Model) renderAssistantBody(content string, streamingTail bool) string {
	marker := ""
	if stripped, found := strings.CutSuffix(content, chat.StopMarker); found {
		content = stripped
		marker = "\n" + m.theme.StopMarker.Render("[Response stopped by user]")
	}

	if streamingTail || m.renderer == nil {
		return m.theme.MessageBody.Render(content) + marker
	}

	rendered, err := m.renderer.Render(content)
	if err != nil {
		return m.theme.MessageBody.Render(content) + marker
	}
	return strings.TrimRight(rendered, "\n") + marker
}

func imageSummary(images []transcript.Attachment, n int) string {
	if n == 1 {
		return images[0].Filename
	}
	names := make([]string, n)
	for i, img := range images {
		names[i] = img.Filename
	}
	return strings.Join(names, ", ")
}

// truncate clips to terminal cell width, multibyte-safe.
func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	return runewidth.Truncate(s, width, "...")
}
