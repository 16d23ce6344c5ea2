// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package repl is the plain line-oriented front end, used when the terminal
// cannot host the full-screen TUI or when the user asks for it explicitly.
package repl

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/peterh/liner"

	"github.com/jeranaias/modeldeck/internal/app"
	"github.com/jeranaias/modeldeck/internal/config"
	"github.com/jeranaias/modeldeck/internal/ops"
	"github.com/jeranaias/modeldeck/internal/transcript"
)

const helpText = `Commands:
  /models           list available models
  /model NAME       switch the active model
  /pull NAME        download a model
  /rm NAME          delete a model (asks for confirmation)
  /image PATH...    attach images to the next message
  /history [N]      show the last N transcript turns (default 10)
  /clear            clear the conversation
  /temp VALUE       set sampling temperature
  /tokens N         set the generation cap
  /theme            toggle light/dark
  /help             this help
  /quit             exit

Anything else is sent to the active model. Ctrl-C stops a streaming
response.`

// REPL drives the app core through a readline loop.
type REPL struct {
	app *app.App
}

// New creates a REPL front end.
func New(a *app.App) *REPL {
	return &REPL{app: a}
}

// Run blocks until the user exits.
func (r *REPL) Run(ctx context.Context) error {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)
	r.installCompleter(line)

	historyPath := filepath.Join(config.DataDir(), "repl_history")
	if f, err := os.Open(historyPath); err == nil {
		line.ReadHistory(f)
		f.Close()
	}
	defer func() {
		if f, err := os.Create(historyPath); err == nil {
			line.WriteHistory(f)
			f.Close()
		}
	}()

	r.app.SetTokenListener(func(token string) { fmt.Print(token) })
	defer r.app.SetTokenListener(nil)

	fmt.Println("modeldeck — type /help for commands")
	r.printWarnings()

	for {
		model := r.app.ActiveModel()
		if model == "" {
			model = "no model"
		}

		input, err := line.Prompt(model + "> ")
		if err != nil {
			// Ctrl-C at the prompt or EOF both end the session.
			fmt.Println()
			return nil
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		if strings.HasPrefix(input, "/") {
			if quit := r.dispatch(ctx, line, input); quit {
				return nil
			}
			continue
		}

		fmt.Println()
		if err := r.app.SendMessage(ctx, input); err != nil {
			fmt.Fprintln(os.Stderr, r.app.Status())
		}
		fmt.Println()
		fmt.Println(r.app.Status())
	}
}

func (r *REPL) installCompleter(line *liner.State) {
	commands := []string{
		"/models", "/model ", "/pull ", "/rm ", "/image ", "/history",
		"/clear", "/temp ", "/tokens ", "/theme", "/help", "/quit",
	}
	line.SetCompleter(func(prefix string) []string {
		var out []string
		for _, c := range commands {
			if strings.HasPrefix(c, prefix) {
				out = append(out, c)
			}
		}
		// Complete model names after /model, /rm, /pull.
		for _, cmd := range []string{"/model ", "/rm ", "/pull "} {
			if strings.HasPrefix(prefix, cmd) {
				for _, d := range r.app.Registry.Models() {
					candidate := cmd + d.Name
					if strings.HasPrefix(candidate, prefix) {
						out = append(out, candidate)
					}
				}
			}
		}
		return out
	})
}

// dispatch handles one slash command; returns true to exit.
func (r *REPL) dispatch(ctx context.Context, line *liner.State, input string) bool {
	fields := strings.Fields(input)
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "/quit", "/exit":
		return true

	case "/help":
		fmt.Println(helpText)

	case "/models":
		r.printModels()

	case "/model":
		if len(args) == 0 {
			fmt.Println("usage: /model NAME")
			break
		}
		if err := r.app.SelectModel(args[0]); err != nil {
			fmt.Println(err)
		} else {
			fmt.Println(r.app.Status())
		}

	case "/pull":
		if len(args) == 0 {
			fmt.Println("usage: /pull NAME")
			break
		}
		r.runPull(ctx, args[0])

	case "/rm":
		if len(args) == 0 {
			fmt.Println("usage: /rm NAME")
			break
		}
		r.runDelete(ctx, line, args[0])

	case "/image":
		if len(args) == 0 {
			fmt.Println("usage: /image PATH...")
			break
		}
		if err := r.app.AttachImages(args); err != nil {
			fmt.Println(err)
		} else {
			fmt.Println(r.app.Status())
		}

	case "/history":
		n := 10
		if len(args) > 0 {
			if parsed, err := strconv.Atoi(args[0]); err == nil && parsed > 0 {
				n = parsed
			}
		}
		r.printHistory(n)

	case "/clear":
		if err := r.app.ClearTranscript(); err != nil {
			fmt.Println(err)
		} else {
			fmt.Println(r.app.Status())
		}

	case "/temp":
		if len(args) == 0 {
			fmt.Printf("temperature: %.1f\n", r.app.Temperature())
			break
		}
		v, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			fmt.Println("usage: /temp VALUE")
			break
		}
		r.app.SetTemperature(v)
		fmt.Println(r.app.Status())

	case "/tokens":
		if len(args) == 0 {
			fmt.Printf("max tokens: %d\n", r.app.MaxTokens())
			break
		}
		n, err := strconv.Atoi(args[0])
		if err != nil {
			fmt.Println("usage: /tokens N")
			break
		}
		r.app.SetMaxTokens(n)
		fmt.Println(r.app.Status())

	case "/theme":
		mode := r.app.Theme.Toggle()
		fmt.Println("theme:", mode)

	default:
		fmt.Println("unknown command; /help lists commands")
	}
	return false
}

func (r *REPL) printWarnings() {
	for _, w := range r.app.Warnings() {
		fmt.Fprintln(os.Stderr, "warning:", w)
	}
}

func (r *REPL) printModels() {
	models := r.app.Registry.Models()
	if len(models) == 0 {
		fmt.Println("no models available")
		return
	}
	active := r.app.ActiveModel()
	for _, d := range models {
		marker := "  "
		if d.Name == active {
			marker = "* "
		}
		desc := d.Description
		if desc != "" {
			desc = " — " + desc
		}
		fmt.Printf("%s%-40s [%s]%s\n", marker, d.Name, d.ProvenanceLabel(), desc)
	}
}

func (r *REPL) runPull(ctx context.Context, name string) {
	fmt.Println("downloading", name, "...")

	done := make(chan error, 1)
	go func() { done <- r.app.PullModel(ctx, name) }()

	// The tracker updates its message on every frame; poll it for a simple
	// single-line progress display.
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	last := ""
	for {
		select {
		case err := <-done:
			fmt.Println()
			if err != nil {
				fmt.Println("pull failed:", err)
			} else {
				fmt.Println("done")
			}
			return
		case <-ticker.C:
			if state, ok := r.app.Tracker.PullState(name); ok && state.Message != last {
				last = state.Message
				fmt.Printf("\r%-70s", state.Message)
			}
		}
	}
}

func (r *REPL) runDelete(ctx context.Context, line *liner.State, name string) {
	prompt, err := r.app.RequestDelete(name)
	if err != nil {
		fmt.Println(err)
		return
	}

	answer, err := line.Prompt(prompt + " [y/N] ")
	accepted := err == nil && strings.EqualFold(strings.TrimSpace(answer), "y")
	if err := r.app.ConfirmDelete(ctx, accepted); err != nil {
		if !ops.IsPrecondition(err) {
			fmt.Println("delete failed:", err)
		}
		return
	}
	fmt.Println(r.app.Status())
}

func (r *REPL) printHistory(n int) {
	messages := r.app.Transcript.Messages()
	if len(messages) > n {
		messages = messages[len(messages)-n:]
	}
	for _, m := range messages {
		switch m.Role {
		case transcript.RoleSystem:
			fmt.Printf("  — %s —\n", m.Content)
		case transcript.RoleUser:
			fmt.Printf("you: %s\n", m.Content)
		default:
			fmt.Printf("%s: %s\n", m.Model, m.Content)
		}
	}
}
