// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// commands.go - Non-interactive command handlers for modeldeck.
//
// These drive the same application core as the TUI and REPL, just with
// line-oriented output for scripting.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/jeranaias/modeldeck/internal/app"
	"github.com/jeranaias/modeldeck/internal/config"
	"github.com/jeranaias/modeldeck/internal/transcript"
)

// HandleModels prints the merged model list.
func HandleModels(ctx context.Context, a *app.App, args Args) error {
	if err := a.RefreshModels(ctx); err != nil {
		return err
	}
	for _, w := range a.Warnings() {
		fmt.Fprintln(os.Stderr, "warning:", w)
	}

	models := a.Registry.Models()

	if args.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(models)
	}

	if len(models) == 0 {
		fmt.Println("No models available.")
		return nil
	}
	for _, d := range models {
		desc := d.Description
		if desc != "" {
			desc = "  " + desc
		}
		fmt.Printf("%-40s %-8s%s\n", d.Name, d.ProvenanceLabel(), desc)
	}
	return nil
}

// HandlePull downloads a model, printing progress lines.
func HandlePull(ctx context.Context, a *app.App, args Args) error {
	if args.Name == "" {
		return fmt.Errorf("pull requires a model name")
	}
	if err := a.RefreshModels(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "warning: model refresh failed, pulling anyway")
	}

	done := make(chan error, 1)
	go func() { done <- a.PullModel(ctx, args.Name) }()

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	last := ""
	for {
		select {
		case err := <-done:
			if err != nil {
				return fmt.Errorf("pull failed: %w", err)
			}
			if !args.Quiet {
				fmt.Println()
				fmt.Println("Downloaded", args.Name)
			}
			return nil
		case <-ticker.C:
			if args.Quiet {
				continue
			}
			if state, ok := a.Tracker.PullState(args.Name); ok && state.Message != last {
				last = state.Message
				fmt.Printf("\r%-70s", state.Message)
			}
		}
	}
}

// HandleRm deletes a model after confirmation.
func HandleRm(ctx context.Context, a *app.App, args Args) error {
	if args.Name == "" {
		return fmt.Errorf("rm requires a model name")
	}
	if err := a.RefreshModels(ctx); err != nil {
		return err
	}

	prompt, err := a.RequestDelete(args.Name)
	if err != nil {
		return err
	}

	confirmed, err := RequireConfirmation(args.Confirm, prompt)
	if err != nil {
		return err
	}
	if err := a.ConfirmDelete(ctx, confirmed); err != nil {
		return err
	}
	if !args.Quiet {
		fmt.Println(a.Status())
	}
	return nil
}

// HandleHistory prints or clears the persisted transcript.
func HandleHistory(a *app.App, args Args) error {
	if err := a.Transcript.Load(); err != nil {
		return err
	}

	if args.Subcommand == "clear" {
		confirmed, err := RequireConfirmation(args.Confirm, "Clear the saved conversation")
		if err != nil {
			return err
		}
		if !confirmed {
			return nil
		}
		if err := a.ClearTranscript(); err != nil {
			return err
		}
		if !args.Quiet {
			fmt.Println("Conversation cleared.")
		}
		return nil
	}

	messages := a.Transcript.Messages()
	if args.Lines > 0 && len(messages) > args.Lines {
		messages = messages[len(messages)-args.Lines:]
	}

	if args.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(messages)
	}

	if len(messages) == 0 {
		fmt.Println("No saved conversation.")
		return nil
	}
	for _, m := range messages {
		switch m.Role {
		case transcript.RoleSystem:
			fmt.Printf("— %s —\n", m.Content)
		case transcript.RoleUser:
			fmt.Printf("[%s] you: %s\n", m.Timestamp.Format("15:04"), m.Content)
		default:
			fmt.Printf("[%s] %s: %s\n", m.Timestamp.Format("15:04"), m.Model, m.Content)
		}
	}
	return nil
}

// HandleConfig implements "config show|get|set".
func HandleConfig(cfg *config.Config, args Args) error {
	switch args.Subcommand {
	case "", "show":
		fmt.Println("Config file:", config.DefaultPath())
		for _, key := range configKeys {
			val, err := cfg.GetField(key)
			if err != nil {
				continue
			}
			fmt.Printf("  %-24s %s\n", key, val)
		}
		return nil

	case "get":
		if args.ConfigKey == "" {
			return fmt.Errorf("config get requires a key")
		}
		val, err := cfg.GetField(args.ConfigKey)
		if err != nil {
			return err
		}
		fmt.Println(val)
		return nil

	case "set":
		if args.ConfigKey == "" || args.ConfigVal == "" {
			return fmt.Errorf("config set requires a key and a value")
		}
		if err := cfg.SetField(args.ConfigKey, args.ConfigVal); err != nil {
			return err
		}
		if err := cfg.Save(); err != nil {
			return err
		}
		if !args.Quiet {
			fmt.Printf("Set %s = %s\n", args.ConfigKey, args.ConfigVal)
		}
		return nil

	default:
		return fmt.Errorf("unknown config subcommand: %s", args.Subcommand)
	}
}

// configKeys is the display order for "config show".
var configKeys = []string{
	"server.endpoint",
	"sources.manifest_url",
	"sources.library_url",
	"fetch.retries",
	"fetch.retry_delay_ms",
	"fetch.timeout_ms",
	"chat.default_model",
	"chat.temperature",
	"chat.max_tokens",
	"chat.timeout_ms",
	"chat.pull_timeout_ms",
	"history.max_messages",
	"ui.theme",
}
