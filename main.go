// modeldeck - A terminal client for a local generative-model server.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/modeldeck/internal/app"
	"github.com/jeranaias/modeldeck/internal/blob"
	"github.com/jeranaias/modeldeck/internal/cli"
	"github.com/jeranaias/modeldeck/internal/config"
	"github.com/jeranaias/modeldeck/internal/registry"
	"github.com/jeranaias/modeldeck/internal/repl"
	"github.com/jeranaias/modeldeck/internal/ui"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	// Sync version info with cli package
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	cmd, args := cli.Parse()

	switch cmd {
	case cli.CmdHelp:
		cli.PrintUsage()
		return
	case cli.CmdVersion:
		cli.PrintVersion()
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if args.Endpoint != "" {
		cfg.Server.Endpoint = args.Endpoint
	}
	if args.Model != "" {
		cfg.Chat.DefaultModel = args.Model
	}

	if cmd == cli.CmdConfig {
		// Config needs no application core or state store.
		if err := cli.HandleConfig(cfg, args); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	interactive := cmd == cli.CmdTUI || cmd == cli.CmdChat
	logger := newLogger(args, interactive)

	store, err := openStateStore(logger)
	if err != nil {
		// State persistence is best-effort; run ephemeral instead of failing.
		logger.Warn("state store unavailable, running without persistence", "error", err)
		store = nil
	} else {
		defer store.Close()
	}

	a := app.New(cfg, store, logger, ui.Signal)

	var runErr error
	switch cmd {
	case cli.CmdTUI:
		runErr = runTUI(a)
	case cli.CmdChat:
		runErr = runREPL(a)
	case cli.CmdModels:
		runErr = cli.HandleModels(context.Background(), a, args)
	case cli.CmdPull:
		runErr = cli.HandlePull(context.Background(), a, args)
	case cli.CmdRm:
		runErr = cli.HandleRm(context.Background(), a, args)
	case cli.CmdHistory:
		runErr = cli.HandleHistory(a, args)
	}

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", runErr)
		os.Exit(1)
	}
}

// runTUI starts the full-screen interface, falling back to the REPL when
// there is no terminal to draw on.
func runTUI(a *app.App) error {
	if !cli.IsInteractive() {
		return runREPL(a)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The initial refresh error surfaces as a warning banner inside the
	// TUI, so a dead server does not block startup.
	_ = a.Init(ctx)

	// Re-refresh when a local manifest file changes on disk.
	if err := a.Registry.WatchManifest(ctx, func(registry.Result, error) {
		ui.Signal()
	}); err != nil {
		fmt.Fprintln(os.Stderr, "warning: manifest watch unavailable:", err)
	}

	p := tea.NewProgram(ui.New(a), tea.WithAltScreen(), tea.WithMouseCellMotion())
	ui.SetProgram(p)
	defer ui.SetProgram(nil)

	_, err := p.Run()
	return err
}

// runREPL starts the plain line-oriented mode.
func runREPL(a *app.App) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := a.Init(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "warning: initial model refresh failed")
	}
	return repl.New(a).Run(ctx)
}

// newLogger builds the process logger. Interactive modes own the terminal,
// so their logs go to a file under the data directory instead of stderr.
func newLogger(args cli.Args, interactive bool) *slog.Logger {
	level := slog.LevelWarn
	if args.Verbose {
		level = slog.LevelDebug
	}

	var w io.Writer = os.Stderr
	if interactive {
		w = io.Discard
		path := filepath.Join(config.DataDir(), "modeldeck.log")
		if err := os.MkdirAll(config.DataDir(), 0o755); err == nil {
			if f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644); err == nil {
				w = f
			}
		}
	}

	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// openStateStore opens the persistent key-value store for transcript and
// theme state.
func openStateStore(logger *slog.Logger) (*blob.Store, error) {
	dir := config.DataDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(dir, "state.db")
	store, err := blob.Open(path)
	if err != nil {
		return nil, err
	}
	logger.Debug("opened state store", "path", path)
	return store, nil
}
