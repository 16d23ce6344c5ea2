// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - CLI parsing and command dispatch for modeldeck.
package cli

import (
	"fmt"
	"os"
	"strings"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdTUI Command = iota // full-screen interface (default)
	CmdChat               // plain line-oriented REPL
	CmdModels             // list available models
	CmdPull               // download a model
	CmdRm                 // delete a model
	CmdHistory            // print the saved conversation
	CmdConfig             // show or set configuration
	CmdVersion
	CmdHelp
)

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	Quiet    bool
	Verbose  bool
	Plain    bool   // force the line-oriented mode instead of the TUI
	Model    string // --model override for chat
	Endpoint string // --endpoint override for the inference server
	JSON     bool   // machine-readable output where supported

	// Command-specific
	Name       string // model name for pull/rm
	ConfigKey  string
	ConfigVal  string
	Subcommand string
	Confirm    bool // --yes: skip interactive confirmation
	Lines      int  // history --lines

	// Raw args (remaining after flag parsing)
	Raw []string
}

const usageText = `modeldeck - terminal client for a local generative-model server

Usage:
  modeldeck                  Start the full-screen interface (default)
  modeldeck chat             Plain line-oriented chat (no TUI)
  modeldeck models           List available models and their sources
  modeldeck pull NAME        Download a model
  modeldeck rm NAME          Delete a model
  modeldeck history          Print the saved conversation
    --lines N                Last N turns only
  modeldeck history clear    Delete the saved conversation
  modeldeck config show      Show current configuration
  modeldeck config set K V   Set a configuration value
  modeldeck version          Print version information

Global Flags:
  --plain           Line-oriented mode instead of the full-screen interface
  --model NAME      Override the default model
  --endpoint URL    Override the inference server endpoint
  --json            Machine-readable output (models, history)
  --yes, -y         Skip confirmation prompts (rm)
  -q, --quiet       Minimal output
  -v, --verbose     Debug output

Examples:
  modeldeck                           Start the TUI
  modeldeck chat --model llama2       Chat with a specific model
  modeldeck models --json             Dump the model list as JSON
  modeldeck pull mistral:7b           Download a model
  modeldeck rm old-model --yes        Delete without prompting
  modeldeck config set chat.temperature 0.9

Version: %s
`

// PrintUsage prints the usage/help text.
func PrintUsage() {
	fmt.Printf(usageText, Version)
}

// PrintVersion prints version information.
func PrintVersion() {
	fmt.Printf("modeldeck version %s\n", Version)
	fmt.Printf("  Git commit: %s\n", GitCommit)
	fmt.Printf("  Build date: %s\n", BuildDate)
}

// Parse parses command-line arguments and returns the command and args.
func Parse() (Command, Args) {
	return ParseFrom(os.Args[1:])
}

// ParseFrom parses the given arguments. Split out for tests.
func ParseFrom(args []string) (Command, Args) {
	remaining, parsedArgs := parseGlobalFlags(args)

	// If no remaining args, default to TUI (or the REPL with --plain)
	if len(remaining) == 0 {
		if parsedArgs.Plain {
			return CmdChat, parsedArgs
		}
		return CmdTUI, parsedArgs
	}

	cmd := strings.ToLower(remaining[0])
	remaining = remaining[1:]
	parsedArgs.Raw = remaining

	switch cmd {
	case "tui":
		return CmdTUI, parsedArgs

	case "chat", "repl":
		return CmdChat, parsedArgs

	case "models", "list", "ls":
		return CmdModels, parsedArgs

	case "pull", "download":
		if len(remaining) > 0 {
			parsedArgs.Name = remaining[0]
		}
		return CmdPull, parsedArgs

	case "rm", "remove", "delete":
		if len(remaining) > 0 {
			parsedArgs.Name = remaining[0]
		}
		return CmdRm, parsedArgs

	case "history":
		parser := NewArgParser(remaining)
		parsedArgs.Subcommand = parser.Subcommand()
		parsedArgs.Lines = parser.FlagIntOrDefault("lines", 0)
		return CmdHistory, parsedArgs

	case "config":
		parseConfigArgs(&parsedArgs, remaining)
		return CmdConfig, parsedArgs

	case "version", "--version", "-V":
		return CmdVersion, parsedArgs

	case "help", "--help", "-h":
		return CmdHelp, parsedArgs

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		return CmdHelp, parsedArgs
	}
}

// parseConfigArgs handles "config [show|set KEY VALUE|get KEY]".
func parseConfigArgs(args *Args, remaining []string) {
	if len(remaining) == 0 {
		args.Subcommand = "show"
		return
	}

	args.Subcommand = strings.ToLower(remaining[0])
	switch args.Subcommand {
	case "set":
		if len(remaining) > 1 {
			args.ConfigKey = remaining[1]
		}
		if len(remaining) > 2 {
			args.ConfigVal = remaining[2]
		}
	case "get":
		if len(remaining) > 1 {
			args.ConfigKey = remaining[1]
		}
	}
}

// parseGlobalFlags extracts global flags from args and returns remaining args.
func parseGlobalFlags(args []string) ([]string, Args) {
	var remaining []string
	var parsedArgs Args

	i := 0
	for i < len(args) {
		arg := args[i]

		switch arg {
		case "-q", "--quiet":
			parsedArgs.Quiet = true
		case "-v", "--verbose":
			parsedArgs.Verbose = true
		case "--json":
			parsedArgs.JSON = true
		case "--plain":
			parsedArgs.Plain = true
		case "-y", "--yes", "--confirm":
			parsedArgs.Confirm = true
		case "--model", "-m":
			if i+1 < len(args) {
				parsedArgs.Model = args[i+1]
				i++
			}
		case "--endpoint":
			if i+1 < len(args) {
				parsedArgs.Endpoint = args[i+1]
				i++
			}
		default:
			remaining = append(remaining, arg)
		}
		i++
	}

	return remaining, parsedArgs
}
