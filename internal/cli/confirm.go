// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// confirm.go - Confirmation handling for destructive CLI commands.
//
// One pattern everywhere:
//  1. --yes skips the prompt
//  2. Without a TTY, --yes is required (cannot prompt)
//  3. Otherwise prompt interactively
package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// RequireConfirmation checks whether a destructive action may proceed.
// Returns an error when confirmation is needed but cannot be obtained.
func RequireConfirmation(confirmFlag bool, action string) (bool, error) {
	if confirmFlag {
		return true, nil
	}
	if !IsTTY() {
		return false, fmt.Errorf("refusing to %s without --yes (no terminal for prompt)", action)
	}

	fmt.Printf("%s? This cannot be undone. [y/N] ", action)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false, nil
	}

	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}
