// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ops

import (
	"fmt"
	"strconv"
)

var byteUnits = []string{"B", "KB", "MB", "GB", "TB", "PB"}

// FormatBytes renders a byte count in binary units (1024 base). Whole bytes
// carry no decimal; larger units get one decimal place. The unit index is
// clamped to the table.
func FormatBytes(n int64) string {
	if n < 0 {
		n = 0
	}

	value := float64(n)
	unit := 0
	for value >= 1024 && unit < len(byteUnits)-1 {
		value /= 1024
		unit++
	}

	if unit == 0 {
		return strconv.FormatInt(n, 10) + " B"
	}
	return fmt.Sprintf("%.1f %s", value, byteUnits[unit])
}

// FormatProgress builds the progress line for one pull frame. With both byte
// counts present and a positive total it renders
// "<status> • <completed>/<total> (<percent>%)"; with only a completed count
// it renders "<status> • <completed>"; otherwise just the status.
func FormatProgress(status string, completed, total int64) string {
	if total <= 0 {
		if completed > 0 {
			return status + " • " + FormatBytes(completed)
		}
		return status
	}

	percent := int(float64(completed) / float64(total) * 100)
	return fmt.Sprintf("%s • %s/%s (%d%%)", status, FormatBytes(completed), FormatBytes(total), percent)
}
