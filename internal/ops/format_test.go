// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ops

import "testing"

func TestFormatBytes(t *testing.T) {
	cases := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1023, "1023 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{1048576, "1.0 MB"},
		{2097152, "2.0 MB"},
		{1073741824, "1.0 GB"},
		{-1, "0 B"},
	}
	for _, tc := range cases {
		if got := FormatBytes(tc.in); got != tc.want {
			t.Errorf("FormatBytes(%d) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFormatProgress(t *testing.T) {
	got := FormatProgress("downloading", 1048576, 2097152)
	want := "downloading • 1.0 MB/2.0 MB (50%)"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	// No byte counts at all falls back to the bare status.
	if got := FormatProgress("verifying sha256 digest", 0, 0); got != "verifying sha256 digest" {
		t.Errorf("got %q", got)
	}

	// A completed count without a total still shows how much arrived.
	if got := FormatProgress("pulling manifest", 100, 0); got != "pulling manifest • 100 B" {
		t.Errorf("got %q", got)
	}
	if got := FormatProgress("downloading", 1048576, 0); got != "downloading • 1.0 MB" {
		t.Errorf("got %q", got)
	}
}
