// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"io"
	"log/slog"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func collect(d *decoder, chunks ...string) []frame {
	var frames []frame
	for _, c := range chunks {
		d.feed([]byte(c), func(f frame) { frames = append(frames, f) })
	}
	d.flush(func(f frame) { frames = append(frames, f) })
	return frames
}

func TestDecoderSplitAcrossChunks(t *testing.T) {
	d := newDecoder(discardLogger())

	// One JSON object arrives in three chunks; a second follows in the
	// same chunk as the first's terminator.
	frames := collect(d,
		`{"message":{"con`,
		`tent":"Hel`,
		"lo\"}}\n{\"message\":{\"content\":\" world\"}}\n",
	)

	if len(frames) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(frames))
	}
	if frames[0].Message.Content != "Hello" {
		t.Errorf("got %q", frames[0].Message.Content)
	}
	if frames[1].Message.Content != " world" {
		t.Errorf("got %q", frames[1].Message.Content)
	}
}

func TestDecoderFlushesUnterminatedTail(t *testing.T) {
	d := newDecoder(discardLogger())
	frames := collect(d, `{"message":{"content":"tail"}}`)

	if len(frames) != 1 || frames[0].Message.Content != "tail" {
		t.Fatalf("expected the unterminated tail to decode, got %v", frames)
	}
}

func TestDecoderSkipsMalformedLines(t *testing.T) {
	d := newDecoder(discardLogger())
	frames := collect(d,
		"garbage line\n",
		"{\"message\":{\"content\":\"ok\"}}\n",
		"{broken\n",
	)

	if len(frames) != 1 || frames[0].Message.Content != "ok" {
		t.Fatalf("expected malformed lines to be skipped, got %v", frames)
	}
}

func TestDecoderIgnoresBlankLines(t *testing.T) {
	d := newDecoder(discardLogger())
	frames := collect(d, "\n\n  \n{\"done\":true}\n")

	if len(frames) != 1 || !frames[0].Done {
		t.Fatalf("expected a single done frame, got %v", frames)
	}
}

func TestAccumulatorTokenBookkeeping(t *testing.T) {
	i := func(n int64) *int64 { return &n }

	var acc accumulator
	// eval_count assigns, prompt_eval_count adds; repeats of eval_count
	// replace while repeats of prompt_eval_count accumulate.
	acc.apply(frame{EvalCount: i(10)}, nil)
	acc.apply(frame{PromptEvalCount: i(5)}, nil)
	acc.apply(frame{EvalCount: i(40)}, nil)
	acc.apply(frame{PromptEvalCount: i(5)}, nil)

	res := acc.result()
	if !res.TokensKnown {
		t.Fatal("tokens should be known")
	}
	if res.Tokens != 50 {
		t.Errorf("expected 40 + 5 + 5 = 50, got %d", res.Tokens)
	}
}

func TestAccumulatorOrderIndependentTotal(t *testing.T) {
	i := func(n int64) *int64 { return &n }

	var a, b accumulator
	a.apply(frame{EvalCount: i(30)}, nil)
	a.apply(frame{PromptEvalCount: i(7)}, nil)

	b.apply(frame{PromptEvalCount: i(7)}, nil)
	b.apply(frame{EvalCount: i(30)}, nil)

	if a.result().Tokens != b.result().Tokens {
		t.Errorf("total must be order-independent: %d vs %d", a.result().Tokens, b.result().Tokens)
	}
}

func TestAccumulatorUnknownTokens(t *testing.T) {
	var acc accumulator
	acc.apply(frame{Message: struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}{Content: "hi"}}, nil)

	if acc.result().TokensKnown {
		t.Error("no token fields seen, TokensKnown must be false")
	}
}

func TestAccumulatorErrorStopsProcessing(t *testing.T) {
	var tokens []string
	onToken := func(s string) { tokens = append(tokens, s) }

	var acc accumulator
	acc.apply(frame{Error: "model exploded"}, onToken)
	acc.apply(frame{Message: struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}{Content: "after"}}, onToken)

	if acc.err == nil || acc.err.Error() != "model exploded" {
		t.Fatalf("expected the frame error, got %v", acc.err)
	}
	if len(tokens) != 0 {
		t.Errorf("no tokens should be delivered after an error frame, got %v", tokens)
	}
}
