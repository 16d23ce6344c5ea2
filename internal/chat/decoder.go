// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"bytes"
	"encoding/json"
	"log/slog"
)

// frame is one decoded line of the streaming chat response.
type frame struct {
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	EvalCount       *int64 `json:"eval_count"`
	PromptEvalCount *int64 `json:"prompt_eval_count"`
	Done            bool   `json:"done"`
	Error           string `json:"error"`
}

// decoder splits a newline-delimited JSON stream into frames. Network chunks
// do not align with line boundaries, so an unterminated remainder is carried
// forward until the next chunk completes it.
type decoder struct {
	buf    []byte
	logger *slog.Logger
}

func newDecoder(logger *slog.Logger) *decoder {
	return &decoder{logger: logger}
}

// feed consumes one network chunk and emits every complete frame it
// completes. Malformed lines are logged and skipped; one bad line never
// aborts the stream.
func (d *decoder) feed(chunk []byte, emit func(frame)) {
	d.buf = append(d.buf, chunk...)

	for {
		idx := bytes.IndexByte(d.buf, '\n')
		if idx < 0 {
			return
		}
		line := d.buf[:idx]
		d.buf = d.buf[idx+1:]
		d.emitLine(line, emit)
	}
}

// flush decodes any unterminated final line after the stream ends.
func (d *decoder) flush(emit func(frame)) {
	if len(d.buf) == 0 {
		return
	}
	line := d.buf
	d.buf = nil
	d.emitLine(line, emit)
}

func (d *decoder) emitLine(line []byte, emit func(frame)) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return
	}

	var f frame
	if err := json.Unmarshal(line, &f); err != nil {
		d.logger.Warn("skipping malformed stream line", "error", err)
		return
	}
	emit(f)
}
