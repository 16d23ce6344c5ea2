// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat streams generation requests against the inference server.
//
// The response is newline-delimited JSON; frames arrive split across
// arbitrary network chunks, so the decoder buffers partial lines and parses
// only complete ones. Content fragments are delivered through an onToken
// callback in arrival order, and the settled call returns the accumulated
// text plus the final token count when the server reported one.
package chat
