// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package registry

// EmbeddedCloudModels is the static cloud-model list shipped with the
// client. It is used when the manifest cannot be fetched, so the model
// picker is never empty solely because the manifest is unavailable.
var EmbeddedCloudModels = []Descriptor{
	{
		Name:        "mistral-large-3:675b-cloud",
		Description: "Mistral Large 3 - Multimodal MoE model for production-grade tasks (675B)",
		Endpoint:    "http://127.0.0.1:11434",
		Sources:     []Source{SourceCloud},
	},
	{
		Name:        "ministral-3:14b-cloud",
		Description: "Ministral 3 14B - Efficient edge deployment model by Mistral",
		Endpoint:    "http://127.0.0.1:11434",
		Sources:     []Source{SourceCloud},
	},
	{
		Name:        "cogito-2.1:671b-cloud",
		Description: "Cogito v2.1 - Instruction-tuned generative model (MIT licensed)",
		Endpoint:    "http://127.0.0.1:11434",
		Sources:     []Source{SourceCloud},
	},
	{
		Name:        "deepseek-v3.1:671b-cloud",
		Description: "DeepSeek-V3.1 - Hybrid model supporting thinking mode and non-thinking mode",
		Endpoint:    "http://127.0.0.1:11434",
		Sources:     []Source{SourceCloud},
	},
	{
		Name:        "gpt-oss:20b-cloud",
		Description: "GPT-OSS 20B - OpenAI's open-weight model for reasoning and coding",
		Endpoint:    "http://127.0.0.1:11434",
		Sources:     []Source{SourceCloud},
	},
	{
		Name:        "gpt-oss:120b-cloud",
		Description: "GPT-OSS 120B - Large version for advanced reasoning tasks",
		Endpoint:    "http://127.0.0.1:11434",
		Sources:     []Source{SourceCloud},
	},
	{
		Name:        "qwen3-coder:480b-cloud",
		Description: "Qwen3-Coder 480B - Alibaba's performant model for agentic and coding tasks",
		Endpoint:    "http://127.0.0.1:11434",
		Sources:     []Source{SourceCloud},
	},
	{
		Name:        "gemini-3-pro-preview:latest",
		Description: "Google Gemini 3 Pro Preview - Advanced reasoning and multimodal understanding",
		Endpoint:    "http://127.0.0.1:11434",
		Sources:     []Source{SourceCloud},
	},
}

// embeddedCopy returns a fresh copy so callers can never mutate the shipped
// list.
func embeddedCopy() []Descriptor {
	out := make([]Descriptor, len(EmbeddedCloudModels))
	for i, m := range EmbeddedCloudModels {
		out[i] = m
		out[i].Sources = append([]Source(nil), m.Sources...)
	}
	return out
}
