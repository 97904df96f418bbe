// Package translate provides the translator collaborator used between
// chunking and synthesis.
//
// # Entry Points
//
// NewLLMClient: chat-completion translator (OpenRouter or any compatible API).
// Passthrough: reuses the source text when translation is disabled.
// StyleFromConfig: tone, formality, language hints and glossary.
//
// # Retry Behaviour
//
// LLMClient retries transient failures (HTTP 408/409/425/5xx, network
// timeouts, empty completions) and throttling with exponential backoff,
// honouring Retry-After. Quota, credential and content-policy failures are
// returned immediately with their services marker so the pipeline can decide
// whether to abort or keep the source text.
//
// Each request carries the previous chunks' source and translation as
// conversation context so terminology stays consistent across chunks.
package translate
