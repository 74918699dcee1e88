// Package redact removes secrets from a diff before it is sent to any
// model provider.
//
// Detection uses regex heuristics covering common secret shapes: API keys,
// JWTs, private keys, AWS access key IDs and secret access keys, bearer
// tokens, connection strings with inline credentials, and provider-specific
// tokens (Google, Anthropic, OpenAI, GitHub, Slack).
//
// Path-based redaction is also supported: files whose paths match configured
// glob patterns keep their diff headers but have every hunk replaced by a
// single notice line.
package redact
