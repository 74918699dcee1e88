// Package config loads and merges prpilot configuration with koanf.
//
// Precedence (highest to lowest):
//  1. CLI flags
//  2. Environment variables (PRPILOT_MODEL_PROVIDER, PRPILOT_DIFF_CHUNK_BYTES, etc.)
//  3. PRPILOT_* entries of ./.env
//  4. Config file (--config, ./prpilot.toml or $XDG_CONFIG_HOME/prpilot/config.toml)
//  5. Built-in defaults
//
// API keys left empty fall back to the provider's conventional variables,
// such as GEMINI_API_KEY or OPENAI_API_KEY, and the GitHub token to
// GITHUB_TOKEN. Those are looked up in the environment first and then in
// ./.env.
//
// Use [Load] to obtain a merged [Config], [WriteSample] to write a starter
// file, and [Config.Effective] to print the merged result.
package config
