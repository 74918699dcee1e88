package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// SampleTOML is the file written by "prpilot config init". Its values match
// Default().
const SampleTOML = `# prpilot configuration
#
# Precedence, lowest first: this file, PRPILOT_* entries of ./.env,
# PRPILOT_* environment variables (PRPILOT_MODEL_PROVIDER sets
# model.provider), command line flags.

[model]
# gemini, openai, anthropic or ollama
provider = "gemini"
name = "gemini-2.5-flash-lite"
# Leave empty to use GEMINI_API_KEY / GOOGLE_API_KEY, OPENAI_API_KEY,
# ANTHROPIC_API_KEY or OLLAMA_API_KEY.
api_key = ""
base_url = ""
max_tokens = 4096
temperature = 0.2

[retry]
max_attempts = 3
base_delay = "1s"
timeout = "60s"
# 0 disables the limit
requests_per_minute = 0

[diff]
chunk_bytes = 100000
max_concurrency = 4
# "model" asks the model for the final summary of a chunked diff,
# "local" joins the chunk summaries without another call.
merge = "model"

[github]
# Leave empty to use GITHUB_TOKEN or GH_TOKEN.
token = ""
base_url = ""
max_retries = 3

[output]
# markdown or json
format = "markdown"
comment_limit = 65000

[privacy]
redact_secrets = false
redact_paths = []

[log]
level = "info"
# console or json
format = "console"

[run]
timeout = "10m"
`

// WriteSample writes SampleTOML to path, creating parent directories. An
// existing file is only replaced when force is set.
func WriteSample(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("configuration file already exists at %s", path)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	return os.WriteFile(path, []byte(SampleTOML), 0o600)
}
