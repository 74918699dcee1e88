package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/dotenv"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of environment variables read into the config.
// PRPILOT_MODEL_API_KEY maps to model.api_key.
const EnvPrefix = "PRPILOT_"

// DotenvFile is read from the working directory when present. Its variables
// fill in what the process environment leaves unset or empty.
const DotenvFile = ".env"

// Config represents the prpilot configuration.
type Config struct {
	Model   ModelConfig   `koanf:"model"`
	Retry   RetryConfig   `koanf:"retry"`
	Diff    DiffConfig    `koanf:"diff"`
	GitHub  GitHubConfig  `koanf:"github"`
	Output  OutputConfig  `koanf:"output"`
	Privacy PrivacyConfig `koanf:"privacy"`
	Log     LogConfig     `koanf:"log"`
	Run     RunConfig     `koanf:"run"`

	// File is the config file that was read, if any.
	File string `koanf:"-"`
}

// ModelConfig selects and authenticates the language model.
type ModelConfig struct {
	Provider    string  `koanf:"provider"`
	Name        string  `koanf:"name"`
	APIKey      string  `koanf:"api_key"`
	BaseURL     string  `koanf:"base_url"`
	MaxTokens   int     `koanf:"max_tokens"`
	Temperature float64 `koanf:"temperature"`
}

// RetryConfig bounds model calls.
type RetryConfig struct {
	MaxAttempts       int           `koanf:"max_attempts"`
	BaseDelay         time.Duration `koanf:"base_delay"`
	Timeout           time.Duration `koanf:"timeout"`
	RequestsPerMinute int           `koanf:"requests_per_minute"`
}

// DiffConfig controls chunking and merging of large diffs.
type DiffConfig struct {
	ChunkBytes     int    `koanf:"chunk_bytes"`
	MaxConcurrency int    `koanf:"max_concurrency"`
	Merge          string `koanf:"merge"`
}

// GitHubConfig configures the pull request diff source and comment sink.
type GitHubConfig struct {
	Token      string `koanf:"token"`
	BaseURL    string `koanf:"base_url"`
	MaxRetries int    `koanf:"max_retries"`
}

// OutputConfig controls rendering.
type OutputConfig struct {
	Format       string `koanf:"format"`
	CommentLimit int    `koanf:"comment_limit"`
}

// PrivacyConfig controls privacy/redaction behavior.
type PrivacyConfig struct {
	RedactSecrets bool     `koanf:"redact_secrets"`
	RedactPaths   []string `koanf:"redact_paths"`
}

// LogConfig controls diagnostics on stderr.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// RunConfig bounds a whole run.
type RunConfig struct {
	Timeout time.Duration `koanf:"timeout"`
}

// Default returns a Config with all defaults applied.
func Default() Config {
	return Config{
		Model: ModelConfig{
			Provider:    "gemini",
			Name:        "gemini-2.5-flash-lite",
			MaxTokens:   4096,
			Temperature: 0.2,
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   time.Second,
			Timeout:     60 * time.Second,
		},
		Diff: DiffConfig{
			ChunkBytes:     100000,
			MaxConcurrency: 4,
			Merge:          "model",
		},
		GitHub: GitHubConfig{
			MaxRetries: 3,
		},
		Output: OutputConfig{
			Format:       "markdown",
			CommentLimit: 65000,
		},
		Privacy: PrivacyConfig{
			RedactPaths: []string{},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Run: RunConfig{
			Timeout: 10 * time.Minute,
		},
	}
}

// ConfigDir returns the platform-appropriate config directory for prpilot.
func ConfigDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "prpilot"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "prpilot"), nil
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "prpilot"), nil
		}
		return filepath.Join(home, "AppData", "Roaming", "prpilot"), nil
	default:
		return filepath.Join(home, ".config", "prpilot"), nil
	}
}

// ConfigPath returns the full path to the user config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load builds the effective config by merging, lowest first: defaults, the
// TOML file, PRPILOT_* entries of ./.env, PRPILOT_* environment variables,
// then overrides. Overrides are
// keyed by koanf path ("model.provider") and come from CLI flags; only flags
// the user set should be present.
//
// An explicit path must exist. Without one, ./prpilot.toml and then
// ConfigPath() are tried and skipped when absent.
func Load(path string, overrides map[string]any) (Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(Default().flatten(), "."), nil); err != nil {
		return Config{}, fmt.Errorf("loading defaults: %w", err)
	}

	source, err := findFile(path)
	if err != nil {
		return Config{}, err
	}
	if source != "" {
		if err := k.Load(file.Provider(source), toml.Parser()); err != nil {
			return Config{}, fmt.Errorf("parsing config file %s: %w", source, err)
		}
	}

	local, err := loadDotenv(DotenvFile)
	if err != nil {
		return Config{}, err
	}
	if prefixed := dotenvOverrides(local); len(prefixed) > 0 {
		if err := k.Load(confmap.Provider(prefixed, "."), nil); err != nil {
			return Config{}, fmt.Errorf("applying %s: %w", DotenvFile, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return Config{}, fmt.Errorf("loading environment: %w", err)
	}

	if len(overrides) > 0 {
		if err := k.Load(confmap.Provider(overrides, "."), nil); err != nil {
			return Config{}, fmt.Errorf("applying flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	cfg.File = source
	cfg.applyCredentialFallbacks(local)

	return cfg, nil
}

// envKey maps PRPILOT_RETRY_BASE_DELAY to retry.base_delay. Only the first
// underscore separates section from key, since keys contain underscores.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.Replace(s, "_", ".", 1)
}

func findFile(path string) (string, error) {
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return "", fmt.Errorf("reading config file: %w", err)
		}
		return path, nil
	}

	candidates := []string{"prpilot.toml"}
	if p, err := ConfigPath(); err == nil {
		candidates = append(candidates, p)
	}
	for _, c := range candidates {
		info, err := os.Stat(c)
		if err == nil && !info.IsDir() {
			return c, nil
		}
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("reading config file: %w", err)
		}
	}
	return "", nil
}

var credentialEnv = map[string][]string{
	"gemini":    {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
	"openai":    {"OPENAI_API_KEY"},
	"anthropic": {"ANTHROPIC_API_KEY"},
	"ollama":    {"OLLAMA_API_KEY"},
}

// CredentialEnv returns the conventional API key variables for a provider,
// in lookup order.
func CredentialEnv(provider string) []string {
	switch provider {
	case "google":
		provider = "gemini"
	case "lmstudio":
		provider = "ollama"
	}
	return credentialEnv[provider]
}

func (c *Config) applyCredentialFallbacks(local map[string]string) {
	if c.Model.APIKey == "" {
		c.Model.APIKey = firstEnv(local, CredentialEnv(c.Model.Provider)...)
	}
	if c.GitHub.Token == "" {
		c.GitHub.Token = firstEnv(local, "GITHUB_TOKEN", "GH_TOKEN")
	}
}

// firstEnv returns the first non-empty variable among names, looking in the
// process environment before local.
func firstEnv(local map[string]string, names ...string) string {
	for _, n := range names {
		if v := os.Getenv(n); v != "" {
			return v
		}
	}
	for _, n := range names {
		if v := local[n]; v != "" {
			return v
		}
	}
	return ""
}

// loadDotenv reads the variables of a dotenv file. A missing file yields none.
func loadDotenv(path string) (map[string]string, error) {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) || (err == nil && info.IsDir()) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), dotenv.Parser()); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	vars := make(map[string]string)
	for _, key := range k.Keys() {
		vars[key] = k.String(key)
	}
	return vars, nil
}

// dotenvOverrides maps the PRPILOT_* entries of a dotenv file to config keys.
func dotenvOverrides(local map[string]string) map[string]any {
	m := map[string]any{}
	for name, v := range local {
		if strings.HasPrefix(name, EnvPrefix) {
			m[envKey(name)] = v
		}
	}
	return m
}

// Validate checks value ranges and enumerations.
func (c Config) Validate() error {
	var errs []error
	if c.Model.Provider == "" {
		errs = append(errs, errors.New("model.provider must be set"))
	}
	if c.Model.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("model.max_tokens must not be negative, got %d", c.Model.MaxTokens))
	}
	if c.Model.Temperature < 0 || c.Model.Temperature > 2 {
		errs = append(errs, fmt.Errorf("model.temperature must be between 0 and 2, got %g", c.Model.Temperature))
	}
	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("retry.max_attempts must be at least 1, got %d", c.Retry.MaxAttempts))
	}
	if c.Retry.BaseDelay < 0 || c.Retry.Timeout < 0 || c.Run.Timeout < 0 {
		errs = append(errs, errors.New("durations must not be negative"))
	}
	if c.Retry.RequestsPerMinute < 0 {
		errs = append(errs, fmt.Errorf("retry.requests_per_minute must not be negative, got %d", c.Retry.RequestsPerMinute))
	}
	if c.Diff.ChunkBytes < 0 {
		errs = append(errs, fmt.Errorf("diff.chunk_bytes must not be negative, got %d", c.Diff.ChunkBytes))
	}
	if c.Diff.MaxConcurrency < 1 {
		errs = append(errs, fmt.Errorf("diff.max_concurrency must be at least 1, got %d", c.Diff.MaxConcurrency))
	}
	if c.Diff.Merge != "model" && c.Diff.Merge != "local" {
		errs = append(errs, fmt.Errorf("diff.merge must be model or local, got %q", c.Diff.Merge))
	}
	if c.GitHub.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("github.max_retries must not be negative, got %d", c.GitHub.MaxRetries))
	}
	if c.Output.Format != "markdown" && c.Output.Format != "json" {
		errs = append(errs, fmt.Errorf("output.format must be markdown or json, got %q", c.Output.Format))
	}
	if c.Output.CommentLimit < 1 {
		errs = append(errs, fmt.Errorf("output.comment_limit must be positive, got %d", c.Output.CommentLimit))
	}
	return errors.Join(errs...)
}

// flatten returns the config as koanf paths. Durations are written as
// strings so they round-trip through TOML.
func (c Config) flatten() map[string]any {
	paths := c.Privacy.RedactPaths
	if paths == nil {
		paths = []string{}
	}
	return map[string]any{
		"model.provider":            c.Model.Provider,
		"model.name":                c.Model.Name,
		"model.api_key":             c.Model.APIKey,
		"model.base_url":            c.Model.BaseURL,
		"model.max_tokens":          c.Model.MaxTokens,
		"model.temperature":         c.Model.Temperature,
		"retry.max_attempts":        c.Retry.MaxAttempts,
		"retry.base_delay":          c.Retry.BaseDelay.String(),
		"retry.timeout":             c.Retry.Timeout.String(),
		"retry.requests_per_minute": c.Retry.RequestsPerMinute,
		"diff.chunk_bytes":          c.Diff.ChunkBytes,
		"diff.max_concurrency":      c.Diff.MaxConcurrency,
		"diff.merge":                c.Diff.Merge,
		"github.token":              c.GitHub.Token,
		"github.base_url":           c.GitHub.BaseURL,
		"github.max_retries":        c.GitHub.MaxRetries,
		"output.format":             c.Output.Format,
		"output.comment_limit":      c.Output.CommentLimit,
		"privacy.redact_secrets":    c.Privacy.RedactSecrets,
		"privacy.redact_paths":      paths,
		"log.level":                 c.Log.Level,
		"log.format":                c.Log.Format,
		"run.timeout":               c.Run.Timeout.String(),
	}
}

// Effective renders the config as TOML with credentials masked.
func (c Config) Effective() ([]byte, error) {
	masked := c
	masked.Model.APIKey = Mask(c.Model.APIKey)
	masked.GitHub.Token = Mask(c.GitHub.Token)

	k := koanf.New(".")
	if err := k.Load(confmap.Provider(masked.flatten(), "."), nil); err != nil {
		return nil, err
	}
	return k.Marshal(toml.Parser())
}

// Mask hides a secret, keeping the last four characters of long values.
func Mask(secret string) string {
	switch {
	case secret == "":
		return ""
	case len(secret) <= 8:
		return "****"
	default:
		return "****" + secret[len(secret)-4:]
	}
}
