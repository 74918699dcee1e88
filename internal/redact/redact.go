package redact

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/dshills/prpilot/internal/diff"
)

const placeholder = "[REDACTED]"

// pathNotice replaces the hunks of a file withheld by path policy. It does
// not start with a diff marker, so the section reads as metadata only.
const pathNotice = placeholder + " (file content withheld by path policy)\n"

// secretPatterns are regex heuristics for common secret types.
var secretPatterns = []*regexp.Regexp{
	// Generic API keys (long hex/base64 strings after common key patterns)
	regexp.MustCompile(`(?i)(api[_-]?key|apikey|api[_-]?secret)\s*[:=]\s*["']?([A-Za-z0-9/+=_-]{20,})["']?`),
	// AWS access key IDs
	regexp.MustCompile(`AKIA[0-9A-Z]{16}`),
	// AWS secret access keys
	regexp.MustCompile(`(?i)(aws[_-]?secret[_-]?access[_-]?key)\s*[:=]\s*["']?([A-Za-z0-9/+=]{40})["']?`),
	// Generic secrets/tokens/passwords in assignments
	regexp.MustCompile(`(?i)(secret|token|password|passwd|credential)\s*[:=]\s*["']([^"']{8,})["']`),
	// Bearer tokens
	regexp.MustCompile(`(?i)Bearer\s+[A-Za-z0-9._-]{20,}`),
	// JWTs
	regexp.MustCompile(`eyJ[A-Za-z0-9_-]{10,}\.eyJ[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}`),
	// Private key blocks
	regexp.MustCompile(`-----BEGIN\s+(RSA\s+|EC\s+|OPENSSH\s+)?PRIVATE KEY-----`),
	// Google API keys
	regexp.MustCompile(`AIza[0-9A-Za-z_-]{35}`),
	// GitHub tokens
	regexp.MustCompile(`gh[pousr]_[A-Za-z0-9_]{36,}`),
	// Slack tokens
	regexp.MustCompile(`xox[bporas]-[A-Za-z0-9-]{10,}`),
	// Anthropic API keys
	regexp.MustCompile(`sk-ant-[A-Za-z0-9_-]{20,}`),
	// OpenAI API keys
	regexp.MustCompile(`sk-[A-Za-z0-9]{20,}`),
	// Connection strings with inline credentials
	regexp.MustCompile(`[a-z][a-z0-9+.-]*://[^/\s:@]+:[^/\s@]+@[^\s'"]+`),
	// Long hex strings in a key/secret/token assignment
	regexp.MustCompile(`(?i)(key|secret|token)\s*[:=]\s*["']?[0-9a-f]{32,}["']?`),
}

// Secrets replaces detected secrets in text with [REDACTED] and reports how
// many matches were replaced.
func Secrets(text string) (string, int) {
	count := 0
	for _, pat := range secretPatterns {
		text = pat.ReplaceAllStringFunc(text, func(string) string {
			count++
			return placeholder
		})
	}
	return text, count
}

// ShouldRedactPath checks if a file path matches any of the redaction path patterns.
func ShouldRedactPath(path string, patterns []string) bool {
	for _, pattern := range patterns {
		matched, err := filepath.Match(pattern, path)
		if err == nil && matched {
			return true
		}
		// "**/" patterns match at any depth, so compare the base name too
		cleanPattern := strings.TrimPrefix(pattern, "**/")
		if cleanPattern != pattern {
			matched, err = filepath.Match(cleanPattern, filepath.Base(path))
			if err == nil && matched {
				return true
			}
		}
	}
	return false
}

// Policy selects what is removed from a diff before it leaves the machine.
type Policy struct {
	Secrets bool
	// Paths are glob patterns. Matching files keep their headers, so the
	// briefing still lists them, but their hunks are withheld.
	Paths []string
}

// Enabled reports whether the policy changes anything.
func (p Policy) Enabled() bool {
	return p.Secrets || len(p.Paths) > 0
}

// Stats describes what Apply removed.
type Stats struct {
	Secrets int
	Files   []string
}

// Apply returns raw with the policy applied. Line structure outside withheld
// hunks is preserved.
func (p Policy) Apply(raw string) (string, Stats) {
	var stats Stats
	out := raw
	if len(p.Paths) > 0 {
		out, stats.Files = withholdPaths(out, p.Paths)
	}
	if p.Secrets {
		out, stats.Secrets = Secrets(out)
	}
	return out, stats
}

// withholdPaths replaces the hunks of every file section whose path, or
// pre-rename path, matches patterns.
func withholdPaths(raw string, patterns []string) (string, []string) {
	var (
		b     strings.Builder
		files []string
	)
	for _, sec := range diff.Sections(raw) {
		at := sec.HunkOffset()
		if at < 0 || !withheld(sec.File, patterns) {
			b.WriteString(sec.Text)
			continue
		}
		b.WriteString(sec.Text[:at])
		b.WriteString(pathNotice)
		files = append(files, sec.File.Path)
	}
	return b.String(), files
}

func withheld(f diff.File, patterns []string) bool {
	if f.Path != "" && ShouldRedactPath(f.Path, patterns) {
		return true
	}
	return f.OldPath != "" && ShouldRedactPath(f.OldPath, patterns)
}
