package prompt

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/dshills/prpilot/internal/briefing"
	"github.com/dshills/prpilot/internal/diff"
	"github.com/dshills/prpilot/internal/providers"
)

const systemPrompt = `You are PR-Pilot, an expert senior software engineer. Your sole purpose is to analyze a git diff and provide a structured, objective briefing for the pull request reviewer.

Rules:
1. Do NOT critique the code, comment on its style, or suggest any changes.
2. Do NOT judge product or business decisions. Describe what changed, not whether it should have.
3. Base your analysis solely on the provided diff. Do not invent context.
4. Describe every changed file exactly once, using its path exactly as it appears in the diff.
5. Each entry in "details" is a separate string, not one combined string.
6. Rate each risk as "low", "medium", or "high" and explain it in "rationale": potential side effects, critical code modifications, or missing error handling.

You MUST respond with ONLY a single valid JSON object. No markdown, no explanation, no preamble. Just the JSON object.`

const summarySystemPrompt = `You are PR-Pilot, an expert senior software engineer. You are given the file-by-file description of a large pull request that was analyzed in parts. Write the overall summary and the unified risk assessment for the whole pull request.

Rules:
1. Do NOT critique the code, comment on its style, or suggest any changes.
2. Base your answer solely on the descriptions provided. Do not invent context.
3. Merge overlapping risks into one item. Rate each as "low", "medium", or "high".

You MUST respond with ONLY a single valid JSON object. No markdown, no explanation, no preamble. Just the JSON object.`

// maxPrevious bounds how much of a rejected answer is quoted back.
const maxPrevious = 16000

// Builder fills the prompt templates. It holds only generation settings,
// so the same inputs always produce the same request.
type Builder struct {
	MaxTokens   int
	Temperature float64
}

// New returns a Builder with the given generation settings.
func New(maxTokens int, temperature float64) Builder {
	return Builder{MaxTokens: maxTokens, Temperature: temperature}
}

// Input describes one chunk to brief.
type Input struct {
	Chunk diff.Chunk
	// Total is the number of chunks in the diff. Above one, the request asks
	// for a partial briefing of this chunk's files.
	Total int
	// Files are the parsed files of this chunk.
	Files        []diff.File
	MetadataOnly bool
}

// Briefing builds the request for one chunk. A single-chunk diff gets the
// full briefing prompt.
func (b Builder) Briefing(in Input) providers.Request {
	var u strings.Builder

	if in.Total > 1 {
		fmt.Fprintf(&u, "This is part %d of %d of a larger diff that was split at file and hunk boundaries.\n", in.Chunk.Index+1, in.Total)
		u.WriteString("Describe only the files in this part. The overall_summary should cover this part only; risk_assessment may be empty if this part carries no risk.\n\n")
	} else {
		u.WriteString("Analyze the following git diff and generate a JSON object that contains the briefing.\n\n")
	}

	if in.MetadataOnly {
		u.WriteString("The diff carries metadata only (renames, mode or binary changes) and no content lines. risk_assessment may be empty.\n\n")
	}

	if len(in.Files) > 0 {
		u.WriteString("Files:\n")
		for _, f := range in.Files {
			if f.Kind == briefing.ChangeRenamed && f.OldPath != "" {
				fmt.Fprintf(&u, "- %s (renamed from %s)\n", f.Path, f.OldPath)
			} else {
				fmt.Fprintf(&u, "- %s (%s)\n", f.Path, f.Kind)
			}
		}
		if langs := detectLanguages(in.Files); len(langs) > 0 {
			fmt.Fprintf(&u, "Languages: %s\n", strings.Join(langs, ", "))
		}
		u.WriteString("\n")
	}

	u.WriteString("The JSON object must follow this exact schema:\n")
	u.WriteString(briefing.SchemaText)
	u.WriteString("\n")

	u.WriteString("\n--- BEGIN DIFF ---\n")
	u.WriteString(in.Chunk.Text)
	if !strings.HasSuffix(in.Chunk.Text, "\n") {
		u.WriteString("\n")
	}
	u.WriteString("--- END DIFF ---\n")

	return b.request(systemPrompt, u.String())
}

// Summary builds the final pass over a chunked diff. It sends the merged
// file descriptions and the partial summaries, never the diff text.
func (b Builder) Summary(files []briefing.FileChange, summaries []string, risks []briefing.RiskItem) providers.Request {
	var u strings.Builder

	u.WriteString("Part summaries:\n")
	for i, s := range summaries {
		fmt.Fprintf(&u, "%d. %s\n", i+1, oneLine(s))
	}

	u.WriteString("\nFile-by-file description:\n")
	for _, fc := range files {
		fmt.Fprintf(&u, "- %s (%s)\n", fc.Path, fc.ChangeKind)
		for _, d := range fc.Details {
			fmt.Fprintf(&u, "  - %s\n", oneLine(d))
		}
	}

	if len(risks) > 0 {
		u.WriteString("\nRisks noted per part:\n")
		for _, r := range risks {
			fmt.Fprintf(&u, "- %s: %s\n", r.Level, oneLine(r.Rationale))
		}
	}

	u.WriteString("\nThe JSON object must follow this exact schema:\n")
	u.WriteString(briefing.SummarySchemaText)
	u.WriteString("\n")

	return b.request(summarySystemPrompt, u.String())
}

// Repair builds the corrective follow-up for a rejected answer. It repeats
// the original request so the model has the full context again.
func (b Builder) Repair(original providers.Request, previous string, violation error) providers.Request {
	if len(previous) > maxPrevious {
		cut := maxPrevious
		for cut > 0 && !utf8.RuneStart(previous[cut]) {
			cut--
		}
		previous = previous[:cut] + "\n[truncated]"
	}

	var u strings.Builder
	u.WriteString(original.UserPrompt)
	u.WriteString("\n--- PREVIOUS ANSWER ---\n")
	u.WriteString(previous)
	if !strings.HasSuffix(previous, "\n") {
		u.WriteString("\n")
	}
	u.WriteString("--- END PREVIOUS ANSWER ---\n\n")
	fmt.Fprintf(&u, "Your previous answer was rejected: %v\n", violation)
	u.WriteString("Respond again with ONLY the corrected JSON object that follows the schema above. Keep everything that was already correct.\n")

	req := original
	req.UserPrompt = u.String()
	return req
}

func (b Builder) request(system, user string) providers.Request {
	return providers.Request{
		SystemPrompt: system,
		UserPrompt:   user,
		MaxTokens:    b.MaxTokens,
		Temperature:  b.Temperature,
		JSON:         true,
	}
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

var langByExt = map[string]string{
	".go":    "Go",
	".py":    "Python",
	".js":    "JavaScript",
	".ts":    "TypeScript",
	".tsx":   "TypeScript/React",
	".jsx":   "JavaScript/React",
	".rs":    "Rust",
	".java":  "Java",
	".rb":    "Ruby",
	".cpp":   "C++",
	".c":     "C",
	".h":     "C/C++",
	".cs":    "C#",
	".php":   "PHP",
	".swift": "Swift",
	".kt":    "Kotlin",
	".sql":   "SQL",
	".sh":    "Shell",
	".yaml":  "YAML",
	".yml":   "YAML",
	".json":  "JSON",
	".tf":    "Terraform",
}

// detectLanguages lists languages in order of first appearance.
func detectLanguages(files []diff.File) []string {
	seen := make(map[string]bool)
	var langs []string
	for _, f := range files {
		lang, ok := langByExt[strings.ToLower(filepath.Ext(f.Path))]
		if ok && !seen[lang] {
			seen[lang] = true
			langs = append(langs, lang)
		}
	}
	return langs
}
