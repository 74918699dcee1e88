package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/dshills/prpilot/internal/briefing"
)

// Marker is the hidden first line of every rendered briefing. Posting looks
// for a pull request comment starting with it and edits that comment instead
// of adding another.
const Marker = "<!-- pr-pilot-briefing -->"

// MarkdownWriter renders the PR comment. Output depends only on the
// briefing, so the same briefing always renders to the same bytes.
type MarkdownWriter struct{}

func (m *MarkdownWriter) Write(w io.Writer, b *briefing.Briefing) error {
	_, err := io.WriteString(w, Markdown(b))
	return err
}

// Markdown renders b as the briefing comment body.
func Markdown(b *briefing.Briefing) string {
	lines := []string{
		Marker,
		"### 🚀 PR-Pilot Briefing\n",
		"**A high-level summary of changes to help you start your review.**",
		"\n---\n",
		"#### 📝 **Overall Summary**\n",
		paragraphs(b.OverallSummary),
		"",
		"#### 🗂️ **File-by-File Breakdown**\n",
	}

	if len(b.FileChanges) == 0 {
		lines = append(lines, "* No file changes were detailed.")
	}
	for _, fc := range b.FileChanges {
		lines = append(lines, fmt.Sprintf("* **`%s`** _(%s)_:", codeSafe(fc.Path), fc.ChangeKind))
		if len(fc.Details) == 0 {
			lines = append(lines, "    * No specific changes were detailed.")
			continue
		}
		for _, d := range fc.Details {
			lines = append(lines, "    * "+oneLine(d))
		}
	}

	lines = append(lines, "\n#### 🚨 **Risk Assessment**\n")
	if len(b.RiskAssessment) == 0 {
		lines = append(lines, "* No risks identified.")
	}
	for _, r := range b.RiskAssessment {
		lines = append(lines, fmt.Sprintf("* **%s Risk:** %s", r.Level.Label(), oneLine(r.Rationale)))
	}

	return strings.Join(lines, "\n") + "\n"
}

// paragraphs trims each line and collapses blank runs into one blank line.
func paragraphs(s string) string {
	var out []string
	blank := false
	for _, l := range strings.Split(strings.TrimSpace(s), "\n") {
		l = strings.TrimSpace(l)
		if l == "" {
			blank = true
			continue
		}
		if blank && len(out) > 0 {
			out = append(out, "")
		}
		blank = false
		out = append(out, l)
	}
	return strings.Join(out, "\n")
}

// oneLine keeps a list item on one line so it cannot break the list.
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func codeSafe(path string) string {
	return strings.ReplaceAll(path, "`", "'")
}
