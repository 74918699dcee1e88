package diff

import (
	"strings"

	"github.com/dshills/prpilot/internal/briefing"
)

// DefaultChunkBytes is the per-chunk budget used when none is configured.
const DefaultChunkBytes = 100000 // 100KB

// Chunk is a contiguous slice of the raw diff sent to the model in one request.
type Chunk struct {
	Index int
	Text  string
	Files []string
}

// File is one file section of a unified diff.
type File struct {
	Path    string
	OldPath string
	Kind    briefing.ChangeKind
	Hunks   int
	Binary  bool
}

// Result is the outcome of normalizing a raw diff.
type Result struct {
	Chunks       []Chunk
	Files        []File
	MetadataOnly bool
}

// Paths returns the file paths in order of first appearance.
func (r Result) Paths() []string {
	paths := make([]string, 0, len(r.Files))
	for _, f := range r.Files {
		paths = append(paths, f.Path)
	}
	return paths
}

// Warning returns a *MetadataOnlyWarning when the diff carries no hunks or
// content lines, and nil otherwise.
func (r Result) Warning() error {
	if !r.MetadataOnly {
		return nil
	}
	return &MetadataOnlyWarning{Files: r.Paths()}
}

// FilesIn returns the parsed files whose paths are listed by the chunk.
func (r Result) FilesIn(c Chunk) []File {
	want := make(map[string]bool, len(c.Files))
	for _, p := range c.Files {
		want[p] = true
	}
	var out []File
	for _, f := range r.Files {
		if want[f.Path] {
			out = append(out, f)
		}
	}
	return out
}

// Normalize validates raw and splits it into chunks of at most budget bytes.
// Chunks never split a line; they break at file boundaries first and at hunk
// boundaries for a file that alone exceeds the budget. A single hunk larger
// than the budget becomes its own oversized chunk. Concatenating the chunk
// texts in order yields raw.
func Normalize(raw string, budget int) (Result, error) {
	if strings.TrimSpace(raw) == "" {
		return Result{}, &EmptyDiffError{}
	}
	if budget <= 0 {
		budget = DefaultChunkBytes
	}

	sections := Sections(raw)
	res := Result{
		Files:        make([]File, 0, len(sections)),
		MetadataOnly: isMetadataOnly(raw),
	}
	seen := make(map[string]bool, len(sections))
	for _, sec := range sections {
		if sec.File.Path != "" && !seen[sec.File.Path] {
			seen[sec.File.Path] = true
			res.Files = append(res.Files, sec.File)
		}
	}

	if len(raw) <= budget {
		res.Chunks = []Chunk{{Index: 0, Text: raw, Files: res.Paths()}}
		return res, nil
	}

	var pieces []piece
	for _, sec := range sections {
		if len(sec.Text) <= budget {
			pieces = append(pieces, piece{text: sec.Text, path: sec.File.Path})
			continue
		}
		for _, h := range splitHunks(sec.Text, budget) {
			pieces = append(pieces, piece{text: h, path: sec.File.Path})
		}
	}
	res.Chunks = pack(pieces, budget)
	return res, nil
}

// ParseFiles returns the file sections of raw in order of first appearance.
func ParseFiles(raw string) []File {
	var files []File
	seen := make(map[string]bool)
	for _, sec := range Sections(raw) {
		if sec.File.Path != "" && !seen[sec.File.Path] {
			seen[sec.File.Path] = true
			files = append(files, sec.File)
		}
	}
	return files
}

// Section is the text of one file in a diff together with what was parsed
// from its header.
type Section struct {
	Text string
	File File
}

// HunkOffset returns the byte offset of the first hunk header in s.Text, or
// -1 when the section has no hunks.
func (s Section) HunkOffset() int {
	if strings.HasPrefix(s.Text, "@@") {
		return 0
	}
	if i := strings.Index(s.Text, "\n@@"); i >= 0 {
		return i + 1
	}
	return -1
}

type piece struct {
	text string
	path string
}

func pack(pieces []piece, budget int) []Chunk {
	var chunks []Chunk
	var current strings.Builder
	var files []string
	seen := make(map[string]bool)

	flush := func() {
		if current.Len() == 0 {
			return
		}
		chunks = append(chunks, Chunk{Index: len(chunks), Text: current.String(), Files: files})
		current.Reset()
		files = nil
		seen = make(map[string]bool)
	}

	for _, p := range pieces {
		if current.Len() > 0 && current.Len()+len(p.text) > budget {
			flush()
		}
		current.WriteString(p.text)
		if p.path != "" && !seen[p.path] {
			seen[p.path] = true
			files = append(files, p.path)
		}
	}
	flush()
	return chunks
}

// lines splits s after each newline so that joining the result gives s back.
func lines(s string) []string {
	out := strings.SplitAfter(s, "\n")
	if n := len(out); n > 0 && out[n-1] == "" {
		out = out[:n-1]
	}
	return out
}

// Sections splits raw at file boundaries, recognizing both git diffs and
// plain unified diffs. Text before the first file header stays attached to
// the first section, and concatenating the section texts yields raw.
func Sections(raw string) []Section {
	all := lines(raw)
	gitStyle := false
	for _, l := range all {
		if strings.HasPrefix(l, "diff --git ") {
			gitStyle = true
			break
		}
	}

	var sections []Section
	var current strings.Builder
	hasHeader := false
	inHunk := false
	for i, l := range all {
		start := false
		if gitStyle {
			start = strings.HasPrefix(l, "diff --git ")
		} else {
			// plain unified diffs have no git header; a "---" line followed by
			// "+++" starts a file once the current one has a hunk
			start = strings.HasPrefix(l, "--- ") && i+1 < len(all) && strings.HasPrefix(all[i+1], "+++ ") && (inHunk || !hasHeader)
		}
		if start {
			if hasHeader {
				sections = append(sections, newSection(current.String()))
				current.Reset()
			}
			hasHeader = true
			inHunk = false
		}
		if strings.HasPrefix(l, "@@") {
			inHunk = true
		}
		current.WriteString(l)
	}
	if current.Len() > 0 {
		sections = append(sections, newSection(current.String()))
	}
	return sections
}

func newSection(text string) Section {
	return Section{Text: text, File: parseFile(text)}
}

// splitHunks breaks one file section at hunk headers and packs consecutive
// hunks, keeping the file header with the first one.
func splitHunks(text string, budget int) []string {
	var parts []string
	var current strings.Builder
	for _, l := range lines(text) {
		if strings.HasPrefix(l, "@@") && current.Len() > 0 && hasHunk(current.String()) {
			parts = append(parts, current.String())
			current.Reset()
		}
		current.WriteString(l)
	}
	if current.Len() > 0 {
		parts = append(parts, current.String())
	}

	var out []string
	var acc strings.Builder
	for _, p := range parts {
		if acc.Len() > 0 && acc.Len()+len(p) > budget {
			out = append(out, acc.String())
			acc.Reset()
		}
		acc.WriteString(p)
	}
	if acc.Len() > 0 {
		out = append(out, acc.String())
	}
	return out
}

func hasHunk(s string) bool {
	return Section{Text: s}.HunkOffset() >= 0
}

func parseFile(text string) File {
	f := File{Kind: briefing.ChangeModified}
	var gitPath, minusPath string
	for _, l := range lines(text) {
		l = strings.TrimRight(l, "\r\n")
		switch {
		case strings.HasPrefix(l, "diff --git "):
			gitPath = pathFromGitHeader(l)
		case strings.HasPrefix(l, "new file mode"):
			f.Kind = briefing.ChangeAdded
		case strings.HasPrefix(l, "deleted file mode"):
			f.Kind = briefing.ChangeRemoved
		case strings.HasPrefix(l, "rename from "):
			f.OldPath = strings.TrimPrefix(l, "rename from ")
			f.Kind = briefing.ChangeRenamed
		case strings.HasPrefix(l, "rename to "):
			f.Path = strings.TrimPrefix(l, "rename to ")
			f.Kind = briefing.ChangeRenamed
		case strings.HasPrefix(l, "Binary files "):
			f.Binary = true
		case strings.HasPrefix(l, "--- ") && f.Hunks == 0:
			p := headerPath(strings.TrimPrefix(l, "--- "))
			if p == "/dev/null" {
				f.Kind = briefing.ChangeAdded
			} else {
				minusPath = p
			}
		case strings.HasPrefix(l, "+++ ") && f.Hunks == 0:
			p := headerPath(strings.TrimPrefix(l, "+++ "))
			if p == "/dev/null" {
				f.Kind = briefing.ChangeRemoved
			} else if f.Path == "" {
				f.Path = p
			}
		case strings.HasPrefix(l, "@@"):
			f.Hunks++
		}
	}
	if f.Path == "" {
		f.Path = gitPath
	}
	if f.Path == "" {
		f.Path = minusPath
	}
	return f
}

// headerPath strips the a/ or b/ prefix and any trailing timestamp from a
// ---/+++ header value.
func headerPath(v string) string {
	if i := strings.IndexByte(v, '\t'); i >= 0 {
		v = v[:i]
	}
	v = strings.TrimSpace(v)
	if v == "/dev/null" {
		return v
	}
	if strings.HasPrefix(v, "a/") || strings.HasPrefix(v, "b/") {
		return v[2:]
	}
	return v
}

// pathFromGitHeader returns the b-side path of "diff --git a/x b/y".
func pathFromGitHeader(l string) string {
	rest := strings.TrimPrefix(l, "diff --git ")
	if i := strings.LastIndex(rest, " b/"); i >= 0 {
		return rest[i+3:]
	}
	return ""
}

// isMetadataOnly reports whether raw has no hunk headers and no added or
// removed content lines.
func isMetadataOnly(raw string) bool {
	for _, l := range lines(raw) {
		switch {
		case strings.HasPrefix(l, "@@"):
			return false
		case strings.HasPrefix(l, "+++ "), strings.HasPrefix(l, "--- "):
			continue
		case strings.HasPrefix(l, "+"), strings.HasPrefix(l, "-"):
			return false
		}
	}
	return true
}
