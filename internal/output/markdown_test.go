package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/prpilot/internal/briefing"
)

func storageBriefing() *briefing.Briefing {
	return &briefing.Briefing{
		OverallSummary: "Adds a delete operation to the storage class.",
		FileChanges: []briefing.FileChange{
			{Path: "src/storage.py", ChangeKind: briefing.ChangeModified, Details: []string{"Adds Storage.delete.", "Raises KeyError\nfor unknown keys."}},
			{Path: "docs/storage.md", ChangeKind: briefing.ChangeAdded, Details: []string{}},
		},
		RiskAssessment: []briefing.RiskItem{
			{Level: briefing.RiskHigh, Rationale: "Deletes are not journaled."},
			{Level: briefing.RiskLow, Rationale: "Docs only."},
		},
	}
}

const storageMarkdown = `<!-- pr-pilot-briefing -->
### 🚀 PR-Pilot Briefing

**A high-level summary of changes to help you start your review.**

---

#### 📝 **Overall Summary**

Adds a delete operation to the storage class.

#### 🗂️ **File-by-File Breakdown**

* **` + "`src/storage.py`" + `** _(modified)_:
    * Adds Storage.delete.
    * Raises KeyError for unknown keys.
* **` + "`docs/storage.md`" + `** _(added)_:
    * No specific changes were detailed.

#### 🚨 **Risk Assessment**

* **High Risk:** Deletes are not journaled.
* **Low Risk:** Docs only.
`

func TestMarkdown_Layout(t *testing.T) {
	assert.Equal(t, storageMarkdown, Markdown(storageBriefing()))
}

func TestMarkdown_Deterministic(t *testing.T) {
	first := Markdown(storageBriefing())
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Markdown(storageBriefing()))
	}
}

func TestMarkdown_HeadingOrder(t *testing.T) {
	out := Markdown(storageBriefing())
	headings := []string{"PR-Pilot Briefing", "Overall Summary", "File-by-File Breakdown", "Risk Assessment"}
	last := -1
	for _, h := range headings {
		i := strings.Index(out, h)
		require.GreaterOrEqual(t, i, 0, "missing %q", h)
		assert.Greater(t, i, last, "%q out of order", h)
		last = i
	}
}

func TestMarkdown_Empty(t *testing.T) {
	out := Markdown(&briefing.Briefing{OverallSummary: "Renames a file."})
	assert.Contains(t, out, "* No file changes were detailed.")
	assert.Contains(t, out, "* No risks identified.")
}

func TestMarkdown_SummaryParagraphs(t *testing.T) {
	b := storageBriefing()
	b.OverallSummary = "  First paragraph.\n\n\n   Second paragraph.  "
	out := Markdown(b)
	assert.Contains(t, out, "\n\nFirst paragraph.\n\nSecond paragraph.\n\n#### 🗂️")
}

func TestMarkdown_BacktickInPath(t *testing.T) {
	b := storageBriefing()
	b.FileChanges[0].Path = "weird`name.go"
	assert.Contains(t, Markdown(b), "* **`weird'name.go`**")
}

func TestMarkdownWriter(t *testing.T) {
	var buf bytes.Buffer
	w, err := GetWriter("markdown")
	require.NoError(t, err)
	require.NoError(t, w.Write(&buf, storageBriefing()))
	assert.Equal(t, storageMarkdown, buf.String())
}

func TestGetWriter(t *testing.T) {
	for _, f := range append(Formats, "md") {
		_, err := GetWriter(f)
		assert.NoError(t, err, f)
	}
	_, err := GetWriter("sarif")
	assert.Error(t, err)
}

func TestFitComment(t *testing.T) {
	body := Markdown(storageBriefing())

	got, truncated := FitComment(body, 100000)
	assert.False(t, truncated)
	assert.Equal(t, body, got)

	limit := 300
	got, truncated = FitComment(body, limit)
	assert.True(t, truncated)
	assert.LessOrEqual(t, len([]rune(got)), limit)
	assert.True(t, strings.HasSuffix(got, truncationNotice))
	prefix := strings.TrimSuffix(got, truncationNotice)
	assert.True(t, strings.HasPrefix(body, prefix+"\n"), "cut must fall on a line boundary")
}

func TestFitComment_CountsRunes(t *testing.T) {
	body := strings.Repeat("🚀", 50)
	got, truncated := FitComment(body, 50)
	assert.False(t, truncated)
	assert.Equal(t, body, got)

	got, truncated = FitComment(body, 10)
	assert.True(t, truncated)
	assert.Equal(t, strings.Repeat("🚀", 10), got)
}

func TestFitComment_NoLineBreak(t *testing.T) {
	body := strings.Repeat("x", 500)
	got, truncated := FitComment(body, 200)
	assert.True(t, truncated)
	assert.Len(t, []rune(got), 200)
}
