package review

import (
	"sort"
	"strings"

	"github.com/dshills/prpilot/internal/briefing"
)

// mergePartials concatenates chunk briefings in chunk order. A file split
// across chunks keeps its first entry; the details of later entries are
// appended to it.
func mergePartials(parts []*briefing.Briefing) ([]briefing.FileChange, []string, []briefing.RiskItem) {
	var (
		files     []briefing.FileChange
		summaries []string
		risks     []briefing.RiskItem
	)
	index := make(map[string]int)
	for _, part := range parts {
		summaries = append(summaries, strings.TrimSpace(part.OverallSummary))
		for _, fc := range part.FileChanges {
			if i, ok := index[fc.Path]; ok {
				files[i].Details = append(files[i].Details, fc.Details...)
				continue
			}
			index[fc.Path] = len(files)
			files = append(files, briefing.FileChange{
				Path:       fc.Path,
				ChangeKind: fc.ChangeKind,
				Details:    append([]string{}, fc.Details...),
			})
		}
		risks = append(risks, part.RiskAssessment...)
	}
	return files, summaries, dedupRisks(risks)
}

// dedupRisks drops repeated (level, rationale) pairs and orders the rest by
// descending level, keeping chunk order within a level.
func dedupRisks(risks []briefing.RiskItem) []briefing.RiskItem {
	seen := make(map[string]bool, len(risks))
	out := make([]briefing.RiskItem, 0, len(risks))
	for _, r := range risks {
		key := string(r.Level) + "\x00" + strings.ToLower(strings.Join(strings.Fields(r.Rationale), " "))
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Level.Rank() > out[j].Level.Rank()
	})
	return out
}

func joinSummaries(summaries []string) string {
	var parts []string
	for _, s := range summaries {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}
