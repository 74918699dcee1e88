package briefing

import (
	"fmt"
	"strings"
)

// Rules controls validation of one answer.
type Rules struct {
	Shape Shape
	// AllowEmptyRisks permits an empty risk_assessment. Only metadata-only
	// diffs and per-chunk partial briefings set it.
	AllowEmptyRisks bool
	// Paths, when set, is the exact set of files file_changes must cover.
	Paths []string
}

// Validate checks the semantic rules of the schema on an already typed
// briefing: non-empty strings, enum membership and file coverage.
func Validate(b *Briefing, rules Rules) error {
	if strings.TrimSpace(b.OverallSummary) == "" {
		return violation("overall_summary", "must be a non-empty string")
	}

	if rules.Shape == ShapeBriefing {
		if err := validateFiles(b.FileChanges, rules.Paths); err != nil {
			return err
		}
	}

	if len(b.RiskAssessment) == 0 && !rules.AllowEmptyRisks {
		return violation("risk_assessment", "must contain at least one item")
	}
	for i, r := range b.RiskAssessment {
		p := fmt.Sprintf("risk_assessment[%d]", i)
		if !r.Level.Valid() {
			return violation(p+".level", "must be one of %s, got %q", joinLevels(), r.Level)
		}
		if strings.TrimSpace(r.Rationale) == "" {
			return violation(p+".rationale", "must be a non-empty string")
		}
	}
	return nil
}

func validateFiles(files []FileChange, paths []string) error {
	seen := make(map[string]bool, len(files))
	for i, fc := range files {
		p := fmt.Sprintf("file_changes[%d]", i)
		if strings.TrimSpace(fc.Path) == "" {
			return violation(p+".path", "must be a non-empty string")
		}
		if seen[fc.Path] {
			return violation(p+".path", "duplicate entry for %q", fc.Path)
		}
		seen[fc.Path] = true
		if !fc.ChangeKind.Valid() {
			return violation(p+".change_kind", "must be one of %s, got %q", joinKinds(), fc.ChangeKind)
		}
		for j, d := range fc.Details {
			if strings.TrimSpace(d) == "" {
				return violation(fmt.Sprintf("%s.details[%d]", p, j), "must be a non-empty string")
			}
		}
	}

	if len(paths) == 0 {
		return nil
	}
	want := make(map[string]bool, len(paths))
	for _, path := range paths {
		want[path] = true
	}
	for i, fc := range files {
		if !want[fc.Path] {
			return violation(fmt.Sprintf("file_changes[%d].path", i), "%q does not appear in the diff", fc.Path)
		}
	}
	for _, path := range paths {
		if !seen[path] {
			return violation("file_changes", "missing entry for %q", path)
		}
	}
	return nil
}

func joinKinds() string {
	names := make([]string, len(ChangeKinds))
	for i, k := range ChangeKinds {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}

func joinLevels() string {
	names := make([]string, len(RiskLevels))
	for i, l := range RiskLevels {
		names[i] = string(l)
	}
	return strings.Join(names, ", ")
}
