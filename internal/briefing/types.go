package briefing

import "strings"

// ChangeKind classifies how a file was touched by the diff.
type ChangeKind string

const (
	ChangeAdded    ChangeKind = "added"
	ChangeModified ChangeKind = "modified"
	ChangeRemoved  ChangeKind = "removed"
	ChangeRenamed  ChangeKind = "renamed"
)

// ChangeKinds lists every accepted change_kind value in schema order.
var ChangeKinds = []ChangeKind{ChangeAdded, ChangeModified, ChangeRemoved, ChangeRenamed}

// Valid reports whether k is one of the accepted change kinds.
func (k ChangeKind) Valid() bool {
	switch k {
	case ChangeAdded, ChangeModified, ChangeRemoved, ChangeRenamed:
		return true
	}
	return false
}

// RiskLevel is the severity attached to a risk item.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// RiskLevels lists every accepted risk level in schema order.
var RiskLevels = []RiskLevel{RiskLow, RiskMedium, RiskHigh}

// Valid reports whether l is one of the accepted risk levels.
func (l RiskLevel) Valid() bool {
	switch l {
	case RiskLow, RiskMedium, RiskHigh:
		return true
	}
	return false
}

// Rank returns a numeric rank for comparisons (higher = more severe).
func (l RiskLevel) Rank() int {
	switch l {
	case RiskHigh:
		return 3
	case RiskMedium:
		return 2
	case RiskLow:
		return 1
	default:
		return 0
	}
}

// Label returns the level with its first letter upper-cased, e.g. "High".
func (l RiskLevel) Label() string {
	s := string(l)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// Briefing is the structured summary produced for one pull request.
type Briefing struct {
	OverallSummary string       `json:"overall_summary"`
	FileChanges    []FileChange `json:"file_changes"`
	RiskAssessment []RiskItem   `json:"risk_assessment"`
}

// FileChange describes the changes made to a single file.
type FileChange struct {
	Path       string     `json:"path"`
	ChangeKind ChangeKind `json:"change_kind"`
	Details    []string   `json:"details"`
}

// RiskItem is a single entry of the risk assessment.
type RiskItem struct {
	Level     RiskLevel `json:"level"`
	Rationale string    `json:"rationale"`
}

// OrderFiles reorders FileChanges to follow order, the sequence in which
// paths first appear in the diff. The sort is stable and paths missing from
// order keep their relative position after the known ones.
func (b *Briefing) OrderFiles(order []string) {
	if len(order) == 0 || len(b.FileChanges) < 2 {
		return
	}
	rank := make(map[string]int, len(order))
	for i, p := range order {
		if _, ok := rank[p]; !ok {
			rank[p] = i
		}
	}
	known := make([]FileChange, 0, len(b.FileChanges))
	var unknown []FileChange
	for _, fc := range b.FileChanges {
		if _, ok := rank[fc.Path]; ok {
			known = append(known, fc)
		} else {
			unknown = append(unknown, fc)
		}
	}
	// insertion sort keeps equal ranks stable and the lists are short
	for i := 1; i < len(known); i++ {
		for j := i; j > 0 && rank[known[j].Path] < rank[known[j-1].Path]; j-- {
			known[j], known[j-1] = known[j-1], known[j]
		}
	}
	b.FileChanges = append(known, unknown...)
}

// normalize replaces nil slices with empty ones so JSON output never
// contains null for a list field.
func (b *Briefing) normalize() {
	if b.FileChanges == nil {
		b.FileChanges = []FileChange{}
	}
	if b.RiskAssessment == nil {
		b.RiskAssessment = []RiskItem{}
	}
	for i := range b.FileChanges {
		if b.FileChanges[i].Details == nil {
			b.FileChanges[i].Details = []string{}
		}
	}
}
