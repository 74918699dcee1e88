package output

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/dshills/prpilot/internal/briefing"
)

// JSONWriter outputs the validated briefing as indented JSON.
type JSONWriter struct{}

func (j *JSONWriter) Write(w io.Writer, b *briefing.Briefing) error {
	data, err := json.MarshalIndent(withEmptyLists(b), "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	_, err = w.Write(data)
	if err != nil {
		return fmt.Errorf("writing JSON: %w", err)
	}
	_, err = fmt.Fprintln(w)
	return err
}

// withEmptyLists copies b so that absent lists encode as [] rather than null.
func withEmptyLists(b *briefing.Briefing) briefing.Briefing {
	out := briefing.Briefing{
		OverallSummary: b.OverallSummary,
		FileChanges:    make([]briefing.FileChange, 0, len(b.FileChanges)),
		RiskAssessment: make([]briefing.RiskItem, 0, len(b.RiskAssessment)),
	}
	for _, fc := range b.FileChanges {
		if fc.Details == nil {
			fc.Details = []string{}
		}
		out.FileChanges = append(out.FileChanges, fc)
	}
	out.RiskAssessment = append(out.RiskAssessment, b.RiskAssessment...)
	return out
}
