package briefing

// Shape selects which fields a model answer must carry.
type Shape int

const (
	// ShapeBriefing is a complete briefing: summary, file changes and risks.
	ShapeBriefing Shape = iota
	// ShapeSummary is the answer to the final merge pass: summary and risks only.
	ShapeSummary
)

func (s Shape) String() string {
	switch s {
	case ShapeBriefing:
		return "briefing"
	case ShapeSummary:
		return "summary"
	default:
		return "unknown"
	}
}

// SchemaText is the literal JSON schema a briefing answer must satisfy.
const SchemaText = `{
  "overall_summary": "string, required, non-empty. One to a few sentences describing the purpose and overall effect of the change.",
  "file_changes": [
    {
      "path": "string, required, non-empty. The file path exactly as it appears in the diff.",
      "change_kind": "string, required, one of: \"added\", \"modified\", \"removed\", \"renamed\"",
      "details": ["string, required array (may be empty). Each entry is one short, non-empty description of a discrete change within the file."]
    }
  ],
  "risk_assessment": [
    {
      "level": "string, required, one of: \"low\", \"medium\", \"high\"",
      "rationale": "string, required, non-empty. The potential side effect, critical modification or missing error handling behind this level."
    }
  ]
}`

// SummarySchemaText is the literal JSON schema for the final merge pass.
const SummarySchemaText = `{
  "overall_summary": "string, required, non-empty. One to a few sentences describing the purpose and overall effect of the whole change.",
  "risk_assessment": [
    {
      "level": "string, required, one of: \"low\", \"medium\", \"high\"",
      "rationale": "string, required, non-empty. The potential side effect, critical modification or missing error handling behind this level."
    }
  ]
}`

// Text returns the schema text for the shape.
func (s Shape) Text() string {
	if s == ShapeSummary {
		return SummarySchemaText
	}
	return SchemaText
}
