package briefing

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// maxCandidates bounds how many '{' positions are tried when locating the
// JSON object inside a noisy answer.
const maxCandidates = 64

var (
	fenceLine = regexp.MustCompile("^\\s*```[A-Za-z0-9_-]*\\s*$")
	logLine   = regexp.MustCompile(`(?i)^\s*(?:\[?(?:trace|debug|info|notice|warn|warning|error|fatal)\]?(?::|\s|$)|(?:time|level|ts)=|\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2})`)
)

// Clean removes transport noise from a raw model answer: a byte order mark,
// raw control characters, markdown fence lines and log-style lines. A raw
// control character or a line starting with a fence or log prefix cannot
// occur inside a well-formed JSON object, so cleaning never alters one.
func Clean(raw string) string {
	s := strings.TrimPrefix(raw, "\ufeff")
	s = strings.Map(func(r rune) rune {
		if r < 0x20 && r != '\n' && r != '\t' && r != '\r' {
			return -1
		}
		return r
	}, s)

	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if fenceLine.MatchString(line) {
			continue
		}
		if logLine.MatchString(line) && !strings.Contains(line, "{") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// Decode cleans, parses and validates a raw model answer.
func Decode(raw string, rules Rules) (*Briefing, error) {
	doc, err := parseObject(Clean(raw))
	if err != nil {
		return nil, &MalformedResponseError{Err: err, Excerpt: excerpt(raw)}
	}
	return fromDocument(doc, rules)
}

// parseObject returns the first JSON object found in s. When no candidate
// decodes, the span between the outermost braces goes through jsonrepair.
func parseObject(s string) (map[string]any, error) {
	if s == "" {
		return nil, errors.New("empty response")
	}

	tried := 0
	for i := 0; i < len(s) && tried < maxCandidates; i++ {
		if s[i] != '{' {
			continue
		}
		tried++
		var obj map[string]any
		dec := json.NewDecoder(strings.NewReader(s[i:]))
		if err := dec.Decode(&obj); err == nil && looksLikeAnswer(obj) {
			return obj, nil
		}
	}

	span := s
	if start := strings.Index(s, "{"); start >= 0 {
		span = s[start:]
		if end := strings.LastIndex(span, "}"); end >= 0 {
			span = span[:end+1]
		}
	}
	repaired, err := jsonrepair.JSONRepair(span)
	if err != nil {
		return nil, fmt.Errorf("not valid JSON: %w", err)
	}
	var v any
	if err := json.Unmarshal([]byte(repaired), &v); err != nil {
		return nil, fmt.Errorf("not valid JSON after repair: %w", err)
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected a JSON object, got %s", typeName(v))
	}
	return obj, nil
}

// looksLikeAnswer rejects objects nested inside the answer, such as a single
// file_changes element, when the enclosing object failed to decode.
func looksLikeAnswer(obj map[string]any) bool {
	for _, k := range []string{"overall_summary", "file_changes", "risk_assessment"} {
		if _, ok := obj[k]; ok {
			return true
		}
	}
	return false
}

func excerpt(s string) string {
	const n = 200
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func fromDocument(doc map[string]any, rules Rules) (*Briefing, error) {
	var b Briefing

	summary, err := stringField(doc, "", "overall_summary")
	if err != nil {
		return nil, err
	}
	b.OverallSummary = summary

	if rules.Shape == ShapeBriefing {
		items, err := arrayField(doc, "", "file_changes")
		if err != nil {
			return nil, err
		}
		for i, item := range items {
			p := fmt.Sprintf("file_changes[%d]", i)
			obj, ok := item.(map[string]any)
			if !ok {
				return nil, violation(p, "expected object, got %s", typeName(item))
			}
			fc, err := fileChangeFrom(obj, p)
			if err != nil {
				return nil, err
			}
			b.FileChanges = append(b.FileChanges, fc)
		}
	}

	risks, err := arrayField(doc, "", "risk_assessment")
	if err != nil {
		return nil, err
	}
	for i, item := range risks {
		p := fmt.Sprintf("risk_assessment[%d]", i)
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, violation(p, "expected object, got %s", typeName(item))
		}
		level, err := stringField(obj, p, "level")
		if err != nil {
			return nil, err
		}
		rationale, err := stringField(obj, p, "rationale")
		if err != nil {
			return nil, err
		}
		b.RiskAssessment = append(b.RiskAssessment, RiskItem{Level: RiskLevel(level), Rationale: rationale})
	}

	b.normalize()
	if err := Validate(&b, rules); err != nil {
		return nil, err
	}
	return &b, nil
}

func fileChangeFrom(obj map[string]any, p string) (FileChange, error) {
	path, err := stringField(obj, p, "path")
	if err != nil {
		return FileChange{}, err
	}
	kind, err := stringField(obj, p, "change_kind")
	if err != nil {
		return FileChange{}, err
	}
	details, err := arrayField(obj, p, "details")
	if err != nil {
		return FileChange{}, err
	}
	fc := FileChange{Path: path, ChangeKind: ChangeKind(kind), Details: make([]string, 0, len(details))}
	for j, d := range details {
		s, ok := d.(string)
		if !ok {
			return FileChange{}, violation(fmt.Sprintf("%s.details[%d]", p, j), "expected string, got %s", typeName(d))
		}
		fc.Details = append(fc.Details, s)
	}
	return fc, nil
}

func field(obj map[string]any, prefix, name string) (any, string, error) {
	p := name
	if prefix != "" {
		p = prefix + "." + name
	}
	v, ok := obj[name]
	if !ok {
		return nil, p, violation(p, "required field is missing")
	}
	return v, p, nil
}

func stringField(obj map[string]any, prefix, name string) (string, error) {
	v, p, err := field(obj, prefix, name)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", violation(p, "expected string, got %s", typeName(v))
	}
	return s, nil
}

func arrayField(obj map[string]any, prefix, name string) ([]any, error) {
	v, p, err := field(obj, prefix, name)
	if err != nil {
		return nil, err
	}
	a, ok := v.([]any)
	if !ok {
		return nil, violation(p, "expected array, got %s", typeName(v))
	}
	return a, nil
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case float64, json.Number:
		return "number"
	case bool:
		return "boolean"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
