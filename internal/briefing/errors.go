package briefing

import (
	"errors"
	"fmt"
)

// MalformedResponseError means the model answer could not be parsed as a
// JSON object, even after local syntactic repair.
type MalformedResponseError struct {
	Err     error
	Excerpt string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed model response: %v", e.Err)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// SchemaViolationError names the first field that does not conform to the
// briefing schema. Path uses the wire names, e.g. file_changes[2].change_kind.
type SchemaViolationError struct {
	Path   string
	Reason string
}

func (e *SchemaViolationError) Error() string {
	return fmt.Sprintf("schema violation at %s: %s", e.Path, e.Reason)
}

func violation(path, format string, args ...any) error {
	return &SchemaViolationError{Path: path, Reason: fmt.Sprintf(format, args...)}
}

// IsRejected reports whether err is a malformed answer or a schema violation,
// the two outcomes that warrant asking the model for a corrected answer.
func IsRejected(err error) bool {
	var malformed *MalformedResponseError
	var schema *SchemaViolationError
	return errors.As(err, &malformed) || errors.As(err, &schema)
}
