package diff

import (
	"fmt"
	"strings"
)

// EmptyDiffError is returned by Normalize for a diff with no content.
type EmptyDiffError struct{}

func (e *EmptyDiffError) Error() string { return "diff is empty" }

// MetadataOnlyWarning reports a diff without hunks or content lines, such as
// a pure mode change. It is not fatal.
type MetadataOnlyWarning struct {
	Files []string
}

func (w *MetadataOnlyWarning) Error() string {
	if len(w.Files) == 0 {
		return "diff contains no hunks or content lines"
	}
	return fmt.Sprintf("diff contains no hunks or content lines (metadata-only changes to %s)", strings.Join(w.Files, ", "))
}
