package output

import (
	"fmt"
	"io"
	"os"

	"github.com/dshills/prpilot/internal/briefing"
)

// Writer writes a briefing in a specific format.
type Writer interface {
	Write(w io.Writer, b *briefing.Briefing) error
}

// Formats lists the supported output formats.
var Formats = []string{"markdown", "json"}

// GetWriter returns a writer for the specified format.
func GetWriter(format string) (Writer, error) {
	switch format {
	case "markdown", "md", "":
		return &MarkdownWriter{}, nil
	case "json":
		return &JSONWriter{}, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

// WriteBriefing writes b to outPath, or to stdout when outPath is empty.
func WriteBriefing(b *briefing.Briefing, format, outPath string, stdout io.Writer) error {
	writer, err := GetWriter(format)
	if err != nil {
		return err
	}

	w := stdout
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	return writer.Write(w, b)
}
