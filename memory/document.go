package memory

import (
	"fmt"
	"strings"

	"github.com/hupe1980/ragflow/core"
)

// Document is a unit of indexed text.
type Document struct {
	ID       string
	Content  string
	Metadata map[string]string
}

// FormatResults renders results as "[id]\ncontent" blocks separated by a
// blank line, preserving their order. No results yield an empty string.
func FormatResults(results []core.SearchResult) string {
	if len(results) == 0 {
		return ""
	}

	blocks := make([]string, 0, len(results))
	for _, r := range results {
		blocks = append(blocks, fmt.Sprintf("[%s]\n%s", r.ID, strings.TrimSpace(r.Content)))
	}

	return strings.Join(blocks, "\n\n")
}

func copyMetadata(md map[string]string) map[string]any {
	out := make(map[string]any, len(md))
	for k, v := range md {
		out[k] = v
	}
	return out
}
