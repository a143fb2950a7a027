package arxiv

import (
	"fmt"
	"strings"
)

// FormatPapers renders records as the text fragments handlers append to the
// accumulator: one "key: value" run per paper, papers separated by suffix.
func FormatPapers(papers []Paper, suffix string) string {
	if suffix == "" {
		suffix = "\n"
	}
	var sb strings.Builder
	for _, p := range papers {
		parts := make([]string, 0, 6)
		if p.EntryID != "" {
			parts = append(parts, fmt.Sprintf("entry_id: %s", p.EntryID))
		}
		if p.Title != "" {
			parts = append(parts, fmt.Sprintf("title: %s", p.Title))
		}
		if p.Summary != "" {
			parts = append(parts, fmt.Sprintf("summary: %s", p.Summary))
		}
		if p.Published != "" {
			parts = append(parts, fmt.Sprintf("published: %s", p.Published))
		}
		if len(p.Authors) > 0 {
			parts = append(parts, fmt.Sprintf("authors: %s", strings.Join(p.Authors, ", ")))
		}
		if p.URL != "" {
			parts = append(parts, fmt.Sprintf("url: %s", p.URL))
		}
		sb.WriteString(strings.Join(parts, " "))
		sb.WriteString(suffix)
	}
	return sb.String()
}
