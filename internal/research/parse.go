package research

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrMalformedModelOutput indicates a model reply that does not match the
// fixed prompt contract. It is not locally recoverable and is surfaced to
// the workflow caller.
var ErrMalformedModelOutput = errors.New("malformed model output")

// ErrNoLookupResults indicates the paper-search collaborator returned no
// records for the input query.
var ErrNoLookupResults = errors.New("no lookup results for query")

// Reference is one synthesized citation.
type Reference struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// keywordMarker is the fixed marker the keyword-derivation prompt demands.
const keywordMarker = "[query]"

// referenceLine is the strict per-line grammar of synthesis output:
// "[i] title(url);".
var referenceLine = regexp.MustCompile(`^\[(\d+)\]\s*(.+?)\s*\((https?://[^)\s]+)\);?$`)

// ParseKeywords extracts the comma-separated keyword list behind the
// "[query]:" marker. The reply must contain the marker and yield exactly
// want keywords; anything else is ErrMalformedModelOutput.
func ParseKeywords(reply string, want int) ([]string, error) {
	idx := strings.Index(reply, keywordMarker)
	if idx < 0 {
		return nil, fmt.Errorf("%w: missing %q marker", ErrMalformedModelOutput, keywordMarker)
	}
	rest := reply[idx+len(keywordMarker):]
	colon := strings.Index(rest, ":")
	if colon < 0 {
		return nil, fmt.Errorf("%w: no separator after %q marker", ErrMalformedModelOutput, keywordMarker)
	}
	list := rest[colon+1:]
	if nl := strings.IndexByte(list, '\n'); nl >= 0 {
		list = list[:nl]
	}

	var keywords []string
	for _, part := range strings.Split(list, ",") {
		if kw := strings.TrimSpace(part); kw != "" {
			keywords = append(keywords, kw)
		}
	}
	if len(keywords) != want {
		return nil, fmt.Errorf("%w: expected %d keywords, got %d", ErrMalformedModelOutput, want, len(keywords))
	}
	return keywords, nil
}

// ParseReferences parses synthesis output line by line against the fixed
// "[i] title(url);" layout. Any non-empty line that does not match makes
// the whole reply malformed rather than silently dropping it.
func ParseReferences(reply string) ([]Reference, error) {
	var refs []Reference
	for _, raw := range strings.Split(reply, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		m := referenceLine.FindStringSubmatch(line)
		if m == nil {
			return nil, fmt.Errorf("%w: unparseable reference line %q", ErrMalformedModelOutput, line)
		}
		refs = append(refs, Reference{
			Title: strings.TrimSpace(m[2]),
			URL:   m[3],
		})
	}
	if len(refs) == 0 {
		return nil, fmt.Errorf("%w: no reference lines", ErrMalformedModelOutput)
	}
	return refs, nil
}
