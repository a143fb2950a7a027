package arxiv

import (
	"encoding/xml"
	"strings"
)

// Paper is one search record with the caller-requested fields populated.
type Paper struct {
	EntryID   string   `json:"entry_id,omitempty"`
	Title     string   `json:"title,omitempty"`
	Summary   string   `json:"summary,omitempty"`
	Published string   `json:"published,omitempty"`
	Authors   []string `json:"authors,omitempty"`
	URL       string   `json:"url,omitempty"`
}

// SearchOptions narrows a query: how many records, which fields to keep.
type SearchOptions struct {
	MaxResults int      `json:"max_results"`
	Fields     []string `json:"fields,omitempty"`
}

// Field names accepted in SearchOptions.Fields.
const (
	FieldEntryID   = "entry_id"
	FieldTitle     = "title"
	FieldSummary   = "summary"
	FieldPublished = "published"
	FieldAuthors   = "authors"
	FieldURL       = "url"
)

// feed mirrors the subset of the arXiv Atom response we consume.
type feed struct {
	XMLName xml.Name `xml:"feed"`
	Entries []entry  `xml:"entry"`
}

type entry struct {
	ID        string   `xml:"id"`
	Title     string   `xml:"title"`
	Summary   string   `xml:"summary"`
	Published string   `xml:"published"`
	Authors   []author `xml:"author"`
	Links     []link   `xml:"link"`
}

type author struct {
	Name string `xml:"name"`
}

type link struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
	Type string `xml:"type,attr"`
}

// project copies the requested fields from e into a Paper. An empty field
// list keeps everything.
func (e entry) project(fields []string) Paper {
	want := func(name string) bool {
		if len(fields) == 0 {
			return true
		}
		for _, f := range fields {
			if f == name {
				return true
			}
		}
		return false
	}

	var p Paper
	if want(FieldEntryID) {
		p.EntryID = strings.TrimSpace(e.ID)
	}
	if want(FieldTitle) {
		p.Title = normalizeWhitespace(e.Title)
	}
	if want(FieldSummary) {
		p.Summary = normalizeWhitespace(e.Summary)
	}
	if want(FieldPublished) {
		p.Published = strings.TrimSpace(e.Published)
	}
	if want(FieldAuthors) {
		for _, a := range e.Authors {
			p.Authors = append(p.Authors, strings.TrimSpace(a.Name))
		}
	}
	if want(FieldURL) {
		p.URL = e.abstractURL()
	}
	return p
}

// abstractURL prefers the alternate link; the entry id doubles as the
// abstract page when no link is present.
func (e entry) abstractURL() string {
	for _, l := range e.Links {
		if l.Rel == "alternate" {
			return l.Href
		}
	}
	return strings.TrimSpace(e.ID)
}

// normalizeWhitespace collapses the newline-wrapped text arXiv returns into
// single-spaced prose.
func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
