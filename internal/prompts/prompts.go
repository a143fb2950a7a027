// Package prompts holds the fixed prompt contracts used against the
// language-model collaborator. Templates use {name} placeholders and can be
// overridden from a YAML file; compiled-in defaults apply otherwise.
package prompts

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Set is the complete prompt template set for both workflows.
type Set struct {
	// Keywords asks for exactly three comma-separated search keywords
	// behind the "[query]:" marker. Placeholders: {query}, {count}.
	Keywords string `yaml:"keywords"`
	// Synthesis asks for the top references in the fixed "[i] title(url);"
	// line layout. Placeholders: {fragments}, {max_references}.
	Synthesis string `yaml:"synthesis"`
	// Opinion asks for key insights and lessons learned. Placeholder:
	// {summary}.
	Opinion string `yaml:"opinion"`
	// FutureDirections asks for follow-up research suggestions.
	// Placeholder: {summary}.
	FutureDirections string `yaml:"future_directions"`
}

// Default returns the compiled-in prompt set.
func Default() Set {
	return Set{
		Keywords: "You are an arXiv research assistant. Based on the study described " +
			"below, produce exactly {count} arXiv search keywords that would surface " +
			"related work. Your reply must contain a single line of the form\n" +
			"[query]: keyword1, keyword2, keyword3\n" +
			"and nothing else.\n" +
			"Study:\n{query}",
		Synthesis: "From the candidate papers between the triple backticks, select the " +
			"{max_references} references most relevant to the research. Your output " +
			"must consist only of lines of the form\n" +
			"[1] title(url);\n" +
			"one reference per line, numbered from 1. Do not output anything else.\n" +
			"```{fragments}```",
		Opinion: "For the paper summary between the triple backticks, list the key " +
			"insights and the lessons learned, one point per line prefixed with `-`.\n" +
			"Format:\nKey insights:\n- ...\nLessons learned:\n- ...\n" +
			"```{summary}```",
		FutureDirections: "For the paper summary between the triple backticks, suggest 3-5 " +
			"related topics or future research directions, one per line prefixed " +
			"with `-`.\nFormat:\nSuggestions:\n- ...\n" +
			"```{summary}```",
	}
}

// Load overlays templates from a YAML file on the defaults. Empty fields in
// the file keep their default.
func Load(path string) (Set, error) {
	set := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return set, fmt.Errorf("read prompt file: %w", err)
	}
	var overlay Set
	if err := yaml.Unmarshal(raw, &overlay); err != nil {
		return set, fmt.Errorf("parse prompt file: %w", err)
	}
	if overlay.Keywords != "" {
		set.Keywords = overlay.Keywords
	}
	if overlay.Synthesis != "" {
		set.Synthesis = overlay.Synthesis
	}
	if overlay.Opinion != "" {
		set.Opinion = overlay.Opinion
	}
	if overlay.FutureDirections != "" {
		set.FutureDirections = overlay.FutureDirections
	}
	return set, nil
}

// Render substitutes {name} placeholders in tmpl.
func Render(tmpl string, vars map[string]string) string {
	out := tmpl
	for name, value := range vars {
		out = strings.ReplaceAll(out, "{"+name+"}", value)
	}
	return out
}
