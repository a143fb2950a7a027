package prompts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderSubstitutesPlaceholders(t *testing.T) {
	out := Render("find {count} papers about {query}", map[string]string{
		"count": "3",
		"query": "fan-in barriers",
	})
	assert.Equal(t, "find 3 papers about fan-in barriers", out)
}

func TestDefaultPromptsCarryTheirContracts(t *testing.T) {
	set := Default()
	assert.Contains(t, set.Keywords, "[query]:")
	assert.Contains(t, set.Keywords, "{query}")
	assert.Contains(t, set.Synthesis, "[1] title(url);")
	assert.Contains(t, set.Synthesis, "{fragments}")
	assert.Contains(t, set.Opinion, "{summary}")
	assert.Contains(t, set.FutureDirections, "{summary}")
}

func TestLoadOverlaysOnDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.yaml")
	require.NoError(t, os.WriteFile(path, []byte("keywords: |\n  custom [query]: template for {query}\n"), 0o644))

	set, err := Load(path)
	require.NoError(t, err)
	assert.Contains(t, set.Keywords, "custom [query]:")
	assert.Equal(t, Default().Synthesis, set.Synthesis, "unset fields keep their default")
}

func TestLoadMissingFileKeepsDefaultsAndErrors(t *testing.T) {
	set, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Equal(t, Default(), set)
}
