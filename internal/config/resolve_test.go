package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeCorpus writes a corpus config plus optional preset files into a
// temp dir and returns the config path.
func writeCorpus(t *testing.T, configYAML string, presets map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	if len(presets) > 0 {
		require.NoError(t, os.Mkdir(filepath.Join(dir, "presets"), 0o755))
		for name, content := range presets {
			path := filepath.Join(dir, "presets", name+".yaml")
			require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		}
	}
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(configYAML), 0o644))
	return path
}

const minimalConfig = `
metadata:
  id: mini
import:
  document_element: text
export:
  xml:
    annotations:
      - token.segment
      - token.pos
`

func TestLoadMinimal(t *testing.T) {
	eff, err := Load(writeCorpus(t, minimalConfig, nil))
	require.NoError(t, err)

	assert.Equal(t, "mini", eff.GetString("metadata.id", ""))
	// Defaults survive underneath the corpus overrides.
	assert.Equal(t, "swe", eff.GetString("metadata.language", ""))
	assert.Equal(t, "txt", eff.GetString("import.extension", ""))

	require.Equal(t, []string{"xml"}, eff.Exports())
	targets := eff.Targets("xml")
	require.Len(t, targets, 2)
	assert.Equal(t, "token.segment", targets[0].Annotation)
	assert.Equal(t, "token.pos", targets[1].Annotation)
}

func TestLoadMissingRequiredKeys(t *testing.T) {
	t.Run("corpus id", func(t *testing.T) {
		_, err := Load(writeCorpus(t, "import:\n  document_element: text\n", nil))
		var cfgErr *ConfigError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, "metadata.id", cfgErr.Key)
	})

	t.Run("document element", func(t *testing.T) {
		_, err := Load(writeCorpus(t, "metadata:\n  id: x\n", nil))
		var cfgErr *ConfigError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, "import.document_element", cfgErr.Key)
	})

	t.Run("export annotations list", func(t *testing.T) {
		cfg := "metadata:\n  id: x\nimport:\n  document_element: text\nexport:\n  xml: {}\n"
		_, err := Load(writeCorpus(t, cfg, nil))
		var cfgErr *ConfigError
		require.ErrorAs(t, err, &cfgErr)
		assert.Contains(t, cfgErr.Error(), "no annotations list")
	})
}

func TestDeepMergeNestedMaps(t *testing.T) {
	base := map[string]any{
		"a": map[string]any{"x": 1, "y": 2},
		"b": []any{"1"},
	}
	override := map[string]any{
		"a": map[string]any{"y": 3},
		"b": []any{"2", "3"},
	}
	out := deepMerge(base, override)
	assert.Equal(t, 1, out["a"].(map[string]any)["x"])
	assert.Equal(t, 3, out["a"].(map[string]any)["y"])
	// Lists replace wholesale.
	assert.Equal(t, []any{"2", "3"}, out["b"])
}

const presetConfig = `
metadata:
  id: presetcorpus
import:
  document_element: text
export:
  xml:
    annotations:
      - SWE_DEFAULT.core
      - sentence.segment
`

const swePreset = `
classes:
  token: token.segment
groups:
  core:
    - token.segment
    - "<token>:token.pos"
  extra:
    - token.lemma
`

func TestPresetExpansion(t *testing.T) {
	eff, err := Load(writeCorpus(t, presetConfig, map[string]string{"SWE_DEFAULT": swePreset}))
	require.NoError(t, err)

	targets := eff.Targets("xml")
	require.Len(t, targets, 3)
	assert.Equal(t, "token.segment", targets[0].Annotation)
	assert.Equal(t, "token.pos", targets[1].Annotation)
	assert.Equal(t, "token", targets[1].Class)
	assert.Equal(t, "sentence.segment", targets[2].Annotation)

	// The preset's class default was installed.
	concrete, ok := eff.ResolveClass("token")
	require.True(t, ok)
	assert.Equal(t, "token.segment", concrete)
}

func TestPresetExpansionIdempotent(t *testing.T) {
	// A list that is already literal passes through unchanged.
	eff, err := Load(writeCorpus(t, minimalConfig, map[string]string{"SWE_DEFAULT": swePreset}))
	require.NoError(t, err)
	targets := eff.Targets("xml")
	require.Len(t, targets, 2)
	assert.Equal(t, "token.segment", targets[0].Annotation)
	assert.Equal(t, "token.pos", targets[1].Annotation)
}

func TestPresetCycleDetected(t *testing.T) {
	a := "groups:\n  g:\n    - B.g\n"
	b := "groups:\n  g:\n    - A.g\n"
	cfg := `
metadata:
  id: x
import:
  document_element: text
export:
  xml:
    annotations: ["A.g"]
`
	_, err := Load(writeCorpus(t, cfg, map[string]string{"A": a, "B": b}))
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Error(), "cycle")
}

func TestUnknownPresetGroup(t *testing.T) {
	cfg := `
metadata:
  id: x
import:
  document_element: text
export:
  xml:
    annotations: ["SWE_DEFAULT.nope"]
`
	_, err := Load(writeCorpus(t, cfg, map[string]string{"SWE_DEFAULT": swePreset}))
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Error(), `no group "nope"`)
}

func TestNegationRemovesMatchingEntry(t *testing.T) {
	cfg := `
metadata:
  id: x
import:
  document_element: text
export:
  xml:
    annotations:
      - SWE_DEFAULT.core
      - not token.pos
`
	eff, err := Load(writeCorpus(t, cfg, map[string]string{"SWE_DEFAULT": swePreset}))
	require.NoError(t, err)
	targets := eff.Targets("xml")
	require.Len(t, targets, 1)
	assert.Equal(t, "token.segment", targets[0].Annotation)
}

func TestNegationWithoutMatchFails(t *testing.T) {
	cfg := `
metadata:
  id: x
import:
  document_element: text
export:
  xml:
    annotations:
      - token.segment
      - not token.pos
`
	_, err := Load(writeCorpus(t, cfg, nil))
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Error(), `negation of "token.pos" matches no previously included annotation`)
}

func TestCorpusClassesWinOverPresetDefaults(t *testing.T) {
	cfg := `
metadata:
  id: x
import:
  document_element: text
classes:
  token: word.segment
export:
  xml:
    annotations: ["SWE_DEFAULT.core"]
`
	eff, err := Load(writeCorpus(t, cfg, map[string]string{"SWE_DEFAULT": swePreset}))
	require.NoError(t, err)
	concrete, ok := eff.ResolveClass("token")
	require.True(t, ok)
	assert.Equal(t, "word.segment", concrete)
	// The bare "<token>" member of the preset now resolves to the override.
	targets := eff.Targets("xml")
	assert.Equal(t, "token", targets[1].Class)
}

func TestUndefinedClassReference(t *testing.T) {
	cfg := `
metadata:
  id: x
import:
  document_element: text
export:
  xml:
    annotations: ["<chunk>:chunk.type"]
`
	_, err := Load(writeCorpus(t, cfg, nil))
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Error(), `undefined class "chunk"`)
}

func TestExportRenaming(t *testing.T) {
	cfg := `
metadata:
  id: x
import:
  document_element: text
export:
  xml:
    annotations:
      - token.pos as msd
`
	eff, err := Load(writeCorpus(t, cfg, nil))
	require.NoError(t, err)
	targets := eff.Targets("xml")
	require.Len(t, targets, 1)
	assert.Equal(t, "token.pos", targets[0].Annotation)
	assert.Equal(t, "msd", targets[0].Name())
}

func TestCustomAnnotations(t *testing.T) {
	cfg := `
metadata:
  id: x
import:
  document_element: text
custom_annotations:
  - rule: tagger:pos
    output: token.mypos
    config:
      lexicon: tiny
export:
  xml:
    annotations: ["token.mypos"]
`
	eff, err := Load(writeCorpus(t, cfg, nil))
	require.NoError(t, err)
	custom := eff.Custom()
	require.Len(t, custom, 1)
	assert.Equal(t, "tagger:pos", custom[0].Rule)
	assert.Equal(t, "token.mypos", custom[0].Output)
	assert.Equal(t, "tiny", custom[0].Config["lexicon"])
}

func TestSubtreeCoversOnlyDeclaredKeys(t *testing.T) {
	eff, err := Load(writeCorpus(t, minimalConfig, nil))
	require.NoError(t, err)
	sub := eff.Subtree([]string{"import.extension", "metadata.language", "missing.key"})
	assert.Equal(t, map[string]any{
		"import.extension":  "txt",
		"metadata.language": "swe",
	}, sub)
}
