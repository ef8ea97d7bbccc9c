package freshness

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/annogrid/internal/config"
	"github.com/vk/annogrid/internal/plan"
	"github.com/vk/annogrid/internal/registry"
	"github.com/vk/annogrid/internal/store"
)

const corpusYAML = `
metadata:
  id: freshcorpus
import:
  document_element: text
segment:
  model: default
`

type fixture struct {
	eff     *config.Effective
	store   *store.Store
	tracker *Tracker
	dir     string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(corpusYAML), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "source"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "source", "doc1.txt"), []byte("hello world\n"), 0o644))

	eff, err := config.Load(filepath.Join(dir, "config.yaml"))
	require.NoError(t, err)
	st, err := store.Open(filepath.Join(dir, "work"))
	require.NoError(t, err)

	return &fixture{eff: eff, store: st, tracker: New(st, eff), dir: dir}
}

func importerRule() *registry.Rule {
	return &registry.Rule{
		Module: "textimport", Name: "parse",
		Kind:    registry.KindImporter,
		Outputs: []string{"text.content"},
	}
}

func tokenizerRule() *registry.Rule {
	return &registry.Rule{
		Module: "segment", Name: "tokenize",
		Inputs:     []string{"text.content"},
		Outputs:    []string{"token.segment"},
		ConfigKeys: []string{"segment.model"},
	}
}

// chain builds the two-node importer -> tokenizer plan for doc1.
func chain(t *testing.T) *plan.Graph {
	t.Helper()
	g := plan.New()
	g.Add(&plan.Node{
		ID: plan.NodeID("textimport:parse", "doc1"), Rule: importerRule(),
		Document: "doc1", Outputs: []string{"text.content"},
	})
	g.Add(&plan.Node{
		ID: plan.NodeID("segment:tokenize", "doc1"), Rule: tokenizerRule(),
		Document: "doc1", Inputs: []string{"text.content"}, Outputs: []string{"token.segment"},
	})
	require.NoError(t, g.AddEdge("textimport:parse@doc1", "segment:tokenize@doc1"))
	return g
}

// writeFresh persists a node's outputs under its current fingerprint.
func (f *fixture) writeFresh(t *testing.T, rule *registry.Rule, doc string) {
	t.Helper()
	fp, err := Fingerprint(f.eff, rule)
	require.NoError(t, err)
	for _, output := range rule.Outputs {
		meta := store.Meta{Shape: store.ShapeBlob, Fingerprint: fp, Produced: time.Now()}
		require.NoError(t, f.store.Write(doc, output, meta, []byte("payload")))
	}
}

func TestFingerprintStable(t *testing.T) {
	f := newFixture(t)
	rule := tokenizerRule()

	first, err := Fingerprint(f.eff, rule)
	require.NoError(t, err)
	second, err := Fingerprint(f.eff, rule)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestFingerprintSensitiveToConfigAndSettings(t *testing.T) {
	f := newFixture(t)
	base, err := Fingerprint(f.eff, tokenizerRule())
	require.NoError(t, err)

	// A declared config key with a different value changes the hash.
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"),
		[]byte("metadata:\n  id: freshcorpus\nimport:\n  document_element: text\nsegment:\n  model: bert\n"), 0o644))
	other, err := config.Load(filepath.Join(dir, "config.yaml"))
	require.NoError(t, err)
	altered, err := Fingerprint(other, tokenizerRule())
	require.NoError(t, err)
	assert.NotEqual(t, base, altered)

	// Bound settings change the hash too.
	custom := tokenizerRule()
	custom.Settings = map[string]any{"model": "crf"}
	withSettings, err := Fingerprint(f.eff, custom)
	require.NoError(t, err)
	assert.NotEqual(t, base, withSettings)
}

func TestFingerprintIgnoresUndeclaredKeys(t *testing.T) {
	f := newFixture(t)
	base, err := Fingerprint(f.eff, tokenizerRule())
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"),
		[]byte("metadata:\n  id: freshcorpus\nimport:\n  document_element: text\nsegment:\n  model: default\nunrelated: 42\n"), 0o644))
	other, err := config.Load(filepath.Join(dir, "config.yaml"))
	require.NoError(t, err)
	same, err := Fingerprint(other, tokenizerRule())
	require.NoError(t, err)
	assert.Equal(t, base, same)
}

func TestPruneFreshChain(t *testing.T) {
	f := newFixture(t)
	g := chain(t)
	f.writeFresh(t, importerRule(), "doc1")
	f.writeFresh(t, tokenizerRule(), "doc1")

	pruned, err := f.tracker.Prune(context.Background(), g)
	require.NoError(t, err)
	assert.Equal(t, 2, pruned)
	assert.Equal(t, plan.Pruned, g.Nodes["textimport:parse@doc1"].State())
	assert.Equal(t, plan.Pruned, g.Nodes["segment:tokenize@doc1"].State())
}

func TestPruneMissingArtifact(t *testing.T) {
	f := newFixture(t)
	g := chain(t)
	f.writeFresh(t, importerRule(), "doc1")
	// Tokenizer output never written.

	pruned, err := f.tracker.Prune(context.Background(), g)
	require.NoError(t, err)
	assert.Equal(t, 1, pruned)
	assert.Equal(t, plan.Pending, g.Nodes["segment:tokenize@doc1"].State())
}

func TestPruneFingerprintMismatch(t *testing.T) {
	f := newFixture(t)
	g := chain(t)
	f.writeFresh(t, importerRule(), "doc1")
	// Tokenizer artifact exists but carries a stale fingerprint.
	meta := store.Meta{Shape: store.ShapeBlob, Fingerprint: 12345, Produced: time.Now()}
	require.NoError(t, f.store.Write("doc1", "token.segment", meta, []byte("old")))

	pruned, err := f.tracker.Prune(context.Background(), g)
	require.NoError(t, err)
	assert.Equal(t, 1, pruned)
	assert.Equal(t, plan.Pending, g.Nodes["segment:tokenize@doc1"].State())
}

func TestPruneStalenessPropagates(t *testing.T) {
	f := newFixture(t)
	g := chain(t)
	// Importer artifact missing, tokenizer artifact perfectly valid: the
	// tokenizer must still run because its input will be rebuilt.
	f.writeFresh(t, tokenizerRule(), "doc1")

	pruned, err := f.tracker.Prune(context.Background(), g)
	require.NoError(t, err)
	assert.Equal(t, 0, pruned)
	assert.Equal(t, plan.Pending, g.Nodes["textimport:parse@doc1"].State())
	assert.Equal(t, plan.Pending, g.Nodes["segment:tokenize@doc1"].State())
}

func TestPruneSourceNewerThanImport(t *testing.T) {
	f := newFixture(t)
	g := chain(t)
	f.writeFresh(t, importerRule(), "doc1")
	f.writeFresh(t, tokenizerRule(), "doc1")

	// Touch the source file into the future; the whole chain goes stale.
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(f.dir, "source", "doc1.txt"), future, future))

	pruned, err := f.tracker.Prune(context.Background(), g)
	require.NoError(t, err)
	assert.Equal(t, 0, pruned)
}
