package segmenter

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/annogrid/internal/registry"
	"github.com/vk/annogrid/internal/store"
)

func TestTokenize(t *testing.T) {
	text := []rune("Hello, world!")
	spans := tokenize(text)

	words := make([]string, len(spans))
	for i, s := range spans {
		words[i] = string(text[s.start:s.end])
	}
	assert.Equal(t, []string{"Hello", ",", "world", "!"}, words)
}

func TestTokenizeUnicode(t *testing.T) {
	text := []rune("på svenska, tack")
	spans := tokenize(text)

	words := make([]string, len(spans))
	for i, s := range spans {
		words[i] = string(text[s.start:s.end])
	}
	assert.Equal(t, []string{"på", "svenska", ",", "tack"}, words)
}

func TestSentences(t *testing.T) {
	text := []rune("First one. Second!  Third without terminator")
	spans := sentences(text)

	got := make([]string, len(spans))
	for i, s := range spans {
		got[i] = string(text[s.start:s.end])
	}
	assert.Equal(t, []string{"First one.", "Second!", "Third without terminator"}, got)
}

func TestSentencesEmpty(t *testing.T) {
	assert.Empty(t, sentences([]rune("   ")))
	assert.Empty(t, sentences(nil))
}

func TestOnTokenizeWritesArtifacts(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "work"))
	require.NoError(t, err)
	require.NoError(t, st.Write("doc1", "text.content", store.Meta{Shape: store.ShapeBlob}, []byte("Ett två.")))

	task := &registry.Task{
		Rule:     &registry.Rule{Module: "segmenter", Name: "tokenize"},
		Document: "doc1",
		Store:    st,
		Inputs:   []string{"text.content"},
	}
	require.NoError(t, OnTokenize(context.Background(), task))

	words, err := st.ReadLines("doc1", "token.segment")
	require.NoError(t, err)
	assert.Equal(t, []string{"Ett", "två", "."}, words)

	spans, err := st.ReadLines("doc1", "token")
	require.NoError(t, err)
	assert.Equal(t, []string{"0-3", "4-7", "7-8"}, spans)

	meta, err := st.ReadMeta("doc1", "token")
	require.NoError(t, err)
	assert.Equal(t, store.ShapePerSpan, meta.Shape)
}
