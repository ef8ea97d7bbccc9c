// Package tagger assigns part-of-speech tags with a small built-in suffix
// lexicon. It is the fallback tagger; corpora with an external model
// installed use the hunpos module instead.
package tagger

import (
	"context"
	"strings"
	"unicode"

	"github.com/vk/annogrid/internal/ctxlog"
	"github.com/vk/annogrid/internal/registry"
	"github.com/vk/annogrid/internal/store"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// suffixTags maps word suffixes to tags, longest suffix tried first.
var suffixTags = []struct {
	suffix string
	tag    string
}{
	{"erna", "NN"},
	{"arna", "NN"},
	{"ande", "VB"},
	{"ende", "VB"},
	{"het", "NN"},
	{"ing", "NN"},
	{"lig", "JJ"},
	{"isk", "JJ"},
	{"ade", "VB"},
	{"ar", "VB"},
	{"er", "VB"},
	{"or", "NN"},
	{"en", "NN"},
	{"et", "NN"},
	{"a", "VB"},
}

// OnTag is the handler for the 'pos' rule.
func OnTag(ctx context.Context, task *registry.Task) error {
	logger := ctxlog.FromContext(ctx)

	words, err := task.ReadLines(task.Inputs[0])
	if err != nil {
		return err
	}
	fallback := task.OptionString("default_tag", "NN")

	tags := make([]string, len(words))
	for i, word := range words {
		tags[i] = tagOf(word, fallback)
	}
	if err := task.WriteLines("pos.tag", store.ShapePerToken, tags); err != nil {
		return err
	}
	logger.Debug("Tagged document.", "document", task.Document, "tokens", len(words))
	return nil
}

// tagOf classifies one surface form.
func tagOf(word, fallback string) string {
	runes := []rune(word)
	if len(runes) == 0 {
		return fallback
	}
	first := runes[0]
	switch {
	case unicode.IsDigit(first):
		return "RG"
	case !unicode.IsLetter(first):
		return "MAD"
	case unicode.IsUpper(first):
		return "PM"
	}
	lower := strings.ToLower(word)
	for _, st := range suffixTags {
		if strings.HasSuffix(lower, st.suffix) {
			return st.tag
		}
	}
	return fallback
}

// Register registers the handlers with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterHandler("tagger.pos", OnTag)
}
