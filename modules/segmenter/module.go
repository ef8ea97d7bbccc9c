// Package segmenter splits document text into token and sentence spans.
//
// Spans are persisted as "start-end" rune offsets into text.content, one
// per line; the token surface forms are persisted alongside them so
// downstream annotators never re-derive offsets.
package segmenter

import (
	"context"
	"fmt"
	"unicode"

	"github.com/vk/annogrid/internal/ctxlog"
	"github.com/vk/annogrid/internal/registry"
	"github.com/vk/annogrid/internal/store"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

type span struct {
	start, end int // rune offsets, end exclusive
}

// OnTokenize is the handler for the 'tokenize' rule. It writes the token
// spans and the token surface forms.
func OnTokenize(ctx context.Context, task *registry.Task) error {
	logger := ctxlog.FromContext(ctx)

	raw, err := task.Read(task.Inputs[0])
	if err != nil {
		return err
	}
	text := []rune(string(raw))
	spans := tokenize(text)

	spanLines := make([]string, len(spans))
	words := make([]string, len(spans))
	for i, s := range spans {
		spanLines[i] = fmt.Sprintf("%d-%d", s.start, s.end)
		words[i] = string(text[s.start:s.end])
	}

	if err := task.WriteLines("token", store.ShapePerSpan, spanLines); err != nil {
		return err
	}
	if err := task.WriteLines("token.segment", store.ShapePerToken, words); err != nil {
		return err
	}
	logger.Debug("Tokenized document.", "document", task.Document, "tokens", len(spans))
	return nil
}

// OnSentences is the handler for the 'sentences' rule.
func OnSentences(ctx context.Context, task *registry.Task) error {
	logger := ctxlog.FromContext(ctx)

	raw, err := task.Read(task.Inputs[0])
	if err != nil {
		return err
	}
	text := []rune(string(raw))
	spans := sentences(text)

	lines := make([]string, len(spans))
	for i, s := range spans {
		lines[i] = fmt.Sprintf("%d-%d", s.start, s.end)
	}
	if err := task.WriteLines("sentence", store.ShapePerSpan, lines); err != nil {
		return err
	}
	logger.Debug("Segmented sentences.", "document", task.Document, "sentences", len(spans))
	return nil
}

// tokenize returns the token spans of a text: maximal runs of letters or
// digits, with every other non-space rune a single-character token.
func tokenize(text []rune) []span {
	var spans []span
	i := 0
	for i < len(text) {
		r := text[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			start := i
			for i < len(text) && (unicode.IsLetter(text[i]) || unicode.IsDigit(text[i])) {
				i++
			}
			spans = append(spans, span{start, i})
		default:
			spans = append(spans, span{i, i + 1})
			i++
		}
	}
	return spans
}

// sentences returns spans between sentence-final punctuation, trimmed of
// surrounding whitespace.
func sentences(text []rune) []span {
	var spans []span
	start := 0
	flush := func(end int) {
		for start < end && unicode.IsSpace(text[start]) {
			start++
		}
		last := end
		for last > start && unicode.IsSpace(text[last-1]) {
			last--
		}
		if last > start {
			spans = append(spans, span{start, last})
		}
		start = end
	}
	for i, r := range text {
		if r == '.' || r == '!' || r == '?' {
			flush(i + 1)
		}
	}
	flush(len(text))
	return spans
}

// Register registers the handlers with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterHandler("segmenter.tokenize", OnTokenize)
	r.RegisterHandler("segmenter.sentences", OnSentences)
}
