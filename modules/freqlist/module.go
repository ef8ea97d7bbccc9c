// Package freqlist compiles a corpus-wide token frequency list. It is a
// corpus-scope annotator: one run fans in over every document.
package freqlist

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/vk/annogrid/internal/ctxlog"
	"github.com/vk/annogrid/internal/registry"
	"github.com/vk/annogrid/internal/store"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// OnCompile is the handler for the 'compile' rule. The result is one
// "word<TAB>count" line per distinct token, most frequent first, ties
// broken alphabetically.
func OnCompile(ctx context.Context, task *registry.Task) error {
	logger := ctxlog.FromContext(ctx)

	lowercase := true
	if v, err := task.Option("lowercase"); err == nil {
		if b, ok := v.(bool); ok {
			lowercase = b
		}
	}

	counts := make(map[string]int)
	for _, doc := range task.Docs {
		words, err := task.ReadLinesFor(doc, task.Inputs[0])
		if err != nil {
			return err
		}
		for _, word := range words {
			if lowercase {
				word = strings.ToLower(word)
			}
			counts[word]++
		}
	}

	words := make([]string, 0, len(counts))
	for word := range counts {
		words = append(words, word)
	}
	sort.Slice(words, func(i, j int) bool {
		if counts[words[i]] != counts[words[j]] {
			return counts[words[i]] > counts[words[j]]
		}
		return words[i] < words[j]
	})

	lines := make([]string, len(words))
	for i, word := range words {
		lines[i] = fmt.Sprintf("%s\t%d", word, counts[word])
	}
	if err := task.WriteLines("corpus.freqlist", store.ShapeBlob, lines); err != nil {
		return err
	}
	logger.Debug("Compiled frequency list.", "documents", len(task.Docs), "types", len(words))
	return nil
}

// Register registers the handlers with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterHandler("freqlist.compile", OnCompile)
}
