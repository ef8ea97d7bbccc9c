// Package corpus discovers the source documents of a corpus.
package corpus

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/vk/annogrid/internal/fsutil"
)

// Discover lists the document identifiers (file stems) found under the
// source directory with the configured extension, sorted.
func Discover(sourceDir, extension string) ([]string, error) {
	files, err := fsutil.FindFilesByExtension(sourceDir, "."+extension)
	if err != nil {
		return nil, fmt.Errorf("cannot scan source directory %s: %w", sourceDir, err)
	}
	docs := make([]string, 0, len(files))
	for _, file := range files {
		base := filepath.Base(file)
		docs = append(docs, strings.TrimSuffix(base, "."+extension))
	}
	sort.Strings(docs)
	return docs, nil
}

// Filter narrows the discovered documents to a requested subset, failing
// on any name that does not exist in the corpus.
func Filter(docs, subset []string) ([]string, error) {
	if len(subset) == 0 {
		return docs, nil
	}
	known := make(map[string]bool, len(docs))
	for _, d := range docs {
		known[d] = true
	}
	out := make([]string, 0, len(subset))
	for _, want := range subset {
		if !known[want] {
			return nil, fmt.Errorf("document %q not found in corpus", want)
		}
		out = append(out, want)
	}
	sort.Strings(out)
	return out, nil
}
