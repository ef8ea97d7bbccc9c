// Package freshness decides which plan nodes can be skipped because their
// artifacts in the annotation store are still valid. A node is fresh when
// every output exists, was produced under the rule's current config
// fingerprint, and is no older than anything it was derived from; staleness
// propagates downstream, so a node whose dependency will run always runs too.
package freshness

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/vk/annogrid/internal/config"
	"github.com/vk/annogrid/internal/ctxlog"
	"github.com/vk/annogrid/internal/plan"
	"github.com/vk/annogrid/internal/registry"
	"github.com/vk/annogrid/internal/store"
)

// Tracker evaluates plan nodes against the annotation store.
type Tracker struct {
	store *store.Store
	eff   *config.Effective
	// sourceDir and extension locate the raw source files importer
	// freshness is checked against.
	sourceDir string
	extension string
}

// New creates a tracker over one store and effective configuration.
func New(s *store.Store, eff *config.Effective) *Tracker {
	return &Tracker{
		store:     s,
		eff:       eff,
		sourceDir: eff.Path("import.source_dir", "source"),
		extension: eff.GetString("import.extension", "txt"),
	}
}

// Prune walks the graph in dependency order and marks fresh nodes Pruned.
// Returns the number of nodes pruned. Pruned nodes satisfy their dependents
// without executing; everything left Pending will run.
func (t *Tracker) Prune(ctx context.Context, graph *plan.Graph) (int, error) {
	logger := ctxlog.FromContext(ctx)
	pruned := 0
	for _, level := range graph.TopoLevels() {
		for _, id := range level {
			node := graph.Nodes[id]
			fresh, err := t.isFresh(node)
			if err != nil {
				return pruned, err
			}
			if fresh {
				node.SetState(plan.Pruned)
				pruned++
				logger.Debug("Node is fresh, pruned from plan.", "node", node.ID)
			}
		}
	}
	return pruned, nil
}

// isFresh reports whether a node's outputs are all valid. Called in
// dependency order, so dependency states are already settled.
func (t *Tracker) isFresh(node *plan.Node) (bool, error) {
	// A dependency that will run invalidates this node regardless of what
	// the store holds.
	for _, dep := range node.Deps {
		if dep.State() != plan.Pruned {
			return false, nil
		}
	}

	want, err := Fingerprint(t.eff, node.Rule)
	if err != nil {
		return false, err
	}

	oldest := time.Time{}
	for _, output := range node.Outputs {
		if !t.store.Exists(node.Document, output) {
			return false, nil
		}
		meta, err := t.store.ReadMeta(node.Document, output)
		if err != nil {
			// A missing or unreadable sidecar means the artifact cannot be
			// trusted; rebuild it.
			return false, nil
		}
		if meta.Fingerprint != want {
			return false, nil
		}
		mtime, ok := t.store.ModTime(node.Document, output)
		if !ok {
			return false, nil
		}
		if oldest.IsZero() || mtime.Before(oldest) {
			oldest = mtime
		}
	}

	// Outputs must not predate what they were derived from.
	newestInput, ok := t.newestInputTime(node)
	if ok && newestInput.After(oldest) {
		return false, nil
	}
	return true, nil
}

// newestInputTime finds the most recent timestamp among the node's
// upstream artifacts, or the source file for importer leaves.
func (t *Tracker) newestInputTime(node *plan.Node) (time.Time, bool) {
	if node.Rule.Kind == registry.KindImporter {
		path := filepath.Join(t.sourceDir, node.Document+"."+t.extension)
		info, err := os.Stat(path)
		if err != nil {
			return time.Time{}, false
		}
		return info.ModTime(), true
	}

	newest := time.Time{}
	found := false
	for _, dep := range node.Deps {
		for _, output := range dep.Outputs {
			if mtime, ok := t.store.ModTime(dep.Document, output); ok {
				if !found || mtime.After(newest) {
					newest = mtime
					found = true
				}
			}
		}
	}
	return newest, found
}
