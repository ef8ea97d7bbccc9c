package app

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vk/annogrid/internal/corpus"
	"github.com/vk/annogrid/internal/ctxlog"
	"github.com/vk/annogrid/internal/freshness"
	"github.com/vk/annogrid/internal/resolver"
	"github.com/vk/annogrid/internal/scheduler"
	"github.com/vk/annogrid/internal/store"
)

// RunOptions narrow one `run` invocation.
type RunOptions struct {
	// Targets are export format names or annotation names; empty means
	// every configured export format.
	Targets []string
	// Docs restricts the run to a subset of the corpus.
	Docs []string
	// DryRun prints the plan instead of executing it.
	DryRun bool
}

// PartialFailureError reports a run where some nodes failed while the rest
// completed. Artifacts of the successful nodes are already persisted.
type PartialFailureError struct {
	Report *scheduler.Report
}

// Error implements the error interface.
func (e *PartialFailureError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d task(s) failed, %d skipped, %d succeeded", e.Report.Failed, e.Report.Skipped, e.Report.Succeeded)
	for _, cause := range e.Report.RootCauses {
		fmt.Fprintf(&sb, "\n  %s: %v", cause.Node, cause.Err)
	}
	return sb.String()
}

// Run resolves and executes the pipeline for the configured corpus.
func (a *App) Run(ctx context.Context, opts RunOptions) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	logger := a.logger

	docs, err := a.documents(opts.Docs)
	if err != nil {
		return err
	}
	logger.Info("Corpus discovered.", "documents", len(docs))

	req := resolver.Request{Docs: docs}
	if len(opts.Targets) == 0 {
		req.Exports = a.eff.Exports()
	} else {
		formats := make(map[string]bool)
		for _, format := range a.eff.Exports() {
			formats[format] = true
		}
		for _, target := range opts.Targets {
			if formats[target] {
				req.Exports = append(req.Exports, target)
			} else {
				req.Annotations = append(req.Annotations, target)
			}
		}
	}

	st, err := store.Open(a.eff.Path("work_dir", "work"))
	if err != nil {
		return err
	}
	if err := st.Acquire(); err != nil {
		return err
	}
	defer st.Release()

	graph, err := resolver.Resolve(ctx, a.eff, a.registry, req)
	if err != nil {
		return err
	}

	pruned, err := freshness.New(st, a.eff).Prune(ctx, graph)
	if err != nil {
		return err
	}
	logger.Info("Plan resolved.", "nodes", len(graph.Nodes), "cached", pruned)

	if opts.DryRun {
		return scheduler.WritePlan(a.outW, graph)
	}

	report := scheduler.New(graph, a.registry, a.eff, st, docs, a.workers).Run(ctx)
	logger.Info("Execution finished.",
		"succeeded", report.Succeeded, "failed", report.Failed,
		"skipped", report.Skipped, "cached", report.Pruned)
	if !report.OK() {
		return &PartialFailureError{Report: report}
	}
	return nil
}

// Clean removes the annotation store, and optionally the export directory.
func (a *App) Clean(ctx context.Context, exports bool) error {
	st, err := store.Open(a.eff.Path("work_dir", "work"))
	if err != nil {
		return err
	}
	// Taking and dropping the lock ensures no run is in flight; removing
	// the store directory removes the lock file with it.
	if err := st.Acquire(); err != nil {
		return err
	}
	if err := st.Release(); err != nil {
		return err
	}
	if err := st.RemoveAll(); err != nil {
		return err
	}
	a.logger.Info("Annotation store removed.", "path", st.Root())

	if exports {
		exportDir := a.eff.Path("export_dir", "export")
		if err := os.RemoveAll(exportDir); err != nil {
			return fmt.Errorf("cannot remove export directory %s: %w", exportDir, err)
		}
		a.logger.Info("Export directory removed.", "path", exportDir)
	}
	return nil
}

// PrintConfig writes the effective configuration, or a single key of it,
// as YAML.
func (a *App) PrintConfig(key string) error {
	if key == "" {
		dump, err := a.eff.Dump()
		if err != nil {
			return err
		}
		fmt.Fprint(a.outW, dump)
		return nil
	}
	value, ok := a.eff.Get(key)
	if !ok {
		return fmt.Errorf("config key %q is not set", key)
	}
	out, err := yaml.Marshal(value)
	if err != nil {
		return err
	}
	fmt.Fprint(a.outW, string(out))
	return nil
}

// ListFiles prints the corpus documents, one per line.
func (a *App) ListFiles() error {
	docs, err := a.documents(nil)
	if err != nil {
		return err
	}
	for _, doc := range docs {
		fmt.Fprintln(a.outW, doc)
	}
	return nil
}

// documents discovers the corpus and applies an optional subset filter.
func (a *App) documents(subset []string) ([]string, error) {
	sourceDir := a.eff.Path("import.source_dir", "source")
	extension := a.eff.GetString("import.extension", "txt")
	docs, err := corpus.Discover(sourceDir, extension)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("no .%s source documents found under %s", extension, sourceDir)
	}
	return corpus.Filter(docs, subset)
}
