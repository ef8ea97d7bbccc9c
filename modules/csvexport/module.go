// Package csvexport renders the corpus as CSV token tables, one file per
// document. It runs corpus-scoped and writes the per-document files
// concurrently.
package csvexport

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/vk/annogrid/internal/anno"
	"github.com/vk/annogrid/internal/config"
	"github.com/vk/annogrid/internal/ctxlog"
	"github.com/vk/annogrid/internal/registry"
	"github.com/vk/annogrid/internal/store"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// writerCount bounds the concurrent per-document writers.
const writerCount = 8

// OnExport is the handler for the 'export' rule.
func OnExport(ctx context.Context, task *registry.Task) error {
	logger := ctxlog.FromContext(ctx)

	outDir := filepath.Join(task.ExportDir, "csv")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("cannot create export directory: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(writerCount)
	for _, doc := range task.Docs {
		doc := doc
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return exportDocument(task, doc, filepath.Join(outDir, doc+".csv"))
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	// Corpus-scope marker artifact for freshness checks.
	if err := task.Write("export.csv", store.ShapeBlob, []byte(outDir)); err != nil {
		return err
	}
	logger.Debug("Exported corpus as CSV.", "documents", len(task.Docs), "dir", outDir)
	return nil
}

// exportDocument writes one document's token table.
func exportDocument(task *registry.Task, doc, outPath string) error {
	tokens, err := task.ReadLinesFor(doc, "token.segment")
	if err != nil {
		return err
	}

	header := []string{"token"}
	var columns [][]string
	for _, target := range task.Targets {
		meta, err := task.Store.ReadMeta(doc, target.Annotation)
		if err != nil || meta.Shape != store.ShapePerToken {
			continue
		}
		if target.Annotation == "token.segment" {
			continue
		}
		values, err := task.ReadLinesFor(doc, target.Annotation)
		if err != nil {
			return err
		}
		if len(values) != len(tokens) {
			return fmt.Errorf(
				"annotation %s has %d values for %d tokens in %s", target.Annotation, len(values), len(tokens), doc)
		}
		header = append(header, columnName(target))
		columns = append(columns, values)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return err
	}
	record := make([]string, len(header))
	for i, token := range tokens {
		record[0] = token
		for c, values := range columns {
			record[c+1] = values[i]
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return os.WriteFile(outPath, buf.Bytes(), 0o644)
}

// columnName picks the CSV header for a target.
func columnName(target config.Target) string {
	if target.ExportName != "" {
		return target.ExportName
	}
	elem, attr := anno.Split(target.Annotation)
	if attr == "" || attr == anno.SpanAttr {
		return elem
	}
	return attr
}

// Register registers the handlers with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterHandler("csvexport.export", OnExport)
}
