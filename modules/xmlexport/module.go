// Package xmlexport renders annotated documents as standalone XML files,
// one per document, with the configured annotation list as token
// attributes.
package xmlexport

import (
	"context"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/vk/annogrid/internal/anno"
	"github.com/vk/annogrid/internal/config"
	"github.com/vk/annogrid/internal/ctxlog"
	"github.com/vk/annogrid/internal/registry"
	"github.com/vk/annogrid/internal/store"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// OnExport is the handler for the 'export' rule.
func OnExport(ctx context.Context, task *registry.Task) error {
	logger := ctxlog.FromContext(ctx)

	doc, err := buildDocument(task)
	if err != nil {
		return err
	}

	outDir := filepath.Join(task.ExportDir, "xml")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("cannot create export directory: %w", err)
	}
	outPath := filepath.Join(outDir, task.Document+".xml")
	if err := os.WriteFile(outPath, doc, 0o644); err != nil {
		return fmt.Errorf("cannot write export file: %w", err)
	}

	// The marker artifact makes the export visible to freshness checks.
	if err := task.Write("export.xml", store.ShapeBlob, []byte(outPath)); err != nil {
		return err
	}
	logger.Debug("Exported document.", "document", task.Document, "path", outPath)
	return nil
}

// buildDocument renders one document's XML payload.
func buildDocument(task *registry.Task) ([]byte, error) {
	raw, err := task.Read("text.content")
	if err != nil {
		return nil, err
	}
	text := []rune(string(raw))

	spans, err := readSpans(task, "token")
	if err != nil {
		return nil, err
	}
	columns, err := readColumns(task, len(spans))
	if err != nil {
		return nil, err
	}

	var buf strings.Builder
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")

	root := xml.StartElement{Name: xml.Name{Local: task.Config.GetString("import.document_element", "text")}}
	if err := enc.EncodeToken(root); err != nil {
		return nil, err
	}
	for i, s := range spans {
		elem := xml.StartElement{Name: xml.Name{Local: "token"}}
		for _, col := range columns {
			elem.Attr = append(elem.Attr, xml.Attr{
				Name:  xml.Name{Local: col.name},
				Value: col.values[i],
			})
		}
		if err := enc.EncodeToken(elem); err != nil {
			return nil, err
		}
		if err := enc.EncodeToken(xml.CharData(string(text[s.start:s.end]))); err != nil {
			return nil, err
		}
		if err := enc.EncodeToken(elem.End()); err != nil {
			return nil, err
		}
	}
	if err := enc.EncodeToken(root.End()); err != nil {
		return nil, err
	}
	if err := enc.Flush(); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return []byte(buf.String()), nil
}

type span struct {
	start, end int
}

// readSpans parses a per-span artifact's "start-end" lines.
func readSpans(task *registry.Task, name string) ([]span, error) {
	lines, err := task.ReadLines(name)
	if err != nil {
		return nil, err
	}
	spans := make([]span, len(lines))
	for i, line := range lines {
		startStr, endStr, ok := strings.Cut(line, "-")
		if !ok {
			return nil, fmt.Errorf("malformed span %q in %s", line, name)
		}
		start, err := strconv.Atoi(startStr)
		if err != nil {
			return nil, fmt.Errorf("malformed span %q in %s", line, name)
		}
		end, err := strconv.Atoi(endStr)
		if err != nil {
			return nil, fmt.Errorf("malformed span %q in %s", line, name)
		}
		spans[i] = span{start, end}
	}
	return spans, nil
}

type column struct {
	name   string
	values []string
}

// readColumns loads the per-token targets of the export list. Targets of
// other shapes (spans, corpus blobs) carry no token alignment and are
// skipped.
func readColumns(task *registry.Task, tokens int) ([]column, error) {
	var columns []column
	for _, target := range task.Targets {
		meta, err := task.Store.ReadMeta(task.Document, target.Annotation)
		if err != nil {
			continue
		}
		if meta.Shape != store.ShapePerToken {
			continue
		}
		values, err := task.ReadLines(target.Annotation)
		if err != nil {
			return nil, err
		}
		if len(values) != tokens {
			return nil, fmt.Errorf(
				"annotation %s has %d values for %d tokens", target.Annotation, len(values), tokens)
		}
		columns = append(columns, column{name: attrName(target), values: values})
	}
	return columns, nil
}

// attrName picks the XML attribute name for a target: its "as" rename if
// set, otherwise the attribute part of the annotation name.
func attrName(target config.Target) string {
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
	r.RegisterHandler("xmlexport.export", OnExport)
}
