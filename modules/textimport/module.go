// Package textimport reads plain-text source documents into the annotation
// store, making their content available to downstream annotators.
package textimport

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/vk/annogrid/internal/ctxlog"
	"github.com/vk/annogrid/internal/registry"
	"github.com/vk/annogrid/internal/store"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// OnParse is the handler for the 'parse' importer rule. It normalizes line
// endings and persists the document text as the text.content artifact.
func OnParse(ctx context.Context, task *registry.Task) error {
	logger := ctxlog.FromContext(ctx)

	raw, err := os.ReadFile(task.SourcePath())
	if err != nil {
		return fmt.Errorf("cannot read source document: %w", err)
	}
	text := strings.ReplaceAll(string(raw), "\r\n", "\n")

	if err := task.Write("text.content", store.ShapeBlob, []byte(text)); err != nil {
		return err
	}
	logger.Debug("Imported source document.", "document", task.Document, "bytes", len(text))
	return nil
}

// Register registers the handlers with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterHandler("textimport.parse", OnParse)
}
