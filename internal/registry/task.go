package registry

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/vk/annogrid/internal/config"
	"github.com/vk/annogrid/internal/store"
)

// AnnotatorFunc is the executable handle behind a rule: an opaque
// "execute(inputs) -> outputs" capability that may be slow and may fail.
// Handlers read inputs from and write outputs to the task's store; the
// scheduler guarantees all inputs are durably persisted before the call.
type AnnotatorFunc func(ctx context.Context, task *Task) error

// Task is everything a handler invocation needs: the rule and document it
// runs for, read access to its resolved inputs, and write access for its
// declared outputs. Built by the scheduler per plan node.
type Task struct {
	Rule *Rule
	// Document is the document this invocation is scoped to; empty for
	// corpus-scope rules.
	Document string
	// Docs lists every document of the run; corpus-scope rules and
	// exporters iterate it.
	Docs   []string
	Config *config.Effective
	Store  *store.Store
	// Fingerprint is the hash of the rule's relevant config subtree,
	// stamped onto every artifact this task writes.
	Fingerprint uint64
	// Inputs and Outputs carry the resolved concrete annotation names in
	// declaration order.
	Inputs  []string
	Outputs []string
	// SourceDir and ExportDir locate raw documents and final outputs.
	SourceDir string
	ExportDir string
	// Targets is the resolved export annotation list; only set for
	// exporter rules.
	Targets []config.Target
}

// SourcePath returns the raw source file for the task's document.
func (t *Task) SourcePath() string {
	ext := t.Config.GetString("import.extension", "txt")
	return filepath.Join(t.SourceDir, t.Document+"."+ext)
}

// Option resolves a rule setting: custom-annotation bindings win, then the
// effective config under "<module>.<name>", then the manifest default.
func (t *Task) Option(name string) (any, error) {
	if v, ok := t.Rule.Settings[name]; ok {
		return v, nil
	}
	if v, ok := t.Config.Get(t.Rule.Module + "." + name); ok {
		return v, nil
	}
	def, ok := t.Rule.Options[name]
	if !ok {
		return nil, fmt.Errorf("rule %s has no option %q", t.Rule.ID(), name)
	}
	return ctyToGo(def.Default)
}

// OptionString resolves a string option with a fallback for unset values.
func (t *Task) OptionString(name, fallback string) string {
	v, err := t.Option(name)
	if err != nil || v == nil {
		return fallback
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fallback
}

// Read reads a raw input artifact of the task's document.
func (t *Task) Read(name string) ([]byte, error) {
	return t.Store.Read(t.Document, name)
}

// ReadLines reads a line-per-value input artifact of the task's document.
func (t *Task) ReadLines(name string) ([]string, error) {
	return t.Store.ReadLines(t.Document, name)
}

// ReadLinesFor reads an input artifact of an explicit document; used by
// corpus-scope rules and exporters fanning in over all documents.
func (t *Task) ReadLinesFor(doc, name string) ([]string, error) {
	return t.Store.ReadLines(doc, name)
}

// WriteLines persists a line-per-value output artifact for the task's
// document, stamped with the task fingerprint.
func (t *Task) WriteLines(name string, shape store.Shape, lines []string) error {
	return t.Store.WriteLines(t.Document, name, store.Meta{Shape: shape, Fingerprint: t.Fingerprint}, lines)
}

// Write persists a raw output artifact for the task's document.
func (t *Task) Write(name string, shape store.Shape, payload []byte) error {
	return t.Store.Write(t.Document, name, store.Meta{Shape: shape, Fingerprint: t.Fingerprint}, payload)
}
