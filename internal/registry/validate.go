package registry

import (
	"context"
	"fmt"
	"strings"

	"github.com/vk/annogrid/internal/ctxlog"
)

// Validate performs a strict parity check between manifests and Go code:
// every rule's on_run handler must be registered, and structural fields
// must be coherent. Runs once at startup; a failure is fatal.
func (r *Registry) Validate(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	var errs []string

	for _, rule := range r.Rules() {
		if _, ok := r.handlers[rule.Handler]; !ok {
			errs = append(errs, fmt.Sprintf("rule %q: manifest names handler %q, but no Go handler is registered under that name", rule.ID(), rule.Handler))
		}
		switch rule.Kind {
		case KindImporter:
			if len(rule.Inputs) > 0 {
				errs = append(errs, fmt.Sprintf("rule %q: importers read source files and must not declare annotation inputs", rule.ID()))
			}
			if len(rule.Outputs) == 0 {
				errs = append(errs, fmt.Sprintf("rule %q: importer declares no outputs", rule.ID()))
			}
		case KindAnnotator:
			if len(rule.Outputs) == 0 {
				errs = append(errs, fmt.Sprintf("rule %q: annotator declares no outputs", rule.ID()))
			}
		case KindExporter:
			if len(rule.Outputs) != 1 || !strings.HasPrefix(rule.Outputs[0], "export.") {
				errs = append(errs, fmt.Sprintf("rule %q: exporters must declare exactly one output named export.<format>", rule.ID()))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("registry validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	logger.Debug("Registry validation passed.", "rules", len(r.rules), "handlers", len(r.handlers))
	return nil
}
