// Package registry holds the process-wide catalog of annotator rules.
//
// Rule declarations come from HCL manifests shipped next to each analysis
// module; the Go handlers they name are registered by the modules
// themselves through the Module interface. The registry exposes raw
// declarations (inputs may still reference class aliases); resolving those
// aliases is the dependency resolver's job.
package registry

import (
	"context"
	"fmt"
	"sort"

	"github.com/vk/annogrid/internal/config"
	"github.com/vk/annogrid/internal/ctxlog"
)

// Kind classifies what a rule does in the pipeline.
type Kind int

const (
	// KindAnnotator rules produce annotations from other annotations.
	KindAnnotator Kind = iota
	// KindImporter rules are leaves reading a source document.
	KindImporter
	// KindExporter rules are sinks rendering final-format output files.
	KindExporter
)

func parseKind(s string) (Kind, error) {
	switch s {
	case "annotator":
		return KindAnnotator, nil
	case "importer":
		return KindImporter, nil
	case "exporter":
		return KindExporter, nil
	}
	return 0, fmt.Errorf("unknown rule kind %q", s)
}

// Scope says whether a rule runs once per document or once per corpus.
type Scope int

const (
	// ScopeDocument rules multiply across every document.
	ScopeDocument Scope = iota
	// ScopeCorpus rules run once and fan in over all documents.
	ScopeCorpus
)

// Rule is one declared producer: required inputs to produced outputs.
// Immutable once registered.
type Rule struct {
	Module      string
	Name        string
	Description string
	Kind        Kind
	Scope       Scope
	// Inputs are required annotation names; entries may reference class
	// aliases (e.g. "<token>") that the resolver resolves via config.
	Inputs []string
	// Outputs are the concrete annotation names this rule produces.
	Outputs []string
	// ConfigKeys are the effective-config keys this rule's behavior
	// depends on, the basis of its freshness fingerprint.
	ConfigKeys []string
	// Languages restricts the rule to corpora of these languages.
	// Empty means any language.
	Languages []string
	// Order disambiguates rules claiming the same output: lower wins.
	// Zero means unset.
	Order int
	// Handler names the registered Go annotator function.
	Handler string
	// Options are the rule's declared settings with types and defaults.
	Options map[string]*OptionDef
	// Settings are per-rule overrides bound by a custom annotation
	// declaration. Nil for manifest rules.
	Settings map[string]any
}

// ID returns the rule's identity, "module:name".
func (r *Rule) ID() string {
	return r.Module + ":" + r.Name
}

// Module is implemented by every analysis module to contribute its Go
// handlers to a registry instance.
type Module interface {
	Register(r *Registry)
}

// Registry is the catalog of rules and handlers for one application
// instance. Populated once at startup; read-only afterwards.
type Registry struct {
	rules    map[string]*Rule
	byOutput map[string][]*Rule
	handlers map[string]AnnotatorFunc
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		rules:    make(map[string]*Rule),
		byOutput: make(map[string][]*Rule),
		handlers: make(map[string]AnnotatorFunc),
	}
}

// RegisterHandler binds a Go annotator function to a handler name referenced
// from rule manifests.
func (r *Registry) RegisterHandler(name string, fn AnnotatorFunc) {
	r.handlers[name] = fn
}

// HandlerFor looks up the annotator function behind a rule.
func (r *Registry) HandlerFor(rule *Rule) (AnnotatorFunc, bool) {
	fn, ok := r.handlers[rule.Handler]
	return fn, ok
}

// AddRule registers a rule declaration. Duplicate rule IDs are fatal.
// Two rules may claim the same output only when all claimants carry
// distinct, non-zero order values.
func (r *Registry) AddRule(rule *Rule) error {
	if _, exists := r.rules[rule.ID()]; exists {
		return fmt.Errorf("duplicate rule %q", rule.ID())
	}
	for _, output := range rule.Outputs {
		for _, other := range r.byOutput[output] {
			if rule.Order == 0 || other.Order == 0 || rule.Order == other.Order {
				return fmt.Errorf(
					"rules %q and %q both produce %q; set distinct order values to disambiguate",
					other.ID(), rule.ID(), output)
			}
		}
	}
	r.rules[rule.ID()] = rule
	for _, output := range rule.Outputs {
		r.byOutput[output] = append(r.byOutput[output], rule)
		sort.Slice(r.byOutput[output], func(i, j int) bool {
			return r.byOutput[output][i].Order < r.byOutput[output][j].Order
		})
	}
	return nil
}

// Rule returns a rule by its "module:name" identity.
func (r *Registry) Rule(id string) (*Rule, bool) {
	rule, ok := r.rules[id]
	return rule, ok
}

// Rules returns all registered rules, sorted by identity.
func (r *Registry) Rules() []*Rule {
	out := make([]*Rule, 0, len(r.rules))
	for _, rule := range r.rules {
		out = append(out, rule)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// ProducersOf returns the rules claiming an output name, best order first.
func (r *Registry) ProducersOf(output string) []*Rule {
	return r.byOutput[output]
}

// AddCustomRules registers the user-declared annotators from the corpus
// config. Each declaration clones an existing rule under a new identity
// with its own output and bound settings.
func (r *Registry) AddCustomRules(ctx context.Context, custom []config.CustomAnnotation) error {
	logger := ctxlog.FromContext(ctx)
	for i, c := range custom {
		base, ok := r.Rule(c.Rule)
		if !ok {
			return fmt.Errorf("custom annotation %d: unknown rule %q", i, c.Rule)
		}
		rule := &Rule{
			Module:      base.Module,
			Name:        fmt.Sprintf("%s-custom-%d", base.Name, i),
			Description: base.Description,
			Kind:        base.Kind,
			Scope:       base.Scope,
			Inputs:      base.Inputs,
			Outputs:     []string{c.Output},
			ConfigKeys:  base.ConfigKeys,
			Languages:   base.Languages,
			Handler:     base.Handler,
			Options:     base.Options,
			Settings:    c.Config,
		}
		if len(c.Inputs) > 0 {
			rule.Inputs = c.Inputs
		}
		if err := r.AddRule(rule); err != nil {
			return fmt.Errorf("custom annotation %d: %w", i, err)
		}
		logger.Debug("Registered custom annotation rule.", "rule", rule.ID(), "output", c.Output)
	}
	return nil
}
