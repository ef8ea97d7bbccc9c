// Package resolver expands a requested set of output annotations into a
// complete build plan: backward reachability from targets through the rule
// registry down to importer leaves, with class aliases resolved through
// the effective configuration. All aliases are resolved here, once; the
// resulting graph is fully concrete before any execution starts.
package resolver

import (
	"context"
	"fmt"

	"github.com/vk/annogrid/internal/anno"
	"github.com/vk/annogrid/internal/config"
	"github.com/vk/annogrid/internal/ctxlog"
	"github.com/vk/annogrid/internal/plan"
	"github.com/vk/annogrid/internal/registry"
)

// Request is one resolution job: which documents, which export formats,
// and which additional annotation targets.
type Request struct {
	Docs []string
	// Exports are requested export format names; each contributes its
	// exporter rule plus the format's configured annotation list.
	Exports []string
	// Annotations are extra targets named directly (concrete names or
	// class references).
	Annotations []string
}

// selection records the rule chosen to produce a set of annotations,
// together with its fully resolved concrete inputs.
type selection struct {
	rule   *registry.Rule
	inputs []string
}

// resolution is the transient state of one backward expansion.
type resolution struct {
	eff      *config.Effective
	reg      *registry.Registry
	language string
	// selected maps every reachable annotation name to its producer.
	selected map[string]*selection
	// inProgress marks annotations on the current expansion path; a
	// revisit means a cycle.
	inProgress map[string]bool
}

// Resolve builds the plan graph for a request. Structural failures
// (unresolvable targets, cycles, undefined classes) are returned before
// any graph node exists; a non-nil graph is always valid and acyclic.
func Resolve(ctx context.Context, eff *config.Effective, reg *registry.Registry, req Request) (*plan.Graph, error) {
	logger := ctxlog.FromContext(ctx)

	res := &resolution{
		eff:        eff,
		reg:        reg,
		language:   eff.GetString("metadata.language", ""),
		selected:   make(map[string]*selection),
		inProgress: make(map[string]bool),
	}

	// Seed: exporter outputs for every requested format, then any
	// directly named annotations.
	var seeds []string
	for _, format := range req.Exports {
		seeds = append(seeds, "export."+format)
	}
	for _, target := range req.Annotations {
		name, err := res.concrete(target)
		if err != nil {
			return nil, err
		}
		seeds = append(seeds, name)
	}
	if len(seeds) == 0 {
		return nil, fmt.Errorf("nothing to resolve: no export formats configured and no targets given")
	}

	for _, seed := range seeds {
		if err := res.expand(seed, nil); err != nil {
			return nil, err
		}
	}
	logger.Debug("Backward expansion complete.", "annotations", len(res.selected))

	graph, err := res.buildGraph(ctx, req.Docs)
	if err != nil {
		return nil, err
	}
	if err := graph.DetectCycles(); err != nil {
		return nil, fmt.Errorf("error validating dependency graph: %w", err)
	}
	logger.Debug("Plan graph built.", "node_count", len(graph.Nodes))
	return graph, nil
}

// concrete resolves a possibly class-referencing entry to a concrete
// annotation name through the effective class table.
func (r *resolution) concrete(entry string) (string, error) {
	if !anno.IsClassRef(entry) {
		return entry, nil
	}
	class, attached, err := anno.ParseClassRef(entry)
	if err != nil {
		return "", &config.ConfigError{Msg: err.Error()}
	}
	name, ok := r.eff.ResolveClass(class)
	if !ok {
		return "", &UnresolvedAnnotationError{Annotation: entry, Chain: []string{"class <" + class + "> is undefined"}}
	}
	if attached != "" {
		return attached, nil
	}
	return name, nil
}

// expand performs the backward step for one annotation: pick its producing
// rule, then recurse into the rule's required inputs. chain carries the
// requirement path for error messages and cycle reporting.
func (r *resolution) expand(name string, chain []string) error {
	if r.inProgress[name] {
		return &CyclicDependencyError{Chain: append(append([]string{}, chain...), name)}
	}
	if _, done := r.selected[name]; done {
		return nil
	}

	rule := r.pickProducer(name)
	if rule == nil {
		return &UnresolvedAnnotationError{Annotation: name, Chain: chain}
	}

	inputs, err := r.ruleInputs(rule)
	if err != nil {
		return err
	}

	// All outputs of the rule are on the expansion path together: a
	// requirement looping back through any of them is a cycle.
	for _, output := range rule.Outputs {
		r.inProgress[output] = true
	}

	next := append(append([]string{}, chain...), name)
	for _, input := range inputs {
		if err := r.expand(input, next); err != nil {
			return err
		}
	}

	sel := &selection{rule: rule, inputs: inputs}
	for _, output := range rule.Outputs {
		delete(r.inProgress, output)
		r.selected[output] = sel
	}
	return nil
}

// pickProducer chooses the best registered producer for an annotation,
// honoring language gating and rule order.
func (r *resolution) pickProducer(name string) *registry.Rule {
	for _, rule := range r.reg.ProducersOf(name) {
		if r.languageAllowed(rule) {
			return rule
		}
	}
	return nil
}

func (r *resolution) languageAllowed(rule *registry.Rule) bool {
	if len(rule.Languages) == 0 {
		return true
	}
	for _, lang := range rule.Languages {
		if lang == r.language {
			return true
		}
	}
	return false
}

// ruleInputs resolves a rule's declared inputs to concrete names. For
// exporter rules the configured annotation list of their format joins the
// declared inputs.
func (r *resolution) ruleInputs(rule *registry.Rule) ([]string, error) {
	declared := append([]string(nil), rule.Inputs...)
	if rule.Kind == registry.KindExporter {
		format := formatOf(rule)
		for _, target := range r.eff.Targets(format) {
			declared = append(declared, target.Annotation)
		}
	}

	seen := make(map[string]bool, len(declared))
	inputs := make([]string, 0, len(declared))
	for _, input := range declared {
		name, err := r.concrete(input)
		if err != nil {
			return nil, err
		}
		if !seen[name] {
			seen[name] = true
			inputs = append(inputs, name)
		}
	}
	return inputs, nil
}

// formatOf extracts the export format from an exporter's output name
// ("export.xml" -> "xml"). Validated at registration time.
func formatOf(rule *registry.Rule) string {
	_, format := anno.Split(rule.Outputs[0])
	return format
}

// buildGraph multiplies the selected rules across documents and links
// dependency edges. Document-scope rules yield one node per document;
// corpus-scope rules yield a single node fanning in over every document.
func (r *resolution) buildGraph(ctx context.Context, docs []string) (*plan.Graph, error) {
	logger := ctxlog.FromContext(ctx)
	graph := plan.New()

	// First pass: create nodes for every distinct selected rule.
	rules := make(map[string]*selection)
	for _, sel := range r.selected {
		rules[sel.rule.ID()] = sel
	}
	for ruleID, sel := range rules {
		if sel.rule.Scope == registry.ScopeCorpus {
			graph.Add(&plan.Node{
				ID:      plan.NodeID(ruleID, ""),
				Rule:    sel.rule,
				Inputs:  sel.inputs,
				Outputs: sel.rule.Outputs,
			})
			continue
		}
		for _, doc := range docs {
			graph.Add(&plan.Node{
				ID:       plan.NodeID(ruleID, doc),
				Rule:     sel.rule,
				Document: doc,
				Inputs:   sel.inputs,
				Outputs:  sel.rule.Outputs,
			})
		}
	}

	// Second pass: dependency edges from each node's inputs to their
	// producing nodes.
	for _, sel := range rules {
		if err := r.linkRule(graph, sel, docs); err != nil {
			return nil, err
		}
	}
	logger.Debug("Node linking complete.")
	return graph, nil
}

// linkRule adds edges for every (rule, document) node of one selection.
func (r *resolution) linkRule(graph *plan.Graph, sel *selection, docs []string) error {
	nodeDocs := docs
	if sel.rule.Scope == registry.ScopeCorpus {
		nodeDocs = []string{""}
	}

	for _, doc := range nodeDocs {
		nodeID := plan.NodeID(sel.rule.ID(), doc)
		for _, input := range sel.inputs {
			producer := r.selected[input]
			if producer == nil {
				return fmt.Errorf("internal: input %q of %s has no selected producer", input, sel.rule.ID())
			}
			if producer.rule.ID() == sel.rule.ID() {
				continue
			}
			switch {
			case producer.rule.Scope == registry.ScopeCorpus:
				if err := graph.AddEdge(plan.NodeID(producer.rule.ID(), ""), nodeID); err != nil {
					return err
				}
			case sel.rule.Scope == registry.ScopeCorpus:
				// Corpus-scope consumers fan in over every document.
				for _, d := range docs {
					if err := graph.AddEdge(plan.NodeID(producer.rule.ID(), d), nodeID); err != nil {
						return err
					}
				}
			default:
				if err := graph.AddEdge(plan.NodeID(producer.rule.ID(), doc), nodeID); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
