// Package scheduler executes a build plan on a bounded worker pool.
//
// Ready nodes (all dependencies done or pruned) are fed to workers through
// a channel; completions unlock dependents by decrementing their pending
// counters. A failing node poisons only its downstream cone: independent
// branches keep executing, and every artifact persisted before the failure
// stays in the store.
package scheduler

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/vk/annogrid/internal/anno"
	"github.com/vk/annogrid/internal/config"
	"github.com/vk/annogrid/internal/ctxlog"
	"github.com/vk/annogrid/internal/freshness"
	"github.com/vk/annogrid/internal/plan"
	"github.com/vk/annogrid/internal/registry"
	"github.com/vk/annogrid/internal/store"
)

// defaultWorkers matches the pool size to the host's parallelism when no
// explicit worker count is configured.
func defaultWorkers() int {
	return runtime.NumCPU()
}

// Scheduler runs one plan to completion.
type Scheduler struct {
	graph   *plan.Graph
	reg     *registry.Registry
	eff     *config.Effective
	store   *store.Store
	docs    []string
	workers int
	wg      sync.WaitGroup
}

// New creates a scheduler for one resolved, pruned plan. workers <= 0
// selects the default pool size.
func New(graph *plan.Graph, reg *registry.Registry, eff *config.Effective, st *store.Store, docs []string, workers int) *Scheduler {
	if workers <= 0 {
		workers = defaultWorkers()
	}
	return &Scheduler{
		graph:   graph,
		reg:     reg,
		eff:     eff,
		store:   st,
		docs:    docs,
		workers: workers,
	}
}

// Run executes every non-pruned node and returns the run report. The
// returned report is complete even when nodes fail; the context canceling
// stops dispatch and fails the remaining nodes.
func (s *Scheduler) Run(ctx context.Context) *Report {
	logger := ctxlog.FromContext(ctx)

	pending := 0
	for _, node := range s.graph.Nodes {
		if node.State() == plan.Pruned {
			continue
		}
		node.InitCounters()
		pending++
	}

	readyChan := make(chan *plan.Node, len(s.graph.Nodes))
	for _, id := range s.graph.SortedIDs() {
		node := s.graph.Nodes[id]
		if node.State() == plan.Pending && node.DepCount() == 0 {
			readyChan <- node
		}
	}

	s.wg.Add(pending)
	logger.Debug("Starting worker pool.", "workers", s.workers, "pending", pending)
	for i := 0; i < s.workers; i++ {
		go s.worker(ctx, readyChan, i)
	}

	s.wg.Wait()
	close(readyChan)
	logger.Debug("All nodes settled.")

	return buildReport(s.graph)
}

// worker is the processing loop of one pool member.
func (s *Scheduler) worker(ctx context.Context, readyChan chan *plan.Node, workerID int) {
	logger := ctxlog.FromContext(ctx).With("worker", workerID)

	for node := range readyChan {
		// A skip cascade may have settled the node while it sat in the
		// queue; its accounting is already handled there.
		if node.State() == plan.Failed {
			continue
		}
		if ctx.Err() != nil {
			node.FailOnce(ctx.Err(), func() {
				logger.Warn("Run canceled, node not executed.", "node", node.ID)
				s.wg.Done()
				s.skipDependents(ctx, node)
			})
			continue
		}

		node.SetState(plan.Running)
		logger.Debug("Executing node.", "node", node.ID)
		err := s.execute(ctx, node)
		if err != nil {
			node.FailOnce(err, func() {
				logger.Error("Node execution failed.", "node", node.ID, "error", err)
				s.wg.Done()
				s.skipDependents(ctx, node)
			})
			continue
		}

		node.DoneOnce(func() {
			logger.Debug("Node execution succeeded.", "node", node.ID)
			for _, dependent := range node.Dependents {
				if dependent.State() == plan.Pruned {
					continue
				}
				if dependent.DecrementDepCount() == 0 {
					readyChan <- dependent
				}
			}
			s.wg.Done()
		})
	}
}

// skipDependents marks the downstream cone of a failed node as skipped.
// Only the cone: siblings on other branches continue to run.
func (s *Scheduler) skipDependents(ctx context.Context, node *plan.Node) {
	logger := ctxlog.FromContext(ctx)
	for _, dependent := range node.Dependents {
		if dependent.State() == plan.Pruned {
			continue
		}
		dep := dependent
		dep.FailOnce(&SkippedError{Upstream: node.ID}, func() {
			logger.Warn("Skipping node due to upstream failure.", "node", dep.ID, "upstream", node.ID)
			s.wg.Done()
			s.skipDependents(ctx, dep)
		})
	}
}

// execute builds the task for one node and invokes its handler.
func (s *Scheduler) execute(ctx context.Context, node *plan.Node) error {
	handler, ok := s.reg.HandlerFor(node.Rule)
	if !ok {
		return fmt.Errorf("no handler registered for rule %s", node.Rule.ID())
	}

	fingerprint, err := freshness.Fingerprint(s.eff, node.Rule)
	if err != nil {
		return err
	}

	task := &registry.Task{
		Rule:        node.Rule,
		Document:    node.Document,
		Docs:        s.docs,
		Config:      s.eff,
		Store:       s.store,
		Fingerprint: fingerprint,
		Inputs:      node.Inputs,
		Outputs:     node.Outputs,
		SourceDir:   s.eff.Path("import.source_dir", "source"),
		ExportDir:   s.eff.Path("export_dir", "export"),
	}
	if node.Rule.Kind == registry.KindExporter {
		_, format := anno.Split(node.Rule.Outputs[0])
		task.Targets = s.eff.Targets(format)
	}

	if err := handler(ctx, task); err != nil {
		return &RuleExecutionError{Rule: node.Rule.ID(), Document: node.Document, Err: err}
	}
	return nil
}
