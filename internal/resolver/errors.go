package resolver

import (
	"fmt"
	"strings"
)

// UnresolvedAnnotationError is raised when no registered rule produces a
// requested annotation under the current configuration. It is fatal and
// surfaced before any execution begins.
type UnresolvedAnnotationError struct {
	Annotation string
	// Chain is the requirement path that led to the annotation, targets
	// first.
	Chain []string
}

// Error implements the error interface.
func (e *UnresolvedAnnotationError) Error() string {
	msg := fmt.Sprintf("no rule produces annotation %q", e.Annotation)
	if len(e.Chain) > 0 {
		msg += " (required via " + strings.Join(e.Chain, " -> ") + ")"
	}
	return msg
}

// CyclicDependencyError is raised when rule requirements form a cycle.
// Fatal, surfaced before execution, naming the full chain.
type CyclicDependencyError struct {
	Chain []string
}

// Error implements the error interface.
func (e *CyclicDependencyError) Error() string {
	return "cyclic dependency: " + strings.Join(e.Chain, " -> ")
}
