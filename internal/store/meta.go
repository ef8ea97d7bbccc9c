package store

import "time"

// Shape describes how an artifact's values align with the document, so
// consumers can validate alignment without re-running producer logic.
type Shape string

const (
	// ShapePerToken artifacts hold one value per token of the document.
	ShapePerToken Shape = "per-token"
	// ShapePerSpan artifacts hold one "start-end" pair per span.
	ShapePerSpan Shape = "per-span"
	// ShapeBlob artifacts are opaque single values.
	ShapeBlob Shape = "blob"
)

// Meta is the sidecar persisted with every artifact.
type Meta struct {
	Shape Shape `json:"shape"`
	// Fingerprint is the hash of the producing rule's relevant config
	// subtree at production time, read back by the freshness tracker.
	Fingerprint uint64    `json:"fingerprint"`
	Produced    time.Time `json:"produced"`
}
