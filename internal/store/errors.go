package store

import "fmt"

// IOError is an artifact read or write failure. It is fatal for the
// affected plan node and names the exact key involved.
type IOError struct {
	Doc        string
	Annotation string
	Op         string
	Msg        string
	Err        error
}

// Error implements the error interface.
func (e *IOError) Error() string {
	what := e.Msg
	if what == "" && e.Err != nil {
		what = e.Err.Error()
	}
	if e.Annotation == "" {
		return fmt.Sprintf("store %s: %s", e.Op, what)
	}
	doc := e.Doc
	if doc == "" {
		doc = "(corpus)"
	}
	return fmt.Sprintf("store %s %s/%s: %s", e.Op, doc, e.Annotation, what)
}

// Unwrap returns the underlying cause, if any.
func (e *IOError) Unwrap() error {
	return e.Err
}
