package template

import "fmt"

// UnderflowError is returned by Execute when a template references a
// positional back-reference beyond what the context currently holds
// (spec.md §3 invariant 2, §7 template-underflow, §8 property 4).
type UnderflowError struct {
	Index     int
	Available int
}

func (e *UnderflowError) Error() string {
	return fmt.Sprintf("template: positional reference {%d} needs %d back-references, only %d available",
		e.Index, e.Index+1, e.Available)
}

// Underflow is a marker method letting callers outside this package
// (the pipeline executor) test for this error type without importing
// template, by asserting against an interface with this one method.
func (e *UnderflowError) Underflow() {}
