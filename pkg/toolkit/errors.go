package toolkit

import "fmt"

// ValidationError is returned when a Register call supplies a malformed
// descriptor or a nil implementation.
type ValidationError struct{ Reason string }

func (e *ValidationError) Error() string { return "toolkit: " + e.Reason }

// NotFoundError is returned when a tool name has no registered entry.
type NotFoundError struct{ Name string }

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("toolkit: tool %q not found", e.Name)
}

// DisabledError is returned when Invoke targets a soft-deleted tool.
type DisabledError struct{ Name string }

func (e *DisabledError) Error() string {
	return fmt.Sprintf("toolkit: tool %q is disabled", e.Name)
}
