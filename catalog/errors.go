package catalog

import "fmt"

// ArgumentError reports a malformed request: wrong value, empty name,
// or an out-of-range parameter. Callers (dispatch) turn this into a
// spec.md §7 "ArgumentError" response; the session stays open.
type ArgumentError struct {
	Field  string
	Reason string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("argument error: %s: %s", e.Field, e.Reason)
}

// NotFoundError reports that a named entity does not exist.
type NotFoundError struct {
	Kind string
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("not found: %s %q", e.Kind, e.Name)
}

// ConflictError reports a duplicate name, an already-bound endpoint, an
// already-connected channel, or incompatible connection endpoints.
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict: %s", e.Reason)
}

func argErr(field, reason string) error {
	return &ArgumentError{Field: field, Reason: reason}
}

func notFound(kind, name string) error {
	return &NotFoundError{Kind: kind, Name: name}
}

func conflict(reason string) error {
	return &ConflictError{Reason: reason}
}
