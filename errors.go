package kgforge

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConfiguration marks invalid or missing backend, model or resolver configuration.
	ErrConfiguration = errors.New("kgforge: configuration error")
	// ErrMappingCycle marks a cyclic dependency between mapping rules.
	ErrMappingCycle = errors.New("kgforge: mapping cycle")
	// ErrValidation marks a schema violation.
	ErrValidation = errors.New("kgforge: validation failed")
	// ErrResolving marks an unknown resolving scope, resolver or target.
	ErrResolving = errors.New("kgforge: resolving error")
	// ErrRevisionConflict marks an optimistic concurrency mismatch.
	ErrRevisionConflict = errors.New("kgforge: revision conflict")
	// ErrInvalidResourceState marks a lifecycle operation that the resource state forbids.
	ErrInvalidResourceState = errors.New("kgforge: invalid resource state")
	// ErrNotFound marks an unknown id, revision or tag.
	ErrNotFound = errors.New("kgforge: not found")
	// ErrDownload marks a failed download of one or more files.
	ErrDownload = errors.New("kgforge: download failed")
	// ErrNotSupported is returned by adapters for operations they do not implement.
	ErrNotSupported = errors.New("kgforge: operation not supported")
	// ErrReservedProperty rejects property names owned by identity or store metadata.
	ErrReservedProperty = errors.New("kgforge: reserved property name")
)

// ItemError ties a failure to the position of the element that produced it.
type ItemError struct {
	Index int
	Err   error
}

func (e ItemError) Error() string {
	return fmt.Sprintf("[%d] %v", e.Index, e.Err)
}

func (e ItemError) Unwrap() error {
	return e.Err
}

// ConfigurationError reports a component that could not be built from its configuration.
type ConfigurationError struct {
	Component string
	Name      string
	Reason    string
	Err       error
}

func (e *ConfigurationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := fmt.Sprintf("kgforge: %s", e.Component)
	if e.Name != "" {
		msg += fmt.Sprintf(" %q", e.Name)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

func (e *ConfigurationError) Unwrap() []error {
	if e == nil {
		return nil
	}
	if e.Err == nil {
		return []error{ErrConfiguration}
	}
	return []error{ErrConfiguration, e.Err}
}

// MappingCycleError lists the rule targets taking part in a dependency cycle.
type MappingCycleError struct {
	Targets []string
}

func (e *MappingCycleError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("kgforge: mapping cycle between rules [%s]", strings.Join(e.Targets, ", "))
}

func (e *MappingCycleError) Unwrap() error {
	return ErrMappingCycle
}

// ValidationError is the first violation reported for a single resource.
type ValidationError struct {
	Type       string
	Path       string
	Constraint string
	Reason     string
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	b.WriteString("kgforge: validation failed")
	if e.Type != "" {
		fmt.Fprintf(&b, " type=%s", e.Type)
	}
	if e.Path != "" {
		fmt.Fprintf(&b, " path=%s", e.Path)
	}
	if e.Constraint != "" {
		fmt.Fprintf(&b, " constraint=%s", e.Constraint)
	}
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	return b.String()
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// AggregatedValidationError collects every failing element of a validated list.
type AggregatedValidationError struct {
	Failures []ItemError
}

func (e *AggregatedValidationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("kgforge: validation failed for %d resource(s): %s", len(e.Failures), joinItems(e.Failures))
}

func (e *AggregatedValidationError) Unwrap() []error {
	if e == nil {
		return nil
	}
	return append([]error{ErrValidation}, itemErrors(e.Failures)...)
}

// ResolvingError distinguishes misconfiguration from an empty resolution.
type ResolvingError struct {
	Scope    string
	Resolver string
	Target   string
	Reason   string
}

func (e *ResolvingError) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	b.WriteString("kgforge: resolving")
	if e.Scope != "" {
		fmt.Fprintf(&b, " scope=%s", e.Scope)
	}
	if e.Resolver != "" {
		fmt.Fprintf(&b, " resolver=%s", e.Resolver)
	}
	if e.Target != "" {
		fmt.Fprintf(&b, " target=%s", e.Target)
	}
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	return b.String()
}

func (e *ResolvingError) Unwrap() error {
	return ErrResolving
}

// RevisionConflictError reports a stale cached revision on update.
type RevisionConflictError struct {
	ID       string
	Expected int
	Actual   int
}

func (e *RevisionConflictError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("kgforge: revision conflict for %s: cached revision %d, backend revision %d", e.ID, e.Expected, e.Actual)
}

func (e *RevisionConflictError) Unwrap() error {
	return ErrRevisionConflict
}

// InvalidResourceStateError reports a lifecycle operation rejected by the state machine.
type InvalidResourceStateError struct {
	ID        string
	Operation string
	Reason    string
}

func (e *InvalidResourceStateError) Error() string {
	if e == nil {
		return "<nil>"
	}
	id := e.ID
	if id == "" {
		id = "<unregistered>"
	}
	return fmt.Sprintf("kgforge: cannot %s %s: %s", e.Operation, id, e.Reason)
}

func (e *InvalidResourceStateError) Unwrap() error {
	return ErrInvalidResourceState
}

// NotFoundError reports an unknown id, revision or tag.
type NotFoundError struct {
	ID      string
	Version string
}

func (e *NotFoundError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Version != "" {
		return fmt.Sprintf("kgforge: %s at version %s not found", e.ID, e.Version)
	}
	return fmt.Sprintf("kgforge: %s not found", e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// DownloadError collects the failing items of a download pass.
type DownloadError struct {
	Failures []ItemError
}

func (e *DownloadError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("kgforge: %d download(s) failed: %s", len(e.Failures), joinItems(e.Failures))
}

func (e *DownloadError) Unwrap() []error {
	if e == nil {
		return nil
	}
	return append([]error{ErrDownload}, itemErrors(e.Failures)...)
}

// BatchError collects per-element failures of a list operation. Failures keep
// the input positions of the failing elements.
type BatchError struct {
	Operation string
	Total     int
	Failures  []ItemError
}

func (e *BatchError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("kgforge: %s failed for %d of %d item(s): %s", e.Operation, len(e.Failures), e.Total, joinItems(e.Failures))
}

func (e *BatchError) Unwrap() []error {
	if e == nil {
		return nil
	}
	return itemErrors(e.Failures)
}

// Indexes returns the failing positions in ascending order.
func (e *BatchError) Indexes() []int {
	if e == nil {
		return nil
	}
	out := make([]int, len(e.Failures))
	for i, failure := range e.Failures {
		out[i] = failure.Index
	}
	return out
}

// NewBatchError returns nil when failures is empty so callers can return it directly.
func NewBatchError(operation string, total int, failures []ItemError) error {
	if len(failures) == 0 {
		return nil
	}
	return &BatchError{Operation: operation, Total: total, Failures: failures}
}

func joinItems(items []ItemError) string {
	parts := make([]string, len(items))
	for i, item := range items {
		parts[i] = item.Error()
	}
	return strings.Join(parts, "; ")
}

func itemErrors(items []ItemError) []error {
	out := make([]error, 0, len(items))
	for _, item := range items {
		out = append(out, item)
	}
	return out
}
