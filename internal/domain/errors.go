package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors usable with errors.Is across the error taxonomy defined
// in spec.md §7.
var (
	// ErrUnknownNode indicates a graph edge or lookup referenced a node ID
	// that was never registered.
	ErrUnknownNode = errors.New("unknown node")

	// ErrUnknownOperator indicates a registry lookup referenced an operator
	// kind that has no factory registered.
	ErrUnknownOperator = errors.New("unknown operator")

	// ErrGraphCycle indicates a graph contains a circular dependency.
	ErrGraphCycle = errors.New("graph contains a cycle")

	// ErrConflict indicates two parallel branches wrote the same output key
	// without a registered merge resolver.
	ErrConflict = errors.New("conflicting output keys")

	// ErrTimeout indicates an operator call exceeded its deadline.
	ErrTimeout = errors.New("operation timed out")

	// ErrCacheInvariant indicates an internal invariant of the JIT cache was
	// violated. This should never be user-visible in normal operation.
	ErrCacheInvariant = errors.New("jit cache invariant violated")
)

// ValidationError reports that an operator's inputs failed its declared
// Specification.
type ValidationError struct {
	// Operator identifies which operator rejected the input.
	Operator string
	// Field names the offending field, or "" if the failure is not
	// attributable to a single field.
	Field string
	// Reason describes what was wrong.
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error: operator=%s field=%s: %s", e.Operator, e.Field, e.Reason)
	}
	return fmt.Sprintf("validation error: operator=%s: %s", e.Operator, e.Reason)
}

// UnknownNodeError reports a graph operation that referenced a missing
// node ID.
type UnknownNodeError struct{ NodeID string }

func (e *UnknownNodeError) Error() string { return fmt.Sprintf("unknown node: %s", e.NodeID) }
func (e *UnknownNodeError) Unwrap() error { return ErrUnknownNode }

// UnknownOperatorError reports a registry lookup for an unregistered
// operator kind.
type UnknownOperatorError struct{ Kind string }

func (e *UnknownOperatorError) Error() string {
	return fmt.Sprintf("unknown operator kind: %s", e.Kind)
}
func (e *UnknownOperatorError) Unwrap() error { return ErrUnknownOperator }

// GraphCycleError reports that a graph failed cycle detection at prepare
// time, before any operator ran.
type GraphCycleError struct{ Nodes []string }

func (e *GraphCycleError) Error() string {
	return fmt.Sprintf("graph cycle detected among nodes: %v", e.Nodes)
}
func (e *GraphCycleError) Unwrap() error { return ErrGraphCycle }

// ChildError wraps an error surfaced by a nested operator, recording the
// composition path that led to it (e.g. "seq[1:par]/par[0:leaf]").
type ChildError struct {
	Path  string
	Cause error
}

func (e *ChildError) Error() string { return fmt.Sprintf("%s: %v", e.Path, e.Cause) }
func (e *ChildError) Unwrap() error { return e.Cause }

// NewChildError wraps cause with the given path, collapsing nested
// ChildErrors into a single slash-separated path instead of stuttering.
func NewChildError(path string, cause error) error {
	var child *ChildError
	if errors.As(cause, &child) {
		return &ChildError{Path: path + "/" + child.Path, Cause: child.Cause}
	}
	return &ChildError{Path: path, Cause: cause}
}

// TimeoutError reports that a per-call or per-request deadline expired.
type TimeoutError struct {
	Operator string
	Elapsed  string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout: operator=%s elapsed=%s", e.Operator, e.Elapsed)
}
func (e *TimeoutError) Unwrap() error { return ErrTimeout }

// ProviderError reports a network or API failure surfaced by a model
// provider.
type ProviderError struct {
	Provider string
	Status   int
	Message  string
	Cause    error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error: provider=%s status=%d: %s", e.Provider, e.Status, e.Message)
}
func (e *ProviderError) Unwrap() error { return e.Cause }

// ConflictError reports that two parallel branches produced the same
// output key without a registered merge resolver.
type ConflictError struct {
	Key      string
	Branches []string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflicting output key %q written by branches %v", e.Key, e.Branches)
}
func (e *ConflictError) Unwrap() error { return ErrConflict }

// CacheError reports an internal invariant violation in the JIT cache.
// It is always logged by the caller and never expected during normal
// operation.
type CacheError struct {
	Fingerprint string
	Operation   string
	Cause       error
}

func (e *CacheError) Error() string {
	return fmt.Sprintf("cache error: op=%s fingerprint=%s: %v", e.Operation, e.Fingerprint, e.Cause)
}
func (e *CacheError) Unwrap() error { return errors.Join(ErrCacheInvariant, e.Cause) }
