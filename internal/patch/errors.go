// Package patch turns model output into exact-match substitutions and applies
// them to the resume source with all-or-nothing semantics.
package patch

import "fmt"

// maxSearchPreview bounds how much of a failing search string is echoed back.
const maxSearchPreview = 120

// ConflictReason says why a patch could not be placed.
type ConflictReason string

const (
	// NotFound means the search text does not occur in the working document.
	NotFound ConflictReason = "not_found"
	// Ambiguous means the search text occurs more than once.
	Ambiguous ConflictReason = "ambiguous"
)

// ExtractionError represents a model response that holds no usable patch batch.
type ExtractionError struct {
	Message string
	Raw     string
	Cause   error
}

func (e *ExtractionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("patch extraction error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("patch extraction error: %s", e.Message)
}

func (e *ExtractionError) Unwrap() error {
	return e.Cause
}

// ConflictError represents a patch whose search text does not match exactly once.
type ConflictError struct {
	Reason ConflictReason
	Index  int
	Search string
	Count  int
}

func (e *ConflictError) Error() string {
	switch e.Reason {
	case Ambiguous:
		return fmt.Sprintf("patch conflict: patch %d: search block found %d times: %q", e.Index, e.Count, e.SearchPreview())
	default:
		return fmt.Sprintf("patch conflict: patch %d: search block not found: %q", e.Index, e.SearchPreview())
	}
}

// SearchPreview returns the search text truncated for diagnostics.
func (e *ConflictError) SearchPreview() string {
	return truncate(e.Search, maxSearchPreview)
}

// SecurityViolationError represents text carrying a denylisted directive.
type SecurityViolationError struct {
	Directive string
	Index     int // patch index, or -1 for whole-document checks
}

func (e *SecurityViolationError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("security violation: patch %d uses forbidden directive %s", e.Index, e.Directive)
	}
	return fmt.Sprintf("security violation: document uses forbidden directive %s", e.Directive)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
