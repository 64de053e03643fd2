package editor

import (
	"errors"
	"fmt"

	"github.com/jonathan/resume-editor/internal/compiler"
	"github.com/jonathan/resume-editor/internal/history"
	"github.com/jonathan/resume-editor/internal/patch"
)

// Kind classifies an editor failure.
type Kind string

const (
	KindBudgetExceeded    Kind = "budget_exceeded"
	KindModelUnavailable  Kind = "model_unavailable"
	KindExtraction        Kind = "extraction_error"
	KindPatchConflict     Kind = "patch_conflict"
	KindSecurityViolation Kind = "security_violation"
	KindCompilation       Kind = "compilation_error"
	KindArtifactMissing   Kind = "artifact_missing"
	KindVersionControl    Kind = "version_control_error"
	KindInvalidInput      Kind = "invalid_input"
	KindNotFound          Kind = "not_found"
	KindInternal          Kind = "internal"
)

// Error is the structured failure returned by every editor operation.
type Error struct {
	Kind    Kind
	Stage   Stage
	Message string
	// Raw is the model output for extraction failures.
	Raw string
	// Details carries the failing search text or compiler error lines.
	Details []string
	// Diagnostics is the compiler log tail.
	Diagnostics string
	Cause       error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s at %s: %s: %v", e.Kind, e.Stage, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s at %s: %s", e.Kind, e.Stage, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// KindOf returns the kind of err, or KindInternal when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// classify wraps err from a pipeline step into an *Error, lifting the
// diagnostic context each package's error type carries.
func classify(stage Stage, err error) *Error {
	var existing *Error
	if errors.As(err, &existing) {
		return existing
	}

	out := &Error{Kind: KindInternal, Stage: stage, Message: err.Error(), Cause: err}

	var extraction *patch.ExtractionError
	var conflict *patch.ConflictError
	var security *patch.SecurityViolationError
	var compilation *compiler.CompilationError
	var missing *compiler.ArtifactMissingError
	var vcs *history.VersionControlError

	switch {
	case errors.As(err, &extraction):
		out.Kind = KindExtraction
		out.Message = extraction.Message
		out.Raw = extraction.Raw
	case errors.As(err, &conflict):
		out.Kind = KindPatchConflict
		out.Message = string(conflict.Reason)
		out.Details = []string{conflict.SearchPreview()}
	case errors.As(err, &security):
		out.Kind = KindSecurityViolation
		out.Message = security.Error()
		out.Details = []string{security.Directive}
	case errors.As(err, &compilation):
		out.Kind = KindCompilation
		out.Message = compilation.Message
		out.Details = compilation.Details
		out.Diagnostics = compilation.Diagnostics
	case errors.As(err, &missing):
		out.Kind = KindArtifactMissing
		out.Message = "compiler produced no artifact"
		out.Diagnostics = missing.Diagnostics
	case errors.As(err, &vcs):
		out.Kind = KindVersionControl
		out.Message = vcs.Op + " failed"
		if vcs.Output != "" {
			out.Details = []string{vcs.Output}
		}
	}
	return out
}
