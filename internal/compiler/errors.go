// Package compiler drives the external LaTeX toolchain and classifies its outcome.
package compiler

import "fmt"

// CompilationError represents a fatal toolchain run.
type CompilationError struct {
	Message     string
	ExitCode    int
	Details     []string // error-marker lines pulled from the logs
	Diagnostics string   // bounded tail of the combined logs
	Cause       error
}

func (e *CompilationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("LaTeX compilation error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("LaTeX compilation error: %s (exit code %d)", e.Message, e.ExitCode)
}

func (e *CompilationError) Unwrap() error {
	return e.Cause
}

// ArtifactMissingError represents a run that reported success without
// producing the expected output file.
type ArtifactMissingError struct {
	Path        string
	Diagnostics string
}

func (e *ArtifactMissingError) Error() string {
	return fmt.Sprintf("compiled artifact missing: %s", e.Path)
}
