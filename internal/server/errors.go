// Package server provides the HTTP API of the resume editor.
package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jonathan/resume-editor/internal/editor"
)

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error       string   `json:"error"`
	Kind        string   `json:"kind,omitempty"`
	Stage       string   `json:"stage,omitempty"`
	Raw         string   `json:"raw,omitempty"`
	Details     []string `json:"details,omitempty"`
	Diagnostics string   `json:"diagnostics,omitempty"`
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var validation *ErrValidation
	if errors.As(err, &validation) {
		return http.StatusBadRequest
	}

	switch editor.KindOf(err) {
	case editor.KindInvalidInput, editor.KindSecurityViolation:
		return http.StatusBadRequest
	case editor.KindBudgetExceeded:
		return http.StatusPaymentRequired
	case editor.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// NewErrorResponse builds the payload for err, carrying the diagnostics an
// operator needs to fix a failed edit by hand.
func NewErrorResponse(err error) ErrorResponse {
	var edErr *editor.Error
	if !errors.As(err, &edErr) {
		return ErrorResponse{Error: err.Error()}
	}
	return ErrorResponse{
		Error:       edErr.Error(),
		Kind:        string(edErr.Kind),
		Stage:       string(edErr.Stage),
		Raw:         edErr.Raw,
		Details:     edErr.Details,
		Diagnostics: edErr.Diagnostics,
	}
}
