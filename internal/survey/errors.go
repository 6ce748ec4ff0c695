package survey

import (
	"errors"
	"fmt"
	"strings"
)

// ErrStorageUnavailable wraps every failure of the underlying key-value backend.
var ErrStorageUnavailable = errors.New("survey storage unavailable")

// ErrNotOnPath means a section is skipped by the current answers.
var ErrNotOnPath = errors.New("section not on the current path")

// FieldError is a single field-level validation failure. Field is a catalog id.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError reports input rejected before any network call was made.
type ValidationError struct {
	Section string
	Fields  []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	if e.Section == "" {
		return "invalid input: " + strings.Join(parts, "; ")
	}
	return fmt.Sprintf("%s: invalid input: %s", e.Section, strings.Join(parts, "; "))
}

func invalidField(section, field, msg string) *ValidationError {
	return &ValidationError{Section: section, Fields: []FieldError{{Field: field, Message: msg}}}
}

// ServerValidationError carries a rejection from the storage service. Message
// is shown to the user verbatim.
type ServerValidationError struct {
	Status  int
	Code    string
	Message string
}

func (e *ServerValidationError) Error() string {
	return fmt.Sprintf("server rejected submission (%d): %s", e.Status, e.Message)
}

// DependencyMissingError means a prior section has not been submitted yet.
type DependencyMissingError struct {
	Section    string
	Missing    []string
	RedirectTo string
}

func (e *DependencyMissingError) Error() string {
	return fmt.Sprintf("%s requires %s to be submitted first", e.Section, strings.Join(e.Missing, ", "))
}

// ServerError is a 5xx reply from the storage service. The service was
// reached, so Message is whatever it reported.
type ServerError struct {
	Op      string
	Status  int
	Code    string
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error (%d) on %s: %s", e.Status, e.Op, e.Message)
}

// NetworkFailureError means the storage service could not be reached.
type NetworkFailureError struct {
	Op  string
	Err error
}

func (e *NetworkFailureError) Error() string {
	return fmt.Sprintf("could not reach server: %s: %v", e.Op, e.Err)
}

func (e *NetworkFailureError) Unwrap() error { return e.Err }

// UserMessage renders err as the short text shown to a survey participant.
func UserMessage(err error) string {
	var (
		ve  *ValidationError
		sve *ServerValidationError
		dme *DependencyMissingError
		nfe *NetworkFailureError
		se  *ServerError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &ve):
		return ve.Error()
	case errors.As(err, &sve):
		return sve.Message
	case errors.As(err, &dme):
		return fmt.Sprintf("Please complete %s first.", dme.RedirectTo)
	case errors.As(err, &nfe):
		return "Could not reach server. Please try again."
	case errors.As(err, &se):
		return "The server failed to process the request: " + se.Message
	case errors.Is(err, ErrStorageUnavailable):
		return "Saved answers are unavailable right now."
	default:
		return err.Error()
	}
}
