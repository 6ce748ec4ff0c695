package sections

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrBrokenChain  = errors.New("broken section chain")
)

const (
	ErrorCodeValidation  = "VALIDATION_ERROR"
	ErrorCodeBrokenChain = "BROKEN_CHAIN"
	ErrorCodeNotFound    = "NOT_FOUND"
	ErrorCodeInternal    = "INTERNAL_ERROR"
)

// FieldError describes one rejected payload key.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every rejected field of a section record.
type ValidationError struct {
	Section int
	Fields  []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+" "+f.Message)
	}
	return fmt.Sprintf("section%d: %s", e.Section, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

type fieldErrors struct {
	section int
	list    []FieldError
}

func (f *fieldErrors) add(field, msg string) {
	f.list = append(f.list, FieldError{Field: field, Message: msg})
}

func (f *fieldErrors) err() error {
	if len(f.list) == 0 {
		return nil
	}
	sort.SliceStable(f.list, func(i, j int) bool { return f.list[i].Field < f.list[j].Field })
	return &ValidationError{Section: f.section, Fields: f.list}
}
