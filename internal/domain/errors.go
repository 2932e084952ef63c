package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation marks malformed input; the request is rejected before any write.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound is the root of every "missing entity" error.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyPassed is returned when a learner resubmits a quiz they already passed.
	ErrAlreadyPassed = errors.New("quiz already passed, retakes are not allowed")
	// ErrConflict signals concurrent-update contention detected by a store.
	ErrConflict = errors.New("concurrent update conflict")

	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = fmt.Errorf("quiz %w", ErrNotFound)
	// ErrSubSectionNotFound indicates the subsection is unknown to the course catalog.
	ErrSubSectionNotFound = fmt.Errorf("subsection %w", ErrNotFound)
	// ErrSectionNotFound indicates the section is unknown to the course catalog.
	ErrSectionNotFound = fmt.Errorf("section %w", ErrNotFound)
	// ErrProgressNotFound indicates the learner has no progress record for the course yet.
	ErrProgressNotFound = fmt.Errorf("course progress %w", ErrNotFound)
	// ErrQuizExists is returned when a subsection already owns a quiz.
	ErrQuizExists = fmt.Errorf("quiz already exists for subsection: %w", ErrConflict)
)

// ValidationError carries the violated constraint. Unanswered holds the
// 1-based ordinals of required questions left blank, when that is the cause.
type ValidationError struct {
	Field      string
	Message    string
	Unanswered []int
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Invalid builds a ValidationError for a single field.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// UnansweredError reports required questions missing from a submission.
func UnansweredError(ordinals []int) error {
	parts := make([]string, len(ordinals))
	for i, n := range ordinals {
		parts[i] = fmt.Sprintf("%d", n)
	}
	return &ValidationError{
		Field:      "answers",
		Message:    "please answer all required questions: " + strings.Join(parts, ", "),
		Unanswered: ordinals,
	}
}

// AlreadyPassedError carries the stored result so callers can show it.
type AlreadyPassedError struct {
	Result QuizResult
}

func (e *AlreadyPassedError) Error() string {
	return ErrAlreadyPassed.Error()
}

func (e *AlreadyPassedError) Is(target error) bool {
	return target == ErrAlreadyPassed
}
