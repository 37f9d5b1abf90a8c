// Package crawlerr defines the pipeline's classified error type. A
// ClassifiedError carries enough information for the pipeline to decide
// whether to retry, and for the tenant DB client to record a CrawlError row.
//
// Modeled on rohmanhakim-docs-crawler's pkg/failure.ClassifiedError: a small
// struct instead of sentinel errors, so callers can branch on Type() without
// parsing strings.
package crawlerr

import (
	"fmt"

	"github.com/lalasearch/crawlcore/internal/model"
)

// ClassifiedError is a pipeline-stage failure tagged with the model.ErrorType
// taxonomy from spec §7.
type ClassifiedError struct {
	Kind    model.ErrorType
	Message string
	Cause   error
}

// New builds a ClassifiedError of the given kind.
func New(kind model.ErrorType, format string, args ...interface{}) *ClassifiedError {
	return &ClassifiedError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds a ClassifiedError of the given kind around an existing error.
func Wrap(kind model.ErrorType, cause error, format string, args ...interface{}) *ClassifiedError {
	return &ClassifiedError{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

func (e *ClassifiedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *ClassifiedError) Unwrap() error {
	return e.Cause
}

// Type returns the error_type column value this error should be recorded as.
func (e *ClassifiedError) Type() model.ErrorType {
	return e.Kind
}

// Retryable reports whether the pipeline should requeue after this error.
func (e *ClassifiedError) Retryable() bool {
	return !e.Kind.Terminal()
}
