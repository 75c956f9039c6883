// Package errors provides error categorization and retry strategies for
// pipeline collaborators.
//
// The package implements a layered error handling approach:
//   - Categorization: classify errors for appropriate handling
//   - Retry: handle transient failures with exponential backoff
//
// The routing core itself never retries; retries belong to collaborators
// (most notably the order executor) and are invisible to the router.
package errors

import (
	"errors"
	"fmt"
)

// Category represents how an error should be handled.
type Category int

const (
	// CategoryTransient indicates retry will likely help.
	// Examples: venue timeouts, temporary network issues.
	CategoryTransient Category = iota

	// CategoryPermanent indicates retry won't help.
	// Examples: invalid orders, configuration errors.
	CategoryPermanent

	// CategoryOverload indicates the system or venue is saturated.
	// Retry may help after a longer backoff.
	// Examples: rate limits, full queues.
	CategoryOverload
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryTransient:
		return "transient"
	case CategoryPermanent:
		return "permanent"
	case CategoryOverload:
		return "overload"
	default:
		return "unknown"
	}
}

// CategorizedError wraps an error with its category and context.
type CategorizedError struct {
	// Err is the underlying error.
	Err error

	// Category indicates how this error should be handled.
	Category Category

	// Retries is the number of attempts that have been made.
	Retries int

	// Context describes what operation was being attempted.
	Context string
}

// Error implements the error interface.
func (e *CategorizedError) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("%s: %s (category: %s, attempts: %d)",
			e.Context, e.Err, e.Category, e.Retries)
	}
	return fmt.Sprintf("%s (category: %s, attempts: %d)",
		e.Err, e.Category, e.Retries)
}

// Unwrap returns the underlying error.
func (e *CategorizedError) Unwrap() error {
	return e.Err
}

// Transient wraps an error as retryable.
func Transient(err error, context string) *CategorizedError {
	return &CategorizedError{Err: err, Category: CategoryTransient, Context: context}
}

// Permanent wraps an error as non-retryable.
func Permanent(err error, context string) *CategorizedError {
	return &CategorizedError{Err: err, Category: CategoryPermanent, Context: context}
}

// Overload wraps an error as a saturation condition.
func Overload(err error, context string) *CategorizedError {
	return &CategorizedError{Err: err, Category: CategoryOverload, Context: context}
}

// Categorize determines the category of an arbitrary error.
// Already-categorized errors keep their category; everything else is
// treated as permanent, the conservative default for order flow.
func Categorize(err error) Category {
	if err == nil {
		return CategoryPermanent
	}

	var categorized *CategorizedError
	if errors.As(err, &categorized) {
		return categorized.Category
	}

	return CategoryPermanent
}

// IsRetryable reports whether an error is worth retrying.
func IsRetryable(err error) bool {
	cat := Categorize(err)
	return cat == CategoryTransient || cat == CategoryOverload
}
