// Package merge defines the paragraph-merging collaborator and its providers.
//
// A merger receives the raw fragments of one node, in order, and returns the
// paragraphs they form. Providers never invent text: the model only chooses
// which adjacent fragments belong together.
package merge

import (
	"context"
	"errors"
	"fmt"
)

// Request is one batch of fragments belonging to a single node.
type Request struct {
	Fragments  []string
	Language   string
	Style      string
	Title      string   // document title
	Breadcrumb []string // ancestor labels, outermost first
}

// Merger turns fragments into paragraphs.
type Merger interface {
	Merge(ctx context.Context, req Request) ([]string, error)
	// Name identifies provider and model, e.g. "openai/gpt-4o-mini".
	Name() string
}

// ErrMalformedResponse means the provider answered but the answer could not
// be mapped back onto the fragments.
var ErrMalformedResponse = errors.New("malformed merge response")

// TransientError indicates a failure that can be retried.
type TransientError struct {
	Provider   string
	StatusCode int
	Message    string
	Err        error
}

func (e *TransientError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: transient error: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("%s: transient error (status %d): %s", e.Provider, e.StatusCode, truncate(e.Message, 200))
}

func (e *TransientError) Unwrap() error { return e.Err }

// FatalError aborts the whole run: bad credentials or an exhausted quota.
type FatalError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("%s: fatal error (status %d): %s", e.Provider, e.StatusCode, truncate(e.Message, 200))
}

// IsTransient reports whether err is or wraps a TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// IsFatal reports whether err is or wraps a FatalError.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}

// classifyStatus maps an HTTP status to the error kinds above. ok is false
// for statuses that are neither (plain request errors).
func classifyStatus(provider string, status int, msg string) (error, bool) {
	switch {
	case status == 401 || status == 403 || status == 402:
		return &FatalError{Provider: provider, StatusCode: status, Message: msg}, true
	case status == 429 && quotaExhausted(msg):
		return &FatalError{Provider: provider, StatusCode: status, Message: msg}, true
	case status == 429 || status == 408 || status >= 500:
		return &TransientError{Provider: provider, StatusCode: status, Message: msg}, true
	case status == 400 && quotaExhausted(msg):
		return &FatalError{Provider: provider, StatusCode: status, Message: msg}, true
	}
	return nil, false
}
