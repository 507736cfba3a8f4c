// Package errors provides the structured error taxonomy for the comparator.
package errors

import (
	"errors"
	"fmt"
)

// Kind classifies a comparison failure.
type Kind string

const (
	// KindVersionNotFound means a version name or id did not resolve.
	// User-correctable; retrying without changing the input is pointless.
	KindVersionNotFound Kind = "version_not_found"
	// KindFetch means artifact retrieval failed, potentially transiently.
	KindFetch Kind = "fetch_error"
	// KindParse means stored model data is malformed. Not retryable.
	KindParse Kind = "parse_error"
	// KindInternal means a comparator invariant was violated.
	KindInternal Kind = "comparison_internal_error"
)

// Error codes
const (
	CodeVersionNotFound  = "VERSION_NOT_FOUND"
	CodeFetchFailed      = "FETCH_FAILED"
	CodeMalformedDiagram = "MALFORMED_DIAGRAM"
	CodeMalformedEntity  = "MALFORMED_ENTITY"
	CodeDuplicateID      = "DUPLICATE_ID"
)

// ModelError is a structured error with enough context for callers to
// distinguish user mistakes from transient failures from corrupt model data.
type ModelError struct {
	Kind      Kind   `json:"kind"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	Version   string `json:"version,omitempty"`
	Retryable bool   `json:"retryable"`
	Err       error  `json:"-"`
}

func (e *ModelError) Error() string {
	msg := fmt.Sprintf("[%s] %s: %s", e.Kind, e.Code, e.Message)
	if e.Version != "" {
		msg = fmt.Sprintf("%s (version: %s)", msg, e.Version)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *ModelError) Unwrap() error { return e.Err }

// IsKind reports whether err or any error it wraps is a ModelError of kind k.
func IsKind(err error, k Kind) bool {
	var me *ModelError
	if errors.As(err, &me) {
		return me.Kind == k
	}
	return false
}

// IsRetryable reports whether the failure is worth retrying by the caller.
// The comparator itself never retries.
func IsRetryable(err error) bool {
	var me *ModelError
	if errors.As(err, &me) {
		return me.Retryable
	}
	return false
}

// NewVersionNotFound creates an error for an unresolvable version name or id.
func NewVersionNotFound(nameOrID string) *ModelError {
	return &ModelError{
		Kind:    KindVersionNotFound,
		Code:    CodeVersionNotFound,
		Message: fmt.Sprintf("no version matches %q", nameOrID),
		Version: nameOrID,
	}
}

// NewFetchError creates an error for a failed artifact retrieval.
func NewFetchError(version string, retryable bool, err error) *ModelError {
	return &ModelError{
		Kind:      KindFetch,
		Code:      CodeFetchFailed,
		Message:   "artifact retrieval failed",
		Version:   version,
		Retryable: retryable,
		Err:       err,
	}
}

// NewParseError creates an error for malformed diagram markup.
func NewParseError(detail string, err error) *ModelError {
	return &ModelError{
		Kind:    KindParse,
		Code:    CodeMalformedDiagram,
		Message: detail,
		Err:     err,
	}
}

// NewMalformedEntityError creates an error for an entity rejected at
// snapshot assembly time.
func NewMalformedEntityError(entityType, detail string) *ModelError {
	return &ModelError{
		Kind:    KindParse,
		Code:    CodeMalformedEntity,
		Message: fmt.Sprintf("%s: %s", entityType, detail),
	}
}

// NewDuplicateIDError creates an internal error for a duplicate id within
// one snapshot's entity map.
func NewDuplicateIDError(entityType, id string) *ModelError {
	return &ModelError{
		Kind:    KindInternal,
		Code:    CodeDuplicateID,
		Message: fmt.Sprintf("duplicate %s id %q within one snapshot", entityType, id),
	}
}
