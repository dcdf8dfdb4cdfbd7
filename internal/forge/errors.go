package forge

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/templatesync/templatesync/internal/execshell"
)

const (
	classifiedErrorTemplateConstant     = "%s: %s failed: %s"
	unauthorizedStatusFragment          = "HTTP 401"
	forbiddenStatusFragment             = "HTTP 403"
	notFoundStatusFragment              = "HTTP 404"
	unprocessableStatusFragment         = "HTTP 422"
	rateLimitStatusFragment             = "HTTP 429"
	serverErrorStatusFragment           = "HTTP 5"
	notFastForwardFragmentConstant      = "not a fast forward"
	alreadyExistsFragmentConstant       = "already exists"
	noCommitsBetweenFragmentConstant    = "no commits between"
	authenticationFragmentConstant      = "authentication"
	couldNotResolveHostFragmentConstant = "could not resolve host"
	remoteUnreadableFragmentConstant    = "could not read from remote repository"
	repositoryNotFoundFragmentConstant  = "repository not found"
)

// FailureKind partitions forge failures by the remediation they require.
type FailureKind string

// Failure kinds ordered from retryable to fatal.
const (
	// FailureKindTransient marks network or rate-limit trouble worth retrying with backoff.
	FailureKindTransient FailureKind = "transient"
	// FailureKindConflict marks an expected divergence requiring operator intervention; never retried.
	FailureKindConflict FailureKind = "conflict"
	// FailureKindAlreadyExists marks a creation attempt whose target is already present.
	FailureKindAlreadyExists FailureKind = "already_exists"
	// FailureKindNotFound marks an invalid repository or branch reference.
	FailureKindNotFound FailureKind = "not_found"
	// FailureKindConfiguration marks an invalid input that fails only the affected fork.
	FailureKindConfiguration FailureKind = "configuration"
	// FailureKindUnauthorized marks credential failures that abort the whole run.
	FailureKindUnauthorized FailureKind = "unauthorized"
)

// ClassifiedError attaches a FailureKind to an underlying forge failure.
type ClassifiedError struct {
	Kind      FailureKind
	Operation string
	Cause     error
}

// Error describes the classified failure.
func (classified ClassifiedError) Error() string {
	return fmt.Sprintf(classifiedErrorTemplateConstant, classified.Kind, classified.Operation, classified.Cause)
}

// Unwrap exposes the underlying cause.
func (classified ClassifiedError) Unwrap() error {
	return classified.Cause
}

// KindOf extracts the FailureKind from an error chain, defaulting to transient.
func KindOf(failure error) FailureKind {
	var classified ClassifiedError
	if errors.As(failure, &classified) {
		return classified.Kind
	}
	var invalidInput InvalidInputError
	if errors.As(failure, &invalidInput) {
		return FailureKindConfiguration
	}
	return FailureKindTransient
}

// IsRetryable reports whether the failure is worth another attempt.
func IsRetryable(failure error) bool {
	if failure == nil {
		return false
	}
	if errors.Is(failure, context.Canceled) || errors.Is(failure, context.DeadlineExceeded) {
		return false
	}
	return KindOf(failure) == FailureKindTransient
}

// classifyExecutionFailure maps a gh invocation failure onto the taxonomy.
func classifyExecutionFailure(operation string, failure error) error {
	if failure == nil {
		return nil
	}

	standardError := ""
	var failedError execshell.CommandFailedError
	if errors.As(failure, &failedError) {
		standardError = failedError.Result.StandardError
	}

	kind := classifyStandardError(standardError)
	return ClassifiedError{Kind: kind, Operation: operation, Cause: failure}
}

func classifyStandardError(standardError string) FailureKind {
	loweredOutput := strings.ToLower(standardError)

	switch {
	case strings.Contains(standardError, unauthorizedStatusFragment),
		strings.Contains(standardError, forbiddenStatusFragment),
		strings.Contains(loweredOutput, authenticationFragmentConstant):
		return FailureKindUnauthorized
	case strings.Contains(loweredOutput, notFastForwardFragmentConstant):
		return FailureKindConflict
	case strings.Contains(loweredOutput, alreadyExistsFragmentConstant),
		strings.Contains(loweredOutput, noCommitsBetweenFragmentConstant):
		return FailureKindAlreadyExists
	case strings.Contains(loweredOutput, couldNotResolveHostFragmentConstant):
		return FailureKindTransient
	case strings.Contains(standardError, notFoundStatusFragment),
		strings.Contains(loweredOutput, remoteUnreadableFragmentConstant),
		strings.Contains(loweredOutput, repositoryNotFoundFragmentConstant):
		return FailureKindNotFound
	case strings.Contains(standardError, unprocessableStatusFragment):
		return FailureKindConflict
	case strings.Contains(standardError, rateLimitStatusFragment),
		strings.Contains(standardError, serverErrorStatusFragment):
		return FailureKindTransient
	default:
		return FailureKindTransient
	}
}
