package errors

import "errors"

// NotFoundError reports an absent runtime resource or store record.
type NotFoundError struct {
	Resource string
}

func (e NotFoundError) Error() string {
	return e.Resource + " not found"
}

// PermissionDeniedError reports an ownership or authorization mismatch.
type PermissionDeniedError struct {
	Reason string
}

func (e PermissionDeniedError) Error() string {
	return e.Reason
}

// ConflictError reports a uniqueness violation or a guarded-state refusal
// such as deleting a non-empty bucket.
type ConflictError struct {
	Reason string
}

func (e ConflictError) Error() string {
	return e.Reason
}

// RuntimeUnavailableError reports a transport or daemon failure talking
// to the container runtime.
type RuntimeUnavailableError struct {
	Err error
}

func (e RuntimeUnavailableError) Error() string {
	return "runtime unavailable: " + e.Err.Error()
}

func (e RuntimeUnavailableError) Unwrap() error {
	return e.Err
}

// InvalidCapabilityError reports a capability token that fails signature,
// expiry or claim checks.
type InvalidCapabilityError struct {
	Reason string
}

func (e InvalidCapabilityError) Error() string {
	return "invalid capability: " + e.Reason
}

// ValidationError reports malformed input.
type ValidationError struct {
	Reason string
}

func (e ValidationError) Error() string {
	return e.Reason
}

func IsNotFound(err error) bool {
	var e NotFoundError
	return errors.As(err, &e)
}

func IsPermissionDenied(err error) bool {
	var e PermissionDeniedError
	return errors.As(err, &e)
}

func IsConflict(err error) bool {
	var e ConflictError
	return errors.As(err, &e)
}

func IsRuntimeUnavailable(err error) bool {
	var e RuntimeUnavailableError
	return errors.As(err, &e)
}

func IsInvalidCapability(err error) bool {
	var e InvalidCapabilityError
	return errors.As(err, &e)
}

func IsValidation(err error) bool {
	var e ValidationError
	return errors.As(err, &e)
}
