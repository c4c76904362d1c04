package apperrors

import "errors"

// Sentinel errors for the orchestration core. Services wrap these with
// fmt.Errorf("...: %w", Err...) so handlers can map them to HTTP statuses
// with errors.Is while keeping the contextual message.
var (
	// ErrNotFound covers missing applications, officers and documents.
	ErrNotFound = errors.New("not found")

	// ErrInvalidTransition is returned when the application's current
	// status does not match the trigger's expected source status.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrInvalidState is returned when a signature attempt already exists
	// in a state that forbids the requested operation.
	ErrInvalidState = errors.New("invalid attempt state")

	// ErrValidationError flags missing mandatory input, e.g. empty
	// rejection comments.
	ErrValidationError = errors.New("validation error")

	// ErrSignatureRequired is returned when a trigger that closes a
	// review stage fires before that stage's signature was applied.
	ErrSignatureRequired = errors.New("stage signature not applied")

	// ErrRoleMismatch is returned when an officer's role does not match
	// the tier required for the application's category.
	ErrRoleMismatch = errors.New("officer role does not match required tier")

	// ErrWorkloadExceeded is returned when an assignment would push an
	// officer past MaxWorkloadPerOfficer for the effective rule.
	ErrWorkloadExceeded = errors.New("officer workload limit exceeded")

	// ErrNoEligibleReviewer is non-fatal: the status transition commits
	// and the application is surfaced as unassigned.
	ErrNoEligibleReviewer = errors.New("no eligible reviewer available")

	// ErrKeyNotConfigured is returned when the officer has no HSM signing
	// key label on record.
	ErrKeyNotConfigured = errors.New("officer signing key not configured")

	// ErrGatewayError covers transport-level and provider-reported HSM
	// failures outside of the sign operation itself.
	ErrGatewayError = errors.New("signing gateway error")

	// ErrSigningFailed is returned when the HSM rejects a sign request;
	// the attempt is marked FAILED and may be retried up to the cap.
	ErrSigningFailed = errors.New("document signing failed")

	// ErrRetryExhausted is returned once an attempt has failed three
	// times; a fresh Initiate is required.
	ErrRetryExhausted = errors.New("signature retry limit exhausted")
)
