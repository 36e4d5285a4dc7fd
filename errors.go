package authcore

import "errors"

// Sentinel errors returned by Engine operations. Callers match them with
// errors.Is; any wrapped detail is diagnostic only and not part of the API
// contract.
var (
	// ErrValidation reports malformed caller input: email syntax, password
	// policy, or an empty token subject. Caller-correctable.
	ErrValidation = errors.New("validation failed")
	// ErrUserNotFound reports that no user record exists for the given id
	// or email.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserAlreadyExists reports an email uniqueness conflict during
	// registration.
	ErrUserAlreadyExists = errors.New("user already exists")
	// ErrInvalidCredentials reports a failed password check or a
	// deactivated account. The two cases are not distinguishable through
	// this error.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrTokenInvalid reports a token that is forged, malformed, expired,
	// of the wrong type, or revoked.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrStoreUnavailable reports a storage collaborator failure. The
	// engine surfaces it as-is and never retries.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrEngineNotReady is returned when an Engine method runs on an
	// engine that was not constructed through Builder.Build.
	ErrEngineNotReady = errors.New("engine not initialized")
)
