// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the referenced entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a violated state transition: already reviewed,
	// already elevated, not the owner, and similar.
	ErrConflict = errors.New("conflict")

	// ErrAlreadyExists indicates a unique constraint violation (e.g., title or email taken).
	// It is a Conflict for callers that only distinguish the taxonomy.
	ErrAlreadyExists = fmtConflict("already exists")

	// ErrInvalidArgument indicates malformed caller input (bad enum, missing variant field).
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrUnauthorized indicates a missing or invalid identity token or bad credentials.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates the subject's role does not permit the action.
	ErrForbidden = errors.New("forbidden")

	// ErrRateLimited indicates temporary sign-in lock due to rate limiting.
	ErrRateLimited = errors.New("rate limited")
)

type conflictErr struct{ msg string }

func fmtConflict(msg string) error { return &conflictErr{msg: msg} }

func (e *conflictErr) Error() string { return e.msg }

// Is makes errors.Is(ErrAlreadyExists, ErrConflict) hold.
func (e *conflictErr) Is(target error) bool { return target == ErrConflict }

// Tag returns the taxonomy tag for err, or "internal" when err is not one of the sentinels.
func Tag(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrInvalidArgument):
		return "invalid_argument"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	default:
		return "internal"
	}
}
