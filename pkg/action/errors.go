package action

import "fmt"

// The §7 error taxonomy. Every handler-level failure should be one of
// these concrete types so ActionResult.error and structured logging carry
// enough context to diagnose without re-deriving it from a generic error
// string.

// ValidationError covers bad params, an unknown action type, or an illegal
// state transition. Never retried.
type ValidationError struct {
	ActionType Type
	Reason     string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", e.ActionType, e.Reason)
}

// NetworkError covers DNS/connect/5xx failures from an outbound call.
// Retried with backoff inside the handler up to MaxRetries.
type NetworkError struct {
	ActionType Type
	Cause      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error in %s: %v", e.ActionType, e.Cause)
}

func (e *NetworkError) Unwrap() error { return e.Cause }

// TimeoutError covers an action or run deadline being exceeded. Retryable
// only if MaxRetries > 0, otherwise terminal for the action.
type TimeoutError struct {
	ActionType Type
	TimeoutMs  int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout error in %s after %dms", e.ActionType, e.TimeoutMs)
}

// AuthError covers non-token auth failures (e.g. a bad API key for a
// third-party integration). Surfaced as an action error, never escapes the
// rule engine. Contrast with TokenAuthError.
type AuthError struct {
	ActionType Type
	Reason     string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error in %s: %s", e.ActionType, e.Reason)
}

// TokenAuthError is the distinguished, *propagating* error raised when the
// caller's token is expired/invalid. It is never absorbed by the Rule
// Executor — it escapes so the outer Run Coordinator can refresh
// credentials and retry the whole run exactly once (invariant 10).
type TokenAuthError struct {
	ActionType Type
	Cause      error
}

func (e *TokenAuthError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("token auth error in %s: %v", e.ActionType, e.Cause)
	}
	return fmt.Sprintf("token auth error in %s", e.ActionType)
}

func (e *TokenAuthError) Unwrap() error { return e.Cause }

// NotFoundError covers a missing assistant or missing rule-set target.
// Terminal action failure.
type NotFoundError struct {
	ActionType Type
	Subject    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found (action %s)", e.Subject, e.ActionType)
}

// OverloadedError covers mailbox-full or circuit-open rejections. Rejected
// at ingress; the event bus is expected to retry after backoff.
type OverloadedError struct {
	ActionType Type
	Reason     string
}

func (e *OverloadedError) Error() string {
	return fmt.Sprintf("overloaded in %s: %s", e.ActionType, e.Reason)
}

// InternalError covers programming bugs surfaced at runtime. Logged with a
// trace id by the caller; the action fails but the run's aggregation
// continues.
type InternalError struct {
	ActionType Type
	Cause      error
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("internal error in %s: %v", e.ActionType, e.Cause)
}

func (e *InternalError) Unwrap() error { return e.Cause }
