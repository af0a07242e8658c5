// Package faults provides the session failure taxonomy. Each fault carries a
// user-facing message (Error() returns only that message) and an optional
// cause available via Unwrap() for trace output or logs. The Kind
// distinguishes transport failures, empty responses, parse failures, scope
// violations, and cancellation so callers can give different retry guidance.
package faults

import "errors"

// Kind identifies the failure class. Zero value means "not a session fault".
type Kind int

const (
	// KindTransport: the generation call itself failed (non-success status,
	// connection error). No parsing was attempted; retryable as-is.
	KindTransport Kind = iota + 1
	// KindEmptyResponse: transport succeeded but the response carried no text.
	KindEmptyResponse
	// KindParseFailure: non-empty response with zero well-formed proposals and
	// no no-op marker.
	KindParseFailure
	// KindScopeViolation: every parsed proposal was blocked by the safety policy.
	KindScopeViolation
	// KindCanceled: the caller canceled generation before it completed.
	KindCanceled
)

// Err is a session fault: a Kind, a user-facing message, and an optional cause.
// Error() returns only Msg so the primary line never contains transport
// internals; use Unwrap() for detail.
type Err struct {
	Kind Kind
	Msg  string
	Err  error
}

// Error returns the user-facing message only.
func (e *Err) Error() string {
	if e == nil {
		return ""
	}
	return e.Msg
}

// Unwrap returns the underlying cause, or nil.
func (e *Err) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New returns a fault with the given kind, user-facing message, and optional cause.
func New(kind Kind, msg string, cause error) error {
	return &Err{Kind: kind, Msg: msg, Err: cause}
}

// Transport wraps a failed generation call.
func Transport(cause error) error {
	return New(KindTransport, "The model service did not respond. Check your connection and API settings, then retry.", cause)
}

// EmptyResponse reports a successful call that produced no text.
func EmptyResponse() error {
	return New(KindEmptyResponse, "The model returned an empty response. Retry, or rephrase the instruction to be more specific.", nil)
}

// ParseFailure reports a non-empty response with no executable output. detail
// names what was missing (e.g. "no complete file blocks found").
func ParseFailure(detail string) error {
	msg := "The response contained no executable output."
	if detail != "" {
		msg = "The response contained no executable output: " + detail + "."
	}
	return New(KindParseFailure, msg+" Rephrase the instruction or retry.", nil)
}

// AllBlocked reports that every parsed proposal exceeded the allowed scope.
func AllBlocked(count int) error {
	msg := "Every proposed change exceeds the requested scope. Ask for a rewrite if a larger edit is intended."
	if count == 1 {
		msg = "The proposed change exceeds the requested scope. Ask for a rewrite if a larger edit is intended."
	}
	return New(KindScopeViolation, msg, nil)
}

// Canceled reports caller-initiated cancellation.
func Canceled() error {
	return New(KindCanceled, "Generation canceled.", nil)
}

// KindOf returns the Kind of err if it is (or wraps) a session fault, else 0.
func KindOf(err error) Kind {
	var e *Err
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
