package gateway

import (
	"fmt"
	"strings"
)

// StatusCodeClientClosedRequest is the non-standard "client closed
// request" convention (nginx 499).
const StatusCodeClientClosedRequest = 499

// StatusError is a client-facing failure with an HTTP-equivalent code.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%d: %s", e.Code, e.Message)
}

// NewAuthenticationRequiredError reports a passthrough provider invoked
// without a client-supplied credential. Never retried.
func NewAuthenticationRequiredError(provider string) *StatusError {
	return &StatusError{
		Code:    401,
		Message: fmt.Sprintf("provider %q requires a client-supplied API key", provider),
	}
}

// NewClientDisconnectError reports a client that went away before
// dispatch. Metrics are finalized before this error is surfaced.
func NewClientDisconnectError() *StatusError {
	return &StatusError{
		Code:    StatusCodeClientClosedRequest,
		Message: "Client disconnected",
	}
}

// ConstructionError reports a Build call with required fields missing.
// It always names every missing field, not just the first, so a caller
// can fix its wiring in one pass. Purely local to context construction.
type ConstructionError struct {
	Missing []string
}

func (e *ConstructionError) Error() string {
	return "request context missing required fields: " + strings.Join(e.Missing, ", ")
}
