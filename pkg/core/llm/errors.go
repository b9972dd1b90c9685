package llm

import (
	"errors"
	"fmt"
	"net/http"
)

var errMissingDeployment = errors.New("endpoint and deployment must both be configured")

// maxErrorBody bounds the provider body text kept on errors.
const maxErrorBody = 500

// AuthError means the credential is missing or was rejected.
type AuthError struct {
	Provider string
	Status   int // 0 when the key was never sent
	Body     string
}

func (e *AuthError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s: api key is not configured", e.Provider)
	}
	return fmt.Sprintf("%s: credentials rejected (status %d): %s", e.Provider, e.Status, e.Body)
}

// TransportError is a non-success HTTP status, or a failure to reach the
// provider at all (Status 0).
type TransportError struct {
	Provider string
	Status   int
	Body     string
	Cause    error
}

func (e *TransportError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s: request failed: %v", e.Provider, e.Cause)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Provider, e.Status, e.Body)
}

func (e *TransportError) Unwrap() error {
	return e.Cause
}

// EmptyResponseError means the provider answered successfully but with no text.
type EmptyResponseError struct {
	Provider   string
	StopReason string
}

func (e *EmptyResponseError) Error() string {
	if e.StopReason != "" {
		return fmt.Sprintf("%s: empty response (stop reason %s)", e.Provider, e.StopReason)
	}
	return fmt.Sprintf("%s: empty response", e.Provider)
}

// CapabilityError means the provider cannot serve the requested call type.
type CapabilityError struct {
	Provider   string
	Capability string
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("%s does not support %s requests", e.Provider, e.Capability)
}

// statusError maps an HTTP failure to AuthError or TransportError.
func statusError(provider string, status int, body []byte) error {
	text := string(body)
	if len(text) > maxErrorBody {
		text = text[:maxErrorBody] + "..."
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return &AuthError{Provider: provider, Status: status, Body: text}
	}
	return &TransportError{Provider: provider, Status: status, Body: text}
}
