package provider

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// ErrorKind classifies provider failures for user-facing reporting.
type ErrorKind string

const (
	KindAuth      ErrorKind = "auth_error"
	KindCredits   ErrorKind = "credits_error"
	KindRateLimit ErrorKind = "rate_limit"
	KindTimeout   ErrorKind = "timeout_error"
	KindProvider  ErrorKind = "provider_error"
	KindUnknown   ErrorKind = "unknown_error"
)

// Error is a typed provider failure. Unlike the tool path, provider errors
// propagate to the orchestrator, which persists them as an assistant turn.
type Error struct {
	Kind    ErrorKind
	Status  int
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("provider error %d (%s): %s", e.Status, e.Kind, e.Message)
	}
	return fmt.Sprintf("provider error (%s): %s", e.Kind, e.Message)
}

// KindForStatus maps an HTTP status code onto the error taxonomy.
func KindForStatus(status int) ErrorKind {
	switch status {
	case http.StatusUnauthorized:
		return KindAuth
	case http.StatusPaymentRequired:
		return KindCredits
	case http.StatusTooManyRequests:
		return KindRateLimit
	case http.StatusRequestTimeout:
		return KindTimeout
	default:
		if status >= 200 && status < 300 {
			return KindUnknown
		}
		return KindProvider
	}
}

// defaultMessages are the user-facing fallbacks when the provider's error
// body carries no message.
var defaultMessages = map[ErrorKind]string{
	KindAuth:      "Authentication failed. Check the bot's API key.",
	KindCredits:   "Insufficient credits on the provider account.",
	KindRateLimit: "Rate limit exceeded. Try again shortly.",
	KindTimeout:   "The provider did not respond in time.",
	KindProvider:  "The provider returned an error.",
	KindUnknown:   "An unknown provider error occurred.",
}

// errorFromResponse builds a typed error from a non-2xx provider response,
// preferring the message embedded in the standard error body shape.
func errorFromResponse(resp *http.Response) *Error {
	kind := KindForStatus(resp.StatusCode)
	message := defaultMessages[kind]

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err == nil && len(body) > 0 {
		var parsed struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(body, &parsed) == nil && parsed.Error.Message != "" {
			message = parsed.Error.Message
		}
	}

	return &Error{Kind: kind, Status: resp.StatusCode, Message: message}
}

// timeoutError is the local-abort form of the taxonomy, raised when the
// request budget expires before the provider finishes.
func timeoutError() *Error {
	return &Error{Kind: KindTimeout, Status: http.StatusRequestTimeout, Message: defaultMessages[KindTimeout]}
}
