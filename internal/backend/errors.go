package backend

import (
	"errors"
	"fmt"
	"net/http"
)

// TransportReason says why a request produced no response at all.
type TransportReason string

const (
	ReasonTimeout TransportReason = "timeout"
	ReasonNetwork TransportReason = "network"
)

// TransportError reports a request that never received an HTTP response:
// the connection failed or the client-side deadline fired.
type TransportError struct {
	Reason TransportReason
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport failure (%s): %v", e.Reason, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// RemoteError reports a response carrying a failing HTTP status. Message is
// the backend's structured detail field when one was present.
type RemoteError struct {
	Status  int
	Message string
}

func (e *RemoteError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("server returned %d", e.Status)
}

// Retryable reports whether a failure is worth re-attempting. Transport
// failures always are. Client errors (4xx) are not, with the exception of
// 408 and 429. Everything else, 5xx included, is retryable.
func Retryable(err error) bool {
	var te *TransportError
	if errors.As(err, &te) {
		return true
	}
	var re *RemoteError
	if errors.As(err, &re) {
		if re.Status >= 400 && re.Status < 500 {
			return re.Status == http.StatusRequestTimeout || re.Status == http.StatusTooManyRequests
		}
		return true
	}
	return false
}

// StatusCode returns the HTTP status of a RemoteError, or 0 for any other
// error.
func StatusCode(err error) int {
	var re *RemoteError
	if errors.As(err, &re) {
		return re.Status
	}
	return 0
}

// FriendlyAuthError maps a login/registration failure to a message that
// distinguishes the cases a user can actually act on: slow cold start,
// no connectivity, missing endpoint, temporary outage, bad credentials.
func FriendlyAuthError(err error, action string) string {
	var te *TransportError
	if errors.As(err, &te) {
		if te.Reason == ReasonTimeout {
			return "Server is taking too long to respond. The backend might be starting up; wait a moment and try again."
		}
		return "Cannot connect to server. Check your internet connection."
	}
	var re *RemoteError
	if errors.As(err, &re) {
		switch re.Status {
		case http.StatusNotFound:
			return "Server endpoint not found. Contact support if this persists."
		case http.StatusServiceUnavailable:
			return "Server is temporarily unavailable. Try again in a moment."
		}
		if re.Message != "" {
			return re.Message
		}
	}
	return action + " failed. Check your credentials and try again."
}
