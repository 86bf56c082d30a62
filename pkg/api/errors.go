package api

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoContent is the sentinel result for 2xx responses with an empty body,
// or bodies that declare JSON but do not parse. Callers check it with
// errors.Is; it is not a failure.
var ErrNoContent = errors.New("no content")

// ErrorKind classifies API failures for caller policy decisions.
type ErrorKind string

const (
	KindAuth        ErrorKind = "auth"        // 401, logout policy applies
	KindForbidden   ErrorKind = "forbidden"   // 403
	KindNotFound    ErrorKind = "not_found"   // 404
	KindValidation  ErrorKind = "validation"  // 400/422
	KindDuplicate   ErrorKind = "duplicate"   // 409, carries the existing assessment id
	KindRateLimit   ErrorKind = "rate_limit"  // 429, relaxes the local submission guard
	KindServer      ErrorKind = "server"      // 500
	KindUnavailable ErrorKind = "unavailable" // 503
	KindTimeout     ErrorKind = "timeout"     // Request deadline exceeded
	KindUnreachable ErrorKind = "unreachable" // Connection failure
	KindDecode      ErrorKind = "decode"      // Malformed response payload
)

// Error is the typed error surfaced for every failed API call. Transport
// exceptions never cross this boundary raw.
type Error struct {
	Kind    ErrorKind
	Status  int    // HTTP status, zero for transport failures
	Message string // Human-readable, safe to show in the UI
	Detail  string // Server-provided problem detail, may be empty
	BaseURL string // Base URL attempted, set for transport failures

	// ExistingID is set for duplicate errors: the id of the assessment the
	// server reports as already covering this submission.
	ExistingID string
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.Detail)
	}

	return e.Message
}

// IsKind checks whether err is an API error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind == kind
	}

	return false
}

func IsAuthError(err error) bool   { return IsKind(err, KindAuth) }
func IsDuplicate(err error) bool   { return IsKind(err, KindDuplicate) }
func IsRateLimit(err error) bool   { return IsKind(err, KindRateLimit) }
func IsNotFound(err error) bool    { return IsKind(err, KindNotFound) }
func IsTimeout(err error) bool     { return IsKind(err, KindTimeout) }
func IsUnreachable(err error) bool { return IsKind(err, KindUnreachable) }

// IsTransient reports whether the failure is worth retrying at the next
// natural trigger (next autosave tick, next poll). Never retried inline.
func IsTransient(err error) bool {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		switch apiErr.Kind {
		case KindTimeout, KindUnreachable, KindUnavailable, KindRateLimit:
			return true
		}
	}

	return false
}

// DuplicateID extracts the existing assessment id from a duplicate error.
func DuplicateID(err error) (string, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Kind == KindDuplicate {
		return apiErr.ExistingID, true
	}

	return "", false
}

// Phrases in a 401 response body that mean the token itself is dead. Other
// 401s are surfaced without forcing logout so an authorization failure on a
// single resource does not end the whole session.
var tokenInvalidPhrases = []string{
	"token expired",
	"token is expired",
	"invalid token",
	"token invalid",
	"invalid or expired token",
	"not authenticated",
	"signature is invalid",
}

// authEndpointPrefixes always force logout on 401: a rejected call here
// means the credentials themselves are bad.
var authEndpointPrefixes = []string{"/auth/"}

// shouldLogout decides whether a 401 invalidates the stored token.
func shouldLogout(endpoint, serverMessage string) bool {
	for _, prefix := range authEndpointPrefixes {
		if strings.HasPrefix(endpoint, prefix) {
			return true
		}
	}

	message := strings.ToLower(serverMessage)
	for _, phrase := range tokenInvalidPhrases {
		if strings.Contains(message, phrase) {
			return true
		}
	}

	return false
}

// statusMessage maps response codes to the operator-facing message shown
// when the server provides no problem detail.
func statusMessage(status int) string {
	switch status {
	case 400, 422:
		return "The request was rejected as invalid."
	case 401:
		return "Authentication required."
	case 403:
		return "You don't have permission to access this resource."
	case 404:
		return "The requested resource was not found."
	case 409:
		return "An assessment with these details already exists."
	case 429:
		return "The server is receiving too many requests. Please try again later."
	case 500:
		return "The server encountered an internal error."
	case 503:
		return "The service is temporarily unavailable."
	default:
		return fmt.Sprintf("The server returned an unexpected status (%d).", status)
	}
}

func kindForStatus(status int) ErrorKind {
	switch status {
	case 400, 422:
		return KindValidation
	case 401:
		return KindAuth
	case 403:
		return KindForbidden
	case 404:
		return KindNotFound
	case 409:
		return KindDuplicate
	case 429:
		return KindRateLimit
	case 503:
		return KindUnavailable
	default:
		return KindServer
	}
}
