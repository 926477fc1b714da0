package auth

import (
	"errors"
	"fmt"
	"net/url"

	"golang.org/x/oauth2"
)

// ErrorKind classifies token endpoint failures.
type ErrorKind int

const (
	NetworkFailure ErrorKind = iota
	InvalidResponse
	MissingRefreshToken
	MissingCode
)

func (k ErrorKind) String() string {
	switch k {
	case NetworkFailure:
		return "network failure"
	case InvalidResponse:
		return "invalid response"
	case MissingRefreshToken:
		return "missing refresh token"
	case MissingCode:
		return "missing authorization code"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// Error is returned by every [Manager] operation that talks to a token endpoint or parses a redirect.
type Error struct {
	Kind ErrorKind
	Err  error
}

// Targets for errors.Is.
var (
	ErrNetworkFailure      = &Error{Kind: NetworkFailure}
	ErrInvalidResponse     = &Error{Kind: InvalidResponse}
	ErrMissingRefreshToken = &Error{Kind: MissingRefreshToken}
	ErrMissingCode         = &Error{Kind: MissingCode}
)

func (e *Error) Error() string {
	if e.Err == nil {
		return "auth: " + e.Kind.String()
	}
	return fmt.Sprintf("auth: %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// classify maps an oauth2 grant error onto a kind. Transport errors are network failures; everything the token endpoint
// answered (error status, unparsable body, missing access_token) is an invalid response.
func classify(err error) *Error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		return &Error{Kind: InvalidResponse, Err: err}
	}

	var ue *url.Error
	if errors.As(err, &ue) {
		return &Error{Kind: NetworkFailure, Err: err}
	}
	return &Error{Kind: InvalidResponse, Err: err}
}
