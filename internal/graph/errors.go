package graph

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/microsoftgraph/msgraph-sdk-go/models/odataerrors"
)

// AuthError means the provider rejected the bearer token. Surfaced to
// the caller as an authorization failure.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("provider rejected token: %v", e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// UnavailableError covers transport failures and rate limiting. Not
// retried automatically.
type UnavailableError struct {
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("provider unavailable: %v", e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// classify maps a Graph SDK error onto the local taxonomy using the
// OData response status code.
func classify(err error) error {
	var oerr *odataerrors.ODataError
	if errors.As(err, &oerr) {
		switch oerr.ResponseStatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return &AuthError{Err: err}
		}
	}
	return &UnavailableError{Err: err}
}
