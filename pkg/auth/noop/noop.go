// Package noop backs the "none" auth type: every request is admitted.
package noop

import (
	"context"
	"net/http"

	"github.com/puppetm4st3r/local-function-calling/pkg/auth"
)

// Authenticator allows every request. Callers presenting a bearer token
// are still anonymous; the token is never inspected.
type Authenticator struct{}

func (Authenticator) Authenticate(context.Context, *http.Request) auth.Result {
	return auth.Allowed(auth.Anonymous())
}
