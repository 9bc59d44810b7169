package auth

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"
)

// Decision is an authenticator's vote on a request.
type Decision int

const (
	// Abstain passes the request to the next authenticator. It is the zero
	// value, so Result{} abstains.
	Abstain Decision = iota
	// Allow accepts the request and ends the chain.
	Allow
	// Deny rejects the request and ends the chain.
	Deny
)

func (d Decision) String() string {
	switch d {
	case Abstain:
		return "abstain"
	case Allow:
		return "allow"
	case Deny:
		return "deny"
	}
	return "unknown"
}

// Result is a vote plus what backs it: the caller's identity for Allow,
// the reason for Deny.
type Result struct {
	Decision Decision
	Identity *Identity
	Err      error
}

func Allowed(id *Identity) Result { return Result{Decision: Allow, Identity: id} }

func Denied(err error) Result { return Result{Decision: Deny, Err: err} }

// Identity is an authenticated caller.
type Identity struct {
	Subject     string
	ServiceTier string
	Scopes      []string
	Metadata    map[string]string
}

// Anonymous is the identity given to callers admitted without credentials.
func Anonymous() *Identity {
	return &Identity{Subject: "anonymous", ServiceTier: "default"}
}

func (id *Identity) HasScope(scope string) bool {
	return id != nil && slices.Contains(id.Scopes, scope)
}

// Authenticator votes on the credentials a request carries.
type Authenticator interface {
	Authenticate(ctx context.Context, r *http.Request) Result
}

// AuthenticatorFunc adapts a function to Authenticator.
type AuthenticatorFunc func(ctx context.Context, r *http.Request) Result

func (f AuthenticatorFunc) Authenticate(ctx context.Context, r *http.Request) Result {
	return f(ctx, r)
}

var ErrUnauthenticated = errors.New("authentication required")

// Chain asks its authenticators in order and returns the first vote that
// is not Abstain. When every one abstains the fallback decides: Allow
// admits an Anonymous caller, anything else denies.
type Chain struct {
	authenticators []Authenticator
	fallback       Decision
}

func NewChain(fallback Decision, authenticators ...Authenticator) *Chain {
	return &Chain{authenticators: authenticators, fallback: fallback}
}

func (c *Chain) Authenticate(ctx context.Context, r *http.Request) Result {
	for _, a := range c.authenticators {
		if res := a.Authenticate(ctx, r); res.Decision != Abstain {
			return res
		}
	}
	if c.fallback == Allow {
		return Allowed(Anonymous())
	}
	return Denied(ErrUnauthenticated)
}

// BearerToken returns the token of a "Bearer" Authorization header. ok is
// false when there is no such header; the token may still be empty.
func BearerToken(r *http.Request) (token string, ok bool) {
	scheme, token, found := strings.Cut(r.Header.Get("Authorization"), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	return strings.TrimSpace(token), true
}
