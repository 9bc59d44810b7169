// Package auth guards the gateway's API routes.
//
// A Chain asks its authenticators in turn. Each one allows, denies, or
// abstains when the request carries no credentials it understands; the
// chain's fallback settles requests everyone abstained on. Authenticators
// live in the subpackages apikey, jwt and noop.
//
// Authentication runs before the request body is read, so it never
// changes how a completion is served.
package auth
