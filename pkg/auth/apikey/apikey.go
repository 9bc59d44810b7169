// Package apikey authenticates gateway callers with static API keys.
// Keys are compared by SHA-256 digest in constant time.
package apikey

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"maps"
	"net/http"
	"slices"

	"github.com/puppetm4st3r/local-function-calling/pkg/auth"
)

// HeaderName is the alternative header checked when no bearer token is sent.
const HeaderName = "X-API-Key"

type keyEntry struct {
	hash     [32]byte
	identity auth.Identity
}

// Authenticator validates API keys against a static key store.
type Authenticator struct {
	keys []keyEntry
}

// RawKeyEntry is the configuration format for API keys.
type RawKeyEntry struct {
	Key      string
	Identity auth.Identity
}

// New creates an API key authenticator. Keys are hashed immediately and
// entries with an empty key are skipped.
func New(entries []RawKeyEntry) *Authenticator {
	a := &Authenticator{}
	for _, e := range entries {
		if e.Key == "" {
			continue
		}
		a.keys = append(a.keys, keyEntry{
			hash:     sha256.Sum256([]byte(e.Key)),
			identity: e.Identity,
		})
	}
	return a
}

// Len returns the number of usable keys.
func (a *Authenticator) Len() int {
	return len(a.keys)
}

// Authenticate looks for a bearer token, then for the X-API-Key header.
// It abstains when neither is present and denies an unknown key.
func (a *Authenticator) Authenticate(_ context.Context, r *http.Request) auth.Result {
	key, ok := auth.BearerToken(r)
	if !ok {
		key = r.Header.Get(HeaderName)
		if key == "" {
			return auth.Result{}
		}
	}
	if key == "" {
		return auth.Denied(auth.ErrUnauthenticated)
	}

	sum := sha256.Sum256([]byte(key))
	for _, entry := range a.keys {
		if subtle.ConstantTimeCompare(sum[:], entry.hash[:]) == 1 {
			id := entry.identity
			id.Scopes = slices.Clone(id.Scopes)
			id.Metadata = maps.Clone(id.Metadata)
			return auth.Allowed(&id)
		}
	}

	return auth.Denied(auth.ErrUnauthenticated)
}
