// Package jwt authenticates gateway callers with signed JSON Web Tokens.
//
// Tokens are verified against a static key: an HMAC shared secret (HS256,
// HS384, HS512) or an RSA public key in PEM form (RS256, RS384, RS512).
// Issuer and audience are checked when configured.
package jwt

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/puppetm4st3r/local-function-calling/pkg/auth"
	"github.com/puppetm4st3r/local-function-calling/pkg/debug"
)

// Config holds the JWT authenticator configuration.
type Config struct {
	// Secret is the HMAC signing secret. Mutually exclusive with PublicKeyPEM.
	Secret []byte

	// PublicKeyPEM is a PEM encoded RSA public key.
	PublicKeyPEM []byte

	// Issuer is the expected iss claim. If empty, issuer is not validated.
	Issuer string

	// Audience is the expected aud claim. If empty, audience is not validated.
	Audience string

	// UserClaim is the claim used as the identity subject. Default: "sub".
	UserClaim string

	// TierClaim is the claim used as the service tier. Default: "tier".
	TierClaim string

	// ScopesClaim holds authorization scopes. Default: "scope".
	// The value can be a space-separated string or a JSON array.
	ScopesClaim string

	// Leeway tolerates clock skew on exp/nbf/iat.
	Leeway time.Duration
}

func (c *Config) applyDefaults() {
	if c.UserClaim == "" {
		c.UserClaim = "sub"
	}
	if c.TierClaim == "" {
		c.TierClaim = "tier"
	}
	if c.ScopesClaim == "" {
		c.ScopesClaim = "scope"
	}
}

// Authenticator validates JWT bearer tokens.
type Authenticator struct {
	config  Config
	key     any
	methods []string
}

// New creates a JWT authenticator. Exactly one of Secret and PublicKeyPEM
// must be set.
func New(cfg Config) (*Authenticator, error) {
	cfg.applyDefaults()

	a := &Authenticator{config: cfg}
	switch {
	case len(cfg.Secret) > 0 && len(cfg.PublicKeyPEM) > 0:
		return nil, errors.New("jwt: secret and public key are mutually exclusive")
	case len(cfg.Secret) > 0:
		a.key = cfg.Secret
		a.methods = []string{"HS256", "HS384", "HS512"}
	case len(cfg.PublicKeyPEM) > 0:
		pub, err := jwtlib.ParseRSAPublicKeyFromPEM(cfg.PublicKeyPEM)
		if err != nil {
			return nil, fmt.Errorf("jwt: parsing public key: %w", err)
		}
		a.key = pub
		a.methods = []string{"RS256", "RS384", "RS512"}
	default:
		return nil, errors.New("jwt: a secret or a public key is required")
	}
	return a, nil
}

// Authenticate abstains without a bearer token, allows a token that
// verifies, and denies anything else: bad signature, expired, wrong
// issuer or audience, or no subject claim.
func (a *Authenticator) Authenticate(_ context.Context, r *http.Request) auth.Result {
	tokenStr, ok := auth.BearerToken(r)
	if !ok {
		return auth.Result{}
	}
	if tokenStr == "" {
		return auth.Denied(errors.New("empty bearer token"))
	}

	token, err := jwtlib.Parse(tokenStr, a.keyFunc, a.parserOptions()...)
	if err != nil {
		debug.Log("auth", "JWT validation failed", "error", err)
		return auth.Denied(fmt.Errorf("invalid JWT: %w", err))
	}

	claims, ok := token.Claims.(jwtlib.MapClaims)
	if !ok || !token.Valid {
		return auth.Denied(errors.New("invalid JWT claims"))
	}

	subject := claimString(claims, a.config.UserClaim)
	if subject == "" {
		return auth.Denied(fmt.Errorf("JWT missing %q claim", a.config.UserClaim))
	}

	identity := &auth.Identity{
		Subject:     subject,
		ServiceTier: claimString(claims, a.config.TierClaim),
		Scopes:      extractScopes(claims, a.config.ScopesClaim),
		Metadata:    map[string]string{"auth": "jwt"},
	}
	if iss := claimString(claims, "iss"); iss != "" {
		identity.Metadata["issuer"] = iss
	}

	return auth.Allowed(identity)
}

func (a *Authenticator) keyFunc(token *jwtlib.Token) (any, error) {
	switch a.key.(type) {
	case []byte:
		if _, ok := token.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
	case *rsa.PublicKey:
		if _, ok := token.Method.(*jwtlib.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
	}
	return a.key, nil
}

// parserOptions builds JWT parser options based on the configuration.
func (a *Authenticator) parserOptions() []jwtlib.ParserOption {
	opts := []jwtlib.ParserOption{
		jwtlib.WithValidMethods(a.methods),
		jwtlib.WithExpirationRequired(),
	}
	if a.config.Issuer != "" {
		opts = append(opts, jwtlib.WithIssuer(a.config.Issuer))
	}
	if a.config.Audience != "" {
		opts = append(opts, jwtlib.WithAudience(a.config.Audience))
	}
	if a.config.Leeway > 0 {
		opts = append(opts, jwtlib.WithLeeway(a.config.Leeway))
	}
	return opts
}

// claimString returns the claim as a string, or "" if it is missing or not
// a string.
func claimString(claims jwtlib.MapClaims, key string) string {
	s, _ := claims[key].(string)
	return s
}

// extractScopes reads a space-separated string or a JSON array of strings.
func extractScopes(claims jwtlib.MapClaims, key string) []string {
	switch v := claims[key].(type) {
	case string:
		if parts := strings.Fields(v); len(parts) > 0 {
			return parts
		}
	case []any:
		var scopes []string
		for _, item := range v {
			if s, ok := item.(string); ok {
				scopes = append(scopes, s)
			}
		}
		return scopes
	}
	return nil
}
