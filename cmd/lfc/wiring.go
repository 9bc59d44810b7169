package main

import (
	"fmt"
	"net/http"

	"github.com/puppetm4st3r/local-function-calling/pkg/auth"
	"github.com/puppetm4st3r/local-function-calling/pkg/auth/apikey"
	"github.com/puppetm4st3r/local-function-calling/pkg/auth/jwt"
	"github.com/puppetm4st3r/local-function-calling/pkg/auth/noop"
	"github.com/puppetm4st3r/local-function-calling/pkg/completions"
	"github.com/puppetm4st3r/local-function-calling/pkg/config"
	"github.com/puppetm4st3r/local-function-calling/pkg/provider"
	"github.com/puppetm4st3r/local-function-calling/pkg/provider/goopenai"
	"github.com/puppetm4st3r/local-function-calling/pkg/provider/openaicompat"
)

// newProvider builds the backend transport named by engine.provider.
func newProvider(cfg config.EngineConfig) (provider.Provider, error) {
	switch cfg.Provider {
	case openaicompat.ProviderName, "":
		return openaicompat.NewClient(cfg.BackendURL, cfg.APIKey, cfg.Timeout), nil
	case goopenai.ProviderName:
		return goopenai.New(goopenai.Config{
			BaseURL: cfg.BackendURL,
			APIKey:  cfg.APIKey,
			Timeout: cfg.Timeout,
		}), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

// newClient wraps the configured provider with the function-calling facade.
func newClient(cfg *config.Config) (*completions.Client, error) {
	p, err := newProvider(cfg.Engine)
	if err != nil {
		return nil, err
	}
	client, err := completions.Wrap(p,
		completions.WithDebug(cfg.Shim.Debug),
		completions.WithStreamDefault(cfg.Shim.StreamDefault),
		completions.WithStripTools(cfg.Shim.StripTools),
		completions.WithDefaultModel(cfg.Engine.DefaultModel),
	)
	if err != nil {
		p.Close()
		return nil, err
	}
	return client, nil
}

// newAuthMiddleware builds the inbound authentication middleware for
// auth.type. The "none" type admits every request.
func newAuthMiddleware(cfg config.AuthConfig) (func(http.Handler) http.Handler, error) {
	var authn auth.Authenticator
	switch cfg.Type {
	case "none", "":
		authn = noop.Authenticator{}
	case "apikey":
		entries := make([]apikey.RawKeyEntry, 0, len(cfg.APIKeys))
		for _, k := range cfg.APIKeys {
			entries = append(entries, apikey.RawKeyEntry{
				Key:      k.Key,
				Identity: auth.Identity{Subject: k.Subject, ServiceTier: k.ServiceTier},
			})
		}
		authn = apikey.New(entries)
	case "jwt":
		a, err := jwt.New(jwt.Config{
			Secret:       []byte(cfg.JWT.Secret),
			PublicKeyPEM: []byte(cfg.JWT.PublicKey),
			Issuer:       cfg.JWT.Issuer,
			Audience:     cfg.JWT.Audience,
			Leeway:       cfg.JWT.Leeway,
		})
		if err != nil {
			return nil, err
		}
		authn = a
	default:
		return nil, fmt.Errorf("unknown auth type %q", cfg.Type)
	}

	return auth.Middleware(auth.NewChain(auth.Deny, authn), auth.DefaultBypassEndpoints), nil
}
