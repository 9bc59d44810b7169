package apikey

import (
	"context"
	"net/http"
	"testing"

	"github.com/puppetm4st3r/local-function-calling/pkg/auth"
)

func newTestAuth() *Authenticator {
	return New([]RawKeyEntry{
		{
			Key: "sk-test-key-1",
			Identity: auth.Identity{
				Subject:     "alice",
				ServiceTier: "standard",
				Metadata:    map[string]string{"team": "search"},
			},
		},
		{
			Key:      "sk-test-key-2",
			Identity: auth.Identity{Subject: "bob", ServiceTier: "premium"},
		},
		{
			Key:      "",
			Identity: auth.Identity{Subject: "nobody"},
		},
	})
}

func authenticate(t *testing.T, a *Authenticator, header, value string) auth.Result {
	t.Helper()
	r, _ := http.NewRequest("GET", "/", nil)
	if header != "" {
		r.Header.Set(header, value)
	}
	return a.Authenticate(context.Background(), r)
}

func TestAuthenticate(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		value    string
		want     auth.Decision
		wantSubj string
	}{
		{"valid bearer", "Authorization", "Bearer sk-test-key-1", auth.Allow, "alice"},
		{"second key", "Authorization", "Bearer sk-test-key-2", auth.Allow, "bob"},
		{"x-api-key header", HeaderName, "sk-test-key-2", auth.Allow, "bob"},
		{"invalid key", "Authorization", "Bearer sk-wrong-key", auth.Deny, ""},
		{"invalid x-api-key", HeaderName, "sk-wrong-key", auth.Deny, ""},
		{"empty bearer", "Authorization", "Bearer ", auth.Deny, ""},
		{"no header", "", "", auth.Abstain, ""},
		{"basic scheme", "Authorization", "Basic dXNlcjpwYXNz", auth.Abstain, ""},
	}

	a := newTestAuth()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := authenticate(t, a, tt.header, tt.value)
			if result.Decision != tt.want {
				t.Fatalf("Decision = %s, want %s", result.Decision, tt.want)
			}
			if tt.wantSubj != "" && result.Identity.Subject != tt.wantSubj {
				t.Errorf("Subject = %q, want %q", result.Identity.Subject, tt.wantSubj)
			}
		})
	}
}

func TestEmptyKeysAreSkipped(t *testing.T) {
	if n := newTestAuth().Len(); n != 2 {
		t.Errorf("Len() = %d, want 2", n)
	}
}

func TestIdentityIsCopied(t *testing.T) {
	a := newTestAuth()

	first := authenticate(t, a, "Authorization", "Bearer sk-test-key-1")
	first.Identity.Metadata["team"] = "changed"

	second := authenticate(t, a, "Authorization", "Bearer sk-test-key-1")
	if got := second.Identity.Metadata["team"]; got != "search" {
		t.Errorf("metadata leaked between requests: team = %q", got)
	}
}
