package auth

import (
	"log/slog"
	"net/http"

	"github.com/puppetm4st3r/local-function-calling/pkg/api"
	"github.com/puppetm4st3r/local-function-calling/pkg/debug"
	"github.com/puppetm4st3r/local-function-calling/pkg/observability"
	"github.com/puppetm4st3r/local-function-calling/pkg/transport"
)

// DefaultBypassEndpoints are served without authentication.
var DefaultBypassEndpoints = []string{"/healthz", "/metrics"}

const challenge = `Bearer realm="lfc"`

// Middleware admits requests a allows and stores the caller's identity in
// the request context. Denied requests get a 401 error envelope. Paths in
// bypass skip authentication.
func Middleware(a Authenticator, bypass []string) func(http.Handler) http.Handler {
	open := make(map[string]struct{}, len(bypass))
	for _, p := range bypass {
		open[p] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := open[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			res := a.Authenticate(r.Context(), r)
			switch {
			case res.Decision != Allow || res.Identity == nil:
				reject(w, r, res.Err)
			case res.Identity.Subject == "":
				slog.Error("authenticator allowed a caller without a subject", "path", r.URL.Path)
				transport.WriteErrorResponse(w, api.NewServerError("internal authentication error"), http.StatusInternalServerError)
			default:
				debug.Log("auth", "caller admitted",
					"subject", res.Identity.Subject,
					"tier", res.Identity.ServiceTier,
					"path", r.URL.Path,
				)
				next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), res.Identity)))
			}
		})
	}
}

func reject(w http.ResponseWriter, r *http.Request, reason error) {
	if reason == nil {
		reason = ErrUnauthenticated
	}
	slog.Warn("request rejected by authentication",
		"path", r.URL.Path,
		"remote_addr", r.RemoteAddr,
		"reason", reason.Error(),
	)
	observability.AuthRejectedTotal.Inc()

	w.Header().Set("WWW-Authenticate", challenge)
	transport.WriteErrorResponse(w,
		api.NewInvalidRequestError("authorization", ErrUnauthenticated.Error()),
		http.StatusUnauthorized,
	)
}
