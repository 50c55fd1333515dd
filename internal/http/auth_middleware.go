package httpx

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/multision/SupaConsole/internal/domain"
)

type authContextKey string

const contextKeyPrincipal authContextKey = "supaconsole-principal"

type contextSetter interface {
	SetContext(context.Context)
}

// requireAuth resolves the session once and stores the principal in the
// request context before invoking the handler.
func (r *Router) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		ctx, _, ok := r.ensureAuth(w, req)
		if !ok {
			return
		}
		if setter, ok := w.(contextSetter); ok {
			setter.SetContext(ctx)
		}
		next(w, req.WithContext(ctx))
	}
}

// ensureAuth validates the session token and enriches the context.
func (r *Router) ensureAuth(w http.ResponseWriter, req *http.Request) (context.Context, domain.Principal, bool) {
	token, err := r.sessionToken(req)
	if err != nil {
		r.logger.Warn("session token missing", "error", err, "path", req.URL.Path)
		writeErrorKind(w, http.StatusUnauthorized, kindUnauthorized, "authentication required")
		return req.Context(), domain.Principal{}, false
	}
	principal, err := r.auth.Authorize(req.Context(), token)
	if err != nil {
		r.logger.Warn("token validation failed", "error", err, "path", req.URL.Path)
		writeErrorKind(w, http.StatusUnauthorized, kindUnauthorized, "authentication failed")
		return req.Context(), domain.Principal{}, false
	}
	ctx := context.WithValue(req.Context(), contextKeyPrincipal, principal)
	return ctx, principal, true
}

// principalFromContext extracts the principal stored by requireAuth.
func principalFromContext(ctx context.Context) (domain.Principal, bool) {
	principal, ok := ctx.Value(contextKeyPrincipal).(domain.Principal)
	if !ok || principal.IsZero() {
		return domain.Principal{}, false
	}
	return principal, true
}

// sessionToken prefers the Authorization header and falls back to the
// session cookie.
func (r *Router) sessionToken(req *http.Request) (string, error) {
	if header := req.Header.Get("Authorization"); strings.TrimSpace(header) != "" {
		return bearerToken(header)
	}
	if r.sessionCookie != "" {
		if cookie, err := req.Cookie(r.sessionCookie); err == nil && strings.TrimSpace(cookie.Value) != "" {
			return strings.TrimSpace(cookie.Value), nil
		}
	}
	return "", errors.New("missing session token")
}

func bearerToken(header string) (string, error) {
	if strings.TrimSpace(header) == "" {
		return "", errors.New("missing authorization header")
	}
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization header format")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("empty bearer token")
	}
	return token, nil
}
