// Package origin provides utilities to inject and retrieve the origin
// of the calling window in and from the context.
package origin

import (
	"context"
	"errors"
	"net/http"
	"net/url"
)

// Using an unexported type prevents key collisions from other packages.
type contextKey string

// OriginKey is the context key used to store the origin of the original request.
const OriginKey contextKey = "origin"

// OriginMiddleware is an http.Handler middleware that injects the origin
// of the original *http.Request into the context for later handlers to access.
func OriginMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), OriginKey, originFromRequest(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// OriginFromContext is a helper function that retrieves the origin
// from the context.
func OriginFromContext(ctx context.Context) (string, error) {
	org, ok := ctx.Value(OriginKey).(string)
	if !ok {
		return "", errors.New("origin not found in context")
	}
	return org, nil
}

// originFromRequest reads the Origin header, falling back to Referer
// trimmed to scheme and host. Provider redirects usually carry neither,
// and then the empty string is injected.
func originFromRequest(r *http.Request) string {
	if org := r.Header.Get("Origin"); org != "" {
		return org
	}

	ref := r.Referer()
	if ref == "" {
		return ""
	}

	u, err := url.Parse(ref)
	if err != nil || u.Host == "" {
		return ""
	}

	return u.Scheme + "://" + u.Host
}
