package middleware

import (
	"context"
	"net/http"
	"strings"
)

type hostCtxKey struct{}

// ForwardedHost returns middleware that takes the request host from the
// named header when a trusted proxy sets it, falling back to r.Host. An
// empty header name disables the override. Only the first entry of a
// comma-separated list is used.
//
// The effective host is stored in the context and readable via Host.
func ForwardedHost(header string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			host := r.Host
			if header != "" {
				if v := r.Header.Get(header); v != "" {
					first, _, _ := strings.Cut(v, ",")
					if first = strings.TrimSpace(first); first != "" {
						host = first
					}
				}
			}
			ctx := context.WithValue(r.Context(), hostCtxKey{}, host)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Host returns the effective request host stored by ForwardedHost, or "".
func Host(ctx context.Context) string {
	h, _ := ctx.Value(hostCtxKey{}).(string)
	return h
}
