package core

import (
	"context"
	"net/http"
	"strings"
)

// Address identifies an external caller: a player, a host owner, a session
// owner or a treasury stakeholder.
type Address string

const (
	CallerHeader                = "Caller-Address"
	CallerContextKey contextKey = "caller"
)

// CallerHTTPMiddleware takes the caller identity from the request header.
// The identity is not authenticated here; signature checks belong to the
// transport in front of this service.
func CallerHTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller := strings.TrimSpace(r.Header.Get(CallerHeader))
		if caller == "" {
			WriteUnauthorized(w, r, NewCommandError(
				http.StatusUnauthorized,
				"missing "+CallerHeader+" header",
			))
			return
		}

		ctx := WithCaller(r.Context(), Address(caller))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func WithCaller(ctx context.Context, caller Address) context.Context {
	return context.WithValue(ctx, CallerContextKey, caller)
}

func Caller(ctx context.Context) Address {
	caller, _ := ctx.Value(CallerContextKey).(Address)
	return caller
}
