// Package trace assigns a correlation ID to every incoming request and
// carries it through context, so HTTP responses, log lines and audit entries
// referring to the same operation can be matched up.
package trace

import (
	"context"
	"net/http"

	"github.com/hazyhaar/pkg/idgen"
)

type ctxKey struct{}

// Header is the HTTP header carrying the request ID.
const Header = "X-Request-ID"

// NewID returns a fresh request correlation ID.
func NewID() string {
	return "req_" + idgen.New()
}

// WithID returns a context carrying the given request ID.
func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the request ID carried by ctx, or "" when absent.
func FromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// Middleware tags each request with a correlation ID. An ID supplied by the
// client is kept so multi-hop callers can correlate across services.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(Header)
		if id == "" {
			id = NewID()
		}
		w.Header().Set(Header, id)
		next.ServeHTTP(w, r.WithContext(WithID(r.Context(), id)))
	})
}
