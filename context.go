package sessionauth

import "context"

type requestContextKey struct{}

// WithRequest attaches a request scope to ctx so handlers further down the
// chain reuse the same unit of work and authorization cache.
func WithRequest(ctx context.Context, r *Request) context.Context {
	return context.WithValue(ctx, requestContextKey{}, r)
}

// RequestFromContext returns the scope stored by [WithRequest].
func RequestFromContext(ctx context.Context) (*Request, bool) {
	if ctx == nil {
		return nil, false
	}
	r, ok := ctx.Value(requestContextKey{}).(*Request)
	return r, ok && r != nil
}
