package obs

import "context"

type routeKey struct{}

// routeInfo is shared by pointer so handlers below the router can record the matched pattern
// for middleware that runs above it.
type routeInfo struct {
	pattern string
}

// WithRoutePattern attaches a route holder to ctx, seeded with pattern.
func WithRoutePattern(ctx context.Context, pattern string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if info, ok := ctx.Value(routeKey{}).(*routeInfo); ok {
		info.pattern = pattern
		return ctx
	}
	return context.WithValue(ctx, routeKey{}, &routeInfo{pattern: pattern})
}

// RoutePatternFromContext returns the recorded route pattern, or "".
func RoutePatternFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if info, ok := ctx.Value(routeKey{}).(*routeInfo); ok {
		return info.pattern
	}
	return ""
}
