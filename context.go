package authgate

import "context"

type clientIPContextKey struct{}

// WithClientIP attaches the caller's IP address to ctx. The engine records
// it on audit events; it plays no part in authorization decisions.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

func clientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}
