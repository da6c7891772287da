package hexazine

import "context"

type contextKey int

const (
	clientIPKey contextKey = iota
)

// WithClientIP attaches the caller's IP to ctx so audit events can carry
// it. The routing layer sets this; the engine only reads it.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

func clientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	ip, _ := ctx.Value(clientIPKey).(string)
	return ip
}
