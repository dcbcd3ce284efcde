package core

import "context"

type contextKey string

const (
	ctxKeyIPAddress contextKey = "origin_ip"
	ctxKeyUserAgent contextKey = "origin_ua"
)

// ContextWithIPAddress records the client IP that requested a run.
func ContextWithIPAddress(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ctxKeyIPAddress, ip)
}

// ContextWithUserAgent records the client User-Agent that requested a run.
func ContextWithUserAgent(ctx context.Context, ua string) context.Context {
	return context.WithValue(ctx, ctxKeyUserAgent, ua)
}

// GetIPAddressFromContext extracts IP address from context.
func GetIPAddressFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyIPAddress).(string); ok {
		return v
	}
	return ""
}

// GetUserAgentFromContext extracts User-Agent from context.
func GetUserAgentFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyUserAgent).(string); ok {
		return v
	}
	return ""
}

// originFromContext describes who requested a run: "cli" when no client
// address was recorded.
func originFromContext(ctx context.Context) Origin {
	o := Origin{IP: GetIPAddressFromContext(ctx), UserAgent: GetUserAgentFromContext(ctx)}
	if o.IP == "" && o.UserAgent == "" {
		o.Source = "cli"
	} else {
		o.Source = "http"
	}
	return o
}
