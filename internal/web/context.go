package web

import (
	"context"
	"net/http"

	"github.com/JonMunkholm/datacleaner/internal/core"
)

// WithRequestMetadata records the client IP and User-Agent so runs started
// over HTTP carry their origin.
func WithRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	ip := r.RemoteAddr // Already processed by TrustedRealIP
	ua := r.Header.Get("User-Agent")
	ctx = core.ContextWithIPAddress(ctx, ip)
	ctx = core.ContextWithUserAgent(ctx, ua)
	return ctx
}
