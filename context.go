package medauth

import (
	"context"

	"github.com/meddevice/medauth/audit"
)

// WithClientIP attaches the caller's IP address to ctx. Audit entries
// recorded under ctx carry it.
func WithClientIP(ctx context.Context, ip string) context.Context {
	info := audit.RequestInfoFromContext(ctx)
	info.IPAddress = ip
	return audit.WithRequestInfo(ctx, info)
}

// WithUserAgent attaches the HTTP User-Agent to ctx.
func WithUserAgent(ctx context.Context, userAgent string) context.Context {
	info := audit.RequestInfoFromContext(ctx)
	info.UserAgent = userAgent
	return audit.WithRequestInfo(ctx, info)
}

// WithRequestID attaches a request correlation id to ctx. It is stamped on
// audit entries and added to log records.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	info := audit.RequestInfoFromContext(ctx)
	info.RequestID = requestID
	return audit.WithRequestInfo(ctx, info)
}

// WithSessionID attaches a client session id to ctx.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	info := audit.RequestInfoFromContext(ctx)
	info.SessionID = sessionID
	return audit.WithRequestInfo(ctx, info)
}

// ClientIP returns the IP address attached with WithClientIP.
func ClientIP(ctx context.Context) string {
	return audit.RequestInfoFromContext(ctx).IPAddress
}
