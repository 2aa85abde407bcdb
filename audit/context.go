package audit

import "context"

// RequestInfo is the network context stamped onto entries recorded while
// serving a request.
type RequestInfo struct {
	IPAddress string
	UserAgent string
	SessionID string
	RequestID string
}

type requestInfoKey struct{}

// WithRequestInfo attaches info to ctx.
func WithRequestInfo(ctx context.Context, info RequestInfo) context.Context {
	return context.WithValue(ctx, requestInfoKey{}, info)
}

// RequestInfoFromContext returns the info attached to ctx, if any.
func RequestInfoFromContext(ctx context.Context) RequestInfo {
	if ctx == nil {
		return RequestInfo{}
	}
	info, _ := ctx.Value(requestInfoKey{}).(RequestInfo)
	return info
}

func stampRequestInfo(ctx context.Context, e *Entry) {
	info := RequestInfoFromContext(ctx)
	if e.IPAddress == "" {
		e.IPAddress = info.IPAddress
	}
	if e.UserAgent == "" {
		e.UserAgent = info.UserAgent
	}
	if e.SessionID == "" {
		e.SessionID = info.SessionID
	}
	if e.RequestID == "" {
		e.RequestID = info.RequestID
	}
}
