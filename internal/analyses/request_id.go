package analyses

import "context"

type requestIDKey struct{}

// WithRequestID attaches a request ID to the context for logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if ctx == nil || requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

func requestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

type analysisIDKey struct{}

// WithAnalysisID tags log lines emitted during a run with the analysis ID.
func WithAnalysisID(ctx context.Context, analysisID string) context.Context {
	if ctx == nil || analysisID == "" {
		return ctx
	}
	return context.WithValue(ctx, analysisIDKey{}, analysisID)
}

func analysisIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(analysisIDKey{}).(string); ok {
		return id
	}
	return ""
}
