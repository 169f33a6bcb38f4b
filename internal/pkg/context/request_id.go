// Package context carries request-scoped values shared by transport and logging.
package context

import "context"

type requestIDKey struct{}

func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID reports the id attached by WithRequestID, if any.
func RequestID(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(requestIDKey{}).(string)
	return id, ok && id != ""
}

// GetRequestID is RequestID without the presence flag.
func GetRequestID(ctx context.Context) string {
	id, _ := RequestID(ctx)
	return id
}
