package middleware

import "context"

type subjectKey struct{}

// WithUser records the authenticated subject for downstream handlers.
func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, subjectKey{}, userID)
}

// UserIDFromContext reports the subject set by Auth. An empty id counts as
// unauthenticated.
func UserIDFromContext(ctx context.Context) (string, bool) {
	uid, _ := ctx.Value(subjectKey{}).(string)
	return uid, uid != ""
}
