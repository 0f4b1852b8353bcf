package controller

import "context"

type startedKey struct{}

// WithStarted returns a context whose attempt calls fn with the attempt id once
// pre-flight checks pass and the request is about to be sent. Rejected attempts
// never call it.
func WithStarted(ctx context.Context, fn func(attemptID string)) context.Context {
	return context.WithValue(ctx, startedKey{}, fn)
}

func notifyStarted(ctx context.Context, attemptID string) {
	if fn, ok := ctx.Value(startedKey{}).(func(string)); ok && fn != nil {
		fn(attemptID)
	}
}
