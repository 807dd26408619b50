package session

import "context"

type entryKey struct{}

// WithEntry attaches a session entry to ctx
func WithEntry(ctx context.Context, e *Entry) context.Context {
	return context.WithValue(ctx, entryKey{}, e)
}

// EntryFromContext returns the entry attached by the auth middleware
func EntryFromContext(ctx context.Context) (*Entry, bool) {
	e, ok := ctx.Value(entryKey{}).(*Entry)
	return e, ok
}
