package services

import "context"

type contextKey string

const (
	feedKey      contextKey = "feed"
	entryIDKey   contextKey = "entry_id"
	stepKey      contextKey = "step"
	requestIDKey contextKey = "request_id"
)

// WithFeed annotates context with the feed slug being processed.
func WithFeed(ctx context.Context, slug string) context.Context {
	if slug == "" {
		return ctx
	}
	return context.WithValue(ctx, feedKey, slug)
}

// FeedFromContext extracts the feed slug if present.
func FeedFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(feedKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithEntryID annotates context with the entry identifier.
func WithEntryID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, entryIDKey, id)
}

// EntryIDFromContext extracts the entry identifier if present.
func EntryIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(entryIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithStep annotates context with the pipeline step name.
func WithStep(ctx context.Context, step string) context.Context {
	if step == "" {
		return ctx
	}
	return context.WithValue(ctx, stepKey, step)
}

// StepFromContext returns the step name if present.
func StepFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(stepKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
