package logging

import (
	"context"
	"log/slog"

	"github.com/CopyPasteFail/articles-rss-to-podcast/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldFeed is the standardized structured logging key for feed slugs.
	FieldFeed = "feed"
	// FieldEntryID is the standardized structured logging key for entry identifiers.
	FieldEntryID = "entry_id"
	// FieldStep is the standardized structured logging key for pipeline step names.
	FieldStep = "step"
	// FieldLink is the standardized structured logging key for article links.
	FieldLink = "link"
	// FieldCorrelationID is the standardized structured logging key for run correlation identifiers.
	FieldCorrelationID = "correlation_id"
	// FieldEventType marks log records that downstream tooling keys on.
	FieldEventType = "event_type"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 4)
	if slug, ok := services.FeedFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldFeed, slug))
	}
	if id, ok := services.EntryIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldEntryID, id))
	}
	if step, ok := services.StepFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldStep, step))
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(attrsToArgs(fields)...)
}
