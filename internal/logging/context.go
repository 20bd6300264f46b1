package logging

import (
	"context"
	"log/slog"

	"cointist/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldRunToken is the standardized key for the run correlation token.
	FieldRunToken = "run_token"
	// FieldItemSlug is the standardized key for pipeline item slugs.
	FieldItemSlug = "item_slug"
	// FieldTier is the standardized key for identity resolution tiers.
	FieldTier = "tier"
	// FieldCorrelationID is the standardized structured logging key for request correlation identifiers.
	FieldCorrelationID = "correlation_id"
	// FieldEventType names the machine-readable event a log line describes.
	FieldEventType = "event_type"
	// FieldErrorHint suggests the next step an operator should take.
	FieldErrorHint = "error_hint"
	// FieldImpact is the standardized key for user-facing consequence of a warning.
	FieldImpact = "impact"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 4)
	if token, ok := services.RunTokenFromContext(ctx); ok {
		fields = append(fields, RunToken(token))
	}
	if slug, ok := services.ItemSlugFromContext(ctx); ok {
		fields = append(fields, ItemSlug(slug))
	}
	if tier, ok := services.TierFromContext(ctx); ok {
		fields = append(fields, Tier(tier))
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
	return logger.With(toArgs(fields)...)
}
