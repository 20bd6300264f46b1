package services

import "context"

type contextKey string

const (
	runTokenKey  contextKey = "run_token"
	itemSlugKey  contextKey = "item_slug"
	tierKey      contextKey = "tier"
	requestIDKey contextKey = "request_id"
)

// WithRunToken annotates context with the run correlation token.
func WithRunToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, runTokenKey, token)
}

// RunTokenFromContext extracts the run token if present.
func RunTokenFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(runTokenKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithItemSlug annotates context with the slug of the item being processed.
func WithItemSlug(ctx context.Context, slug string) context.Context {
	if slug == "" {
		return ctx
	}
	return context.WithValue(ctx, itemSlugKey, slug)
}

// ItemSlugFromContext returns the item slug if present.
func ItemSlugFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(itemSlugKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithTier annotates context with the resolution tier name.
func WithTier(ctx context.Context, tier string) context.Context {
	if tier == "" {
		return ctx
	}
	return context.WithValue(ctx, tierKey, tier)
}

// TierFromContext returns the resolution tier if present.
func TierFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(tierKey).(string); ok && v != "" {
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
