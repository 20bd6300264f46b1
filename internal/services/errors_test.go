package services_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"cointist/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "registrar", "launch", "worker failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"registrar", "launch", "worker failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected fallback detail, got %q", err.Error())
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err       error
		kind      services.Kind
		retryable bool
	}{
		{services.Wrap(services.ErrValidation, "registrar", "match", "no locator", nil), services.KindValidation, false},
		{services.Wrap(services.ErrNotFound, "registrar", "match", "zero items", nil), services.KindNotFound, false},
		{services.Wrap(services.ErrConfiguration, "registrar", "snapshot", "unreadable", nil), services.KindConfiguration, false},
		{services.Wrap(services.ErrTimeout, "resolver", "live query", "", nil), services.KindTimeout, true},
		{errors.New("plain"), services.KindTransient, true},
	}
	for _, tt := range tests {
		if got := services.Classify(tt.err); got != tt.kind {
			t.Fatalf("Classify(%v) = %s, want %s", tt.err, got, tt.kind)
		}
		if got := services.Retryable(tt.err); got != tt.retryable {
			t.Fatalf("Retryable(%v) = %v, want %v", tt.err, got, tt.retryable)
		}
	}
}

func TestContextAnnotations(t *testing.T) {
	ctx := services.WithRunToken(context.Background(), "tok")
	ctx = services.WithItemSlug(ctx, "btc-rallies")
	ctx = services.WithTier(ctx, "logScan")
	ctx = services.WithRequestID(ctx, "")

	if v, ok := services.RunTokenFromContext(ctx); !ok || v != "tok" {
		t.Fatalf("unexpected run token %q %v", v, ok)
	}
	if v, ok := services.ItemSlugFromContext(ctx); !ok || v != "btc-rallies" {
		t.Fatalf("unexpected slug %q %v", v, ok)
	}
	if v, ok := services.TierFromContext(ctx); !ok || v != "logScan" {
		t.Fatalf("unexpected tier %q %v", v, ok)
	}
	if _, ok := services.RequestIDFromContext(ctx); ok {
		t.Fatal("empty request id should not be stored")
	}
}
