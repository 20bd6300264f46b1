package pipeline_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"cointist/internal/export"
	"cointist/internal/model"
	"cointist/internal/notifications"
	"cointist/internal/pipeline"
	"cointist/internal/testsupport"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []notifications.Event
	last   notifications.Payload
	err    error
}

func (r *recordingNotifier) Publish(_ context.Context, event notifications.Event, payload notifications.Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	r.last = payload
	return r.err
}

func TestRegisterAndExportPublishNotices(t *testing.T) {
	ctx := context.Background()
	cfg := testsupport.NewConfig(t)
	testsupport.WriteSnapshot(t, cfg.Paths.SnapshotFile, model.Item{Slug: "a", URL: "https://x.example/a"})

	notifier := &recordingNotifier{}
	p, err := pipeline.Open(ctx, cfg, nil, pipeline.Options{
		Launcher:       &testsupport.Launcher{},
		WithoutCatalog: true,
		Notifier:       notifier,
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer p.Close()

	if _, err := p.Register(ctx, []string{"a"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if len(notifier.events) != 1 || notifier.events[0] != notifications.EventRunRegistered {
		t.Fatalf("expected run notice, got %v", notifier.events)
	}
	if notifier.last["total"] != 1 {
		t.Fatalf("expected total 1, got %+v", notifier.last)
	}

	_, err = p.ExportItems(ctx, []model.Item{{Slug: "unknown-story", Title: "Unknown story"}})
	var rejection *export.RejectionError
	if !errors.As(err, &rejection) {
		t.Fatalf("expected rejection, got %v", err)
	}
	if notifier.events[1] != notifications.EventExportRejected || notifier.last["missing"] != 1 {
		t.Fatalf("expected rejection notice, got %v %+v", notifier.events, notifier.last)
	}

	result, err := p.ExportItems(ctx, []model.Item{{Slug: "a", Title: "A", ID: model.NewID(7)}})
	if err != nil {
		t.Fatalf("ExportItems: %v", err)
	}
	if notifier.events[2] != notifications.EventExportCompleted || notifier.last["path"] != result.Path {
		t.Fatalf("expected export notice, got %v %+v", notifier.events, notifier.last)
	}
}

func TestNotifierFailureDoesNotFailRegistration(t *testing.T) {
	ctx := context.Background()
	cfg := testsupport.NewConfig(t)
	testsupport.WriteSnapshot(t, cfg.Paths.SnapshotFile, model.Item{Slug: "a", URL: "https://x.example/a"})

	p, err := pipeline.Open(ctx, cfg, nil, pipeline.Options{
		Launcher:       &testsupport.Launcher{},
		WithoutCatalog: true,
		Notifier:       &recordingNotifier{err: errors.New("ntfy down")},
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer p.Close()

	reg, err := p.Register(ctx, []string{"a"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if reg.Dispatched() != 1 {
		t.Fatalf("expected dispatch, got %+v", reg.Items)
	}
}
