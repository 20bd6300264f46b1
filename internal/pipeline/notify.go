package pipeline

import (
	"context"
	"errors"

	"cointist/internal/export"
	"cointist/internal/logging"
	"cointist/internal/model"
	"cointist/internal/notifications"
	"cointist/internal/registrar"
)

// Register starts a run and publishes a run notice.
func (p *Pipeline) Register(ctx context.Context, keys []string) (registrar.Registration, error) {
	reg, err := p.Registrar.Register(ctx, keys)
	if err != nil {
		return reg, err
	}
	p.notify(ctx, notifications.EventRunRegistered, notifications.Payload{
		"token":      reg.Token,
		"dispatched": reg.Dispatched(),
		"total":      len(reg.Items),
	})
	return reg, nil
}

// ExportItems runs the export gate and publishes its outcome.
func (p *Pipeline) ExportItems(ctx context.Context, items []model.Item) (export.Result, error) {
	result, err := p.Export.Export(ctx, items)
	var rejection *export.RejectionError
	switch {
	case errors.As(err, &rejection):
		p.notify(ctx, notifications.EventExportRejected, notifications.Payload{
			"missing": rejection.MissingCount,
			"total":   len(items),
		})
	case err != nil:
		p.notify(ctx, notifications.EventError, notifications.Payload{
			"context": "export",
			"error":   err,
		})
	default:
		p.notify(ctx, notifications.EventExportCompleted, notifications.Payload{
			"path":    result.Path,
			"count":   result.Count,
			"patched": result.Patched,
		})
	}
	return result, err
}

// notify never fails the calling operation.
func (p *Pipeline) notify(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	if p.Notifier == nil {
		return
	}
	if err := p.Notifier.Publish(ctx, event, payload); err != nil {
		logging.WarnWithContext(p.Logger, "notification failed", "notification_failed",
			logging.String("event", string(event)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
		)
	}
}

type registerFunc func(ctx context.Context, keys []string) (registrar.Registration, error)

func (f registerFunc) Register(ctx context.Context, keys []string) (registrar.Registration, error) {
	return f(ctx, keys)
}

type exportFunc func(ctx context.Context, items []model.Item) (export.Result, error)

func (f exportFunc) Export(ctx context.Context, items []model.Item) (export.Result, error) {
	return f(ctx, items)
}
