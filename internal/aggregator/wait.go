package aggregator

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"cointist/internal/artifacts"
	"cointist/internal/logging"
)

const defaultPollInterval = 1500 * time.Millisecond

type rooted interface {
	Root() string
}

// Wait polls Latest until a summary is found, the timeout elapses or ctx is
// cancelled. Polling happens at a fixed interval; when the artifact store is
// a local directory, new or rewritten summary files trigger an early poll.
func (a *Aggregator) Wait(ctx context.Context, since *time.Time, timeout, interval time.Duration) (Result, error) {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	events, closeWatch := a.watch()
	defer closeWatch()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		result, err := a.Latest(ctx, since)
		if err != nil {
			if timedOut(ctx) {
				return Result{OK: true, Message: MessageTimedOut}, nil
			}
			return Result{}, err
		}
		if result.Found {
			return result, nil
		}

		select {
		case <-ctx.Done():
			if timedOut(ctx) {
				return Result{OK: true, Message: MessageTimedOut}, nil
			}
			return Result{}, ctx.Err()
		case <-ticker.C:
		case <-events:
		}
	}
}

func timedOut(ctx context.Context) bool {
	return errors.Is(ctx.Err(), context.DeadlineExceeded)
}

// watch subscribes to summary file events. When watching is unavailable the
// returned channel never fires and Wait degrades to plain polling.
func (a *Aggregator) watch() (<-chan struct{}, func()) {
	notify := make(chan struct{}, 1)
	dir, ok := a.artifacts.(rooted)
	if !ok || strings.TrimSpace(dir.Root()) == "" {
		return notify, func() {}
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		a.logger.Debug("fsnotify unavailable, polling only", logging.Error(err))
		return notify, func() {}
	}
	if err := watcher.Add(dir.Root()); err != nil {
		a.logger.Debug("cannot watch artifact dir, polling only", logging.String("dir", dir.Root()), logging.Error(err))
		_ = watcher.Close()
		return notify, func() {}
	}

	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
					continue
				}
				if !strings.HasPrefix(filepath.Base(event.Name), artifacts.KindSummary+"-") {
					continue
				}
				select {
				case notify <- struct{}{}:
				default:
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				a.logger.Debug("artifact watcher error", logging.Error(err))
			}
		}
	}()
	return notify, func() {
		close(done)
		_ = watcher.Close()
	}
}
