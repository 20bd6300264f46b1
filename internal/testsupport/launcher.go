package testsupport

import (
	"context"
	"sync"
	"time"

	"cointist/internal/dispatch"
)

// Launcher is a dispatch.Launcher that records launches instead of starting
// processes. Slugs listed in Fail return the mapped error.
type Launcher struct {
	mu      sync.Mutex
	specs   []dispatch.Spec
	nextPID int
	Fail    map[string]error
}

// Launch records spec and returns a synthetic handle.
func (l *Launcher) Launch(_ context.Context, spec dispatch.Spec) (dispatch.Handle, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err, ok := l.Fail[spec.Slug]; ok {
		return dispatch.Handle{}, err
	}
	l.specs = append(l.specs, spec)
	l.nextPID++
	return dispatch.Handle{PID: 10000 + l.nextPID, LogPath: spec.LogPath, StartedAt: time.Now()}, nil
}

// Specs returns the recorded launches.
func (l *Launcher) Specs() []dispatch.Spec {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]dispatch.Spec(nil), l.specs...)
}
