package dispatch

import (
	"context"

	"github.com/shirou/gopsutil/v3/process"
)

// Alive reports whether a dispatched worker pid is still running.
func Alive(ctx context.Context, pid int) (bool, error) {
	if pid <= 0 {
		return false, nil
	}
	return process.PidExistsWithContext(ctx, int32(pid))
}
