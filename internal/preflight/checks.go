package preflight

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"
	"golang.org/x/sys/unix"

	"cointist/internal/config"
	"cointist/internal/dispatch"
)

// CheckWorker verifies the worker command parses and its executable can run.
func CheckWorker(cfg config.Worker) Result {
	const name = "Worker"

	launcher, err := dispatch.NewProcessLauncher(cfg, nil)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	if err := launcher.Preflight(); err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	return Result{Name: name, Passed: true, Detail: launcher.Program()}
}

// CheckPopulateCommand verifies the export populate command resolves to an
// executable on PATH.
func CheckPopulateCommand(command string) Result {
	const name = "Populate command"

	argv, err := shellquote.Split(strings.TrimSpace(command))
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("parse failed (%v)", err)}
	}
	if len(argv) == 0 {
		return Result{Name: name, Detail: "command not configured"}
	}
	path, err := exec.LookPath(argv[0])
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("binary %q not found", argv[0])}
	}
	return Result{Name: name, Passed: true, Detail: path}
}

// CheckNtfy verifies the ntfy server behind topic answers a poll request.
func CheckNtfy(ctx context.Context, topic string) Result {
	const name = "Notifications"

	base := strings.TrimRight(strings.TrimSpace(topic), "/")
	if base == "" {
		return Result{Name: name, Detail: "missing topic"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	client := &http.Client{Timeout: 5 * time.Second}
	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, base+"/json?poll=1&since=1s", nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("poll failed (%v)", err)}
	}

	resp, err := client.Do(req)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("poll failed (%v)", err)}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return Result{Name: name, Passed: true, Detail: base}
	case http.StatusUnauthorized, http.StatusForbidden:
		return Result{Name: name, Detail: "topic requires authentication"}
	default:
		return Result{Name: name, Detail: fmt.Sprintf("poll failed (%d)", resp.StatusCode)}
	}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}
