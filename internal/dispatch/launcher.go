package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"

	"cointist/internal/config"
	"cointist/internal/logging"
	"cointist/internal/services"
)

// Spec describes one worker to launch.
type Spec struct {
	Slug       string
	Locator    string
	OutputPath string
	LogPath    string
	Token      string
}

// Handle identifies a launched worker. It deliberately carries no way to wait
// for completion.
type Handle struct {
	PID       int
	LogPath   string
	StartedAt time.Time
}

// Launcher starts workers without waiting for them.
type Launcher interface {
	Launch(ctx context.Context, spec Spec) (Handle, error)
}

// ProcessLauncher runs the configured worker command as a child process.
type ProcessLauncher struct {
	program string
	args    []string
	env     []string
	logger  *slog.Logger
}

// NewProcessLauncher parses the worker command line from configuration.
func NewProcessLauncher(cfg config.Worker, logger *slog.Logger) (*ProcessLauncher, error) {
	parts, err := shellquote.Split(strings.TrimSpace(cfg.Command))
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "dispatch", "parse worker command", cfg.Command, err)
	}
	if len(parts) == 0 {
		return nil, services.Wrap(services.ErrConfiguration, "dispatch", "parse worker command", "worker.command is empty", nil)
	}
	args := append([]string{}, parts[1:]...)
	args = append(args, cfg.ExtraArgs...)
	return &ProcessLauncher{
		program: parts[0],
		args:    args,
		env:     append([]string{}, cfg.Env...),
		logger:  logging.NewComponentLogger(logger, "dispatch"),
	}, nil
}

// Program returns the worker executable as configured.
func (l *ProcessLauncher) Program() string {
	return l.program
}

// Args builds the full argument list for spec.
func (l *ProcessLauncher) Args(spec Spec) []string {
	args := append([]string{}, l.args...)
	return append(args,
		"--url", spec.Locator,
		"--out", spec.OutputPath,
		"--token", spec.Token,
		"--slug", spec.Slug,
	)
}

// Preflight verifies the worker executable can be found and executed.
func (l *ProcessLauncher) Preflight() error {
	path, err := exec.LookPath(l.program)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "dispatch", "preflight", "worker executable not found", err)
	}
	if err := checkExecutable(path); err != nil {
		return services.Wrap(services.ErrConfiguration, "dispatch", "preflight", "worker executable not runnable", err)
	}
	return nil
}

// Launch starts the worker. The supplied context only bounds the launch
// itself; the worker outlives it.
func (l *ProcessLauncher) Launch(ctx context.Context, spec Spec) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return Handle{}, err
	}
	if strings.TrimSpace(spec.Locator) == "" {
		return Handle{}, services.Wrap(services.ErrValidation, "dispatch", "launch", "missing locator", nil)
	}
	if strings.TrimSpace(spec.LogPath) == "" {
		return Handle{}, services.Wrap(services.ErrValidation, "dispatch", "launch", "missing log path", nil)
	}
	if err := os.MkdirAll(filepath.Dir(spec.LogPath), 0o755); err != nil {
		return Handle{}, fmt.Errorf("create worker log dir: %w", err)
	}
	logFile, err := os.OpenFile(spec.LogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return Handle{}, fmt.Errorf("open worker log: %w", err)
	}

	cmd := exec.Command(l.program, l.Args(spec)...)
	cmd.Env = append(os.Environ(), l.env...)
	cmd.Env = append(cmd.Env,
		"COINTIST_RUN_TOKEN="+spec.Token,
		"COINTIST_ITEM_SLUG="+spec.Slug,
	)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	configureWorkerProcess(cmd)

	started := time.Now()
	fmt.Fprintf(logFile, "%s worker launch slug=%s token=%s url=%s out=%s\n",
		started.UTC().Format(time.RFC3339), spec.Slug, spec.Token, spec.Locator, spec.OutputPath)
	if err := cmd.Start(); err != nil {
		fmt.Fprintf(logFile, "%s worker launch failed: %v\n", time.Now().UTC().Format(time.RFC3339), err)
		_ = logFile.Close()
		return Handle{}, services.Wrap(services.ErrExternalTool, "dispatch", "launch", "start worker "+spec.Slug, err)
	}

	handle := Handle{PID: cmd.Process.Pid, LogPath: spec.LogPath, StartedAt: started}
	go l.reap(cmd, logFile, spec, handle)
	return handle, nil
}

func (l *ProcessLauncher) reap(cmd *exec.Cmd, logFile *os.File, spec Spec, handle Handle) {
	err := cmd.Wait()
	_ = logFile.Close()
	logger := l.logger.With(
		logging.RunToken(spec.Token),
		logging.ItemSlug(spec.Slug),
		logging.Int("pid", handle.PID),
		logging.Duration("elapsed", time.Since(handle.StartedAt)),
	)
	if err == nil {
		logger.Debug("worker exited")
		return
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		logging.WarnWithContext(logger, "worker exited with failure", "worker_exit_failed",
			logging.Int("exit_code", exitErr.ExitCode()),
			logging.String("log_path", spec.LogPath),
			logging.String(logging.FieldErrorHint, "inspect the worker log"),
			logging.String(logging.FieldImpact, "item will be missing from the run summary"),
		)
		return
	}
	logger.Debug("worker wait failed", logging.Error(err))
}
