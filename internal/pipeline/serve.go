package pipeline

import (
	"context"
	"os/signal"
	"syscall"

	"cointist/internal/api"
	"cointist/internal/logging"
	"cointist/internal/preflight"
)

// Serve runs the HTTP API until ctx is cancelled or the process receives
// SIGINT or SIGTERM.
func (p *Pipeline) Serve(ctx context.Context) error {
	signalCtx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	for _, failed := range preflight.Failed(preflight.RunAll(signalCtx, p.Config)) {
		logging.WarnWithContext(p.Logger, "preflight check failed", "preflight_failed",
			logging.String("check", failed.Name),
			logging.String("detail", failed.Detail),
			logging.String(logging.FieldImpact, "affected operations will fail until fixed"),
		)
	}

	server := api.New(p.Config, p.APIDeps(), p.Logger)
	if err := server.Start(signalCtx); err != nil {
		return err
	}
	p.Logger.Info("cointist serving",
		logging.String("address", server.Addr()),
		logging.String("artifact_dir", p.Artifacts.Root()),
		logging.Int("tiers", len(p.Resolver.Tiers())),
	)

	<-signalCtx.Done()
	server.Stop()
	p.Logger.Info("cointist shutting down")
	return nil
}
