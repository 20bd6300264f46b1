package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"cointist/internal/config"
	"cointist/internal/logging"
	"cointist/internal/model"
	"cointist/internal/pipeline"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger

	pipeline *pipeline.Pipeline
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if c.logLevelFlag != nil && strings.TrimSpace(*c.logLevelFlag) != "" {
			cfg.Logging.Level = strings.TrimSpace(*c.logLevelFlag)
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

// loggerValue builds the process logger once. Logs go to stderr and the log
// directory so stdout stays reserved for command output.
func (c *commandContext) loggerValue() *slog.Logger {
	c.loggerOnce.Do(func() {
		logger, err := logging.NewFromConfig(c.configValue())
		if err != nil {
			fmt.Fprintf(os.Stderr, "warn: unable to initialize logger: %v\n", err)
			logger = logging.NewNop()
		}
		c.logger = logger
	})
	return c.logger
}

// openPipeline assembles the coordination components for commands that need
// more than the artifact store.
func (c *commandContext) openPipeline(ctx context.Context, opts pipeline.Options) (*pipeline.Pipeline, error) {
	if c.pipeline != nil {
		return c.pipeline, nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	p, err := pipeline.Open(ctx, cfg, c.loggerValue(), opts)
	if err != nil {
		return nil, err
	}
	c.pipeline = p
	return p, nil
}

func (c *commandContext) close() {
	if c.pipeline != nil {
		_ = c.pipeline.Close()
		c.pipeline = nil
	}
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

// readItems loads an item document from path, or stdin when path is "-".
func readItems(cmd *cobra.Command, path string) ([]model.Item, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		var expanded string
		expanded, err = config.ExpandPath(path)
		if err == nil {
			data, err = os.ReadFile(expanded)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("read items: %w", err)
	}
	items, _, err := model.DecodeItems(data)
	if err != nil {
		return nil, fmt.Errorf("decode items from %s: %w", path, err)
	}
	return items, nil
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}

func dash(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}
