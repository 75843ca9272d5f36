package main

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/isdmx/codecheck/api"
	"github.com/isdmx/codecheck/checker"
	"github.com/isdmx/codecheck/config"
	"github.com/isdmx/codecheck/janitor"
	"github.com/isdmx/codecheck/logger"
	"github.com/isdmx/codecheck/mcpserver"
	"github.com/isdmx/codecheck/process"
	"github.com/isdmx/codecheck/sandbox"
	"github.com/isdmx/codecheck/toolchain"
)

func main() {
	app := fx.New(
		fx.Provide(
			config.New,
			logger.NewFromConfig,

			// Host process runner shared by the toolchain and the CLI/local sandboxes
			fx.Annotate(
				func() process.RealRunner { return process.RealRunner{} },
				fx.As(new(process.Runner)),
			),

			janitor.NewFromConfig,
			toolchain.NewDriver,
			sandbox.NewExecutor,
			sandbox.NewSupervisor,
			newChecker,
			fx.Annotate(
				func(c *checker.Checker) *checker.Checker { return c },
				fx.As(new(api.Checker)),
				fx.As(new(mcpserver.Checker)),
			),
			api.NewServer,
			mcpserver.New,
		),

		fx.Invoke(registerLoggerSync, registerJanitor, registerAPI, registerMCP),

		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
	)

	app.Run()
}

func newChecker(cfg *config.Config, j *janitor.Janitor, driver *toolchain.Driver, supervisor *sandbox.Supervisor, log *zap.Logger) *checker.Checker {
	return checker.New(cfg, j, driver, supervisor, log)
}

func registerJanitor(lc fx.Lifecycle, j *janitor.Janitor, log *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if _, err := j.Sweep(ctx); err != nil {
				log.Warn("Initial ephemeral sweep failed", zap.Error(err))
			}
			j.Start()
			return nil
		},
		OnStop: j.Stop,
	})
}

func registerAPI(lc fx.Lifecycle, server *api.Server) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			return server.Start()
		},
		OnStop: server.Stop,
	})
}

func registerMCP(lc fx.Lifecycle, cfg *config.Config, server *mcpserver.MCPServer, log *zap.Logger) {
	if !cfg.MCP.Enabled {
		log.Info("MCP server disabled")
		return
	}
	lc.Append(fx.Hook{
		OnStart: server.Start,
		OnStop:  server.Stop,
	})
}

func registerLoggerSync(lc fx.Lifecycle, log *zap.Logger) {
	lc.Append(fx.StopHook(func() {
		// stderr sync fails with EINVAL on some terminals
		_ = log.Sync()
	}))
}
