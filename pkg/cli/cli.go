package cli

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/ctxlog"
	"github.com/urfave/cli/v3"

	"github.com/MulatuMekonnen/EthioKidsLearn-sub001/pkg/cli/config"
	"github.com/MulatuMekonnen/EthioKidsLearn-sub001/pkg/domain/types"
)

// Run runs the CLI application
func Run(ctx context.Context, args []string) error {
	var (
		loggerCfg  config.Logger
		sentryCfg  config.Sentry
		configPath string
		file       = &config.File{}
		logger     *slog.Logger
	)

	flags := append(loggerCfg.Flags(), sentryCfg.Flags()...)
	flags = append(flags, &cli.StringFlag{
		Name:        "config",
		Aliases:     []string{"c"},
		Usage:       "TOML config file supplying defaults for cache and firebase flags",
		Destination: &configPath,
		Sources:     cli.EnvVars(types.EnvPrefix + "CONFIG"),
	})

	app := &cli.Command{
		Name:    types.AppName,
		Usage:   "Offline cache of learning content and media",
		Version: types.Version,
		Flags:   flags,
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			var err error
			logger, err = loggerCfg.Configure()
			if err != nil {
				return nil, err
			}

			slog.SetDefault(logger)
			ctx = ctxlog.With(ctx, logger)

			if configPath != "" {
				loaded, err := config.LoadFile(configPath)
				if err != nil {
					return nil, err
				}
				*file = *loaded
				logger.Debug("Loaded config file", "path", configPath)
			}

			if err := sentryCfg.Configure(); err != nil {
				return nil, err
			}
			logger.Debug("Error reporting configured", "sentry", sentryCfg)
			return ctx, nil
		},
		After: func(ctx context.Context, c *cli.Command) error {
			sentryCfg.Flush()
			return loggerCfg.Close()
		},
		Commands: []*cli.Command{
			cmdServe(file),
			cmdDownload(file),
			cmdRemove(file),
			cmdList(file),
			cmdShow(file),
			cmdVerify(file),
		},
	}

	if err := app.Run(ctx, args); err != nil {
		if logger == nil {
			logger = slog.Default()
		}
		logger.Error("CLI execution failed", slog.Any("error", err))
		return err
	}

	return nil
}
