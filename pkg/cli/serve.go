package cli

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v3"

	"github.com/MulatuMekonnen/EthioKidsLearn-sub001/pkg/cli/config"
	controller "github.com/MulatuMekonnen/EthioKidsLearn-sub001/pkg/controller/http"
	"github.com/MulatuMekonnen/EthioKidsLearn-sub001/pkg/infra/metrics"
	"github.com/MulatuMekonnen/EthioKidsLearn-sub001/pkg/usecase"
)

func cmdServe(file *config.File) *cli.Command {
	var (
		serverCfg config.Server
		deps      cacheDeps
	)

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start HTTP server",
		Flags:   append(serverCfg.Flags(), deps.flags()...),
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := ctxlog.From(ctx)

			logger.Info("Starting offline cache server",
				slog.String("addr", serverCfg.Addr),
			)

			var (
				cacheOpts  []usecase.Option
				serverOpts = []controller.Option{controller.WithAddr(serverCfg.Addr)}
			)
			if serverCfg.Metrics {
				reg := prometheus.NewRegistry()
				reg.MustRegister(
					collectors.NewGoCollector(),
					collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
				)
				observer, err := metrics.NewPrometheus(reg)
				if err != nil {
					return err
				}
				cacheOpts = append(cacheOpts, usecase.WithObserver(observer))
				serverOpts = append(serverOpts,
					controller.WithMetricsHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
			}

			rt, err := deps.open(ctx, c, file, cacheOpts...)
			if err != nil {
				return err
			}
			defer rt.Close(ctx)

			rt.cache.EnsureStorageReady(ctx)
			if rt.records != nil {
				serverOpts = append(serverOpts, controller.WithRecordStore(rt.records))
			}

			server, err := controller.NewServer(ctx, rt.cache, serverOpts...)
			if err != nil {
				return goerr.Wrap(err, "failed to create HTTP server")
			}

			// Start server in goroutine
			go func() {
				logger.Info("HTTP server starting", slog.String("addr", serverCfg.Addr))
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Error("HTTP server error", slog.Any("error", err))
				}
			}()

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

			select {
			case <-ctx.Done():
				logger.Info("Context cancelled, shutting down...")
			case sig := <-sigChan:
				logger.Info("Signal received, shutting down...", slog.Any("signal", sig))
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := server.Shutdown(shutdownCtx); err != nil {
				return goerr.Wrap(err, "failed to shutdown server gracefully")
			}

			logger.Info("Server shutdown complete")
			return nil
		},
	}
}
