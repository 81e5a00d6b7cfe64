package main

import (
	"context"
	"time"

	fiber "github.com/gofiber/fiber/v3"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/hyp3rd/histcache"
	"github.com/hyp3rd/histcache/internal/constants"
	"github.com/hyp3rd/histcache/pkg/export"
	"github.com/hyp3rd/histcache/pkg/middleware"
)

const instrumentationName = "github.com/hyp3rd/histcache"

// middlewares returns the service decorators of the shard tasks: call logging
// at debug level and, with telemetry on, OpenTelemetry metrics and spans
// through the global providers.
func (a *app) middlewares(telemetry bool) []histcache.Middleware {
	var mws []histcache.Middleware

	if a.logger.Core().Enabled(zap.DebugLevel) {
		stdLogger := zap.NewStdLog(a.logger.Named("service"))

		mws = append(mws, func(next histcache.Service) histcache.Service {
			return middleware.NewLoggingMiddleware(next, stdLogger)
		})
	}

	if !telemetry {
		return mws
	}

	meter := otel.GetMeterProvider().Meter(instrumentationName)
	tracer := otel.Tracer(instrumentationName)

	mws = append(mws,
		func(next histcache.Service) histcache.Service {
			svc, err := middleware.NewOTelMetricsMiddleware(next, meter)
			if err != nil {
				a.logger.Warn("metrics disabled", zap.Error(err))

				return next
			}

			return svc
		},
		func(next histcache.Service) histcache.Service {
			return middleware.NewOTelTracingMiddleware(next, tracer)
		},
	)

	return mws
}

// exportSnapshot writes the bins of snap to ClickHouse.
func (a *app) exportSnapshot(ctx context.Context, run string, snap *histcache.Snapshot) error {
	exp, err := export.Open(ctx, a.cfg.ClickHouse, a.logger)
	if err != nil {
		return err
	}

	defer closeQuietly(a.logger, "clickhouse", exp.Close)

	_, err = exp.Export(ctx, run, snap)

	return err
}

// serveCollection exposes c over the management HTTP server until ctx is done.
func (a *app) serveCollection(ctx context.Context, c *histcache.Collection) error {
	var opts []histcache.ManagementHTTPOption

	if token := a.cfg.Management.Token; token != "" {
		opts = append(opts, histcache.WithMgmtAuth(func(fiberCtx fiber.Ctx) error {
			if fiberCtx.Get("X-Token") != token {
				return fiber.ErrUnauthorized
			}

			return nil
		}))
	}

	srv := histcache.NewManagementHTTPServer(a.cfg.Management.Addr, opts...)

	err := srv.Start(ctx, c)
	if err != nil {
		return err
	}

	a.logger.Info("management server listening", zap.String("addr", srv.Address()), zap.String("collection", c.ID()))

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), constants.DefaultShutdownTimeout)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

// waitContext bounds ctx by timeout when it is positive.
func waitContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout > 0 {
		return context.WithTimeout(ctx, timeout)
	}

	return context.WithCancel(ctx)
}
