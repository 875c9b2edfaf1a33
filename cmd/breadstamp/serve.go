package main

import (
	"context"
	"time"

	"breadstamp/internal/adapters/export"
	"breadstamp/internal/adapters/httpapi"
	"breadstamp/internal/sampledata"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func (a *app) serveCmd() *cobra.Command {
	var seed bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the REST API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context(), seed)
		},
	}
	cmd.Flags().BoolVar(&seed, "seed", false, "insert sample data when the stamp book is empty")
	return cmd
}

func (a *app) serve(ctx context.Context, seed bool) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rt, err := a.open(ctx, reg)
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	if seed {
		inserted, err := sampledata.Seed(ctx, rt.svc, rt.svc.Now())
		if err != nil {
			return err
		}
		a.logger.Info("sample data", zap.Bool("inserted", inserted))
	}

	worker := export.NewWorker(rt.svc, rt.blobs, a.logger.Named("export"))
	worker.Start()
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := worker.Stop(stopCtx); err != nil {
			a.logger.Warn("export worker stop", zap.Error(err))
		}
	}()

	opts := []httpapi.Option{
		httpapi.WithLogger(a.logger.Named("http")),
		httpapi.WithPrometheus(reg, reg),
		httpapi.WithExports(worker),
	}
	var limiter *httpapi.RateLimiter
	if a.cfg.HTTP.RateLimit > 0 {
		limiter = httpapi.NewRateLimiter(a.cfg.HTTP.RateLimit, a.cfg.HTTP.RateBurst, httpapi.WithIdleTTL(a.cfg.HTTP.ClientIdleTTL))
		opts = append(opts, httpapi.WithRateLimiter(limiter))
	}
	srv, err := httpapi.New(rt.svc, opts...)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("listening", zap.String("addr", a.cfg.HTTP.Addr), zap.String("storage", a.cfg.Storage.Driver), zap.String("blob", string(rt.blobs.Driver())))
		return srv.ListenAndServe(gctx, httpapi.Config{
			Addr:            a.cfg.HTTP.Addr,
			ReadTimeout:     a.cfg.HTTP.ReadTimeout,
			WriteTimeout:    a.cfg.HTTP.WriteTimeout,
			ShutdownTimeout: a.cfg.HTTP.ShutdownTimeout,
		})
	})
	if limiter != nil {
		g.Go(func() error {
			limiter.RunJanitor(gctx)
			return nil
		})
	}
	started := time.Now()
	err = g.Wait()
	a.logger.Info("stopped", zap.Duration("uptime", time.Since(started)))
	return err
}
