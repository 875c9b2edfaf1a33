package main

import (
	"context"
	"errors"
	"fmt"

	"breadstamp/internal/blob"
	"breadstamp/internal/core"
	"breadstamp/internal/imagecache"
	"breadstamp/internal/stats"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// runtime is the wired service graph for one command invocation.
type runtime struct {
	svc     *core.Service
	blobs   blob.Store
	closers []func() error
}

func (r *runtime) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		errs = append(errs, r.closers[i]())
	}
	return errors.Join(errs...)
}

// open builds the service from configuration. reg may be nil when metrics
// are not exported.
func (a *app) open(ctx context.Context, reg prometheus.Registerer) (*runtime, error) {
	loc, err := a.cfg.Location()
	if err != nil {
		return nil, err
	}
	store, err := core.OpenPersistentStore(ctx, a.cfg.Storage, core.NewDefaultRulesEngine())
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	rt := &runtime{closers: []func() error{store.Close}}

	blobs, err := blob.Open(ctx, a.cfg.Blob)
	if err != nil {
		_ = rt.Close()
		return nil, fmt.Errorf("open blob store: %w", err)
	}
	rt.blobs = blobs

	opts := []core.Option{
		core.WithLogger(a.logger),
		core.WithLocation(loc),
		core.WithBlobStore(blobs),
		core.WithImageCache(imagecache.New(a.cfg.ImageCache.MaxEntries, a.cfg.ImageCache.MaxCostBytes)),
	}
	if a.cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     a.cfg.Redis.Addr,
			Password: a.cfg.Redis.Password,
			DB:       a.cfg.Redis.DB,
		})
		rt.closers = append(rt.closers, rdb.Close)
		opts = append(opts, core.WithStatsCache(stats.NewRedisCache(rdb,
			stats.WithRedisPrefix(a.cfg.Redis.Prefix),
			stats.WithRedisTTL(a.cfg.Stats.TTL),
			stats.WithRedisLocation(loc),
			stats.WithRedisLogger(a.logger),
		)))
		a.logger.Debug("stats cache", zap.String("backend", "redis"), zap.String("addr", a.cfg.Redis.Addr))
	} else {
		opts = append(opts, core.WithStatsCache(stats.NewMemoryCache(a.cfg.Stats.TTL, loc)))
	}
	if reg != nil {
		recorder, err := core.NewPrometheusRecorder(reg)
		if err != nil {
			_ = rt.Close()
			return nil, fmt.Errorf("register metrics: %w", err)
		}
		opts = append(opts, core.WithMetrics(recorder))
	}
	rt.svc = core.NewService(store, opts...)
	return rt, nil
}

// withRuntime opens the service graph, runs fn and closes everything.
func (a *app) withRuntime(ctx context.Context, fn func(*runtime) error) (err error) {
	rt, err := a.open(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := rt.Close(); err == nil {
			err = cerr
		}
	}()
	return fn(rt)
}
