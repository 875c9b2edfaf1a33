package core

import (
	"breadstamp/internal/blob"
	"breadstamp/internal/imagecache"
	"breadstamp/internal/stats"
	"time"

	"go.uber.org/zap"
)

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the structured logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics sets the operation recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithBlobStore sets where photos are kept.
func WithBlobStore(b blob.Store) Option {
	return func(s *Service) {
		if b != nil {
			s.blobs = b
		}
	}
}

// WithImageCache sets the decoded image cache used for thumbnails.
func WithImageCache(c *imagecache.Cache) Option {
	return func(s *Service) {
		if c != nil {
			s.images = c
		}
	}
}

// WithStatsCache sets the statistics cache.
func WithStatsCache(c stats.Cache) Option {
	return func(s *Service) {
		if c != nil {
			s.statsCache = c
		}
	}
}

// WithClock overrides the time source used for achievement stamps.
func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// WithLocation sets the location month and week buckets are computed in.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}
