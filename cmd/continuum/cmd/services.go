package cmd

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/lugondev/go-continuum/internal/guard"
	"github.com/lugondev/go-continuum/internal/metrics"
	"github.com/lugondev/go-continuum/internal/storage"
	_ "github.com/lugondev/go-continuum/internal/storage/mongo"
	_ "github.com/lugondev/go-continuum/internal/storage/postgres"
)

// services are the optional backends of a submitter: history store,
// in-flight guard and metrics.
type services struct {
	repo    storage.Repository
	guard   guard.Guard
	metrics metrics.Metrics
	closers []func() error
}

func newServices(ctx context.Context) (*services, error) {
	svc := &services{}

	cm := storage.NewConnectionManager(&cfg.Database)
	repo, err := cm.Connect(ctx)
	if err != nil {
		return nil, err
	}
	svc.repo = repo
	svc.closers = append(svc.closers, cm.Close)

	g, closeGuard, err := guard.New(cfg.Redis)
	if err != nil {
		_ = svc.Close()
		return nil, err
	}
	svc.guard = g
	svc.closers = append(svc.closers, closeGuard)

	m, err := metrics.New(cfg.Metrics.Backend, cfg.Metrics.Namespace, logger.Named("metrics"))
	if err != nil {
		_ = svc.Close()
		return nil, err
	}
	if err := m.Initialize(ctx); err != nil {
		_ = svc.Close()
		return nil, err
	}
	svc.metrics = m
	svc.closers = append(svc.closers, func() error {
		ctx := context.Background()
		return errors.Join(m.Flush(ctx), m.Shutdown(ctx))
	})

	logger.Debug("services ready",
		zap.String("database", cfg.Database.Type),
		zap.Bool("database_enabled", cfg.Database.Enabled),
		zap.Bool("redis_enabled", cfg.Redis.Enabled),
		zap.String("metrics", cfg.Metrics.Backend))
	return svc, nil
}

// Close releases backends in reverse order of creation.
func (s *services) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	return errors.Join(errs...)
}
