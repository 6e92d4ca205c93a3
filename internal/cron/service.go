package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/storefront-payments/pkg/logger"
	"github.com/angelmondragon/storefront-payments/pkg/metrics"
)

const (
	defaultInterval   = 5 * time.Minute
	defaultJobTimeout = 2 * time.Minute
)

// ServiceParams configure the cron service.
type ServiceParams struct {
	Logger     *logger.Logger
	Registry   *Registry
	Lock       Lock
	Metrics    *metrics.CronJobMetrics
	Interval   time.Duration
	JobTimeout time.Duration
}

// Service runs the registered reconcile jobs on a fixed cadence. Only the
// instance holding the lock runs a cycle.
type Service struct {
	logg       *logger.Logger
	registry   *Registry
	lock       Lock
	metrics    *metrics.CronJobMetrics
	interval   time.Duration
	jobTimeout time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Lock == nil {
		return nil, fmt.Errorf("lock required")
	}
	registry := params.Registry
	if registry == nil {
		registry = &Registry{}
	}
	interval := params.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	jobTimeout := params.JobTimeout
	if jobTimeout <= 0 {
		jobTimeout = defaultJobTimeout
	}
	return &Service{
		logg:       params.Logger,
		registry:   registry,
		lock:       params.Lock,
		metrics:    params.Metrics,
		interval:   interval,
		jobTimeout: jobTimeout,
	}, nil
}

// Run executes a cycle immediately and then on every tick until ctx ends.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.tick(ctx)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron service context canceled")
			return ctx.Err()
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// RunOnce executes a single locked cycle.
func (s *Service) RunOnce(ctx context.Context) error {
	return s.runCycle(ctx)
}

func (s *Service) tick(ctx context.Context) {
	if err := s.runCycle(ctx); err != nil {
		s.logg.Error(ctx, "scheduled run failed", err)
	}
}

func (s *Service) runCycle(ctx context.Context) error {
	locked, err := s.lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("lock acquire: %w", err)
	}
	if !locked {
		s.logg.Info(ctx, "another cron instance holds the lock; skipping cycle")
		return nil
	}
	defer func() {
		if relErr := s.lock.Release(context.WithoutCancel(ctx)); relErr != nil {
			s.logg.Error(ctx, "failed to release cron lock", relErr)
		}
	}()

	jobs := s.registry.Jobs()
	cycleCtx := s.logg.WithField(ctx, "jobs", len(jobs))
	s.logg.Info(cycleCtx, "scheduled run starting")
	failed := 0
	for _, job := range jobs {
		if ctx.Err() != nil {
			break
		}
		if !s.runJob(ctx, job) {
			failed++
		}
	}
	cycleCtx = s.logg.WithField(cycleCtx, "failed", failed)
	s.logg.Info(cycleCtx, "scheduled run complete")
	return nil
}

func (s *Service) runJob(ctx context.Context, job Job) bool {
	jobCtx := s.logg.WithFields(ctx, map[string]any{
		"job":   job.Name(),
		"event": "cron.job",
	})
	runCtx, cancel := context.WithTimeout(jobCtx, s.jobTimeout)
	defer cancel()

	s.logg.Info(jobCtx, "job start")
	start := time.Now()
	err := job.Run(runCtx)
	duration := time.Since(start)
	jobCtx = s.logg.WithField(jobCtx, "duration_ms", duration.Milliseconds())
	if s.metrics != nil {
		s.metrics.ObserveDuration(job.Name(), duration)
	}
	if err != nil {
		s.logg.Error(jobCtx, "job failed", err)
		if s.metrics != nil {
			s.metrics.IncFailure(job.Name())
		}
		return false
	}
	s.logg.Info(jobCtx, "job completed")
	if s.metrics != nil {
		s.metrics.IncSuccess(job.Name())
	}
	return true
}
