package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	robfig "github.com/robfig/cron/v3"

	"github.com/angelmondragon/marketplace-backend/pkg/logger"
)

// DefaultSchedule runs every five minutes, on the minute.
const DefaultSchedule = "0 */5 * * * *"

var scheduleParser = robfig.NewParser(
	robfig.Second | robfig.Minute | robfig.Hour | robfig.Dom | robfig.Month | robfig.Dow | robfig.Descriptor,
)

// ParseSchedule parses a six-field cron expression (seconds first) or a descriptor like @hourly.
func ParseSchedule(expr string) (robfig.Schedule, error) {
	if expr == "" {
		expr = DefaultSchedule
	}
	schedule, err := scheduleParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("parse cron schedule %q: %w", expr, err)
	}
	return schedule, nil
}

type jobObserver interface {
	ObserveRun(job string, duration time.Duration, err error)
}

type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  jobObserver
	Schedule string
}

// Service runs every registered job once per schedule tick, under the lock.
type Service struct {
	logg     *logger.Logger
	jobs     []Job
	lock     Lock
	metrics  jobObserver
	schedule robfig.Schedule
	now      func() time.Time
}

// CycleReport summarises one locked cycle.
type CycleReport struct {
	Skipped bool
	Ran     int
	Failed  []string
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	if params.Lock == nil {
		return nil, errors.New("lock required")
	}
	schedule, err := ParseSchedule(params.Schedule)
	if err != nil {
		return nil, err
	}
	var jobs []Job
	if params.Registry != nil {
		jobs = params.Registry.Jobs()
	}
	return &Service{
		logg:     params.Logger,
		jobs:     jobs,
		lock:     params.Lock,
		metrics:  params.Metrics,
		schedule: schedule,
		now:      time.Now,
	}, nil
}

// Run executes a cycle immediately, then one per schedule tick until ctx ends.
func (s *Service) Run(ctx context.Context) error {
	for {
		if _, err := s.RunOnce(ctx); err != nil {
			s.logg.Error(ctx, "cron cycle failed", err)
		}

		wait := s.schedule.Next(s.now()).Sub(s.now())
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logg.Info(ctx, "cron service stopping")
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// RunOnce takes the lock and runs every job. A failing job does not stop the
// ones after it; failures are listed in the report.
func (s *Service) RunOnce(ctx context.Context) (CycleReport, error) {
	var report CycleReport
	locked, err := s.lock.Acquire(ctx)
	if err != nil {
		return report, err
	}
	if !locked {
		s.logg.Info(ctx, "cron lock held elsewhere, skipping cycle")
		report.Skipped = true
		return report, nil
	}
	defer func() {
		if err := s.lock.Release(context.WithoutCancel(ctx)); err != nil {
			s.logg.Error(ctx, "cron lock release failed", err)
		}
	}()

	for _, job := range s.jobs {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		report.Ran++
		if err := s.runJob(ctx, job); err != nil {
			report.Failed = append(report.Failed, job.Name())
		}
	}
	return report, nil
}

func (s *Service) runJob(ctx context.Context, job Job) error {
	jobCtx := s.logg.WithField(ctx, "job", job.Name())
	started := time.Now()
	err := job.Run(jobCtx)
	elapsed := time.Since(started)
	if s.metrics != nil {
		s.metrics.ObserveRun(job.Name(), elapsed, err)
	}

	jobCtx = s.logg.WithField(jobCtx, "duration_ms", elapsed.Milliseconds())
	if err != nil {
		s.logg.Error(jobCtx, "cron job failed", err)
		return err
	}
	s.logg.Info(jobCtx, "cron job finished")
	return nil
}
