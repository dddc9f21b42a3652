package core

// scheduler.go runs the retention sweep that keeps in-memory state bounded.
//
// Parsed jobs expire after the job TTL unless a batch for them is still
// running. Terminal batches expire after the batch TTL; after that their
// status can no longer be polled. Failed rows persisted outside the process
// are left alone.

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// RetentionConfig holds the retention policy. Zero TTLs disable that part
// of the sweep.
type RetentionConfig struct {
	JobTTL   time.Duration
	BatchTTL time.Duration
	Schedule string // standard cron spec or descriptor such as "@every 10m"
}

// forgetter is implemented by failure stores that hold rows in memory.
type forgetter interface {
	Forget(batchID string)
}

// SweepResult counts what one sweep removed.
type SweepResult struct {
	Jobs    int
	Batches int
}

// Sweep evicts expired jobs and batches once.
func (s *Service) Sweep(now time.Time, cfg RetentionConfig) SweepResult {
	var res SweepResult

	if cfg.BatchTTL > 0 {
		evicted := s.tracker.EvictFinished(now.Add(-cfg.BatchTTL))
		if f, ok := s.deps.Failures.(forgetter); ok {
			for _, id := range evicted {
				f.Forget(id)
			}
		}
		res.Batches = len(evicted)
	}

	if cfg.JobTTL > 0 {
		res.Jobs = s.jobs.EvictBefore(now.Add(-cfg.JobTTL), func(jobID string) bool {
			_, running := s.tracker.ActiveBatch(jobID)
			return running
		})
	}
	return res
}

// StartRetentionScheduler schedules Sweep on cfg.Schedule. The returned
// cron must be stopped by the caller; it also stops when ctx is done.
func (s *Service) StartRetentionScheduler(ctx context.Context, cfg RetentionConfig) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(cfg.Schedule, func() {
		start := time.Now()
		res := s.Sweep(start, cfg)
		if res.Jobs > 0 || res.Batches > 0 {
			slog.Info("retention sweep",
				"jobs_evicted", res.Jobs,
				"batches_evicted", res.Batches,
				"duration_ms", time.Since(start).Milliseconds(),
			)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid retention schedule %q: %w", cfg.Schedule, err)
	}

	slog.Info("retention scheduler started",
		"schedule", cfg.Schedule,
		"job_ttl", cfg.JobTTL,
		"batch_ttl", cfg.BatchTTL,
	)
	c.Start()

	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
		slog.Info("retention scheduler stopped")
	}()
	return c, nil
}
