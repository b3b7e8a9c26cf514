package agent

import (
	"context"
	"fmt"
	"time"

	"signage.relay/internal/core/domain"
	"signage.relay/internal/core/logger"
)

const backoffFloor = 2 * time.Second

type RuntimeOptions struct {
	PollInterval      time.Duration
	HeartbeatInterval time.Duration
	MaxJobsPerPoll    int
}

// Runtime is the agent's single-threaded loop: heartbeat on its own cadence,
// poll, execute the batch strictly in order, report each outcome. A slow job
// delays everything behind it; that is the intended behaviour, not a bug to
// parallelize away. The loop itself never exits on error.
type Runtime struct {
	coordinator Coordinator
	executor    *Executor
	meta        domain.AgentMeta
	opts        RuntimeOptions

	lastHeartbeat time.Time
}

func NewRuntime(coordinator Coordinator, executor *Executor, meta domain.AgentMeta, opts RuntimeOptions) *Runtime {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = 15 * time.Second
	}
	if opts.MaxJobsPerPoll <= 0 {
		opts.MaxJobsPerPoll = 5
	}
	return &Runtime{
		coordinator: coordinator,
		executor:    executor,
		meta:        meta,
		opts:        opts,
	}
}

// Run loops until the context is cancelled. Transport failures are logged
// and answered with a backoff sleep, never propagated.
func (r *Runtime) Run(ctx context.Context) error {
	logger.Info("agent runtime starting",
		"hostname", r.meta.Hostname,
		"version", r.meta.Version,
		"local_backend", r.meta.LocalBackendURL,
	)

	for {
		if ctx.Err() != nil {
			logger.Info("agent runtime stopping")
			return nil
		}
		if err := r.tick(ctx); err != nil {
			logger.Warn("loop error", "error", err)
			if !sleepCtx(ctx, r.backoff()) {
				return nil
			}
		}
	}
}

func (r *Runtime) tick(ctx context.Context) error {
	if time.Since(r.lastHeartbeat) >= r.opts.HeartbeatInterval {
		if err := r.coordinator.Heartbeat(ctx, r.meta); err != nil {
			return fmt.Errorf("heartbeat: %w", err)
		}
		r.lastHeartbeat = time.Now()
	}

	jobs, err := r.coordinator.Poll(ctx, r.opts.MaxJobsPerPoll)
	if err != nil {
		return fmt.Errorf("poll: %w", err)
	}

	for _, job := range jobs {
		if err := r.runJob(ctx, job); err != nil {
			return err
		}
	}

	if len(jobs) == 0 {
		sleepCtx(ctx, r.opts.PollInterval)
	}
	return nil
}

// runJob executes one job and reports its outcome. An execution failure is
// part of the job's lifecycle and ends up as a failed result; only a failure
// to deliver the report bubbles up as a transport error.
func (r *Runtime) runJob(ctx context.Context, job *domain.Job) error {
	result, execErr := r.executor.Execute(ctx, job)

	var report ResultReport
	if execErr != nil {
		msg := execErr.Error()
		report = ResultReport{Status: "error", Error: &msg}
		logger.Warn("job failed", "job_id", job.ID, "kind", job.Kind, "error", execErr)
	} else {
		report = ResultReport{Status: "success", Result: result}
		logger.Info("job completed", "job_id", job.ID, "kind", job.Kind)
	}

	if err := r.coordinator.ReportResult(ctx, job.ID, report); err != nil {
		return fmt.Errorf("report result for job %s: %w", job.ID, err)
	}
	return nil
}

func (r *Runtime) backoff() time.Duration {
	if r.opts.PollInterval > backoffFloor {
		return r.opts.PollInterval
	}
	return backoffFloor
}

// sleepCtx sleeps for d or until the context is done, reporting whether the
// context is still live.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
