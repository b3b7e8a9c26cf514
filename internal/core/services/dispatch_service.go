package services

import (
	"context"
	"fmt"
	"strings"

	"signage.relay/internal/core/domain"
	"signage.relay/internal/core/ports"
)

const (
	DefaultMaxJobsPerPoll = 5
	maxJobsPerPollCeiling = 50
)

// Event types published to the sink.
const (
	EventJobQueued      = "job_queued"
	EventJobDispatched  = "job_dispatched"
	EventJobFinished    = "job_finished"
	EventAgentHeartbeat = "agent_heartbeat"
)

// DispatchService mediates every submitter and agent operation against the
// job store and agent registry, and emits lifecycle events as a side effect.
type DispatchService struct {
	jobs   ports.JobStore
	agents ports.AgentRegistry
	events ports.EventSink
}

func NewDispatchService(jobs ports.JobStore, agents ports.AgentRegistry, events ports.EventSink) *DispatchService {
	return &DispatchService{
		jobs:   jobs,
		agents: agents,
		events: events,
	}
}

// Enqueue creates a queued job for the target agent. The kind is normalized
// to lower case but otherwise opaque; the agent decides whether it can run it.
func (s *DispatchService) Enqueue(ctx context.Context, agentID, kind string, payload map[string]any) (*domain.Job, error) {
	agentID = strings.TrimSpace(agentID)
	kind = strings.ToLower(strings.TrimSpace(kind))
	if agentID == "" {
		return nil, fmt.Errorf("agent_id is required")
	}
	if kind == "" {
		return nil, fmt.Errorf("kind is required")
	}

	job, err := s.jobs.Enqueue(ctx, agentID, domain.JobKind(kind), payload)
	if err != nil {
		return nil, err
	}
	s.publish(EventJobQueued, job)
	return job, nil
}

// Poll dequeues up to maxJobs jobs for the agent, clamped to [1,50], and
// refreshes the agent's last_seen. An idle agent gets an empty slice.
func (s *DispatchService) Poll(ctx context.Context, agentID string, maxJobs int) ([]*domain.Job, error) {
	if maxJobs < 1 {
		maxJobs = 1
	}
	if maxJobs > maxJobsPerPollCeiling {
		maxJobs = maxJobsPerPollCeiling
	}

	jobs, err := s.jobs.Dequeue(ctx, agentID, maxJobs)
	if err != nil {
		return nil, err
	}
	if err := s.agents.Touch(ctx, agentID); err != nil {
		return nil, err
	}
	for _, job := range jobs {
		s.publish(EventJobDispatched, job)
	}
	return jobs, nil
}

// RecordResult finalizes a dispatched job with the outcome the agent reported.
func (s *DispatchService) RecordResult(ctx context.Context, agentID, jobID string, outcome domain.JobOutcome) (*domain.Job, error) {
	job, err := s.jobs.RecordResult(ctx, agentID, jobID, outcome)
	if err != nil {
		return nil, err
	}
	if err := s.agents.Touch(ctx, agentID); err != nil {
		return nil, err
	}
	s.publish(EventJobFinished, job)
	return job, nil
}

func (s *DispatchService) GetJob(ctx context.Context, jobID string) (*domain.Job, error) {
	return s.jobs.GetJob(ctx, jobID)
}

func (s *DispatchService) Heartbeat(ctx context.Context, agentID string, meta domain.AgentMeta) error {
	if err := s.agents.Heartbeat(ctx, agentID, meta); err != nil {
		return err
	}
	s.publish(EventAgentHeartbeat, map[string]string{"agent_id": agentID})
	return nil
}

func (s *DispatchService) ListAgents(ctx context.Context) ([]*domain.AgentSnapshot, error) {
	return s.agents.ListAgents(ctx)
}

func (s *DispatchService) publish(eventType string, payload any) {
	if s.events != nil {
		s.events.Publish(eventType, payload)
	}
}
