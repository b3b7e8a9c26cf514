package ports

import (
	"context"

	"signage.relay/internal/core/domain"
)

// JobStore owns all job records plus one FIFO queue of pending job ids per
// agent. Every method is atomic with respect to the others.
type JobStore interface {
	// Enqueue creates a queued job and appends it to the agent's queue.
	// Unknown agents are allowed; their queue is created lazily.
	Enqueue(ctx context.Context, agentID string, kind domain.JobKind, payload map[string]any) (*domain.Job, error)

	// Dequeue pops up to maxN job ids from the head of the agent's queue and
	// flips each job to dispatched. An empty or missing queue yields an empty
	// slice, not an error.
	Dequeue(ctx context.Context, agentID string, maxN int) ([]*domain.Job, error)

	// RecordResult moves a dispatched job to its terminal state. Fails with
	// domain.ErrJobNotOwned if agentID does not own the job and
	// domain.ErrJobFinished if the job is already terminal.
	RecordResult(ctx context.Context, agentID, jobID string, outcome domain.JobOutcome) (*domain.Job, error)

	GetJob(ctx context.Context, jobID string) (*domain.Job, error)

	QueueDepth(ctx context.Context, agentID string) int
}

// AgentRegistry owns last-seen and self-reported metadata per agent.
type AgentRegistry interface {
	// Heartbeat upserts the agent's state. Never touches queue contents.
	Heartbeat(ctx context.Context, agentID string, meta domain.AgentMeta) error

	// Touch refreshes only last_seen, creating the entry if needed.
	Touch(ctx context.Context, agentID string) error

	// ListAgents returns registry entries with derived queue depth, sorted
	// by agent id.
	ListAgents(ctx context.Context) ([]*domain.AgentSnapshot, error)
}

// LocalExecutor is the agent's only contact with device-protocol specifics.
// It talks to the local backend next to the hardware.
type LocalExecutor interface {
	DeviceAction(ctx context.Context, action string, payload map[string]any) (map[string]any, error)
	AutoProbe(ctx context.Context, ip string) (map[string]any, error)
}

// EventSink receives coordinator lifecycle events for live consumers.
type EventSink interface {
	Publish(eventType string, payload any)
}
