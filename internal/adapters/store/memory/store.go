package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"signage.relay/internal/core/domain"
	"signage.relay/internal/core/ports"
)

// Store holds every job record, the per-agent FIFO queues and the agent
// registry behind a single mutex. The lock covers one operation at a time
// and is never held across I/O, which keeps every transition atomic:
// a job is either on its queue with status queued, or off it and dispatched,
// never both.
type Store struct {
	mu sync.Mutex

	jobs   map[string]*domain.Job
	queues map[string][]string
	agents map[string]*domain.AgentState

	// 0 means unlimited, matching the historical behaviour.
	maxQueueDepth int
}

func NewStore(maxQueueDepth int) *Store {
	return &Store{
		jobs:          make(map[string]*domain.Job),
		queues:        make(map[string][]string),
		agents:        make(map[string]*domain.AgentState),
		maxQueueDepth: maxQueueDepth,
	}
}

var _ ports.JobStore = (*Store)(nil)
var _ ports.AgentRegistry = (*Store)(nil)

func (s *Store) Enqueue(ctx context.Context, agentID string, kind domain.JobKind, payload map[string]any) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.maxQueueDepth > 0 && len(s.queues[agentID]) >= s.maxQueueDepth {
		return nil, domain.ErrQueueFull
	}

	job := &domain.Job{
		ID:        uuid.NewString(),
		AgentID:   agentID,
		Kind:      kind,
		Payload:   payload,
		Status:    domain.JobStatusQueued,
		CreatedAt: time.Now().UTC(),
	}
	s.jobs[job.ID] = job
	s.queues[agentID] = append(s.queues[agentID], job.ID)

	return job.Clone(), nil
}

func (s *Store) Dequeue(ctx context.Context, agentID string, maxN int) ([]*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	queue := s.queues[agentID]
	take := maxN
	if take > len(queue) {
		take = len(queue)
	}
	if take <= 0 {
		return []*domain.Job{}, nil
	}

	ids := queue[:take]
	rest := queue[take:]
	if len(rest) == 0 {
		delete(s.queues, agentID)
	} else {
		s.queues[agentID] = rest
	}

	now := time.Now().UTC()
	jobs := make([]*domain.Job, 0, len(ids))
	for _, id := range ids {
		job := s.jobs[id]
		if job == nil || job.Status != domain.JobStatusQueued {
			continue
		}
		job.Status = domain.JobStatusDispatched
		t := now
		job.DispatchedAt = &t
		jobs = append(jobs, job.Clone())
	}
	return jobs, nil
}

func (s *Store) RecordResult(ctx context.Context, agentID, jobID string, outcome domain.JobOutcome) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job := s.jobs[jobID]
	if job == nil {
		return nil, domain.ErrJobNotFound
	}
	if job.AgentID != agentID {
		return nil, domain.ErrJobNotOwned
	}
	if job.Status.Terminal() {
		return nil, domain.ErrJobFinished
	}

	now := time.Now().UTC()
	job.FinishedAt = &now
	if outcome.Success {
		job.Status = domain.JobStatusCompleted
		job.Result = outcome.Result
		job.Error = nil
	} else {
		job.Status = domain.JobStatusFailed
		job.Result = nil
		e := outcome.Error
		job.Error = &e
	}
	return job.Clone(), nil
}

func (s *Store) GetJob(ctx context.Context, jobID string) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job := s.jobs[jobID]
	if job == nil {
		return nil, domain.ErrJobNotFound
	}
	return job.Clone(), nil
}

func (s *Store) QueueDepth(ctx context.Context, agentID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queues[agentID])
}

func (s *Store) Heartbeat(ctx context.Context, agentID string, meta domain.AgentMeta) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.agents[agentID] = &domain.AgentState{
		AgentID:         agentID,
		LastSeen:        time.Now().UTC(),
		Version:         meta.Version,
		Hostname:        meta.Hostname,
		LocalBackendURL: meta.LocalBackendURL,
	}
	return nil
}

func (s *Store) Touch(ctx context.Context, agentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.agents[agentID]
	if state == nil {
		state = &domain.AgentState{AgentID: agentID}
		s.agents[agentID] = state
	}
	state.LastSeen = time.Now().UTC()
	return nil
}

func (s *Store) ListAgents(ctx context.Context) ([]*domain.AgentSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshots := make([]*domain.AgentSnapshot, 0, len(s.agents))
	for id, state := range s.agents {
		snapshots = append(snapshots, &domain.AgentSnapshot{
			AgentState: *state,
			QueueDepth: len(s.queues[id]),
		})
	}
	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].AgentID < snapshots[j].AgentID
	})
	return snapshots, nil
}
