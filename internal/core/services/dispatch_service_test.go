package services

import (
	"context"
	"testing"

	"signage.relay/internal/core/domain"
)

type fakeJobStore struct {
	enqueuedKind domain.JobKind
	dequeueMaxN  int
	dequeueJobs  []*domain.Job
}

func (f *fakeJobStore) Enqueue(ctx context.Context, agentID string, kind domain.JobKind, payload map[string]any) (*domain.Job, error) {
	f.enqueuedKind = kind
	return &domain.Job{ID: "job-1", AgentID: agentID, Kind: kind, Status: domain.JobStatusQueued}, nil
}

func (f *fakeJobStore) Dequeue(ctx context.Context, agentID string, maxN int) ([]*domain.Job, error) {
	f.dequeueMaxN = maxN
	return f.dequeueJobs, nil
}

func (f *fakeJobStore) RecordResult(ctx context.Context, agentID, jobID string, outcome domain.JobOutcome) (*domain.Job, error) {
	return &domain.Job{ID: jobID, AgentID: agentID, Status: domain.JobStatusCompleted}, nil
}

func (f *fakeJobStore) GetJob(ctx context.Context, jobID string) (*domain.Job, error) {
	return nil, domain.ErrJobNotFound
}

func (f *fakeJobStore) QueueDepth(ctx context.Context, agentID string) int { return 0 }

type fakeRegistry struct {
	touched    []string
	heartbeats []string
}

func (f *fakeRegistry) Heartbeat(ctx context.Context, agentID string, meta domain.AgentMeta) error {
	f.heartbeats = append(f.heartbeats, agentID)
	return nil
}

func (f *fakeRegistry) Touch(ctx context.Context, agentID string) error {
	f.touched = append(f.touched, agentID)
	return nil
}

func (f *fakeRegistry) ListAgents(ctx context.Context) ([]*domain.AgentSnapshot, error) {
	return nil, nil
}

type fakeSink struct {
	events []string
}

func (f *fakeSink) Publish(eventType string, payload any) {
	f.events = append(f.events, eventType)
}

func TestDispatchService_EnqueueNormalizesKind(t *testing.T) {
	store := &fakeJobStore{}
	svc := NewDispatchService(store, &fakeRegistry{}, nil)

	job, err := svc.Enqueue(context.Background(), " site-7 ", "  TV ", map[string]any{})
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if store.enqueuedKind != domain.KindTV {
		t.Errorf("kind not normalized: %q", store.enqueuedKind)
	}
	if job.AgentID != "site-7" {
		t.Errorf("agent_id not trimmed: %q", job.AgentID)
	}
}

func TestDispatchService_EnqueueValidation(t *testing.T) {
	svc := NewDispatchService(&fakeJobStore{}, &fakeRegistry{}, nil)

	if _, err := svc.Enqueue(context.Background(), "", "tv", nil); err == nil {
		t.Error("expected error for empty agent_id")
	}
	if _, err := svc.Enqueue(context.Background(), "site-7", "   ", nil); err == nil {
		t.Error("expected error for blank kind")
	}
}

func TestDispatchService_PollClampsMaxJobs(t *testing.T) {
	tests := []struct {
		name     string
		maxJobs  int
		expected int
	}{
		{"zero clamps to one", 0, 1},
		{"negative clamps to one", -3, 1},
		{"within range passes through", 7, 7},
		{"huge clamps to ceiling", 1000, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeJobStore{}
			svc := NewDispatchService(store, &fakeRegistry{}, nil)
			if _, err := svc.Poll(context.Background(), "site-7", tt.maxJobs); err != nil {
				t.Fatalf("Poll failed: %v", err)
			}
			if store.dequeueMaxN != tt.expected {
				t.Errorf("expected maxN %d, got %d", tt.expected, store.dequeueMaxN)
			}
		})
	}
}

func TestDispatchService_PollTouchesAgent(t *testing.T) {
	registry := &fakeRegistry{}
	svc := NewDispatchService(&fakeJobStore{}, registry, nil)

	if _, err := svc.Poll(context.Background(), "site-7", 5); err != nil {
		t.Fatalf("Poll failed: %v", err)
	}
	if len(registry.touched) != 1 || registry.touched[0] != "site-7" {
		t.Errorf("expected last_seen refresh for site-7, got %v", registry.touched)
	}
}

func TestDispatchService_PublishesLifecycleEvents(t *testing.T) {
	store := &fakeJobStore{
		dequeueJobs: []*domain.Job{{ID: "job-1", Status: domain.JobStatusDispatched}},
	}
	sink := &fakeSink{}
	svc := NewDispatchService(store, &fakeRegistry{}, sink)
	ctx := context.Background()

	if _, err := svc.Enqueue(ctx, "site-7", "tv", map[string]any{}); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if _, err := svc.Poll(ctx, "site-7", 5); err != nil {
		t.Fatalf("Poll failed: %v", err)
	}
	if _, err := svc.RecordResult(ctx, "site-7", "job-1", domain.JobOutcome{Success: true}); err != nil {
		t.Fatalf("RecordResult failed: %v", err)
	}
	if err := svc.Heartbeat(ctx, "site-7", domain.AgentMeta{}); err != nil {
		t.Fatalf("Heartbeat failed: %v", err)
	}

	expected := []string{EventJobQueued, EventJobDispatched, EventJobFinished, EventAgentHeartbeat}
	if len(sink.events) != len(expected) {
		t.Fatalf("expected %d events, got %v", len(expected), sink.events)
	}
	for i, e := range expected {
		if sink.events[i] != e {
			t.Errorf("event %d: expected %s, got %s", i, e, sink.events[i])
		}
	}
}
