package services

import (
	"context"
	"time"

	"signage.relay/internal/core/logger"
	"signage.relay/internal/core/ports"
)

const (
	statsInterval = 30 * time.Second

	// An agent that has not been seen for this long is logged as stale.
	// Nothing is evicted; last_seen stays visible to submitters.
	agentStaleAfter = 90 * time.Second
)

// StatsRecorder receives the derived registry gauges. The Prometheus
// implementation lives in the HTTP adapter.
type StatsRecorder interface {
	SetQueueDepth(agentID string, depth int)
	SetKnownAgents(count int)
}

// StatsMonitor periodically snapshots the agent registry to refresh gauges
// and flag agents that stopped heartbeating.
type StatsMonitor struct {
	agents   ports.AgentRegistry
	recorder StatsRecorder
}

func NewStatsMonitor(agents ports.AgentRegistry, recorder StatsRecorder) *StatsMonitor {
	return &StatsMonitor{agents: agents, recorder: recorder}
}

func (m *StatsMonitor) Start(ctx context.Context) {
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.refresh(ctx)
		}
	}
}

func (m *StatsMonitor) refresh(ctx context.Context) {
	snapshots, err := m.agents.ListAgents(ctx)
	if err != nil {
		logger.Warn("stats refresh failed", "error", err)
		return
	}

	now := time.Now()
	for _, snap := range snapshots {
		if m.recorder != nil {
			m.recorder.SetQueueDepth(snap.AgentID, snap.QueueDepth)
		}
		if age := now.Sub(snap.LastSeen); age > agentStaleAfter {
			logger.Warn("agent stale",
				"agent_id", snap.AgentID,
				"last_seen", snap.LastSeen,
				"queue_depth", snap.QueueDepth,
			)
		}
	}
	if m.recorder != nil {
		m.recorder.SetKnownAgents(len(snapshots))
	}
}
