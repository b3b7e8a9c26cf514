package domain

import "time"

// AgentMeta is the free-form self-description an agent sends with each
// heartbeat. Values are stored as-is.
type AgentMeta struct {
	Version         string `json:"version"`
	Hostname        string `json:"hostname"`
	LocalBackendURL string `json:"local_backend_url"`
}

type AgentState struct {
	AgentID         string    `json:"agent_id"`
	LastSeen        time.Time `json:"last_seen"`
	Version         string    `json:"version"`
	Hostname        string    `json:"hostname"`
	LocalBackendURL string    `json:"local_backend_url"`
}

// AgentSnapshot is an AgentState combined with the derived depth of the
// agent's pending queue. Staleness is for callers to infer from LastSeen.
type AgentSnapshot struct {
	AgentState
	QueueDepth int `json:"queue_depth"`
}
