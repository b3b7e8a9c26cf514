package domain

import (
	"maps"
	"time"
)

type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusDispatched JobStatus = "dispatched"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether the status is final. Terminal jobs are immutable.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// JobKind identifies what the agent should do with a job. The coordinator
// treats it as an opaque label; only the agent interprets it.
type JobKind string

const (
	KindDeviceAction JobKind = "device_action"
	KindProbe        JobKind = "probe"
	KindTV           JobKind = "tv"
	KindTest         JobKind = "test"
	KindMDCExecute   JobKind = "mdc_execute"
)

type Job struct {
	ID           string         `json:"job_id"`
	AgentID      string         `json:"agent_id"`
	Kind         JobKind        `json:"kind"`
	Payload      map[string]any `json:"payload"`
	Status       JobStatus      `json:"status"`
	CreatedAt    time.Time      `json:"created_at"`
	DispatchedAt *time.Time     `json:"dispatched_at"`
	FinishedAt   *time.Time     `json:"finished_at"`
	Result       map[string]any `json:"result"`
	Error        *string        `json:"error"`
}

// Clone returns a copy safe to hand out after the store lock is released.
// Payload and Result are copied one level deep; nested values are shared.
func (j *Job) Clone() *Job {
	c := *j
	c.Payload = maps.Clone(j.Payload)
	c.Result = maps.Clone(j.Result)
	if j.DispatchedAt != nil {
		t := *j.DispatchedAt
		c.DispatchedAt = &t
	}
	if j.FinishedAt != nil {
		t := *j.FinishedAt
		c.FinishedAt = &t
	}
	if j.Error != nil {
		e := *j.Error
		c.Error = &e
	}
	return &c
}

// JobOutcome is what an agent reports back for a dispatched job.
// Exactly one of Result/Error is meaningful, selected by Success.
type JobOutcome struct {
	Success bool
	Result  map[string]any
	Error   string
}
