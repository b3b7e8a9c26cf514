package domain

import "errors"

var (
	ErrJobNotFound = errors.New("job not found")

	// ErrJobNotOwned means a result was reported by an agent that does not
	// own the job. The stored job is left untouched.
	ErrJobNotOwned = errors.New("job does not belong to this agent")

	// ErrJobFinished means a result was reported for a job already in a
	// terminal state. Terminal jobs are never overwritten.
	ErrJobFinished = errors.New("job already finished")

	ErrQueueFull = errors.New("agent queue is full")
)
