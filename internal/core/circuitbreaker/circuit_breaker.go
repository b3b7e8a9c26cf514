package circuitbreaker

import (
	"errors"
	"time"

	"github.com/sony/gobreaker"

	"signage.relay/internal/core/logger"
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreaker guards the agent's outbound coordinator calls. While the
// circuit is open, calls fail immediately with ErrCircuitOpen and are treated
// as transport failures by the runtime loop.
type CircuitBreaker struct {
	cb *gobreaker.CircuitBreaker
}

func New(name string) *CircuitBreaker {
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				"name", name, "from", from.String(), "to", to.String())
		},
	}

	return &CircuitBreaker{cb: gobreaker.NewCircuitBreaker(settings)}
}

// Execute runs fn behind the breaker.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	_, err := cb.cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrCircuitOpen
	}
	return err
}

// State returns the current state of the circuit breaker
func (cb *CircuitBreaker) State() gobreaker.State {
	return cb.cb.State()
}
