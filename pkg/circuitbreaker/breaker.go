package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

type Config struct {
	FailureThreshold uint32
	SuccessThreshold uint32
	Timeout          time.Duration
	Logger           *zap.Logger
}

// CircuitBreaker trips after FailureThreshold consecutive failures and stays
// open for Timeout. After that a single probe call is let through at a time;
// SuccessThreshold consecutive probe successes close the circuit again.
type CircuitBreaker struct {
	name             string
	failureThreshold uint32
	successThreshold uint32
	timeout          time.Duration
	logger           *zap.Logger

	mu        sync.Mutex
	state     State
	failures  uint32
	successes uint32
	probing   bool
	openedAt  time.Time
}

func NewCircuitBreaker(name string, cfg Config) *CircuitBreaker {
	cb := &CircuitBreaker{
		name:             name,
		failureThreshold: cfg.FailureThreshold,
		successThreshold: cfg.SuccessThreshold,
		timeout:          cfg.Timeout,
		logger:           cfg.Logger,
	}

	if cb.failureThreshold == 0 {
		cb.failureThreshold = 5
	}
	if cb.successThreshold == 0 {
		cb.successThreshold = 2
	}
	if cb.timeout == 0 {
		cb.timeout = 60 * time.Second
	}
	return cb
}

func (cb *CircuitBreaker) Execute(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := cb.beforeRequest(); err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			cb.afterRequest(false)
			panic(r)
		}
	}()

	err := fn()
	cb.afterRequest(err == nil)
	return err
}

func (cb *CircuitBreaker) beforeRequest() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.currentState(time.Now()) {
	case StateOpen:
		return ErrCircuitOpen
	case StateHalfOpen:
		if cb.probing {
			return ErrCircuitOpen
		}
		cb.probing = true
	}
	return nil
}

func (cb *CircuitBreaker) afterRequest(success bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := time.Now()
	state := cb.currentState(now)
	cb.probing = false

	if success {
		cb.failures = 0
		if state == StateHalfOpen {
			cb.successes++
			if cb.successes >= cb.successThreshold {
				cb.setState(StateClosed, now)
			}
		}
		return
	}

	cb.successes = 0
	switch state {
	case StateClosed:
		cb.failures++
		if cb.failures >= cb.failureThreshold {
			cb.setState(StateOpen, now)
		}
	case StateHalfOpen:
		cb.setState(StateOpen, now)
	}
}

// currentState moves an expired open circuit to half-open. Callers hold the
// lock.
func (cb *CircuitBreaker) currentState(now time.Time) State {
	if cb.state == StateOpen && now.Sub(cb.openedAt) >= cb.timeout {
		cb.setState(StateHalfOpen, now)
	}
	return cb.state
}

func (cb *CircuitBreaker) setState(state State, now time.Time) {
	if cb.state == state {
		return
	}

	prev := cb.state
	cb.state = state
	if state == StateOpen {
		cb.openedAt = now
	}

	if cb.logger != nil {
		cb.logger.Info("Circuit breaker state changed",
			zap.String("name", cb.name),
			zap.String("from", prev.String()),
			zap.String("to", state.String()),
			zap.Uint32("failures", cb.failures),
		)
	}

	cb.failures = 0
	cb.successes = 0
	cb.probing = false
}

func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.currentState(time.Now())
}
