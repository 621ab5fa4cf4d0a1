package search

import (
	"log"
	"sync"
	"time"
)

// CircuitBreaker stops calling the search engine after repeated failures.
// Once resetTimeout has passed since the last failure one call is let through;
// its outcome decides whether the breaker closes again.
type CircuitBreaker struct {
	failureThreshold int
	resetTimeout     time.Duration

	consecutiveFailures int
	isOpen              bool
	lastFailureTime     time.Time
	skipped             int

	now   func() time.Time
	mutex sync.Mutex
}

// NewCircuitBreaker creates a new circuit breaker
func NewCircuitBreaker(failureThreshold int, resetTimeout time.Duration) *CircuitBreaker {
	if failureThreshold <= 0 {
		failureThreshold = 3
	}
	return &CircuitBreaker{
		failureThreshold: failureThreshold,
		resetTimeout:     resetTimeout,
		now:              time.Now,
	}
}

// RecordSuccess closes the breaker
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	if cb.isOpen {
		log.Printf("[Search] circuit closed after %d skipped call(s)", cb.skipped)
	}
	cb.consecutiveFailures = 0
	cb.isOpen = false
	cb.skipped = 0
}

// RecordFailure opens the breaker once failureThreshold calls failed in a row
func (cb *CircuitBreaker) RecordFailure() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	cb.consecutiveFailures++
	cb.lastFailureTime = cb.now()

	if !cb.isOpen && cb.consecutiveFailures >= cb.failureThreshold {
		cb.isOpen = true
		log.Printf("[Search] circuit open after %d consecutive failures, retry after %v",
			cb.consecutiveFailures, cb.resetTimeout)
	}
}

// CanProceed checks if a call is allowed
func (cb *CircuitBreaker) CanProceed() bool {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	if !cb.isOpen {
		return true
	}
	if cb.now().Sub(cb.lastFailureTime) > cb.resetTimeout {
		// half-open: push lastFailureTime forward so only this call goes through
		cb.lastFailureTime = cb.now()
		return true
	}
	cb.skipped++
	return false
}

// GetStatus returns current circuit breaker status
func (cb *CircuitBreaker) GetStatus() (isOpen bool, consecutiveFailures int, skipped int) {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	return cb.isOpen, cb.consecutiveFailures, cb.skipped
}

// documentRemover is the index write the guard protects
type documentRemover interface {
	RemoveProperty(id string) error
}

// GuardedIndexer drops index writes while the breaker is open. Skipped
// removals are repaired by the next scheduled reindex.
type GuardedIndexer struct {
	next    documentRemover
	breaker *CircuitBreaker
}

func NewGuardedIndexer(next documentRemover, breaker *CircuitBreaker) *GuardedIndexer {
	return &GuardedIndexer{next: next, breaker: breaker}
}

// RemoveProperty forwards to the wrapped index unless the breaker is open
func (g *GuardedIndexer) RemoveProperty(id string) error {
	if !g.breaker.CanProceed() {
		return nil
	}
	if err := g.next.RemoveProperty(id); err != nil {
		g.breaker.RecordFailure()
		return err
	}
	g.breaker.RecordSuccess()
	return nil
}
