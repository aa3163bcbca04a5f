package client

import (
	"sync"
	"time"

	"github.com/ComUnity/signup-risk-gate/internal/util/logger"
)

const (
	breakerClosed   = "closed"
	breakerOpen     = "open"
	breakerHalfOpen = "half-open"
)

// CircuitBreakerConfig mirrors config.CircuitBreakerConfig so the client
// package stays free of the config package.
type CircuitBreakerConfig struct {
	Enabled      bool
	FailureRatio float64
	RecoveryTime time.Duration
	MinRequests  uint64
}

// circuitBreaker counts calls in tumbling windows of minRequests calls while
// closed. A window whose failure ratio reaches failureRatio opens the circuit;
// any other window is discarded. After recoveryTime it lets calls through
// half-open; one failure re-opens it, minRequests/2 successes close it.
type circuitBreaker struct {
	mu           sync.Mutex
	state        string
	failures     uint64
	successes    uint64
	total        uint64
	lastFailure  time.Time
	failureRatio float64
	recoveryTime time.Duration
	minRequests  uint64
	now          func() time.Time
}

func newCircuitBreaker(cfg CircuitBreakerConfig) *circuitBreaker {
	if !cfg.Enabled {
		return nil
	}
	return &circuitBreaker{
		state:        breakerClosed,
		failureRatio: cfg.FailureRatio,
		recoveryTime: cfg.RecoveryTime,
		minRequests:  cfg.MinRequests,
		now:          time.Now,
	}
}

// allow reports whether a call may proceed. A nil breaker always allows.
func (cb *circuitBreaker) allow() bool {
	if cb == nil {
		return true
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == breakerOpen {
		if cb.now().Sub(cb.lastFailure) <= cb.recoveryTime {
			return false
		}
		cb.state = breakerHalfOpen
		cb.reset()
		logger.Warnf("[FraudDetector] circuit moving to half-open state")
	}
	return true
}

func (cb *circuitBreaker) recordFailure() {
	if cb == nil {
		return
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.total++
	cb.lastFailure = cb.now()

	if cb.state == breakerHalfOpen {
		cb.state = breakerOpen
		logger.Errorf("[FraudDetector] circuit re-opened after failure")
		return
	}
	cb.closeWindow()
}

func (cb *circuitBreaker) recordSuccess() {
	if cb == nil {
		return
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.successes++
	cb.total++

	if cb.state == breakerHalfOpen {
		if cb.successes >= max(cb.minRequests/2, 1) {
			cb.state = breakerClosed
			cb.reset()
			logger.Warnf("[FraudDetector] circuit closed after successful calls")
		}
		return
	}
	cb.closeWindow()
}

// closeWindow evaluates a full window while closed. Caller holds mu.
func (cb *circuitBreaker) closeWindow() {
	if cb.state != breakerClosed || cb.total < max(cb.minRequests, 1) {
		return
	}
	ratio := float64(cb.failures) / float64(cb.total)
	if ratio >= cb.failureRatio {
		cb.state = breakerOpen
		logger.Errorf("[FraudDetector] circuit opened due to high failure ratio: %.2f", ratio)
		return
	}
	cb.reset()
}

func (cb *circuitBreaker) reset() {
	cb.failures = 0
	cb.successes = 0
	cb.total = 0
}

func (cb *circuitBreaker) currentState() string {
	if cb == nil {
		return "disabled"
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}
