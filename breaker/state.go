package breaker

import "time"

// CircuitState is one of CLOSED, OPEN or HALF_OPEN.
type CircuitState string

const (
	StateClosed   CircuitState = "CLOSED"
	StateOpen     CircuitState = "OPEN"
	StateHalfOpen CircuitState = "HALF_OPEN"
)

// State is the persisted snapshot of one breaker.
type State struct {
	Name         string       `json:"name"`
	State        CircuitState `json:"state"`
	FailureCount int          `json:"failure_count"`
	SuccessCount int          `json:"success_count"`
	LastFailure  time.Time    `json:"last_failure,omitzero"`

	// InFlight counts half-open probes that have not reported an outcome.
	InFlight int `json:"in_flight"`
	// ProbeStartedAt is when the most recent probe was admitted.
	ProbeStartedAt time.Time `json:"probe_started_at,omitzero"`

	// Version increases by one on every committed transition.
	Version uint64 `json:"version"`
}

// Initial returns the state of a breaker that has never been used.
func Initial(name string) State {
	return State{Name: name, State: StateClosed}
}

// Config holds the thresholds of one breaker.
type Config struct {
	// FailureThreshold is the number of failures that opens a closed breaker.
	FailureThreshold int
	// RecoveryTimeout is how long an open breaker rejects calls.
	RecoveryTimeout time.Duration
	// SuccessThreshold is the number of probe successes that closes a half-open breaker.
	SuccessThreshold int
	// HalfOpenMaxCalls is the number of probes allowed in flight at once.
	HalfOpenMaxCalls int
}

// DefaultConfig returns the thresholds used for embedding providers: 5 / 300s / 3.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		RecoveryTimeout:  300 * time.Second,
		SuccessThreshold: 3,
		HalfOpenMaxCalls: 1,
	}
}

// LLMConfig returns the thresholds used for completion providers: 3 / 180s / 3.
func LLMConfig() Config {
	return Config{
		FailureThreshold: 3,
		RecoveryTimeout:  180 * time.Second,
		SuccessThreshold: 3,
		HalfOpenMaxCalls: 1,
	}
}

// Validate reports invalid thresholds.
func (c Config) Validate() error {
	switch {
	case c.FailureThreshold < 1:
		return ErrInvalidFailureThreshold
	case c.SuccessThreshold < 1:
		return ErrInvalidSuccessThreshold
	case c.HalfOpenMaxCalls < 1:
		return ErrInvalidHalfOpenMaxCalls
	case c.RecoveryTimeout <= 0:
		return ErrInvalidRecoveryTimeout
	}
	return nil
}
