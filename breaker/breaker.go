// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package breaker

import (
	"fmt"
	"log/slog"
	"time"
)

// maxCASAttempts bounds how often a transition is recomputed after losing a race.
const maxCASAttempts = 64

// Breaker guards one named dependency.
// It is safe for concurrent use; all coordination happens in the Store.
type Breaker struct {
	name   string
	config Config
	store  Store
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Breaker.
type Option func(*Breaker) error

// WithConfig sets the thresholds.
func WithConfig(cfg Config) Option {
	return func(b *Breaker) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		b.config = cfg
		return nil
	}
}

// WithStore sets the state store. Defaults to a private MemoryStore.
func WithStore(store Store) Option {
	return func(b *Breaker) error {
		b.store = store
		return nil
	}
}

// WithClock sets the time source. Defaults to time.Now.
func WithClock(now func() time.Time) Option {
	return func(b *Breaker) error {
		b.now = now
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Breaker) error {
		b.logger = logger
		return nil
	}
}

// New creates a breaker for name with DefaultConfig unless overridden.
func New(name string, opts ...Option) (*Breaker, error) {
	if name == "" {
		return nil, ErrNameRequired
	}
	b := &Breaker{
		name:   name,
		config: DefaultConfig(),
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(b); err != nil {
			return nil, err
		}
	}
	if b.store == nil {
		b.store = NewMemoryStore()
	}
	b.logger = b.logger.With("component", "circuit-breaker", "breaker", name)
	return b, nil
}

// Name returns the guarded dependency's name.
func (b *Breaker) Name() string {
	return b.name
}

// Config returns the breaker's thresholds.
func (b *Breaker) Config() Config {
	return b.config
}

// CanExecute reports whether a call may proceed.
// Admitting a half-open probe reserves a probe slot until OnSuccess or
// OnFailure is called or RecoveryTimeout passes.
func (b *Breaker) CanExecute() bool {
	allowed := false
	_, err := b.update(func(s *State, now time.Time) bool {
		switch s.State {
		case StateOpen:
			if now.Sub(s.LastFailure) <= b.config.RecoveryTimeout {
				allowed = false
				return false
			}
			b.logger.Info("recovery timeout elapsed, moving to HALF_OPEN")
			s.State = StateHalfOpen
			s.SuccessCount = 0
			s.InFlight = 1
			s.ProbeStartedAt = now
			allowed = true
			return true

		case StateHalfOpen:
			if s.InFlight > 0 && now.Sub(s.ProbeStartedAt) > b.config.RecoveryTimeout {
				b.logger.Warn("half-open probe expired without outcome", "in_flight", s.InFlight)
				s.InFlight = 0
			}
			if s.InFlight >= b.config.HalfOpenMaxCalls {
				allowed = false
				return false
			}
			s.InFlight++
			s.ProbeStartedAt = now
			allowed = true
			return true

		default:
			allowed = true
			return false
		}
	})
	if err != nil {
		b.logger.Error("breaker store unavailable, allowing call", "err", err)
		return true
	}
	return allowed
}

// OnSuccess records a successful call.
func (b *Breaker) OnSuccess() {
	_, err := b.update(func(s *State, _ time.Time) bool {
		switch s.State {
		case StateHalfOpen:
			s.SuccessCount++
			if s.InFlight > 0 {
				s.InFlight--
			}
			if s.SuccessCount >= b.config.SuccessThreshold {
				b.logger.Info("success threshold reached, moving to CLOSED")
				s.State = StateClosed
				s.FailureCount = 0
				s.SuccessCount = 0
				s.InFlight = 0
			}
			return true

		case StateOpen:
			return false

		default:
			if s.FailureCount == 0 {
				return false
			}
			s.FailureCount--
			return true
		}
	})
	if err != nil {
		b.logger.Error("failed to record success", "err", err)
	}
}

// OnFailure records a failed call.
func (b *Breaker) OnFailure() {
	_, err := b.update(func(s *State, now time.Time) bool {
		s.FailureCount++
		s.LastFailure = now

		switch s.State {
		case StateHalfOpen:
			b.logger.Warn("probe failed, moving back to OPEN")
			s.State = StateOpen
			s.SuccessCount = 0
			s.InFlight = 0

		case StateOpen:

		default:
			if s.FailureCount >= b.config.FailureThreshold {
				b.logger.Warn("failure threshold reached, moving to OPEN", "failures", s.FailureCount)
				s.State = StateOpen
				s.SuccessCount = 0
			}
		}
		return true
	})
	if err != nil {
		b.logger.Error("failed to record failure", "err", err)
	}
}

// Release gives back a half-open probe slot reserved by CanExecute without
// recording an outcome. Callers use it when their own context ended before
// the dependency answered.
func (b *Breaker) Release() {
	_, err := b.update(func(s *State, _ time.Time) bool {
		if s.State != StateHalfOpen || s.InFlight == 0 {
			return false
		}
		s.InFlight--
		return true
	})
	if err != nil {
		b.logger.Error("failed to release probe", "err", err)
	}
}

// Snapshot returns the stored state. On store errors it returns the initial state.
func (b *Breaker) Snapshot() State {
	s, err := b.store.Load(b.name)
	if err != nil {
		b.logger.Error("failed to load breaker state", "err", err)
		return Initial(b.name)
	}
	return normalize(b.name, s)
}

// update applies fn to the current state and commits the result.
// fn reports whether it changed the state; unchanged states are not written.
func (b *Breaker) update(fn func(s *State, now time.Time) bool) (State, error) {
	for range maxCASAttempts {
		current, err := b.store.Load(b.name)
		if err != nil {
			return State{}, err
		}
		current = normalize(b.name, current)

		next := current
		if !fn(&next, b.now()) {
			return current, nil
		}
		next.Version = current.Version + 1

		ok, err := b.store.CompareAndSwap(b.name, current.Version, next)
		if err != nil {
			return State{}, err
		}
		if ok {
			return next, nil
		}
	}
	return State{}, fmt.Errorf("%s: %w", b.name, ErrConflict)
}

func normalize(name string, s State) State {
	if s.State == "" {
		s.State = StateClosed
	}
	if s.Name == "" {
		s.Name = name
	}
	return s
}
