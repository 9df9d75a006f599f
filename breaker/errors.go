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

import "errors"

var (
	// ErrInvalidFailureThreshold is returned when FailureThreshold is below 1.
	ErrInvalidFailureThreshold = errors.New("failure threshold must be at least 1")

	// ErrInvalidSuccessThreshold is returned when SuccessThreshold is below 1.
	ErrInvalidSuccessThreshold = errors.New("success threshold must be at least 1")

	// ErrInvalidHalfOpenMaxCalls is returned when HalfOpenMaxCalls is below 1.
	ErrInvalidHalfOpenMaxCalls = errors.New("half-open max calls must be at least 1")

	// ErrInvalidRecoveryTimeout is returned when RecoveryTimeout is not positive.
	ErrInvalidRecoveryTimeout = errors.New("recovery timeout must be positive")

	// ErrNameRequired is returned when a breaker is created without a name.
	ErrNameRequired = errors.New("breaker name required")

	// ErrConflict is returned when a transition lost too many CAS races in a row.
	ErrConflict = errors.New("breaker state changed concurrently")
)
