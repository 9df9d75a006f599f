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


package core

import "errors"

// Domain validation errors
var (
	// ErrInvalidDocument indicates a Document failed validation.
	ErrInvalidDocument = errors.New("invalid document")

	// ErrInvalidChunk indicates a Chunk failed validation.
	ErrInvalidChunk = errors.New("invalid chunk")

	// ErrInvalidMessage indicates a ChatMessage failed validation.
	ErrInvalidMessage = errors.New("invalid chat message")

	// ErrInvalidStatus indicates an unknown document status string.
	ErrInvalidStatus = errors.New("invalid document status")

	// ErrEmptyContent indicates the content field is empty.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrMissingOwner indicates a record has no owning reference.
	ErrMissingOwner = errors.New("owner reference is required")

	// ErrInvalidSpan indicates a chunk span is negative or inverted.
	ErrInvalidSpan = errors.New("chunk span must satisfy 0 <= start < end")

	// ErrInvalidRole indicates an unknown message role.
	ErrInvalidRole = errors.New("invalid message role")
)
