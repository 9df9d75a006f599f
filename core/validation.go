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

import (
	"fmt"
	"time"
)

// ValidateDocument validates a Document according to domain rules.
//
// Validation rules:
//   - Filename must not be empty
//   - UploaderID must not be empty
//   - Status must be a known status value
//   - UploadedAt must not be in the future
//
// NOT validated (populated by processing):
//   - ExtractedText
//   - ProcessedAt
func ValidateDocument(doc *Document) error {
	if doc == nil {
		return fmt.Errorf("%w: document is nil", ErrInvalidDocument)
	}
	if doc.Filename == "" {
		return fmt.Errorf("%w: filename is required", ErrInvalidDocument)
	}
	if doc.UploaderID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, ErrMissingOwner)
	}
	if _, err := ParseStatus(string(doc.Status)); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	if !IsValidTimestamp(doc.UploadedAt) {
		return fmt.Errorf("%w: uploaded_at cannot be in the future", ErrInvalidDocument)
	}
	return nil
}

// ValidateChunks validates the chunks of one document as a set.
// Indices must be contiguous from zero and every span well formed.
func ValidateChunks(documentID string, chunks []*Chunk) error {
	for i, chunk := range chunks {
		if chunk == nil {
			return fmt.Errorf("%w: chunk %d is nil", ErrInvalidChunk, i)
		}
		if chunk.DocumentID != documentID {
			return fmt.Errorf("%w: chunk %d belongs to %q", ErrInvalidChunk, i, chunk.DocumentID)
		}
		if chunk.Index != i {
			return fmt.Errorf("%w: index %d at position %d", ErrInvalidChunk, chunk.Index, i)
		}
		if chunk.CharStart < 0 || chunk.CharEnd <= chunk.CharStart {
			return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrInvalidSpan)
		}
	}
	return nil
}

// ValidateMessage validates a ChatMessage.
func ValidateMessage(msg *ChatMessage) error {
	if msg == nil {
		return fmt.Errorf("%w: message is nil", ErrInvalidMessage)
	}
	if msg.SessionID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidMessage, ErrMissingOwner)
	}
	if msg.Content == "" {
		return fmt.Errorf("%w: %w", ErrInvalidMessage, ErrEmptyContent)
	}
	switch msg.Role {
	case RoleUser, RoleAssistant, RoleSystem:
	default:
		return fmt.Errorf("%w: %w: %q", ErrInvalidMessage, ErrInvalidRole, msg.Role)
	}
	return nil
}

// IsValidTimestamp checks if a timestamp is valid (not in the future).
func IsValidTimestamp(ts time.Time) bool {
	return !ts.After(time.Now())
}
