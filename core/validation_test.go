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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validDocument() *Document {
	return &Document{
		ID:         NewID(),
		Title:      "Handbook",
		Filename:   "handbook.txt",
		UploaderID: "user-1",
		MimeType:   "text/plain",
		Status:     StatusQueued,
		UploadedAt: time.Now().Add(-time.Minute),
	}
}

func TestValidateDocument(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(d *Document)
		wantErr error
	}{
		{"valid", func(d *Document) {}, nil},
		{"missing filename", func(d *Document) { d.Filename = "" }, ErrInvalidDocument},
		{"missing uploader", func(d *Document) { d.UploaderID = "" }, ErrMissingOwner},
		{"unknown status", func(d *Document) { d.Status = "done" }, ErrInvalidStatus},
		{"retry status", func(d *Document) { d.Status = IndexingRetryStatus(2) }, nil},
		{"future upload", func(d *Document) { d.UploadedAt = time.Now().Add(time.Hour) }, ErrInvalidDocument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := validDocument()
			tt.mutate(doc)
			err := ValidateDocument(doc)
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	t.Run("nil document", func(t *testing.T) {
		assert.ErrorIs(t, ValidateDocument(nil), ErrInvalidDocument)
	})
}

func TestValidateChunks(t *testing.T) {
	chunks := []*Chunk{
		{DocumentID: "d", Index: 0, CharStart: 0, CharEnd: 10},
		{DocumentID: "d", Index: 1, CharStart: 8, CharEnd: 20},
	}
	require.NoError(t, ValidateChunks("d", chunks))

	t.Run("gap in indices", func(t *testing.T) {
		bad := []*Chunk{{DocumentID: "d", Index: 0, CharEnd: 1}, {DocumentID: "d", Index: 2, CharStart: 1, CharEnd: 2}}
		assert.ErrorIs(t, ValidateChunks("d", bad), ErrInvalidChunk)
	})

	t.Run("foreign chunk", func(t *testing.T) {
		bad := []*Chunk{{DocumentID: "other", Index: 0, CharEnd: 1}}
		assert.ErrorIs(t, ValidateChunks("d", bad), ErrInvalidChunk)
	})

	t.Run("inverted span", func(t *testing.T) {
		bad := []*Chunk{{DocumentID: "d", Index: 0, CharStart: 5, CharEnd: 5}}
		assert.ErrorIs(t, ValidateChunks("d", bad), ErrInvalidSpan)
	})

	t.Run("empty set", func(t *testing.T) {
		assert.NoError(t, ValidateChunks("d", nil))
	})
}

func TestValidateMessage(t *testing.T) {
	valid := &ChatMessage{SessionID: "s", Role: RoleUser, Content: "hello"}
	require.NoError(t, ValidateMessage(valid))

	assert.ErrorIs(t, ValidateMessage(nil), ErrInvalidMessage)
	assert.ErrorIs(t, ValidateMessage(&ChatMessage{Role: RoleUser, Content: "x"}), ErrMissingOwner)
	assert.ErrorIs(t, ValidateMessage(&ChatMessage{SessionID: "s", Role: RoleUser}), ErrEmptyContent)
	assert.ErrorIs(t, ValidateMessage(&ChatMessage{SessionID: "s", Role: "bot", Content: "x"}), ErrInvalidRole)
}

func TestIsValidTimestamp(t *testing.T) {
	assert.True(t, IsValidTimestamp(time.Now().Add(-time.Second)))
	assert.False(t, IsValidTimestamp(time.Now().Add(time.Hour)))
}
