package storage

import (
	"testing"
	"time"

	"github.com/poiesic/docinx/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshalChunk(t *testing.T) {
	chunk := &core.Chunk{
		ID:                "c1",
		DocumentID:        "d1",
		Index:             2,
		Content:           "Refunds are issued within 30 days.",
		CharStart:         100,
		CharEnd:           134,
		Embedding:         []float32{0.1, -0.25, 0.333},
		EmbeddingProvider: "openai",
	}

	data, err := MarshalChunk(chunk)
	require.NoError(t, err)

	decoded, err := UnmarshalChunk(data)
	require.NoError(t, err)
	assert.Equal(t, chunk.Embedding, decoded.Embedding)
	assert.Equal(t, chunk.Content, decoded.Content)
	assert.Equal(t, chunk.CharStart, decoded.CharStart)
	assert.Equal(t, chunk.CharEnd, decoded.CharEnd)
}

func TestMarshalUnmarshalChunk_NilEmbedding(t *testing.T) {
	data, err := MarshalChunk(&core.Chunk{ID: "c1"})
	require.NoError(t, err)

	decoded, err := UnmarshalChunk(data)
	require.NoError(t, err)
	assert.False(t, decoded.HasEmbedding())
}

func TestUnmarshal_Invalid(t *testing.T) {
	_, err := UnmarshalDocument([]byte("{not json"))
	assert.ErrorIs(t, err, ErrSerializationFailed)

	_, err = UnmarshalTask(nil)
	assert.ErrorIs(t, err, ErrSerializationFailed)
}

func TestDocumentUpdate_Apply(t *testing.T) {
	processed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	doc := &core.Document{Status: core.StatusQueued, ErrorMessage: "old", ProcessedAt: &processed}

	status := core.StatusProcessing
	empty := ""
	DocumentUpdate{Status: &status, ErrorMessage: &empty, ClearProcessedAt: true}.Apply(doc)

	assert.Equal(t, core.StatusProcessing, doc.Status)
	assert.Empty(t, doc.ErrorMessage)
	assert.Nil(t, doc.ProcessedAt)

	text := "extracted"
	DocumentUpdate{ExtractedText: &text, ProcessedAt: &processed}.Apply(doc)
	assert.Equal(t, "extracted", doc.ExtractedText)
	require.NotNil(t, doc.ProcessedAt)
	assert.True(t, doc.ProcessedAt.Equal(processed))
	assert.Equal(t, core.StatusProcessing, doc.Status, "nil fields are left unchanged")
}

func TestDocumentFilter_Matches(t *testing.T) {
	doc := &core.Document{UploaderID: "u1", Status: core.IndexingRetryStatus(2)}

	assert.True(t, DocumentFilter{}.Matches(doc))
	assert.True(t, DocumentFilter{UploaderID: "u1"}.Matches(doc))
	assert.False(t, DocumentFilter{UploaderID: "u2"}.Matches(doc))
	assert.True(t, DocumentFilter{Statuses: []core.DocumentStatus{core.IndexingRetryStatus(1)}}.Matches(doc))
	assert.False(t, DocumentFilter{Statuses: []core.DocumentStatus{core.StatusReady}}.Matches(doc))
}

func TestScope_Allows(t *testing.T) {
	doc := &core.Document{UploaderID: "u1"}
	assert.True(t, Scope{}.Allows(doc))
	assert.True(t, Scope{UserID: "u1"}.Allows(doc))
	assert.False(t, Scope{UserID: "u2"}.Allows(doc))
}

func TestChunkStats_Missing(t *testing.T) {
	assert.Equal(t, 2, ChunkStats{Total: 5, Embedded: 3}.Missing())
}
