package badger

import (
	"encoding/binary"
	"time"
)

// Key prefixes for different data types
const (
	documentPrefix     = "doc:"
	chunkPrefix        = "chunk:"
	blobPrefix         = "blob:"
	sessionPrefix      = "sess:"
	userSessionPrefix  = "usess:"
	messagePrefix      = "msg:"
	messageSeq         = "msgseq"
	taskPrefix         = "task:"
	taskDuePrefix      = "due:"
	breakerStatePrefix = "brk:"
)

// makeDocumentKey generates a key for a document by ID.
func makeDocumentKey(id string) []byte {
	return []byte(documentPrefix + id)
}

// makeChunkKey generates a composite key for a chunk.
// Format: prefix:documentID:index
func makeChunkKey(documentID string, index int) []byte {
	prefix := makeChunkPrefix(documentID)
	buf := make([]byte, len(prefix)+4)
	offset := copy(buf, prefix)
	// Write in BigEndian order so lexicographic sort works correctly
	binary.BigEndian.PutUint32(buf[offset:], uint32(index))
	return buf
}

// makeChunkPrefix generates the key prefix shared by the chunks of a document.
func makeChunkPrefix(documentID string) []byte {
	return []byte(chunkPrefix + documentID + ":")
}

// makeBlobKey generates a key for raw bytes.
func makeBlobKey(key string) []byte {
	return []byte(blobPrefix + key)
}

// makeSessionKey generates a key for a chat session by ID.
func makeSessionKey(id string) []byte {
	return []byte(sessionPrefix + id)
}

// makeUserSessionKey generates a composite key for the per-user session index.
// Format: prefix:userID:timestamp:sessionID
func makeUserSessionKey(userID string, created time.Time, sessionID string) []byte {
	prefix := makeUserSessionPrefix(userID)
	buf := make([]byte, len(prefix)+8+len(sessionID))
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(created.UnixMicro()))
	offset += 8
	copy(buf[offset:], sessionID)
	return buf
}

// makeUserSessionPrefix generates the key prefix of a user's session index.
func makeUserSessionPrefix(userID string) []byte {
	return []byte(userSessionPrefix + userID + ":")
}

// makeMessageKey generates a composite key for a chat message.
// Format: prefix:sessionID:seq
func makeMessageKey(sessionID string, seq uint64) []byte {
	prefix := makeMessagePrefix(sessionID)
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], seq)
	return buf
}

// makeMessagePrefix generates the key prefix shared by the messages of a session.
func makeMessagePrefix(sessionID string) []byte {
	return []byte(messagePrefix + sessionID + ":")
}

// makeTaskKey generates a key for a task by ID.
func makeTaskKey(id string) []byte {
	return []byte(taskPrefix + id)
}

// makeTaskDueKey generates a composite key for the due-time index.
// Format: prefix:timestamp:taskID
func makeTaskDueKey(due time.Time, id string) []byte {
	buf := make([]byte, len(taskDuePrefix)+8+len(id))
	offset := copy(buf, taskDuePrefix)
	// Write in BigEndian order so lexicographic sort works correctly
	binary.BigEndian.PutUint64(buf[offset:], uint64(due.UnixMicro()))
	offset += 8
	copy(buf[offset:], id)
	return buf
}

// parseTaskDueKey splits a due-index key into its time and task ID.
func parseTaskDueKey(key []byte) (time.Time, string, bool) {
	rest := key[len(taskDuePrefix):]
	if len(rest) < 8 {
		return time.Time{}, "", false
	}
	micros := int64(binary.BigEndian.Uint64(rest[:8]))
	return time.UnixMicro(micros), string(rest[8:]), true
}

// makeBreakerKey generates a key for a circuit breaker's state.
func makeBreakerKey(name string) []byte {
	return []byte(breakerStatePrefix + name)
}
