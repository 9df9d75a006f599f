package postgres

// schema creates every table idempotently.
const schema = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS documents (
	id             TEXT PRIMARY KEY,
	title          TEXT NOT NULL DEFAULT '',
	filename       TEXT NOT NULL,
	uploader_id    TEXT NOT NULL,
	storage_key    TEXT NOT NULL DEFAULT '',
	mime_type      TEXT NOT NULL DEFAULT '',
	size           BIGINT NOT NULL DEFAULT 0,
	status         TEXT NOT NULL,
	error_message  TEXT NOT NULL DEFAULT '',
	extracted_text TEXT NOT NULL DEFAULT '',
	uploaded_at    TIMESTAMPTZ NOT NULL,
	processed_at   TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS documents_uploader_idx ON documents (uploader_id, uploaded_at DESC);

CREATE TABLE IF NOT EXISTS chunks (
	id                 TEXT PRIMARY KEY,
	document_id        TEXT NOT NULL REFERENCES documents (id) ON DELETE CASCADE,
	chunk_index        INTEGER NOT NULL,
	content            TEXT NOT NULL,
	char_start         INTEGER NOT NULL,
	char_end           INTEGER NOT NULL,
	embedding          vector,
	embedding_provider TEXT NOT NULL DEFAULT '',
	created_at         TIMESTAMPTZ NOT NULL,
	UNIQUE (document_id, chunk_index)
);

CREATE INDEX IF NOT EXISTS chunks_content_fts_idx ON chunks USING gin (to_tsvector('english', content));

CREATE TABLE IF NOT EXISTS chat_sessions (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS chat_messages (
	seq        BIGSERIAL PRIMARY KEY,
	id         TEXT NOT NULL UNIQUE,
	session_id TEXT NOT NULL REFERENCES chat_sessions (id) ON DELETE CASCADE,
	role       TEXT NOT NULL,
	content    TEXT NOT NULL,
	sources    JSONB NOT NULL DEFAULT '[]',
	metadata   JSONB NOT NULL DEFAULT '{}',
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS chat_messages_session_idx ON chat_messages (session_id, seq);

CREATE TABLE IF NOT EXISTS blobs (
	key  TEXT PRIMARY KEY,
	data BYTEA NOT NULL
);
`

// searchableClause restricts d to searchable statuses and $1 to the uploader scope.
const searchableClause = `
	(d.status IN ('ready', 'partial', 'indexing_pending_quota', 'embedding_failed')
	 OR starts_with(d.status, 'indexing_pending_retry_attempt_'))
	AND ($1 = '' OR d.uploader_id = $1)`

const resultColumns = `
	c.id, c.document_id, c.chunk_index, c.content, c.char_start, c.char_end,
	c.embedding, c.embedding_provider, c.created_at,
	d.id, d.title, d.filename, d.uploader_id, d.storage_key, d.mime_type, d.size,
	d.status, d.error_message, d.uploaded_at, d.processed_at`
