package store

// Schema DDL kept portable across sqlite and postgres: ids are UUID
// strings, maps and string sets are JSON-encoded TEXT, timestamps are
// TIMESTAMP columns.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS libraries (
	id          TEXT PRIMARY KEY,
	library_id  TEXT NOT NULL UNIQUE,
	name        TEXT NOT NULL,
	aliases     TEXT NOT NULL DEFAULT '[]',
	homepage    TEXT NOT NULL DEFAULT '',
	repo_url    TEXT NOT NULL DEFAULT '',
	metadata    TEXT NOT NULL DEFAULT '{}',
	created_at  TIMESTAMP NOT NULL,
	updated_at  TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS sources (
	id             TEXT PRIMARY KEY,
	name           TEXT NOT NULL UNIQUE,
	type           TEXT NOT NULL,
	library_id     TEXT REFERENCES libraries(id) ON DELETE SET NULL,
	version        TEXT NOT NULL DEFAULT '',
	config         TEXT NOT NULL DEFAULT '{}',
	status         TEXT NOT NULL DEFAULT 'active',
	sync_frequency TEXT NOT NULL DEFAULT '',
	last_synced_at TIMESTAMP,
	error_message  TEXT NOT NULL DEFAULT '',
	created_at     TIMESTAMP NOT NULL,
	updated_at     TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS documents (
	id                TEXT PRIMARY KEY,
	source_id         TEXT NOT NULL REFERENCES sources(id) ON DELETE CASCADE,
	url               TEXT NOT NULL DEFAULT '',
	path              TEXT NOT NULL DEFAULT '',
	content_hash      TEXT NOT NULL DEFAULT '',
	title             TEXT NOT NULL DEFAULT '',
	content           TEXT NOT NULL DEFAULT '',
	content_length    INTEGER NOT NULL DEFAULT 0,
	metadata          TEXT NOT NULL DEFAULT '{}',
	language          TEXT NOT NULL DEFAULT 'en',
	format            TEXT NOT NULL DEFAULT '',
	status            TEXT NOT NULL DEFAULT 'pending',
	error_message     TEXT NOT NULL DEFAULT '',
	chunk_count       INTEGER NOT NULL DEFAULT 0,
	chunking_strategy TEXT NOT NULL DEFAULT '',
	fetched_at        TIMESTAMP,
	processed_at      TIMESTAMP,
	author            TEXT NOT NULL DEFAULT '',
	published_at      TIMESTAMP,
	modified_at       TIMESTAMP,
	created_at        TIMESTAMP NOT NULL,
	updated_at        TIMESTAMP NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_documents_source_url
	ON documents(source_id, url) WHERE url != '';
CREATE INDEX IF NOT EXISTS idx_documents_source_hash
	ON documents(source_id, content_hash);

CREATE TABLE IF NOT EXISTS chunks (
	id                   TEXT PRIMARY KEY,
	document_id          TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	chunk_index          INTEGER NOT NULL,
	content              TEXT NOT NULL DEFAULT '',
	content_length       INTEGER NOT NULL DEFAULT 0,
	start_char           INTEGER NOT NULL DEFAULT 0,
	end_char             INTEGER NOT NULL DEFAULT 0,
	is_code_snippet      INTEGER NOT NULL DEFAULT 0,
	code_language        TEXT NOT NULL DEFAULT '',
	topics               TEXT NOT NULL DEFAULT '[]',
	enrichment           TEXT NOT NULL DEFAULT '',
	relevance_score      REAL NOT NULL DEFAULT 0,
	code_quality_score   REAL NOT NULL DEFAULT 0,
	formatting_score     REAL NOT NULL DEFAULT 0,
	metadata_score       REAL NOT NULL DEFAULT 0,
	initialization_score REAL NOT NULL DEFAULT 0,
	prev_chunk_id        TEXT NOT NULL DEFAULT '',
	next_chunk_id        TEXT NOT NULL DEFAULT '',
	metadata             TEXT NOT NULL DEFAULT '{}',
	embedding_id         TEXT NOT NULL DEFAULT '',
	embedding_model      TEXT NOT NULL DEFAULT '',
	embedded_at          TIMESTAMP,
	created_at           TIMESTAMP NOT NULL,
	updated_at           TIMESTAMP NOT NULL,
	UNIQUE (document_id, chunk_index)
);

CREATE INDEX IF NOT EXISTS idx_chunks_document
	ON chunks(document_id, chunk_index);

CREATE TABLE IF NOT EXISTS ingestion_jobs (
	id                  TEXT PRIMARY KEY,
	source_id           TEXT REFERENCES sources(id) ON DELETE SET NULL,
	job_type            TEXT NOT NULL,
	status              TEXT NOT NULL DEFAULT 'pending',
	total_documents     INTEGER NOT NULL DEFAULT 0,
	processed_documents INTEGER NOT NULL DEFAULT 0,
	failed_documents    INTEGER NOT NULL DEFAULT 0,
	total_chunks        INTEGER NOT NULL DEFAULT 0,
	started_at          TIMESTAMP,
	completed_at        TIMESTAMP,
	error_message       TEXT NOT NULL DEFAULT '',
	error_details       TEXT NOT NULL DEFAULT '{}',
	task_id             TEXT NOT NULL DEFAULT '',
	config              TEXT NOT NULL DEFAULT '{}',
	created_at          TIMESTAMP NOT NULL,
	updated_at          TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_jobs_status
	ON ingestion_jobs(status, created_at);
`
