package store

// Schema is the backing-store's SQL schema. Every domain type shares
// one generic objects table (its JMAP properties stored as a JSON
// blob, following the teacher's own recipients/headers/flags-as-JSON
// columns idiom in cache/store.go, generalized from three ad-hoc JSON
// columns to the whole property bag) plus one state table tracking the
// monotonic per-type state vector and deleted-state horizon described
// in spec §6.
const Schema = `
CREATE TABLE IF NOT EXISTS objects (
	type TEXT NOT NULL,
	account_id TEXT NOT NULL,
	id TEXT NOT NULL,
	active INTEGER NOT NULL DEFAULT 1,
	created_at INTEGER NOT NULL,
	modseq INTEGER NOT NULL,
	count_modseq INTEGER NOT NULL DEFAULT 0,
	thread_id TEXT NOT NULL DEFAULT '',
	fields_json TEXT NOT NULL,
	PRIMARY KEY (type, account_id, id)
);

CREATE INDEX IF NOT EXISTS idx_objects_type_account ON objects(type, account_id);
CREATE INDEX IF NOT EXISTS idx_objects_thread ON objects(type, account_id, thread_id);

CREATE TABLE IF NOT EXISTS state (
	type TEXT NOT NULL,
	account_id TEXT NOT NULL,
	state INTEGER NOT NULL DEFAULT 0,
	deleted_modseq INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (type, account_id)
);

CREATE TABLE IF NOT EXISTS blobs (
	account_id TEXT NOT NULL,
	blob_id TEXT NOT NULL,
	path TEXT NOT NULL,
	size INTEGER NOT NULL,
	PRIMARY KEY (account_id, blob_id)
);

-- Full-text search over Email bodies/headers, lifted from the teacher's
-- emails_fts virtual table and generalized to index the generic
-- objects row for the Email type (imap_search(field, term) in spec §6).
CREATE VIRTUAL TABLE IF NOT EXISTS emails_fts USING fts5(
	account_id,
	email_id,
	subject,
	sender,
	body,
	tokenize = 'porter unicode61'
);
`
