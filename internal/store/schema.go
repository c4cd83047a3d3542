package store

// Schema is applied on every open. CREATE IF NOT EXISTS keeps it
// idempotent; column additions for existing databases are handled with
// best-effort ALTERs in Open.
const Schema = `
CREATE TABLE IF NOT EXISTS conversations (
	id TEXT PRIMARY KEY,
	title TEXT DEFAULT '',
	agent_id TEXT DEFAULT '',
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS messages (
	id TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL REFERENCES conversations(id),
	role TEXT NOT NULL,
	content TEXT DEFAULT '',
	blocks TEXT DEFAULT '',
	tokens INTEGER DEFAULT 0,
	model TEXT DEFAULT '',
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, created_at);

CREATE TABLE IF NOT EXISTS agents (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	system_prompt TEXT DEFAULT '',
	tools TEXT DEFAULT '[]',
	model TEXT DEFAULT '',
	tier TEXT DEFAULT '',
	creator TEXT DEFAULT 'user',
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS tasks (
	id TEXT PRIMARY KEY,
	type TEXT NOT NULL DEFAULT 'agent',
	status TEXT NOT NULL DEFAULT 'pending',
	input TEXT DEFAULT '',
	agent_id TEXT DEFAULT '',
	origin_conversation_id TEXT DEFAULT '',
	origin_message_id TEXT DEFAULT '',
	run_conversation_id TEXT DEFAULT '',
	result TEXT DEFAULT '',
	error_text TEXT DEFAULT '',
	attempts INTEGER DEFAULT 0,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	last_attempt_at TIMESTAMP,
	completed_at TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);

CREATE TABLE IF NOT EXISTS scheduled_tasks (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	schedule TEXT NOT NULL,
	kind TEXT NOT NULL DEFAULT 'recurring',
	agent_id TEXT DEFAULT '',
	input TEXT DEFAULT '',
	status TEXT NOT NULL DEFAULT 'active',
	last_run_at TIMESTAMP,
	next_run_at TIMESTAMP,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_scheduled_due ON scheduled_tasks(status, next_run_at);

CREATE TABLE IF NOT EXISTS events (
	id TEXT PRIMARY KEY,
	type TEXT NOT NULL,
	source TEXT DEFAULT '',
	agent_id TEXT DEFAULT '',
	conversation_id TEXT DEFAULT '',
	payload TEXT DEFAULT '',
	level TEXT DEFAULT 'info',
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_events_type ON events(type, created_at);
CREATE INDEX IF NOT EXISTS idx_events_conversation ON events(conversation_id);

CREATE TABLE IF NOT EXISTS settings (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`
