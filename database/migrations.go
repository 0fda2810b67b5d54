package database

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations. The SQL is shared by
// the sqlite and postgres drivers, so it sticks to the common dialect.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS accounts (
	id              TEXT PRIMARY KEY,
	email           TEXT NOT NULL UNIQUE,
	username        TEXT NOT NULL UNIQUE,
	sharing_enabled BOOLEAN NOT NULL DEFAULT FALSE,
	created_at      TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS todo_lists (
	account_id TEXT PRIMARY KEY REFERENCES accounts(id) ON DELETE CASCADE,
	lists      TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS reset_markers (
	account_id TEXT PRIMARY KEY REFERENCES accounts(id) ON DELETE CASCADE,
	last_reset TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`,
	},
	{
		version: 2,
		sql: `
CREATE TABLE IF NOT EXISTS tasks_archive (
	id           TEXT PRIMARY KEY,
	account_id   TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
	task_id      TEXT NOT NULL,
	task_name    TEXT NOT NULL,
	bucket_name  TEXT NOT NULL,
	bucket_year  INTEGER,
	completed_at TIMESTAMP NOT NULL,
	optional     BOOLEAN NOT NULL DEFAULT FALSE,
	urgent       BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE INDEX IF NOT EXISTS idx_tasks_archive_account ON tasks_archive(account_id, completed_at);
`,
	},
	{
		version: 3,
		sql: `
CREATE TABLE IF NOT EXISTS coworkers (
	account_id  TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
	coworker_id TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
	created_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (account_id, coworker_id)
);
`,
	},
}
