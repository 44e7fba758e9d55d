package sqlite

var schema = []string{
	`CREATE TABLE IF NOT EXISTS bookmarks (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		content_id TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		thumbnail TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		UNIQUE(owner_id, content_id)
	);`,
	`CREATE TABLE IF NOT EXISTS watch_progress (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		episode_id TEXT NOT NULL,
		episode_number INTEGER NOT NULL DEFAULT 0,
		position REAL NOT NULL,
		duration REAL NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		UNIQUE(owner_id, episode_id)
	);`,
	`CREATE INDEX IF NOT EXISTS idx_watch_progress_updated ON watch_progress(updated_at DESC);`,
}
