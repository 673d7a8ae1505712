package db

import (
	"database/sql"
)

const schema = `
CREATE TABLE IF NOT EXISTS user_progress (
    id INTEGER PRIMARY KEY,
    display_name TEXT NOT NULL DEFAULT '',
    handle TEXT NOT NULL DEFAULT '',
    current_step INTEGER NOT NULL DEFAULT 1,
    steps_completed TEXT NOT NULL DEFAULT '{}',
    social_handles TEXT NOT NULL DEFAULT '{}',
    wallet_address TEXT,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_user_progress_current_step ON user_progress(current_step);

CREATE TABLE IF NOT EXISTS user_screenshots (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id INTEGER NOT NULL REFERENCES user_progress(id),
    asset_id TEXT NOT NULL,
    file_name TEXT NOT NULL DEFAULT '',
    uploaded_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_user_screenshots_user ON user_screenshots(user_id, id);
`

func InitSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
