package sqlite

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
)

func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS feedback (
		id               INTEGER PRIMARY KEY AUTOINCREMENT,
		text             TEXT NOT NULL,
		predicted_intent TEXT NOT NULL,
		corrected_intent TEXT NOT NULL,
		used             INTEGER NOT NULL DEFAULT 0,
		created_at       DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_feedback_used ON feedback(used);
	CREATE INDEX IF NOT EXISTS idx_feedback_created_at ON feedback(created_at);

	CREATE TABLE IF NOT EXISTS classification_log (
		id         TEXT PRIMARY KEY,
		chat_id    TEXT DEFAULT '',
		text       TEXT NOT NULL,
		intent     TEXT NOT NULL,
		confidence REAL NOT NULL,
		stage      TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_cl_intent ON classification_log(intent);
	CREATE INDEX IF NOT EXISTS idx_cl_created_at ON classification_log(created_at);

	CREATE TABLE IF NOT EXISTS chat_history (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		chat_id    TEXT NOT NULL,
		message    TEXT NOT NULL,
		intent     TEXT DEFAULT '',
		response   TEXT DEFAULT '',
		entities   TEXT DEFAULT '{}',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_chat_history_chat ON chat_history(chat_id, created_at);
	`
	_, err = db.Exec(schema)
	if err != nil {
		return nil, err
	}

	// Migration: add classification_id column if missing.
	var colCount int
	_ = db.QueryRow(`SELECT COUNT(*) FROM pragma_table_info('feedback') WHERE name = 'classification_id'`).Scan(&colCount)
	if colCount == 0 {
		_, _ = db.Exec(`ALTER TABLE feedback ADD COLUMN classification_id TEXT DEFAULT ''`)
	}

	return db, nil
}
