package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// ChatMessage is one turn of the per-chat rolling history used for
// reference resolution.
type ChatMessage struct {
	ChatID    string
	Message   string
	Intent    string
	Response  string
	Entities  map[string]string
	CreatedAt time.Time
}

// RememberMessage appends one turn and trims the chat's history down to
// keep rows, oldest first. The trim keeps the table a rolling buffer
// rather than a full transcript.
func RememberMessage(db *sql.DB, msg ChatMessage, keep int) error {
	entities := msg.Entities
	if entities == nil {
		entities = map[string]string{}
	}
	encoded, err := json.Marshal(entities)
	if err != nil {
		return fmt.Errorf("encode entities: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT INTO chat_history (chat_id, message, intent, response, entities)
		 VALUES (?, ?, ?, ?, ?)`,
		msg.ChatID, msg.Message, msg.Intent, msg.Response, string(encoded),
	); err != nil {
		return err
	}
	if _, err := tx.Exec(
		`DELETE FROM chat_history
		 WHERE chat_id = ? AND id NOT IN (
		     SELECT id FROM chat_history WHERE chat_id = ?
		     ORDER BY created_at DESC, id DESC LIMIT ?
		 )`,
		msg.ChatID, msg.ChatID, keep,
	); err != nil {
		return err
	}
	return tx.Commit()
}

// GetLastEntities returns the entities of the chat's most recent turn,
// or nil when the chat has no history.
func GetLastEntities(db *sql.DB, chatID string) (map[string]string, error) {
	var encoded string
	err := db.QueryRow(
		`SELECT entities FROM chat_history
		 WHERE chat_id = ?
		 ORDER BY created_at DESC, id DESC LIMIT 1`,
		chatID,
	).Scan(&encoded)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	entities := make(map[string]string)
	if err := json.Unmarshal([]byte(encoded), &entities); err != nil {
		return nil, fmt.Errorf("decode entities: %w", err)
	}
	return entities, nil
}

func GetChatContext(db *sql.DB, chatID string, n int) ([]ChatMessage, error) {
	rows, err := db.Query(
		`SELECT chat_id, message, intent, response, entities, created_at
		 FROM chat_history
		 WHERE chat_id = ?
		 ORDER BY created_at DESC, id DESC LIMIT ?`,
		chatID, n,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ChatMessage
	for rows.Next() {
		var m ChatMessage
		var encoded string
		if err := rows.Scan(&m.ChatID, &m.Message, &m.Intent, &m.Response, &encoded, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Entities = make(map[string]string)
		_ = json.Unmarshal([]byte(encoded), &m.Entities)
		out = append(out, m)
	}
	return out, rows.Err()
}

// ClearOldHistory drops chat turns older than maxAge and reports how
// many rows went.
func ClearOldHistory(db *sql.DB, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-maxAge)
	res, err := db.Exec(`DELETE FROM chat_history WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
