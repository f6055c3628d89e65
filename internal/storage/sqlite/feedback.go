package sqlite

import (
	"database/sql"

	"intentbot/internal/domain"
)

func InsertFeedback(db *sql.DB, rec domain.FeedbackRecord) (int64, error) {
	res, err := db.Exec(
		`INSERT INTO feedback (text, predicted_intent, corrected_intent, classification_id)
		 VALUES (?, ?, ?, ?)`,
		rec.Text, string(rec.Predicted), string(rec.Corrected), rec.ClassificationID,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func GetPendingFeedback(db *sql.DB, limit int) ([]domain.FeedbackRecord, error) {
	rows, err := db.Query(
		`SELECT id, text, predicted_intent, corrected_intent, used, classification_id, created_at
		 FROM feedback WHERE used = 0 ORDER BY created_at, id LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.FeedbackRecord
	for rows.Next() {
		var r domain.FeedbackRecord
		var predicted, corrected string
		var used int
		if err := rows.Scan(&r.ID, &r.Text, &predicted, &corrected, &used, &r.ClassificationID, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.Predicted = domain.Intent(predicted)
		r.Corrected = domain.Intent(corrected)
		r.Used = used != 0
		out = append(out, r)
	}
	return out, rows.Err()
}

func CountPendingFeedback(db *sql.DB) (int, error) {
	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM feedback WHERE used = 0`).Scan(&count)
	return count, err
}

// MarkFeedbackUsed flips the used flag on the given rows in one
// transaction. Rows are never deleted; the flag is the only mutation
// the feedback table ever sees.
func MarkFeedbackUsed(db *sql.DB, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`UPDATE feedback SET used = 1 WHERE id = ?`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, id := range ids {
		if _, err := stmt.Exec(id); err != nil {
			return err
		}
	}
	return tx.Commit()
}

type FeedbackStats struct {
	Pending     int            `json:"pending"`
	Used        int            `json:"used"`
	Total       int            `json:"total"`
	ByCorrected map[string]int `json:"by_corrected_intent"`
}

func GetFeedbackStats(db *sql.DB) (FeedbackStats, error) {
	s := FeedbackStats{ByCorrected: make(map[string]int)}
	err := db.QueryRow(
		`SELECT COUNT(*),
		        COALESCE(SUM(CASE WHEN used = 0 THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN used = 1 THEN 1 ELSE 0 END), 0)
		 FROM feedback`,
	).Scan(&s.Total, &s.Pending, &s.Used)
	if err != nil {
		return s, err
	}

	rows, err := db.Query(`SELECT corrected_intent, COUNT(*) FROM feedback GROUP BY corrected_intent`)
	if err != nil {
		return s, err
	}
	defer rows.Close()
	for rows.Next() {
		var intent string
		var count int
		if err := rows.Scan(&intent, &count); err != nil {
			return s, err
		}
		s.ByCorrected[intent] = count
	}
	return s, rows.Err()
}

// RepeatedCorrection is a phrase the reviewers corrected to the same
// intent more than once, the raw material for the retrospective.
type RepeatedCorrection struct {
	Text      string
	Predicted domain.Intent
	Corrected domain.Intent
	Count     int
}

func GetRepeatedCorrections(db *sql.DB, minCount, limit int) ([]RepeatedCorrection, error) {
	rows, err := db.Query(
		`SELECT LOWER(TRIM(text)), MAX(predicted_intent), corrected_intent, COUNT(*) as cnt
		 FROM feedback
		 GROUP BY LOWER(TRIM(text)), corrected_intent
		 HAVING cnt >= ?
		 ORDER BY cnt DESC
		 LIMIT ?`,
		minCount, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RepeatedCorrection
	for rows.Next() {
		var r RepeatedCorrection
		var predicted, corrected string
		if err := rows.Scan(&r.Text, &predicted, &corrected, &r.Count); err != nil {
			return nil, err
		}
		r.Predicted = domain.Intent(predicted)
		r.Corrected = domain.Intent(corrected)
		out = append(out, r)
	}
	return out, rows.Err()
}
