package sqlite

import (
	"database/sql"
	"time"

	"intentbot/internal/domain"
)

func InsertClassification(db *sql.DB, rec domain.ClassificationRecord) error {
	_, err := db.Exec(
		`INSERT INTO classification_log (id, chat_id, text, intent, confidence, stage)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.ChatID, rec.Text, string(rec.Intent), rec.Confidence, string(rec.Stage),
	)
	return err
}

func GetClassification(db *sql.DB, id string) (domain.ClassificationRecord, error) {
	var r domain.ClassificationRecord
	var intent, stage string
	err := db.QueryRow(
		`SELECT id, chat_id, text, intent, confidence, stage, created_at
		 FROM classification_log WHERE id = ?`,
		id,
	).Scan(&r.ID, &r.ChatID, &r.Text, &intent, &r.Confidence, &stage, &r.CreatedAt)
	r.Intent = domain.Intent(intent)
	r.Stage = domain.Stage(stage)
	return r, err
}

// IntentStat aggregates the log per intent with the confidence buckets
// the dashboard renders (high >= 0.8, medium >= 0.5, low below).
type IntentStat struct {
	Intent        string  `json:"intent"`
	Count         int     `json:"count"`
	AvgConfidence float64 `json:"avg_confidence"`
	High          int     `json:"high"`
	Medium        int     `json:"medium"`
	Low           int     `json:"low"`
}

func GetIntentDistribution(db *sql.DB, since time.Time) ([]IntentStat, error) {
	rows, err := db.Query(
		`SELECT intent, COUNT(*), COALESCE(AVG(confidence), 0),
		        COALESCE(SUM(CASE WHEN confidence >= 0.80 THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN confidence >= 0.50 AND confidence < 0.80 THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN confidence < 0.50 THEN 1 ELSE 0 END), 0)
		 FROM classification_log
		 WHERE created_at >= ?
		 GROUP BY intent
		 ORDER BY COUNT(*) DESC`,
		since,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []IntentStat
	for rows.Next() {
		var s IntentStat
		if err := rows.Scan(&s.Intent, &s.Count, &s.AvgConfidence, &s.High, &s.Medium, &s.Low); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func GetRecentByIntent(db *sql.DB, intent domain.Intent, limit int) ([]domain.ClassificationRecord, error) {
	rows, err := db.Query(
		`SELECT id, chat_id, text, intent, confidence, stage, created_at
		 FROM classification_log
		 WHERE intent = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		string(intent), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanClassifications(rows)
}

// GetLowConfidence lists recent classifications below threshold, the
// review candidates a human corrects first.
func GetLowConfidence(db *sql.DB, threshold float64, limit int) ([]domain.ClassificationRecord, error) {
	rows, err := db.Query(
		`SELECT id, chat_id, text, intent, confidence, stage, created_at
		 FROM classification_log
		 WHERE confidence < ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		threshold, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanClassifications(rows)
}

func GetClassificationsSince(db *sql.DB, since time.Time, limit int) ([]domain.ClassificationRecord, error) {
	rows, err := db.Query(
		`SELECT id, chat_id, text, intent, confidence, stage, created_at
		 FROM classification_log
		 WHERE created_at >= ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		since, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanClassifications(rows)
}

func scanClassifications(rows *sql.Rows) ([]domain.ClassificationRecord, error) {
	var out []domain.ClassificationRecord
	for rows.Next() {
		var r domain.ClassificationRecord
		var intent, stage string
		if err := rows.Scan(&r.ID, &r.ChatID, &r.Text, &intent, &r.Confidence, &stage, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.Intent = domain.Intent(intent)
		r.Stage = domain.Stage(stage)
		out = append(out, r)
	}
	return out, rows.Err()
}

type WeeklyTrend struct {
	WeekStart       string         `json:"week_start"`
	Classifications int            `json:"classifications"`
	AvgConfidence   float64        `json:"avg_confidence"`
	ByIntent        map[string]int `json:"by_intent"`
}

func GetWeeklyTrend(db *sql.DB, since time.Time) ([]WeeklyTrend, error) {
	rows, err := db.Query(
		`SELECT
		    strftime('%Y-%m-%d', created_at, 'weekday 0', '-6 days') as week_start,
		    COUNT(*),
		    COALESCE(AVG(confidence), 0)
		 FROM classification_log
		 WHERE created_at >= ?
		 GROUP BY week_start
		 ORDER BY week_start DESC`,
		since,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trends []WeeklyTrend
	for rows.Next() {
		var t WeeklyTrend
		if err := rows.Scan(&t.WeekStart, &t.Classifications, &t.AvgConfidence); err != nil {
			return nil, err
		}
		t.ByIntent = make(map[string]int)
		trends = append(trends, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Per-intent counts per week.
	intentRows, err := db.Query(
		`SELECT
		    strftime('%Y-%m-%d', created_at, 'weekday 0', '-6 days') as week_start,
		    intent, COUNT(*)
		 FROM classification_log
		 WHERE created_at >= ?
		 GROUP BY week_start, intent`,
		since,
	)
	if err != nil {
		return trends, nil // non-fatal
	}
	defer intentRows.Close()

	byWeek := make(map[string]map[string]int)
	for intentRows.Next() {
		var ws, intent string
		var count int
		if err := intentRows.Scan(&ws, &intent, &count); err != nil {
			continue
		}
		if byWeek[ws] == nil {
			byWeek[ws] = make(map[string]int)
		}
		byWeek[ws][intent] = count
	}
	for i := range trends {
		if m, ok := byWeek[trends[i].WeekStart]; ok {
			trends[i].ByIntent = m
		}
	}
	return trends, nil
}
