package server

import (
	"context"
	"encoding/csv"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"intentbot/internal/domain"
	"intentbot/internal/engine"
	"intentbot/internal/lexicon"
	"intentbot/internal/storage/sqlite"
)

type classifyRequest struct {
	Text   string `json:"text"`
	ChatID string `json:"chat_id,omitempty"`
}

type classifyResponse struct {
	ID           string   `json:"id"`
	Intent       string   `json:"intent"`
	Confidence   float64  `json:"confidence"`
	Stage        string   `json:"stage"`
	Reason       string   `json:"reason"`
	Tokens       []string `json:"tokens,omitempty"`
	ResolvedText string   `json:"resolved_text,omitempty"`
}

// handleClassify serves one classification. With a chat id the flow is
// resolve references, classify, log, remember; without one the call is
// pure classify + log.
func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	var req classifyRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	text := req.Text
	resolved := ""
	if req.ChatID != "" {
		entities, err := sqlite.GetLastEntities(s.db, req.ChatID)
		if err != nil {
			log.Printf("http classify entities error chat=%s: %v", req.ChatID, err)
		}
		if rt := engine.ResolveReferences(text, entities["product"]); rt != text {
			resolved = rt
			text = rt
		}
	}

	result := s.cascade.Classify(text)
	s.metrics.ObserveClassification(result)

	id := uuid.NewString()
	record := domain.ClassificationRecord{
		ID:         id,
		ChatID:     req.ChatID,
		Text:       req.Text,
		Intent:     result.Intent,
		Confidence: result.Confidence,
		Stage:      result.Stage,
	}
	if err := sqlite.InsertClassification(s.db, record); err != nil {
		log.Printf("http classify log error: %v", err)
	}

	if req.ChatID != "" {
		msg := sqlite.ChatMessage{
			ChatID:  req.ChatID,
			Message: req.Text,
			Intent:  string(result.Intent),
		}
		if product := s.cascade.Heuristics().FindProduct(text); product != "" {
			msg.Entities = map[string]string{"product": product}
		}
		if err := sqlite.RememberMessage(s.db, msg, s.cfg.ChatHistoryKeep); err != nil {
			log.Printf("http classify remember error chat=%s: %v", req.ChatID, err)
		}
	}

	respondJSON(w, http.StatusOK, classifyResponse{
		ID:           id,
		Intent:       string(result.Intent),
		Confidence:   result.Confidence,
		Stage:        string(result.Stage),
		Reason:       result.Reason,
		Tokens:       result.Tokens,
		ResolvedText: resolved,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := s.manager.Status()
	respondJSON(w, http.StatusOK, map[string]any{
		"status":           "ok",
		"model_loaded":     s.cascade.Statistical().Trained(),
		"uptime_seconds":   int(time.Since(s.started).Seconds()),
		"feedback_pending": status.FeedbackPending,
	})
}

// handleRetrain runs one cycle under the configured timeout. The
// response is always a structured report; the HTTP status stays 200
// even for rejected and failed outcomes.
func (s *Server) handleRetrain(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RetrainTimeout())
	defer cancel()

	report := s.manager.Retrain(ctx)
	s.metrics.ObserveRetrain(report.Outcome)
	respondJSON(w, http.StatusOK, report)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	feedback, err := sqlite.GetFeedbackStats(s.db)
	if err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("feedback stats: %v", err))
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"retraining": s.manager.Status(),
		"feedback":   feedback,
		"settings":   s.cascade.Settings(),
	})
}

type correctRequest struct {
	ClassificationID string `json:"classification_id,omitempty"`
	Text             string `json:"text,omitempty"`
	PredictedIntent  string `json:"predicted_intent,omitempty"`
	CorrectIntent    string `json:"correct_intent"`
}

// handleCorrect stores one reviewer correction. Text and predicted
// intent can come inline or be looked up from a logged classification.
func (s *Server) handleCorrect(w http.ResponseWriter, r *http.Request) {
	var req correctRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	corrected, err := domain.ParseIntent(req.CorrectIntent)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	text, predicted := req.Text, domain.Intent(req.PredictedIntent)
	if req.ClassificationID != "" && (text == "" || req.PredictedIntent == "") {
		record, err := sqlite.GetClassification(s.db, req.ClassificationID)
		if err != nil {
			respondError(w, http.StatusNotFound, "classification not found")
			return
		}
		if text == "" {
			text = record.Text
		}
		if req.PredictedIntent == "" {
			predicted = record.Intent
		}
	}
	if text == "" {
		respondError(w, http.StatusBadRequest, "text or classification_id required")
		return
	}
	if req.PredictedIntent != "" {
		if predicted, err = domain.ParseIntent(req.PredictedIntent); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	id, err := sqlite.InsertFeedback(s.db, domain.FeedbackRecord{
		Text:             text,
		Predicted:        predicted,
		Corrected:        corrected,
		ClassificationID: req.ClassificationID,
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("save feedback: %v", err))
		return
	}
	s.metrics.ObserveFeedback()
	respondJSON(w, http.StatusOK, map[string]any{"saved": true, "id": id})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	since := time.Now().AddDate(0, 0, -30)
	distribution, err := sqlite.GetIntentDistribution(s.db, since)
	if err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("intent distribution: %v", err))
		return
	}
	feedback, err := sqlite.GetFeedbackStats(s.db)
	if err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("feedback stats: %v", err))
		return
	}
	usage := s.cascade.Stats()
	respondJSON(w, http.StatusOK, map[string]any{
		"since":        since.Format("2006-01-02"),
		"distribution": distribution,
		"feedback":     feedback,
		"usage": map[string]any{
			"total":       usage.Total,
			"empty_input": usage.EmptyInput,
			"by_stage":    usage.ByStage,
			"by_intent":   usage.ByIntent,
		},
	})
}

func (s *Server) handleTrends(w http.ResponseWriter, r *http.Request) {
	since := time.Now().AddDate(0, 0, -12*7)
	trends, err := sqlite.GetWeeklyTrend(s.db, since)
	if err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("weekly trend: %v", err))
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"weeks": trends})
}

func (s *Server) handleLowConfidence(w http.ResponseWriter, r *http.Request) {
	threshold := 0.5
	if raw := r.URL.Query().Get("threshold"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed < 0 || parsed > 1 {
			respondError(w, http.StatusBadRequest, "threshold must be a number in [0,1]")
			return
		}
		threshold = parsed
	}
	records, err := sqlite.GetLowConfidence(s.db, threshold, 100)
	if err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("low confidence: %v", err))
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"threshold": threshold, "records": recordPayload(records)})
}

func (s *Server) handleIntentRecent(w http.ResponseWriter, r *http.Request) {
	intent, err := domain.ParseIntent(chi.URLParam(r, "intent"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	records, err := sqlite.GetRecentByIntent(s.db, intent, 50)
	if err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("recent by intent: %v", err))
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"intent": intent, "records": recordPayload(records)})
}

// handleExport streams the recent classification log as CSV.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	since := time.Now().AddDate(0, 0, -90)
	records, err := sqlite.GetClassificationsSince(s.db, since, 10000)
	if err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("export: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="classifications.csv"`)
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"id", "chat_id", "text", "intent", "confidence", "stage", "created_at"})
	for _, rec := range records {
		_ = cw.Write([]string{
			rec.ID, rec.ChatID, rec.Text, string(rec.Intent),
			strconv.FormatFloat(rec.Confidence, 'f', 4, 64),
			string(rec.Stage), rec.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	cw.Flush()
}

func (s *Server) handleModelDownload(w http.ResponseWriter, r *http.Request) {
	if _, err := os.Stat(s.cfg.ModelPath); err != nil {
		respondError(w, http.StatusNotFound, "no active model snapshot")
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="model.json"`)
	http.ServeFile(w, r, s.cfg.ModelPath)
}

type lexiconRequest struct {
	Table string `json:"table"`
	Term  string `json:"term"`
}

// handleLexiconAppend persists one admin-supplied term and rebuilds
// the rule-based stages from the refreshed lexicon.
func (s *Server) handleLexiconAppend(w http.ResponseWriter, r *http.Request) {
	var req lexiconRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := lexicon.AppendTerm(s.cfg.LexiconPath, req.Table, req.Term); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.reloadRules(); err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("reload rules: %v", err))
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"added": true, "table": req.Table, "term": req.Term})
}

func (s *Server) handleRetrospective(w http.ResponseWriter, r *http.Request) {
	if s.analyzer == nil || !s.analyzer.Enabled() {
		respondError(w, http.StatusServiceUnavailable, "retrospective disabled: no API key configured")
		return
	}
	suggestions, err := s.analyzer.Analyze(r.Context())
	if err != nil {
		respondError(w, http.StatusBadGateway, fmt.Sprintf("retrospective: %v", err))
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"suggestions": suggestions})
}

type recordView struct {
	ID         string  `json:"id"`
	ChatID     string  `json:"chat_id,omitempty"`
	Text       string  `json:"text"`
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
	Stage      string  `json:"stage"`
	CreatedAt  string  `json:"created_at"`
}

func recordPayload(records []domain.ClassificationRecord) []recordView {
	out := make([]recordView, 0, len(records))
	for _, r := range records {
		out = append(out, recordView{
			ID:         r.ID,
			ChatID:     r.ChatID,
			Text:       r.Text,
			Intent:     string(r.Intent),
			Confidence: r.Confidence,
			Stage:      string(r.Stage),
			CreatedAt:  r.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return out
}
