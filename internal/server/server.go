package server

import (
	"crypto/subtle"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"intentbot/internal/config"
	"intentbot/internal/engine"
	"intentbot/internal/lifecycle"
	"intentbot/internal/retro"
)

// Server is the HTTP surface: public classify + health, token-guarded
// admin API, prometheus metrics.
type Server struct {
	cfg      config.Config
	db       *sql.DB
	cascade  *engine.Cascade
	manager  *lifecycle.Manager
	analyzer *retro.Analyzer
	metrics  *Metrics
	started  time.Time

	// reloadRules rebuilds the rule-based stages from the lexicon file,
	// called after an admin lexicon append.
	reloadRules func() error
}

func New(cfg config.Config, db *sql.DB, cascade *engine.Cascade, manager *lifecycle.Manager, analyzer *retro.Analyzer, reloadRules func() error) *Server {
	return &Server{
		cfg:         cfg,
		db:          db,
		cascade:     cascade,
		manager:     manager,
		analyzer:    analyzer,
		metrics:     NewMetrics(),
		started:     time.Now(),
		reloadRules: reloadRules,
	}
}

func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Post("/api/v1/classify", s.handleClassify)
	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/admin/api", func(r chi.Router) {
		r.Use(s.requireAdminToken)
		r.Post("/retrain", s.handleRetrain)
		r.Get("/status", s.handleStatus)
		r.Post("/correct", s.handleCorrect)
		r.Get("/stats", s.handleStats)
		r.Get("/trends", s.handleTrends)
		r.Get("/low-confidence", s.handleLowConfidence)
		r.Get("/intent/{intent}", s.handleIntentRecent)
		r.Get("/export", s.handleExport)
		r.Get("/model", s.handleModelDownload)
		r.Post("/lexicon", s.handleLexiconAppend)
		r.Get("/retrospective", s.handleRetrospective)
	})

	return r
}

func (s *Server) ListenAndServe() error {
	log.Printf("http listening addr=%s", s.cfg.ListenAddr)
	srv := &http.Server{
		Addr:         s.cfg.ListenAddr,
		Handler:      s.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute, // retrain can hold a request for a while
	}
	return srv.ListenAndServe()
}

// requireAdminToken guards the admin API with a constant-time bearer
// token comparison.
func (s *Server) requireAdminToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token := strings.TrimPrefix(header, "Bearer ")
		if token == header || token == "" ||
			subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.AdminToken)) != 1 {
			respondError(w, http.StatusUnauthorized, "invalid or missing admin token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("http encode response error: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
