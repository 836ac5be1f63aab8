package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/vocadrill/vocadrill/internal/domain"
	"github.com/vocadrill/vocadrill/internal/engine"
)

// userHeader identifies the learner. Authentication itself lives in front of
// this service; the adapter only needs a stable user ID.
const userHeader = "X-User-ID"

// Server is the JSON adapter over the review engine.
type Server struct {
	engine       *engine.Engine
	router       *http.ServeMux
	logger       *slog.Logger
	sessionLimit int
}

// NewServer creates and configures a new server. sessionLimit caps the
// /reviews/today response when the caller does not pass its own limit.
func NewServer(eng *engine.Engine, logger *slog.Logger, sessionLimit int) *Server {
	s := &Server{
		engine:       eng,
		router:       http.NewServeMux(),
		logger:       logger,
		sessionLimit: sessionLimit,
	}
	s.routes()
	return s
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.HandleFunc("/reviews/today", s.handleToday())
	s.router.HandleFunc("/reviews/submit", s.handleSubmit())
	s.router.HandleFunc("/reviews/add", s.handleAdd())
	s.router.HandleFunc("/reviews/remove", s.handleRemove())
	s.router.HandleFunc("/reviews/reset", s.handleReset())
	s.router.HandleFunc("/reviews/stats", s.handleStats())
	s.router.HandleFunc("/reviews/collection", s.handleCollection())
	s.router.HandleFunc("/reviews/history", s.handleHistory())
	s.router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

// envelope is the response shape the web and mobile clients expect.
type envelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

func (s *Server) respond(w http.ResponseWriter, status int, data any) {
	msg := "ok"
	if status >= 400 {
		msg = "error"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(envelope{Code: status, Message: msg, Data: data}); err != nil {
		s.logger.Error("writing response", "error", err)
	}
}

func (s *Server) respondErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidRating), errors.Is(err, domain.ErrCardIDRequired):
		s.respond(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, domain.ErrStoreUnavailable):
		s.logger.Error("store unavailable", "error", err)
		s.respond(w, http.StatusServiceUnavailable, map[string]string{"error": "store unavailable"})
	default:
		s.logger.Error("request failed", "error", err)
		s.respond(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

// user extracts the learner ID or writes a 401 and returns "".
func (s *Server) user(w http.ResponseWriter, r *http.Request) string {
	user := r.Header.Get(userHeader)
	if user == "" {
		s.respond(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	}
	return user
}

func (s *Server) requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		s.respond(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return false
	}
	return true
}

func decodeBody(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func (s *Server) handleToday() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.requireMethod(w, r, http.MethodGet) {
			return
		}
		user := s.user(w, r)
		if user == "" {
			return
		}

		limit := s.sessionLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				s.respond(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
				return
			}
			limit = n
		}

		items, err := s.engine.Today(r.Context(), user, limit)
		if err != nil {
			s.respondErr(w, err)
			return
		}
		s.respond(w, http.StatusOK, map[string]any{"items": items})
	}
}

func (s *Server) handleSubmit() http.HandlerFunc {
	type request struct {
		CardID string        `json:"card_id"`
		Rating domain.Rating `json:"rating"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.requireMethod(w, r, http.MethodPost) {
			return
		}
		user := s.user(w, r)
		if user == "" {
			return
		}

		var req request
		if err := decodeBody(r, &req); err != nil {
			s.respond(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
			return
		}

		sched, err := s.engine.SubmitRating(r.Context(), user, req.CardID, req.Rating)
		if err != nil {
			s.respondErr(w, err)
			return
		}
		s.respond(w, http.StatusOK, map[string]any{"schedule": sched})
	}
}

func (s *Server) handleAdd() http.HandlerFunc {
	type request struct {
		CardID string `json:"card_id"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.requireMethod(w, r, http.MethodPost) {
			return
		}
		user := s.user(w, r)
		if user == "" {
			return
		}

		var req request
		if err := decodeBody(r, &req); err != nil {
			s.respond(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
			return
		}

		added, err := s.engine.Add(r.Context(), user, req.CardID)
		if err != nil {
			s.respondErr(w, err)
			return
		}
		s.respond(w, http.StatusOK, map[string]any{"added": added})
	}
}

func (s *Server) handleRemove() http.HandlerFunc {
	type request struct {
		CardID string `json:"card_id"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.requireMethod(w, r, http.MethodPost) {
			return
		}
		user := s.user(w, r)
		if user == "" {
			return
		}

		var req request
		if err := decodeBody(r, &req); err != nil {
			s.respond(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
			return
		}

		removed, err := s.engine.Remove(r.Context(), user, req.CardID)
		if err != nil {
			s.respondErr(w, err)
			return
		}
		s.respond(w, http.StatusOK, map[string]any{"removed": removed})
	}
}

func (s *Server) handleReset() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.requireMethod(w, r, http.MethodPost) {
			return
		}
		user := s.user(w, r)
		if user == "" {
			return
		}

		ok, err := s.engine.Reset(r.Context(), user)
		if err != nil {
			s.respondErr(w, err)
			return
		}
		s.respond(w, http.StatusOK, map[string]any{"reset": ok})
	}
}

func (s *Server) handleStats() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.requireMethod(w, r, http.MethodGet) {
			return
		}
		user := s.user(w, r)
		if user == "" {
			return
		}

		stats, err := s.engine.Stats(r.Context(), user)
		if err != nil {
			s.respondErr(w, err)
			return
		}
		s.respond(w, http.StatusOK, stats)
	}
}

func (s *Server) handleCollection() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.requireMethod(w, r, http.MethodGet) {
			return
		}
		user := s.user(w, r)
		if user == "" {
			return
		}

		ids, err := s.engine.CollectionIDs(r.Context(), user)
		if err != nil {
			s.respondErr(w, err)
			return
		}
		s.respond(w, http.StatusOK, map[string]any{"card_ids": ids})
	}
}

func (s *Server) handleHistory() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.requireMethod(w, r, http.MethodGet) {
			return
		}
		user := s.user(w, r)
		if user == "" {
			return
		}

		days := 30
		if raw := r.URL.Query().Get("days"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 || n > 365 {
				s.respond(w, http.StatusBadRequest, map[string]string{"error": "invalid days"})
				return
			}
			days = n
		}

		history, err := s.engine.History(r.Context(), user, days)
		if err != nil {
			s.respondErr(w, err)
			return
		}
		s.respond(w, http.StatusOK, map[string]any{"days": history})
	}
}
