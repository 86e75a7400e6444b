package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sorealabs/mybro-agent/internal/domain"
)

// TurnProcessor is the single operation the transport needs from the core.
type TurnProcessor interface {
	ProcessTurn(ctx context.Context, userID domain.UserID, message string) (string, error)
}

type Server struct {
	turns    TurnProcessor
	profiles domain.ProfileStore
}

func NewServer(turns TurnProcessor, profiles domain.ProfileStore) http.Handler {
	s := &Server{turns: turns, profiles: profiles}

	r := chi.NewRouter()
	r.Use(withRequestID)
	r.Use(withLogging)
	r.Use(withCORS)

	r.Get("/api/health", s.handleHealth)
	r.Post("/api/users", s.handleRegisterUser)
	r.Post("/api/chat", s.handleChat)

	return r
}

// ─────────────────────────────────────────────
// DTOs (request/response)
// ─────────────────────────────────────────────

type chatRequest struct {
	Email   string `json:"email"`
	Message string `json:"message"`
}

type chatResponse struct {
	Reply string `json:"reply"`
}

type registerUserRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// ─────────────────────────────────────────────
// Concrete handlers
// ─────────────────────────────────────────────

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRegisterUser(w http.ResponseWriter, r *http.Request) {
	var req registerUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	if strings.TrimSpace(req.Email) == "" {
		badRequest(w, "email is required")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		badRequest(w, "name is required")
		return
	}

	err := s.profiles.UpsertProfile(r.Context(), &domain.Profile{
		ID:          domain.UserID(req.Email),
		DisplayName: req.Name,
	})
	if err != nil {
		internalError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"email": req.Email})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	if strings.TrimSpace(req.Email) == "" {
		badRequest(w, "email is required")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		badRequest(w, "message is required")
		return
	}

	reply, err := s.turns.ProcessTurn(r.Context(), domain.UserID(req.Email), req.Message)
	if err != nil {
		if errors.Is(err, domain.ErrProfileNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown user"})
			return
		}
		internalError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{Reply: reply})
}

// ─────────────────────────────────────────────
// HTTP Helpers
// ─────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{
		"error": msg,
	})
}

func internalError(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusInternalServerError, map[string]string{
		"error": "internal server error",
	})
}
