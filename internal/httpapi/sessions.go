package httpapi

import (
	"net/http"

	"github.com/foxseedlab/planning-poker/internal/session"
	"github.com/go-chi/chi/v5"
)

type joinSessionRequest struct {
	Code          string `json:"code"`
	ParticipantID string `json:"participant_id"`
}

type disableSessionResponse struct {
	SessionID    string   `json:"session_id"`
	Participants []string `json:"participants"`
}

func (s *Server) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req session.CreateInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	created, err := s.sessions.Create(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) JoinSession(w http.ResponseWriter, r *http.Request) {
	var req joinSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	joined, err := s.sessions.Join(r.Context(), req.Code, req.ParticipantID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, joined)
}

func (s *Server) FindSessionByCode(w http.ResponseWriter, r *http.Request) {
	found, err := s.sessions.FindByCode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, found)
}

func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	found, err := s.sessions.Get(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, found)
}

func (s *Server) DisableSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	names, err := s.sessions.Disable(r.Context(), sessionID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, disableSessionResponse{SessionID: sessionID, Participants: names})
}

func (s *Server) ListSessionParticipants(w http.ResponseWriter, r *http.Request) {
	refs, err := s.sessions.ListParticipants(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, refs)
}

func (s *Server) ListOutcomes(w http.ResponseWriter, r *http.Request) {
	found, err := s.sessions.Get(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	outcomes, err := s.rounds.Outcomes(r.Context(), found)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, outcomes)
}
