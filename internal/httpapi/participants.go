package httpapi

import (
	"net/http"

	"github.com/foxseedlab/planning-poker/internal/identity"
	"github.com/go-chi/chi/v5"
)

type resolveParticipantRequest struct {
	Name string `json:"name"`
}

// ResolveParticipant returns the participant with that name, creating it
// on first use.
func (s *Server) ResolveParticipant(w http.ResponseWriter, r *http.Request) {
	var req resolveParticipantRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := s.participants.ResolveOrCreate(r.Context(), req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) FindParticipant(w http.ResponseWriter, r *http.Request) {
	p, err := s.participants.FindByName(r.Context(), r.URL.Query().Get("name"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if p == nil {
		writeError(w, r, identity.ErrParticipantNotFound)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) GetParticipant(w http.ResponseWriter, r *http.Request) {
	p, err := s.participants.Get(r.Context(), chi.URLParam(r, "participantID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) DeleteParticipant(w http.ResponseWriter, r *http.Request) {
	if err := s.participants.Delete(r.Context(), chi.URLParam(r, "participantID")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) LeaveSession(w http.ResponseWriter, r *http.Request) {
	p, err := s.sessions.Leave(r.Context(), chi.URLParam(r, "participantID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
