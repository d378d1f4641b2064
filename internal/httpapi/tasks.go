package httpapi

import (
	"net/http"

	"github.com/foxseedlab/planning-poker/internal/repository"
	"github.com/foxseedlab/planning-poker/internal/round"
	"github.com/go-chi/chi/v5"
)

type taskDraft struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type createTasksRequest struct {
	Tasks []taskDraft `json:"tasks"`
}

type setCurrentTaskRequest struct {
	TaskID string `json:"task_id"`
}

type advanceRequest struct {
	CurrentIndex *int `json:"current_index"`
}

type castVoteRequest struct {
	Value string `json:"value"`
}

type tallyResponse struct {
	TaskID  string             `json:"task_id"`
	Tally   []round.TallyEntry `json:"tally"`
	Summary round.Summary      `json:"summary"`
}

func (s *Server) ListCards(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"cards": round.DefaultDeck})
}

func (s *Server) ListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.rounds.ListTasks(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) CreateTasks(w http.ResponseWriter, r *http.Request) {
	var req createTasksRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	drafts := make([]repository.TaskDraft, 0, len(req.Tasks))
	for _, t := range req.Tasks {
		drafts = append(drafts, repository.TaskDraft{Title: t.Title, Description: t.Description})
	}
	tasks, err := s.rounds.CreateTasks(r.Context(), chi.URLParam(r, "sessionID"), drafts)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tasks)
}

func (s *Server) SetCurrentTask(w http.ResponseWriter, r *http.Request) {
	var req setCurrentTaskRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.rounds.SetCurrentTask(r.Context(), chi.URLParam(r, "sessionID"), req.TaskID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Advance starts before the first task when current_index is omitted.
func (s *Server) Advance(w http.ResponseWriter, r *http.Request) {
	var req advanceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	current := -1
	if req.CurrentIndex != nil {
		current = *req.CurrentIndex
	}
	progress, err := s.rounds.Advance(r.Context(), chi.URLParam(r, "sessionID"), current)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

func (s *Server) GetTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.rounds.GetTask(r.Context(), chi.URLParam(r, "taskID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) UpdateTask(w http.ResponseWriter, r *http.Request) {
	var patch round.TaskPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, r, err)
		return
	}
	task, err := s.rounds.UpdateTask(r.Context(), chi.URLParam(r, "taskID"), patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) DeleteTask(w http.ResponseWriter, r *http.Request) {
	if err := s.rounds.DeleteTask(r.Context(), chi.URLParam(r, "taskID")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Tally reports the votes together with the policy summary for the
// session's mode.
func (s *Server) Tally(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")
	task, err := s.rounds.GetTask(r.Context(), taskID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	sess, err := s.sessions.Get(r.Context(), task.SessionID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	tally, err := s.rounds.Tally(r.Context(), taskID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tallyResponse{
		TaskID:  taskID,
		Tally:   tally,
		Summary: s.rounds.Policy().Summarize(sess.Mode, tally),
	})
}

func (s *Server) CastVote(w http.ResponseWriter, r *http.Request) {
	var req castVoteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	v, err := s.rounds.CastVote(r.Context(), chi.URLParam(r, "taskID"), chi.URLParam(r, "participantID"), req.Value)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) RetractVote(w http.ResponseWriter, r *http.Request) {
	if err := s.rounds.RetractVote(r.Context(), chi.URLParam(r, "taskID"), chi.URLParam(r, "participantID")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) ResetVotes(w http.ResponseWriter, r *http.Request) {
	if err := s.rounds.ResetVotes(r.Context(), chi.URLParam(r, "taskID")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) CloseRound(w http.ResponseWriter, r *http.Request) {
	outcome, err := s.rounds.CloseRound(r.Context(), chi.URLParam(r, "taskID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}
