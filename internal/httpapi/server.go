// Package httpapi exposes the participant, session and round operations as
// a JSON API, plus WebSocket streams of watched snapshots.
package httpapi

import (
	"net/http"
	"time"

	"github.com/foxseedlab/planning-poker/internal/identity"
	"github.com/foxseedlab/planning-poker/internal/round"
	"github.com/foxseedlab/planning-poker/internal/session"
	"github.com/foxseedlab/planning-poker/internal/watch"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const requestTimeout = 30 * time.Second

type Server struct {
	participants *identity.Resolver
	sessions     *session.Manager
	rounds       *round.Engine
	notifier     watch.Notifier
}

func NewServer(participants *identity.Resolver, sessions *session.Manager, rounds *round.Engine, notifier watch.Notifier) *Server {
	return &Server{
		participants: participants,
		sessions:     sessions,
		rounds:       rounds,
		notifier:     notifier,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Streams hold their connection open, so they stay outside the timeout.
	r.Get("/sessions/{sessionID}/participants/watch", s.WatchParticipants)
	r.Get("/sessions/{sessionID}/tasks/watch", s.WatchTasks)
	r.Get("/tasks/{taskID}/votes/watch", s.WatchVotes)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(requestTimeout))

		r.Get("/cards", s.ListCards)

		r.Post("/participants", s.ResolveParticipant)
		r.Get("/participants", s.FindParticipant)
		r.Get("/participants/{participantID}", s.GetParticipant)
		r.Delete("/participants/{participantID}", s.DeleteParticipant)
		r.Post("/participants/{participantID}/leave", s.LeaveSession)

		r.Post("/sessions", s.CreateSession)
		r.Post("/sessions/join", s.JoinSession)
		r.Get("/sessions/code/{code}", s.FindSessionByCode)
		r.Get("/sessions/{sessionID}", s.GetSession)
		r.Post("/sessions/{sessionID}/disable", s.DisableSession)
		r.Get("/sessions/{sessionID}/participants", s.ListSessionParticipants)
		r.Get("/sessions/{sessionID}/tasks", s.ListTasks)
		r.Post("/sessions/{sessionID}/tasks", s.CreateTasks)
		r.Put("/sessions/{sessionID}/current-task", s.SetCurrentTask)
		r.Post("/sessions/{sessionID}/advance", s.Advance)
		r.Get("/sessions/{sessionID}/outcomes", s.ListOutcomes)

		r.Get("/tasks/{taskID}", s.GetTask)
		r.Patch("/tasks/{taskID}", s.UpdateTask)
		r.Delete("/tasks/{taskID}", s.DeleteTask)
		r.Get("/tasks/{taskID}/votes", s.Tally)
		r.Delete("/tasks/{taskID}/votes", s.ResetVotes)
		r.Put("/tasks/{taskID}/votes/{participantID}", s.CastVote)
		r.Delete("/tasks/{taskID}/votes/{participantID}", s.RetractVote)
		r.Post("/tasks/{taskID}/close", s.CloseRound)
	})
	return r
}
