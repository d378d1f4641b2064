package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/foxseedlab/planning-poker/internal/repository"
	"github.com/foxseedlab/planning-poker/internal/watch"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

const (
	pingInterval = 15 * time.Second
	writeTimeout = 10 * time.Second
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// streamFrame carries either a snapshot or the error that replaced it.
type streamFrame struct {
	Data  any            `json:"data,omitempty"`
	Error *errorResponse `json:"error,omitempty"`
}

// streamSnapshots upgrades the request and writes one frame per snapshot
// until the client goes away.
func streamSnapshots[T any](w http.ResponseWriter, r *http.Request, n watch.Notifier, topic watch.Topic, fetch watch.Fetch[T]) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err, "path", r.URL.Path)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
					cancel()
					return
				}
			}
		}
	}()

	slog.Debug("watch stream opened", "table", topic.Table, "column", topic.Column, "value", topic.Value)
	defer slog.Debug("watch stream closed", "table", topic.Table, "value", topic.Value)

	for snap, err := range watch.Snapshots(ctx, n, topic, fetch) {
		frame := streamFrame{Data: snap}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			body := errorBody(err)
			frame = streamFrame{Error: &body}
		}
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteJSON(frame); err != nil {
			return
		}
	}
}

func (s *Server) WatchParticipants(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if _, err := s.sessions.Get(r.Context(), sessionID); err != nil {
		writeError(w, r, err)
		return
	}
	streamSnapshots(w, r, s.notifier, watch.ParticipantsOfSession(sessionID), func(ctx context.Context) ([]repository.ParticipantRef, error) {
		return s.sessions.ListParticipants(ctx, sessionID)
	})
}

func (s *Server) WatchTasks(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if _, err := s.sessions.Get(r.Context(), sessionID); err != nil {
		writeError(w, r, err)
		return
	}
	streamSnapshots(w, r, s.notifier, watch.TasksOfSession(sessionID), func(ctx context.Context) ([]repository.Task, error) {
		return s.rounds.ListTasks(ctx, sessionID)
	})
}

func (s *Server) WatchVotes(w http.ResponseWriter, r *http.Request) {
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
	policy := s.rounds.Policy()
	streamSnapshots(w, r, s.notifier, watch.VotesOfTask(taskID), func(ctx context.Context) (tallyResponse, error) {
		tally, err := s.rounds.Tally(ctx, taskID)
		if err != nil {
			return tallyResponse{}, err
		}
		return tallyResponse{TaskID: taskID, Tally: tally, Summary: policy.Summarize(sess.Mode, tally)}, nil
	})
}
