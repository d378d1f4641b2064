// Package clientstate holds a client's view of who it is and which session
// it is in. The store stays authoritative; the cached values are only as
// fresh as the last Refresh.
package clientstate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/foxseedlab/planning-poker/internal/repository"
	"github.com/foxseedlab/planning-poker/internal/watch"
)

var ErrNoParticipant = errors.New("no current participant")

type Store interface {
	GetParticipant(ctx context.Context, id string) (*repository.Participant, error)
	GetSession(ctx context.Context, id string) (*repository.Session, error)
}

type Snapshot struct {
	Participant *repository.Participant `json:"participant"`
	Session     *repository.Session     `json:"session"`
}

type State struct {
	store Store

	mu          sync.RWMutex
	participant *repository.Participant
	session     *repository.Session
}

func New(store Store) *State {
	return &State{store: store}
}

func (s *State) SetParticipant(p *repository.Participant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.participant = cloneParticipant(p)
}

func (s *State) SetSession(sess *repository.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = cloneSession(sess)
}

func (s *State) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.participant = nil
	s.session = nil
}

// Snapshot returns copies, so callers may keep them across later updates.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Participant: cloneParticipant(s.participant),
		Session:     cloneSession(s.session),
	}
}

// Refresh re-reads the participant and the session it references. The
// cached session is dropped when it is inactive or no longer referenced;
// both values are dropped when the participant record is gone.
func (s *State) Refresh(ctx context.Context) (Snapshot, error) {
	s.mu.RLock()
	current := s.participant
	s.mu.RUnlock()
	if current == nil {
		return Snapshot{}, ErrNoParticipant
	}

	p, err := s.store.GetParticipant(ctx, current.ID)
	if err != nil {
		return s.Snapshot(), fmt.Errorf("failed to reload participant: %w", err)
	}
	if p == nil {
		slog.Info("cached participant no longer exists", "participant_id", current.ID)
		s.Clear()
		return Snapshot{}, nil
	}

	var sess *repository.Session
	if p.InSession() {
		sess, err = s.store.GetSession(ctx, *p.SessionID)
		if err != nil {
			return s.Snapshot(), fmt.Errorf("failed to reload session: %w", err)
		}
		if sess != nil && !sess.IsActive {
			sess = nil
		}
	}

	s.mu.Lock()
	if s.session != nil && (sess == nil || sess.ID != s.session.ID) {
		slog.Debug("dropping stale cached session", "participant_id", p.ID, "session_id", s.session.ID)
	}
	s.participant = p
	s.session = sess
	s.mu.Unlock()
	return s.Snapshot(), nil
}

// Watch refreshes on every change to the current participant's row and,
// when interval is positive, on a timer as well. onChange, when set,
// receives each refreshed snapshot. Watch returns when ctx is done.
func (s *State) Watch(ctx context.Context, n watch.Notifier, interval time.Duration, onChange func(Snapshot)) error {
	s.mu.RLock()
	current := s.participant
	s.mu.RUnlock()
	if current == nil {
		return ErrNoParticipant
	}

	signals, err := n.Subscribe(ctx, watch.Participant(current.ID))
	if err != nil {
		return fmt.Errorf("failed to subscribe participant changes: %w", err)
	}
	var tick <-chan time.Time
	if interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-signals:
			if !ok {
				return nil
			}
		case <-tick:
		}
		snap, err := s.Refresh(ctx)
		if err != nil {
			slog.Warn("client state refresh failed", "error", err, "participant_id", current.ID)
			continue
		}
		if onChange != nil {
			onChange(snap)
		}
	}
}

func cloneParticipant(p *repository.Participant) *repository.Participant {
	if p == nil {
		return nil
	}
	c := *p
	if p.SessionID != nil {
		id := *p.SessionID
		c.SessionID = &id
	}
	if p.JoinedAt != nil {
		at := *p.JoinedAt
		c.JoinedAt = &at
	}
	return &c
}

func cloneSession(sess *repository.Session) *repository.Session {
	if sess == nil {
		return nil
	}
	c := *sess
	if sess.ClosedAt != nil {
		at := *sess.ClosedAt
		c.ClosedAt = &at
	}
	return &c
}
