// Package session manages the lifecycle of estimation sessions and the
// participants attached to them.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/foxseedlab/planning-poker/internal/apperr"
	"github.com/foxseedlab/planning-poker/internal/config"
	"github.com/foxseedlab/planning-poker/internal/discord"
	"github.com/foxseedlab/planning-poker/internal/identity"
	"github.com/foxseedlab/planning-poker/internal/repository"
	"github.com/foxseedlab/planning-poker/internal/round"
	"github.com/foxseedlab/planning-poker/internal/webhook"
)

const summaryTimeout = 30 * time.Second

var (
	ErrSessionNotFound = apperr.New(apperr.ErrNotFound, "session not found")

	// ErrSessionAlreadyInactive also matches ErrSessionNotFound.
	ErrSessionAlreadyInactive = fmt.Errorf("session already inactive: %w", ErrSessionNotFound)

	ErrParticipantAlreadyInSession = apperr.New(apperr.ErrConflict, "participant already in a session")
	ErrCodeGenerationExhausted     = apperr.New(apperr.ErrConflict, "no free join code found")
	ErrAttachmentFailed            = errors.New("creator attachment failed")
	ErrParticipantNotFound         = identity.ErrParticipantNotFound

	errCodeTaken = errors.New("join code taken")
)

// RoundReporter supplies per-task outcomes for the closing summary.
type RoundReporter interface {
	Outcomes(ctx context.Context, s *repository.Session) ([]round.Outcome, error)
}

type CreateInput struct {
	Name      string                    `json:"name"`
	Mode      repository.EstimationMode `json:"mode"`
	CreatorID string                    `json:"creator_id"`
}

type Manager struct {
	cfg      *config.Config
	repo     repository.Repository
	rounds   RoundReporter
	discord  discord.Client
	webhook  webhook.Sender
	location *time.Location

	now     func() time.Time
	newCode func() (string, error)
	pending sync.WaitGroup
}

func NewManager(cfg *config.Config, repo repository.Repository, rounds RoundReporter, dc discord.Client, wh webhook.Sender) *Manager {
	loc, err := time.LoadLocation(cfg.SummaryTimezone)
	if err != nil {
		slog.Warn("unknown summary timezone, using UTC", "timezone", cfg.SummaryTimezone, "error", err)
		loc = time.UTC
	}
	return &Manager{
		cfg:      cfg,
		repo:     repo,
		rounds:   rounds,
		discord:  dc,
		webhook:  wh,
		location: loc,
		now:      time.Now,
		newCode:  generateCode,
	}
}

func (m *Manager) loadParticipant(ctx context.Context, op, id string) (*repository.Participant, error) {
	p, err := m.repo.GetParticipant(ctx, id)
	if err != nil {
		return nil, apperr.Dependency(op, "load participant", err)
	}
	if p == nil {
		return nil, ErrParticipantNotFound
	}
	return p, nil
}

// Create opens a session with a fresh join code and attaches the creator.
// Both writes share one transaction, so a failed attachment leaves no
// session behind.
func (m *Manager) Create(ctx context.Context, input CreateInput) (*repository.Session, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperr.Invalid("session name is required")
	}
	if !input.Mode.Valid() {
		return nil, apperr.Invalid("unknown estimation mode %q", input.Mode)
	}
	if err := apperr.RequireID("creator_id", input.CreatorID); err != nil {
		return nil, err
	}

	creator, err := m.loadParticipant(ctx, "create session", input.CreatorID)
	if err != nil {
		return nil, err
	}
	if creator.InSession() {
		return nil, ErrParticipantAlreadyInSession
	}

	for attempt := 1; attempt <= m.cfg.SessionCodeAttempts; attempt++ {
		code, err := m.newCode()
		if err != nil {
			return nil, apperr.Dependency("create session", "generate code", err)
		}
		created, err := m.insertAndAttach(ctx, name, code, input.Mode, creator.ID)
		if errors.Is(err, errCodeTaken) {
			slog.Debug("join code collision", "attempt", attempt)
			continue
		}
		if err != nil {
			if errors.Is(err, ErrAttachmentFailed) {
				slog.Warn("creator attachment failed, session rolled back", "participant_id", creator.ID, "error", err)
			}
			return nil, err
		}
		slog.Info("session created", "session_id", created.ID, "code", created.Code, "mode", created.Mode, "creator_id", creator.ID, "attempts", attempt)
		if m.cfg.DiscordEnabled() {
			opened := *created
			m.pending.Add(1)
			go func() {
				defer m.pending.Done()
				m.announceOpened(&opened)
			}()
		}
		return created, nil
	}
	slog.Error("join code generation exhausted", "attempts", m.cfg.SessionCodeAttempts)
	return nil, ErrCodeGenerationExhausted
}

func (m *Manager) insertAndAttach(ctx context.Context, name, code string, mode repository.EstimationMode, creatorID string) (*repository.Session, error) {
	var created *repository.Session
	err := m.repo.InTx(ctx, func(tx repository.Repository) error {
		now := m.now()
		s, err := tx.CreateSession(ctx, repository.CreateSessionInput{
			Name:      name,
			Code:      code,
			Mode:      mode,
			CreatedAt: now,
		})
		if errors.Is(err, repository.ErrConflict) {
			return errCodeTaken
		}
		if err != nil {
			return apperr.Dependency("create session", "insert session", err)
		}
		p, err := tx.AttachParticipant(ctx, repository.AttachParticipantInput{
			ParticipantID: creatorID,
			SessionID:     s.ID,
			JoinedAt:      now,
		})
		if err != nil {
			return apperr.Dependency("create session", "attach creator", fmt.Errorf("%w: %w", ErrAttachmentFailed, err))
		}
		if p == nil {
			return ErrParticipantAlreadyInSession
		}
		created = s
		return nil
	})
	if errors.Is(err, errCodeTaken) {
		return nil, err
	}
	if err != nil {
		return nil, apperr.FromTx("create session", err)
	}
	return created, nil
}

// Join attaches the participant to the active session with that code.
func (m *Manager) Join(ctx context.Context, code, participantID string) (*repository.Session, error) {
	code, err := normalizeCode(code)
	if err != nil {
		return nil, err
	}
	if err := apperr.RequireID("participant_id", participantID); err != nil {
		return nil, err
	}

	s, err := m.repo.GetActiveSessionByCode(ctx, code)
	if err != nil {
		return nil, apperr.Dependency("join session", "find session", err)
	}
	if s == nil {
		return nil, ErrSessionNotFound
	}
	p, err := m.loadParticipant(ctx, "join session", participantID)
	if err != nil {
		return nil, err
	}
	if p.InSession() {
		return nil, ErrParticipantAlreadyInSession
	}

	attached, err := m.repo.AttachParticipant(ctx, repository.AttachParticipantInput{
		ParticipantID: p.ID,
		SessionID:     s.ID,
		JoinedAt:      m.now(),
	})
	if err != nil {
		return nil, apperr.Dependency("join session", "attach participant", err)
	}
	if attached == nil {
		return nil, ErrParticipantAlreadyInSession
	}
	slog.Info("participant joined session", "session_id", s.ID, "participant_id", p.ID)
	return s, nil
}

// Disable closes the session and detaches everyone in it, returning the
// detached names in join order. Tasks and votes are kept.
func (m *Manager) Disable(ctx context.Context, sessionID string) ([]string, error) {
	if err := apperr.RequireID("session_id", sessionID); err != nil {
		return nil, err
	}
	s, err := m.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, apperr.Dependency("disable session", "load session", err)
	}
	if s == nil {
		return nil, ErrSessionNotFound
	}
	if !s.IsActive {
		return nil, ErrSessionAlreadyInactive
	}

	closedAt := m.now()
	var detached []repository.ParticipantRef
	err = m.repo.InTx(ctx, func(tx repository.Repository) error {
		ok, err := tx.DeactivateSession(ctx, repository.DeactivateSessionInput{SessionID: sessionID, ClosedAt: closedAt})
		if err != nil {
			return apperr.Dependency("disable session", "deactivate", err)
		}
		if !ok {
			return ErrSessionAlreadyInactive
		}
		if detached, err = tx.DetachSessionParticipants(ctx, sessionID); err != nil {
			return apperr.Dependency("disable session", "detach participants", err)
		}
		return nil
	})
	if err != nil {
		return nil, apperr.FromTx("disable session", err)
	}

	names := make([]string, 0, len(detached))
	for _, ref := range detached {
		names = append(names, ref.Name)
	}
	slog.Info("session disabled", "session_id", sessionID, "participants", names)

	s.IsActive = false
	s.ClosedAt = &closedAt
	m.pending.Add(1)
	go func() {
		defer m.pending.Done()
		m.announceSummary(s, names)
	}()
	return names, nil
}

// Wait blocks until every pending announcement has been delivered or has
// failed.
func (m *Manager) Wait() {
	m.pending.Wait()
}

func (m *Manager) announceOpened(s *repository.Session) {
	if err := m.discord.SendChannelMessage(m.cfg.DiscordChannelID, openedAnnouncement(s.Name, s.Code, string(s.Mode))); err != nil {
		slog.Error("failed to announce session", "error", err, "session_id", s.ID)
	}
}

func (m *Manager) announceSummary(s *repository.Session, participants []string) {
	ctx, cancel := context.WithTimeout(context.Background(), summaryTimeout)
	defer cancel()

	outcomes, err := m.rounds.Outcomes(ctx, s)
	if err != nil {
		slog.Error("failed to collect session outcomes", "error", err, "session_id", s.ID)
		return
	}
	if m.cfg.DiscordEnabled() {
		body := buildSummaryText(s, participants, outcomes, m.cfg.SummaryTimezone, m.location)
		if err := m.discord.SendChannelMessageWithFile(discord.FileMessage{
			ChannelID: m.cfg.DiscordChannelID,
			Content:   closedAnnouncement(s.Name, s.Code, len(outcomes), len(participants)),
			Filename:  summaryFilename(s),
			FileBody:  body,
		}); err != nil {
			slog.Error("failed to post session summary", "error", err, "session_id", s.ID)
		}
	}
	payload := buildSummaryWebhookPayload(s, participants, outcomes, m.cfg.SummaryTimezone, m.location)
	if err := m.webhook.SendSessionSummary(ctx, payload); err != nil {
		slog.Error("failed to send webhook session summary", "error", err, "session_id", s.ID)
	}
}

// ListParticipants returns the session's participants in join order.
func (m *Manager) ListParticipants(ctx context.Context, sessionID string) ([]repository.ParticipantRef, error) {
	if err := apperr.RequireID("session_id", sessionID); err != nil {
		return nil, err
	}
	refs, err := m.repo.ListSessionParticipants(ctx, sessionID)
	if err != nil {
		return nil, apperr.Dependency("list participants", "list", err)
	}
	return refs, nil
}

// Leave detaches the participant from whatever session it is in. Leaving
// while in no session is not an error.
func (m *Manager) Leave(ctx context.Context, participantID string) (*repository.Participant, error) {
	if err := apperr.RequireID("participant_id", participantID); err != nil {
		return nil, err
	}
	p, err := m.repo.DetachParticipant(ctx, participantID)
	if err != nil {
		return nil, apperr.Dependency("leave session", "detach participant", err)
	}
	if p == nil {
		return nil, ErrParticipantNotFound
	}
	slog.Info("participant left session", "participant_id", participantID)
	return p, nil
}

func (m *Manager) Get(ctx context.Context, sessionID string) (*repository.Session, error) {
	if err := apperr.RequireID("session_id", sessionID); err != nil {
		return nil, err
	}
	s, err := m.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, apperr.Dependency("get session", "load session", err)
	}
	if s == nil {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// FindByCode returns the active session with that code.
func (m *Manager) FindByCode(ctx context.Context, code string) (*repository.Session, error) {
	code, err := normalizeCode(code)
	if err != nil {
		return nil, err
	}
	s, err := m.repo.GetActiveSessionByCode(ctx, code)
	if err != nil {
		return nil, apperr.Dependency("find session", "find session", err)
	}
	if s == nil {
		return nil, ErrSessionNotFound
	}
	return s, nil
}
