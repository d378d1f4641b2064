// Package identity maps display names to participant records.
package identity

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/foxseedlab/planning-poker/internal/apperr"
	"github.com/foxseedlab/planning-poker/internal/repository"
)

var (
	// ErrNameConflict means a concurrent create claimed the name between
	// lookup and insert. Resolving again returns the winner's record.
	ErrNameConflict        = apperr.New(apperr.ErrConflict, "participant name taken concurrently")
	ErrParticipantNotFound = apperr.New(apperr.ErrNotFound, "participant not found")
)

type Resolver struct {
	repo repository.ParticipantRepository
	now  func() time.Time
}

func NewResolver(repo repository.ParticipantRepository) *Resolver {
	return &Resolver{repo: repo, now: time.Now}
}

func normalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", apperr.Invalid("participant name is required")
	}
	return name, nil
}

// ResolveOrCreate returns the participant named name, creating it with no
// session when it does not exist yet.
func (r *Resolver) ResolveOrCreate(ctx context.Context, name string) (*repository.Participant, error) {
	name, err := normalizeName(name)
	if err != nil {
		return nil, err
	}
	existing, err := r.repo.GetParticipantByName(ctx, name)
	if err != nil {
		return nil, apperr.Dependency("resolve participant", "lookup", err)
	}
	if existing != nil {
		return existing, nil
	}

	created, err := r.repo.CreateParticipant(ctx, repository.CreateParticipantInput{
		Name:      name,
		CreatedAt: r.now(),
	})
	if errors.Is(err, repository.ErrConflict) {
		return nil, ErrNameConflict
	}
	if err != nil {
		return nil, apperr.Dependency("resolve participant", "create", err)
	}
	slog.Info("participant created", "participant_id", created.ID, "name", created.Name)
	return created, nil
}

// FindByName returns (nil, nil) when no participant has that name.
func (r *Resolver) FindByName(ctx context.Context, name string) (*repository.Participant, error) {
	name, err := normalizeName(name)
	if err != nil {
		return nil, err
	}
	p, err := r.repo.GetParticipantByName(ctx, name)
	if err != nil {
		return nil, apperr.Dependency("find participant", "lookup", err)
	}
	return p, nil
}

func (r *Resolver) Get(ctx context.Context, id string) (*repository.Participant, error) {
	if err := apperr.RequireID("participant_id", id); err != nil {
		return nil, err
	}
	p, err := r.repo.GetParticipant(ctx, id)
	if err != nil {
		return nil, apperr.Dependency("get participant", "lookup", err)
	}
	if p == nil {
		return nil, ErrParticipantNotFound
	}
	return p, nil
}

// Delete removes the participant record. Deleting an unknown id is not an
// error. Votes already cast stay and tally under the raw id.
func (r *Resolver) Delete(ctx context.Context, id string) error {
	if err := apperr.RequireID("participant_id", id); err != nil {
		return err
	}
	if err := r.repo.DeleteParticipant(ctx, id); err != nil {
		return apperr.Dependency("delete participant", "delete", err)
	}
	slog.Info("participant deleted", "participant_id", id)
	return nil
}
