package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/foxseedlab/planning-poker/internal/apperr"
	"github.com/foxseedlab/planning-poker/internal/repository"
	"github.com/google/uuid"
)

type fakeParticipantRepo struct {
	byName      map[string]*repository.Participant
	calls       int
	lookupErr   error
	createErr   error
	hideOnClash bool
}

func newFakeParticipantRepo() *fakeParticipantRepo {
	return &fakeParticipantRepo{byName: map[string]*repository.Participant{}}
}

func (f *fakeParticipantRepo) CreateParticipant(_ context.Context, input repository.CreateParticipantInput) (*repository.Participant, error) {
	f.calls++
	if f.createErr != nil {
		return nil, f.createErr
	}
	if _, ok := f.byName[input.Name]; ok {
		return nil, repository.ErrConflict
	}
	p := &repository.Participant{ID: uuid.NewString(), Name: input.Name, CreatedAt: input.CreatedAt}
	f.byName[input.Name] = p
	return p, nil
}

func (f *fakeParticipantRepo) GetParticipant(_ context.Context, id string) (*repository.Participant, error) {
	f.calls++
	for _, p := range f.byName {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, nil
}

func (f *fakeParticipantRepo) GetParticipantByName(_ context.Context, name string) (*repository.Participant, error) {
	f.calls++
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	if f.hideOnClash {
		return nil, nil
	}
	return f.byName[name], nil
}

func (f *fakeParticipantRepo) DeleteParticipant(_ context.Context, id string) error {
	f.calls++
	for name, p := range f.byName {
		if p.ID == id {
			delete(f.byName, name)
		}
	}
	return nil
}

func (f *fakeParticipantRepo) AttachParticipant(context.Context, repository.AttachParticipantInput) (*repository.Participant, error) {
	return nil, nil
}

func (f *fakeParticipantRepo) DetachParticipant(context.Context, string) (*repository.Participant, error) {
	return nil, nil
}

func (f *fakeParticipantRepo) DetachSessionParticipants(context.Context, string) ([]repository.ParticipantRef, error) {
	return nil, nil
}

func (f *fakeParticipantRepo) ListSessionParticipants(context.Context, string) ([]repository.ParticipantRef, error) {
	return nil, nil
}

func TestResolveOrCreate_IsIdempotentAndTrims(t *testing.T) {
	repo := newFakeParticipantRepo()
	r := NewResolver(repo)

	first, err := r.ResolveOrCreate(context.Background(), "  Alice ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Name != "Alice" || first.InSession() {
		t.Fatalf("unexpected participant: %+v", first)
	}
	second, err := r.ResolveOrCreate(context.Background(), "Alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected the same participant, got %s and %s", first.ID, second.ID)
	}
	if len(repo.byName) != 1 {
		t.Fatalf("expected one record, got %d", len(repo.byName))
	}
}

func TestResolveOrCreate_RejectsBlankNameBeforeStore(t *testing.T) {
	repo := newFakeParticipantRepo()
	r := NewResolver(repo)

	for _, name := range []string{"", "   ", "\t\n"} {
		if _, err := r.ResolveOrCreate(context.Background(), name); !errors.Is(err, apperr.ErrInvalidInput) {
			t.Fatalf("ResolveOrCreate(%q) = %v, want invalid input", name, err)
		}
	}
	if repo.calls != 0 {
		t.Fatalf("expected no store calls, got %d", repo.calls)
	}
}

func TestResolveOrCreate_ConcurrentCreateIsNameConflict(t *testing.T) {
	repo := newFakeParticipantRepo()
	repo.byName["Alice"] = &repository.Participant{ID: uuid.NewString(), Name: "Alice"}
	repo.hideOnClash = true
	r := NewResolver(repo)

	_, err := r.ResolveOrCreate(context.Background(), "Alice")
	if !errors.Is(err, ErrNameConflict) {
		t.Fatalf("expected ErrNameConflict, got %v", err)
	}
	if apperr.KindOf(err) != apperr.KindConflict {
		t.Fatalf("expected conflict kind, got %s", apperr.KindOf(err))
	}
}

func TestResolveOrCreate_ReportsFailedStep(t *testing.T) {
	repo := newFakeParticipantRepo()
	repo.createErr = errors.New("timeout")
	r := NewResolver(repo)

	_, err := r.ResolveOrCreate(context.Background(), "Alice")
	if apperr.KindOf(err) != apperr.KindDependencyFailure || apperr.FailedStep(err) != "create" {
		t.Fatalf("expected create dependency failure, got %v", err)
	}

	repo.lookupErr = errors.New("timeout")
	_, err = r.ResolveOrCreate(context.Background(), "Alice")
	if apperr.FailedStep(err) != "lookup" {
		t.Fatalf("expected lookup step, got %v", err)
	}
}

func TestFindByName(t *testing.T) {
	repo := newFakeParticipantRepo()
	r := NewResolver(repo)

	p, err := r.FindByName(context.Background(), "Bob")
	if err != nil || p != nil {
		t.Fatalf("expected (nil, nil), got %v, %v", p, err)
	}
	if len(repo.byName) != 0 {
		t.Fatal("FindByName must not create records")
	}
	created, _ := r.ResolveOrCreate(context.Background(), "Bob")
	p, err = r.FindByName(context.Background(), " Bob ")
	if err != nil || p == nil || p.ID != created.ID {
		t.Fatalf("expected to find Bob, got %v, %v", p, err)
	}
}

func TestGetAndDelete(t *testing.T) {
	repo := newFakeParticipantRepo()
	r := NewResolver(repo)
	created, _ := r.ResolveOrCreate(context.Background(), "Carol")

	got, err := r.Get(context.Background(), created.ID)
	if err != nil || got.ID != created.ID {
		t.Fatalf("unexpected get: %v, %v", got, err)
	}
	if _, err := r.Get(context.Background(), "not-a-uuid"); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}

	if err := r.Delete(context.Background(), created.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.Delete(context.Background(), created.ID); err != nil {
		t.Fatalf("expected idempotent delete, got %v", err)
	}
	if _, err := r.Get(context.Background(), created.ID); !errors.Is(err, ErrParticipantNotFound) {
		t.Fatalf("expected ErrParticipantNotFound, got %v", err)
	}
}
