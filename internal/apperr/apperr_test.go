package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	errSessionNotFound := New(ErrNotFound, "session not found")
	cases := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "nil", err: nil, want: ""},
		{name: "named not found", err: errSessionNotFound, want: KindNotFound},
		{name: "wrapped not found", err: fmt.Errorf("join: %w", errSessionNotFound), want: KindNotFound},
		{name: "conflict", err: New(ErrConflict, "name taken"), want: KindConflict},
		{name: "invalid", err: Invalid("name is %s", "empty"), want: KindInvalidInput},
		{name: "dependency", err: Dependency("create session", "insert session", errors.New("boom")), want: KindDependencyFailure},
		{name: "unknown", err: errors.New("plain"), want: KindUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := KindOf(tc.err); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestStepError_UnwrapsCauseAndKind(t *testing.T) {
	cause := errors.New("connection reset")
	err := fmt.Errorf("outer: %w", Dependency("disable session", "detach participants", cause))

	if !errors.Is(err, cause) {
		t.Fatal("expected cause to be reachable")
	}
	if !errors.Is(err, ErrDependencyFailure) {
		t.Fatal("expected dependency failure kind")
	}
	if got := FailedStep(err); got != "detach participants" {
		t.Fatalf("unexpected step: %q", got)
	}
	if got := err.Error(); got != "outer: disable session: detach participants: connection reset" {
		t.Fatalf("unexpected message: %q", got)
	}
}

func TestFailedStep_NoStep(t *testing.T) {
	if got := FailedStep(errors.New("plain")); got != "" {
		t.Fatalf("expected empty step, got %q", got)
	}
}

func TestRequireID(t *testing.T) {
	if err := RequireID("task_id", "6f1c8f3e-5d6b-4e55-9a57-3c0b7f4f2a10"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, id := range []string{"", "task-1"} {
		if err := RequireID("task_id", id); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("RequireID(%q) = %v, want invalid input", id, err)
		}
	}
}

func TestFromTx(t *testing.T) {
	named := New(ErrConflict, "participant already in session")
	if got := FromTx("create", named); got != named {
		t.Fatalf("expected named error to pass through, got %v", got)
	}
	got := FromTx("create", errors.New("connection reset"))
	if KindOf(got) != KindDependencyFailure || FailedStep(got) != "commit" {
		t.Fatalf("expected commit dependency failure, got %v", got)
	}
	if FromTx("create", nil) != nil {
		t.Fatal("expected nil")
	}
}
