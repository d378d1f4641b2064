package watch

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestTopicMatches(t *testing.T) {
	change := Change{Table: TableParticipants, Keys: map[string][]string{
		"id":         {"p1"},
		"session_id": {"s1", ""},
	}}
	if !ParticipantsOfSession("s1").Matches(change) {
		t.Fatal("expected old session id to match")
	}
	if ParticipantsOfSession("s2").Matches(change) {
		t.Fatal("expected other session not to match")
	}
	if !Participant("p1").Matches(change) {
		t.Fatal("expected participant id to match")
	}
	if VotesOfTask("s1").Matches(change) {
		t.Fatal("expected other table not to match")
	}
	if !(Topic{Table: TableParticipants}).Matches(change) {
		t.Fatal("expected table-wide topic to match")
	}
}

func TestHub_CoalescesSignals(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := hub.Subscribe(ctx, TasksOfSession("s1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for range 3 {
		hub.Publish(Change{Table: TableTasks, Keys: map[string][]string{"session_id": {"s1"}}})
	}
	<-ch
	select {
	case <-ch:
		t.Fatal("expected signals to be coalesced")
	default:
	}
}

func TestHub_UnsubscribesOnCancel(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	ch, _ := hub.Subscribe(ctx, TasksOfSession("s1"))
	if hub.Subscribers() != 1 {
		t.Fatalf("expected one subscriber, got %d", hub.Subscribers())
	}
	cancel()
	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("channel was not closed after cancel")
	}
	if hub.Subscribers() != 0 {
		t.Fatalf("expected no subscribers, got %d", hub.Subscribers())
	}
}

func TestSnapshots_RefetchesOnMatchingSignal(t *testing.T) {
	hub := NewHub()
	fetches := 0
	fetch := func(context.Context) (int, error) {
		fetches++
		return fetches, nil
	}

	var got []int
	for v, err := range Snapshots(context.Background(), hub, VotesOfTask("t1"), fetch) {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got = append(got, v)
		if v == 1 {
			hub.Publish(Change{Table: TableVotes, Keys: map[string][]string{"task_id": {"t2"}}})
			hub.Publish(Change{Table: TableVotes, Keys: map[string][]string{"task_id": {"t1"}}})
		}
		if v == 2 {
			break
		}
	}
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("unexpected snapshots: %v", got)
	}
	if fetches != 2 {
		t.Fatalf("expected two fetches, got %d", fetches)
	}
}

func TestSnapshots_IsRestartable(t *testing.T) {
	hub := NewHub()
	calls := 0
	seq := Snapshots(context.Background(), hub, TasksOfSession("s1"), func(context.Context) (string, error) {
		calls++
		return "snapshot", nil
	})
	for range 2 {
		for v := range seq {
			if v != "snapshot" {
				t.Fatalf("unexpected snapshot: %s", v)
			}
			break
		}
	}
	if calls != 2 {
		t.Fatalf("expected one fetch per iteration, got %d", calls)
	}
}

func TestSnapshots_StopsWhenContextIsCanceled(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	n := 0
	for range Snapshots(ctx, hub, TasksOfSession("s1"), func(context.Context) (int, error) { return 0, nil }) {
		n++
		cancel()
	}
	if n != 1 {
		t.Fatalf("expected exactly one snapshot, got %d", n)
	}
}

type failingNotifier struct{}

func (failingNotifier) Subscribe(context.Context, Topic) (<-chan struct{}, error) {
	return nil, errors.New("listen failed")
}

func TestSnapshots_YieldsSubscribeError(t *testing.T) {
	var errs []error
	for _, err := range Snapshots(context.Background(), failingNotifier{}, TasksOfSession("s1"), func(context.Context) (int, error) {
		t.Fatal("fetch must not run when subscribe fails")
		return 0, nil
	}) {
		errs = append(errs, err)
	}
	if len(errs) != 1 || errs[0] == nil {
		t.Fatalf("expected a single error, got %v", errs)
	}
}

func TestInterval_Ticks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := Interval{Every: 5 * time.Millisecond}.Subscribe(ctx, Topic{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 2; i++ {
		select {
		case <-ch:
		case <-time.After(time.Second):
			t.Fatalf("tick %d did not arrive", i)
		}
	}
}

func TestHub_BroadcastReachesEveryTopic(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, _ := hub.Subscribe(ctx, TasksOfSession("s1"))
	b, _ := hub.Subscribe(ctx, VotesOfTask("t1"))
	hub.Broadcast()
	for _, ch := range []<-chan struct{}{a, b} {
		select {
		case <-ch:
		default:
			t.Fatal("expected every subscriber to be signaled")
		}
	}
}
