// Package watch turns change signals from the store into lazy sequences of
// snapshots. A signal carries no payload: consumers re-fetch on every
// signal, so a timer and a push channel are interchangeable backings.
package watch

import (
	"context"
	"iter"
)

const (
	TableParticipants = "participants"
	TableSessions     = "sessions"
	TableTasks        = "tasks"
	TableVotes        = "votes"
)

// Topic selects changes on one table, optionally narrowed to rows whose
// Column equals Value. An empty Column matches every row of the table.
type Topic struct {
	Table  string
	Column string
	Value  string
}

func TasksOfSession(sessionID string) Topic {
	return Topic{Table: TableTasks, Column: "session_id", Value: sessionID}
}

func VotesOfTask(taskID string) Topic {
	return Topic{Table: TableVotes, Column: "task_id", Value: taskID}
}

func ParticipantsOfSession(sessionID string) Topic {
	return Topic{Table: TableParticipants, Column: "session_id", Value: sessionID}
}

func Participant(participantID string) Topic {
	return Topic{Table: TableParticipants, Column: "id", Value: participantID}
}

func Session(sessionID string) Topic {
	return Topic{Table: TableSessions, Column: "id", Value: sessionID}
}

// Change describes one row mutation. Keys holds, per column, the values the
// row had before and after the mutation, so a participant detached from a
// session still matches that session's topic.
type Change struct {
	Table string
	Keys  map[string][]string
}

func (t Topic) Matches(c Change) bool {
	if t.Table != c.Table {
		return false
	}
	if t.Column == "" {
		return true
	}
	for _, v := range c.Keys[t.Column] {
		if v == t.Value {
			return true
		}
	}
	return false
}

// Notifier delivers coalesced change signals for a topic. The returned
// channel is closed once ctx is done.
type Notifier interface {
	Subscribe(ctx context.Context, topic Topic) (<-chan struct{}, error)
}

type Fetch[T any] func(ctx context.Context) (T, error)

// Snapshots yields an initial snapshot and then a fresh one after every
// signal on topic. Ranging over the sequence again starts a new
// subscription. Iteration ends when ctx is done or the consumer stops;
// fetch errors are yielded and iteration continues on the next signal.
func Snapshots[T any](ctx context.Context, n Notifier, topic Topic, fetch Fetch[T]) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		subCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		var zero T
		signals, err := n.Subscribe(subCtx, topic)
		if err != nil {
			yield(zero, err)
			return
		}
		if !yield(fetch(subCtx)) {
			return
		}
		for {
			select {
			case <-subCtx.Done():
				return
			case _, ok := <-signals:
				if !ok {
					return
				}
				if !yield(fetch(subCtx)) {
					return
				}
			}
		}
	}
}
