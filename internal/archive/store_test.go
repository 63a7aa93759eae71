package archive

import (
	"context"
	"errors"
	"testing"

	"github.com/frontdesklabs/frontdesk/internal/convo"
	"github.com/frontdesklabs/frontdesk/internal/session"
)

func TestInMemorySaveAndList(t *testing.T) {
	store := NewInMemoryStore()
	err := store.SaveCall(context.Background(), convo.Completion{
		CallID:   "CA1",
		Reason:   "completed",
		Turns:    []session.Turn{{Role: session.RoleCaller, Text: "I need a plumber"}},
		Entities: map[string]string{"job_type": "plumbing"},
	})
	if err != nil {
		t.Fatal(err)
	}

	calls := store.Calls()
	if len(calls) != 1 || calls[0].CallID != "CA1" {
		t.Fatalf("calls: %+v", calls)
	}

	// Snapshot must not alias internal state.
	calls[0].CallID = "mutated"
	if store.Calls()[0].CallID != "CA1" {
		t.Fatal("snapshot aliased internal slice")
	}
}

func TestSinkDelivers(t *testing.T) {
	store := NewInMemoryStore()
	sink := Sink(store, nil)
	sink.Deliver(context.Background(), convo.Completion{CallID: "CA2", Reason: "caller_hangup"})

	if calls := store.Calls(); len(calls) != 1 || calls[0].Reason != "caller_hangup" {
		t.Fatalf("calls: %+v", calls)
	}
}

type failingStore struct{}

func (failingStore) SaveCall(context.Context, convo.Completion) error {
	return errors.New("db down")
}
func (failingStore) Close() error { return nil }

func TestSinkSwallowsStoreErrors(t *testing.T) {
	// Must not panic or propagate.
	Sink(failingStore{}, nil).Deliver(context.Background(), convo.Completion{CallID: "CA3"})
}
