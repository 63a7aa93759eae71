// Package archive persists finished calls so downstream job creation can
// consume transcripts after the media socket is gone.
package archive

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/frontdesklabs/frontdesk/internal/convo"
)

type Store interface {
	SaveCall(ctx context.Context, c convo.Completion) error
	Close() error
}

// NewStore creates a postgres-backed archive when configured, otherwise
// in-memory.
func NewStore(ctx context.Context, databaseURL string) (Store, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return NewInMemoryStore(), nil
	}
	return NewPostgresStore(ctx, databaseURL)
}

// InMemoryStore holds completed calls for dev and tests.
type InMemoryStore struct {
	mu    sync.RWMutex
	calls []convo.Completion
}

func NewInMemoryStore() *InMemoryStore { return &InMemoryStore{} }

func (s *InMemoryStore) SaveCall(_ context.Context, c convo.Completion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, c)
	return nil
}

func (s *InMemoryStore) Calls() []convo.Completion {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]convo.Completion(nil), s.calls...)
}

func (s *InMemoryStore) Close() error { return nil }

// Sink adapts a Store to the state machine's completion handoff. Archive
// failures are logged, never surfaced into the call path.
func Sink(store Store, log *zap.Logger) convo.CompletionSink {
	if log == nil {
		log = zap.NewNop()
	}
	return convo.CompletionSinkFunc(func(ctx context.Context, c convo.Completion) {
		if err := store.SaveCall(ctx, c); err != nil {
			log.Warn("archive save failed",
				zap.String("call_id", c.CallID),
				zap.Error(err))
		}
	})
}
