package routing

import (
	"context"
	"sync"
	"time"
)

// InMemoryStore backs routing in dev and tests.
type InMemoryStore struct {
	mu       sync.RWMutex
	accounts map[string]string // dialed number -> account id
	settings map[string]Settings
	callers  map[string]CallerRecord // account id + "\x1f" + number
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		accounts: make(map[string]string),
		settings: make(map[string]Settings),
		callers:  make(map[string]CallerRecord),
	}
}

func (s *InMemoryStore) RegisterAccount(dialed, accountID string, settings Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[NormalizeNumber(dialed)] = accountID
	settings.AccountID = accountID
	s.settings[accountID] = settings
}

func (s *InMemoryStore) PutCaller(record CallerRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record.Number = NormalizeNumber(record.Number)
	if record.Override == "" {
		record.Override = OverrideAuto
	}
	s.callers[callerKey(record.AccountID, record.Number)] = record
}

func (s *InMemoryStore) AccountByNumber(_ context.Context, dialed string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.accounts[NormalizeNumber(dialed)]
	if !ok {
		return "", ErrNotFound
	}
	return id, nil
}

func (s *InMemoryStore) Settings(_ context.Context, accountID string) (Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	settings, ok := s.settings[accountID]
	if !ok {
		return Settings{}, ErrNotFound
	}
	return settings, nil
}

func (s *InMemoryStore) TouchCaller(_ context.Context, accountID, number string) (CallerRecord, bool, error) {
	now := time.Now().UTC()
	number = NormalizeNumber(number)
	key := callerKey(accountID, number)

	s.mu.Lock()
	defer s.mu.Unlock()
	record, known := s.callers[key]
	if !known {
		record = CallerRecord{
			AccountID:   accountID,
			Number:      number,
			Label:       LabelLead,
			Override:    OverrideAuto,
			FirstSeenAt: now,
		}
	}
	record.LastSeenAt = now
	s.callers[key] = record
	return record, known, nil
}

func (s *InMemoryStore) Close() error { return nil }

func callerKey(accountID, number string) string {
	return accountID + "\x1f" + number
}
