package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusActive Status = "active"
	StatusEnded  Status = "ended"
)

var (
	ErrNotFound = errors.New("call not found")
	// ErrAlreadyEnded means another path (janitor, transport teardown)
	// closed the call first; its completion handoff already happened.
	ErrAlreadyEnded = errors.New("call already ended")
)

// Call is the live record of one phone conversation. Turn history and
// collected entities are guarded by the manager's lock; snapshots returned
// from manager methods are safe to read without it.
type Call struct {
	SID            string            `json:"call_sid"`
	StreamSID      string            `json:"stream_sid"`
	AccountID      string            `json:"account_id"`
	CallerNumber   string            `json:"caller_number"`
	Status         Status            `json:"status"`
	Params         Params            `json:"params"`
	Turns          []Turn            `json:"turns"`
	Entities       map[string]string `json:"entities,omitempty"`
	EndReason      string            `json:"end_reason,omitempty"`
	StartedAt      time.Time         `json:"started_at"`
	LastActivityAt time.Time         `json:"last_activity_at"`
	EndedAt        time.Time         `json:"ended_at,omitempty"`
}

func (c *Call) CallerTurns() int {
	n := 0
	for _, t := range c.Turns {
		if t.Role == RoleCaller {
			n++
		}
	}
	return n
}

type Manager struct {
	mu                sync.RWMutex
	calls             map[string]*Call
	inactivityTimeout time.Duration
	onExpire          func(*Call)
}

func NewManager(inactivityTimeout time.Duration) *Manager {
	if inactivityTimeout <= 0 {
		inactivityTimeout = 2 * time.Minute
	}
	return &Manager{
		calls:             make(map[string]*Call),
		inactivityTimeout: inactivityTimeout,
	}
}

func (m *Manager) SetExpireHook(hook func(*Call)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onExpire = hook
}

func (m *Manager) Create(callSID, streamSID string, params Params) *Call {
	now := time.Now().UTC()
	c := &Call{
		SID:            callSID,
		StreamSID:      streamSID,
		AccountID:      params.AccountID,
		CallerNumber:   params.CallerNumber,
		Status:         StatusActive,
		Params:         params,
		StartedAt:      now,
		LastActivityAt: now,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[callSID] = c
	return clone(c)
}

func (m *Manager) Get(callSID string) (*Call, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.calls[callSID]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(c), nil
}

func (m *Manager) Touch(callSID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.calls[callSID]
	if !ok {
		return ErrNotFound
	}
	c.LastActivityAt = time.Now().UTC()
	return nil
}

// AppendTurn records an utterance and returns the new caller-turn count.
func (m *Manager) AppendTurn(callSID string, role Role, text string, entities map[string]string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.calls[callSID]
	if !ok {
		return 0, ErrNotFound
	}
	now := time.Now().UTC()
	c.Turns = append(c.Turns, Turn{
		ID:       uuid.NewString(),
		Role:     role,
		Text:     text,
		Entities: entities,
		At:       now,
	})
	for k, v := range entities {
		if c.Entities == nil {
			c.Entities = make(map[string]string)
		}
		c.Entities[k] = v
	}
	c.LastActivityAt = now
	return c.CallerTurns(), nil
}

func (m *Manager) End(callSID, reason string) (*Call, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.calls[callSID]
	if !ok {
		return nil, ErrNotFound
	}
	if c.Status == StatusEnded {
		return clone(c), ErrAlreadyEnded
	}
	now := time.Now().UTC()
	c.Status = StatusEnded
	c.EndReason = reason
	c.EndedAt = now
	c.LastActivityAt = now
	return clone(c), nil
}

func (m *Manager) Remove(callSID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.calls, callSID)
}

func (m *Manager) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.expireInactive()
			}
		}
	}()
}

func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, c := range m.calls {
		if c.Status == StatusActive {
			count++
		}
	}
	return count
}

// expireInactive ends and releases calls whose transport went quiet. The
// expired snapshot goes to the hook so the transcript can still be archived.
func (m *Manager) expireInactive() {
	now := time.Now().UTC()
	var expired []*Call

	m.mu.Lock()
	for sid, c := range m.calls {
		if c.Status != StatusActive {
			continue
		}
		if now.Sub(c.LastActivityAt) < m.inactivityTimeout {
			continue
		}
		c.Status = StatusEnded
		c.EndReason = "inactivity_timeout"
		c.EndedAt = now
		c.LastActivityAt = now
		expired = append(expired, clone(c))
		delete(m.calls, sid)
	}
	hook := m.onExpire
	m.mu.Unlock()

	if hook != nil {
		for _, c := range expired {
			hook(c)
		}
	}
}

func clone(c *Call) *Call {
	out := *c
	out.Turns = append([]Turn(nil), c.Turns...)
	if c.Entities != nil {
		out.Entities = make(map[string]string, len(c.Entities))
		for k, v := range c.Entities {
			out.Entities[k] = v
		}
	}
	return &out
}
