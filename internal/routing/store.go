package routing

import (
	"context"
	"errors"
	"strings"
)

var ErrNotFound = errors.New("routing: not found")

// Store is the engine's view of routing configuration and caller memory.
type Store interface {
	// AccountByNumber resolves the account that owns a dialed number.
	AccountByNumber(ctx context.Context, dialed string) (string, error)
	// Settings loads the account's routing configuration.
	Settings(ctx context.Context, accountID string) (Settings, error)
	// TouchCaller upserts the caller record for the originating number,
	// updating last-seen. The bool reports whether the caller was already
	// known before this call.
	TouchCaller(ctx context.Context, accountID, number string) (CallerRecord, bool, error)
	Close() error
}

// NewStore creates a postgres-backed store when configured, otherwise
// in-memory.
func NewStore(ctx context.Context, databaseURL string) (Store, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return NewInMemoryStore(), nil
	}
	return NewPostgresStore(ctx, databaseURL)
}

// NormalizeNumber strips formatting so the same caller always maps to the
// same record.
func NormalizeNumber(number string) string {
	var b strings.Builder
	for _, r := range number {
		if r >= '0' && r <= '9' || r == '+' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
