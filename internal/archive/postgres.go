package archive

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/frontdesklabs/frontdesk/internal/convo"
)

// PostgresStore persists completed calls in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS call_archive (
		call_sid TEXT PRIMARY KEY,
		account_id TEXT NOT NULL DEFAULT '',
		caller_number TEXT NOT NULL DEFAULT '',
		reason TEXT NOT NULL DEFAULT '',
		turns JSONB NOT NULL DEFAULT '[]',
		entities JSONB NOT NULL DEFAULT '{}',
		started_at TIMESTAMPTZ,
		ended_at TIMESTAMPTZ
	);`); err != nil {
		pool.Close()
		return nil, fmt.Errorf("init archive schema: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) SaveCall(ctx context.Context, c convo.Completion) error {
	turns, err := json.Marshal(c.Turns)
	if err != nil {
		return fmt.Errorf("encode turns: %w", err)
	}
	entities, err := json.Marshal(c.Entities)
	if err != nil {
		return fmt.Errorf("encode entities: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO call_archive (call_sid, account_id, caller_number, reason, turns, entities, started_at, ended_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (call_sid) DO UPDATE SET
			reason = EXCLUDED.reason,
			turns = EXCLUDED.turns,
			entities = EXCLUDED.entities,
			ended_at = EXCLUDED.ended_at`,
		c.CallID,
		c.AccountID,
		c.CallerNumber,
		c.Reason,
		turns,
		entities,
		c.StartedAt,
		c.EndedAt,
	)
	if err != nil {
		return fmt.Errorf("save call: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
