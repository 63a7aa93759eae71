package routing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists routing configuration and caller memory in
// PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS account_numbers (
			number TEXT PRIMARY KEY,
			account_id TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS routing_settings (
			account_id TEXT PRIMARY KEY,
			enabled BOOLEAN NOT NULL DEFAULT TRUE,
			mode TEXT NOT NULL DEFAULT 'smart_auto',
			after_hours_mode TEXT NOT NULL DEFAULT 'voicemail',
			schedule JSONB
		);`,
		`CREATE TABLE IF NOT EXISTS caller_records (
			account_id TEXT NOT NULL,
			number TEXT NOT NULL,
			label TEXT NOT NULL DEFAULT 'lead',
			display_name TEXT NOT NULL DEFAULT '',
			override TEXT NOT NULL DEFAULT 'auto',
			first_seen_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			last_seen_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (account_id, number)
		);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) AccountByNumber(ctx context.Context, dialed string) (string, error) {
	var accountID string
	err := s.pool.QueryRow(ctx,
		`SELECT account_id FROM account_numbers WHERE number=$1`,
		NormalizeNumber(dialed),
	).Scan(&accountID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("resolve account: %w", err)
	}
	return accountID, nil
}

func (s *PostgresStore) Settings(ctx context.Context, accountID string) (Settings, error) {
	var (
		settings    Settings
		scheduleRaw []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT account_id, enabled, mode, after_hours_mode, schedule
		 FROM routing_settings WHERE account_id=$1`,
		accountID,
	).Scan(&settings.AccountID, &settings.Enabled, &settings.Mode, &settings.AfterHoursMode, &scheduleRaw)
	if errors.Is(err, pgx.ErrNoRows) {
		return Settings{}, ErrNotFound
	}
	if err != nil {
		return Settings{}, fmt.Errorf("load settings: %w", err)
	}

	if len(scheduleRaw) > 0 {
		var schedule Schedule
		if err := json.Unmarshal(scheduleRaw, &schedule); err != nil {
			return Settings{}, fmt.Errorf("decode schedule: %w", err)
		}
		settings.Schedule = &schedule
	}
	return settings, nil
}

func (s *PostgresStore) TouchCaller(ctx context.Context, accountID, number string) (CallerRecord, bool, error) {
	record := CallerRecord{AccountID: accountID, Number: NormalizeNumber(number)}
	var existed bool

	// xmax is nonzero only when the upsert took the UPDATE path.
	err := s.pool.QueryRow(ctx,
		`INSERT INTO caller_records (account_id, number)
		 VALUES ($1, $2)
		 ON CONFLICT (account_id, number) DO UPDATE SET last_seen_at = now()
		 RETURNING label, display_name, override, first_seen_at, last_seen_at, (xmax <> 0)`,
		record.AccountID,
		record.Number,
	).Scan(&record.Label, &record.DisplayName, &record.Override, &record.FirstSeenAt, &record.LastSeenAt, &existed)
	if err != nil {
		return CallerRecord{}, false, fmt.Errorf("touch caller: %w", err)
	}
	return record, existed, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
