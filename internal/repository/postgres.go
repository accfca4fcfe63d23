package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/example/contest-reminder-bot/internal/model"
)

// PostgresStore implements Store on a Postgres database, for deployments
// that already run one instead of Redis. Expiry has no native TTL here, so
// pending-auth and reminded rows carry an expires_at column that is checked
// on read and cleaned up lazily on write.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(connStr string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return nil, err
	}
	s := &PostgresStore{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) init() error {
	_, err := s.db.Exec(`
        CREATE TABLE IF NOT EXISTS user_prefs (
            user_id BIGINT PRIMARY KEY,
            divisions JSONB NOT NULL
        );
        CREATE TABLE IF NOT EXISTS subscribers (
            user_id BIGINT PRIMARY KEY
        );
        CREATE TABLE IF NOT EXISTS reminded_contests (
            contest_id BIGINT PRIMARY KEY,
            expires_at TIMESTAMPTZ NOT NULL
        );
        CREATE TABLE IF NOT EXISTS user_tokens (
            user_id BIGINT PRIMARY KEY,
            credential JSONB NOT NULL
        );
        CREATE TABLE IF NOT EXISTS pending_auth (
            token TEXT PRIMARY KEY,
            user_id BIGINT NOT NULL,
            expires_at TIMESTAMPTZ NOT NULL
        )`)
	return err
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) Preferences(ctx context.Context, userID int64) ([]string, error) {
	row := s.db.QueryRowContext(ctx, `SELECT divisions FROM user_prefs WHERE user_id=$1`, userID)
	var raw []byte
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	var divisions []string
	if err := json.Unmarshal(raw, &divisions); err != nil {
		return nil, err
	}
	return divisions, nil
}

func (s *PostgresStore) SetPreferences(ctx context.Context, userID int64, divisions []string) error {
	raw, err := json.Marshal(divisions)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
        INSERT INTO user_prefs (user_id, divisions) VALUES ($1, $2)
        ON CONFLICT (user_id) DO UPDATE SET divisions=EXCLUDED.divisions
    `, userID, string(raw))
	return err
}

func (s *PostgresStore) AddSubscriber(ctx context.Context, userID int64) error {
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO subscribers (user_id) VALUES ($1) ON CONFLICT DO NOTHING
    `, userID)
	return err
}

func (s *PostgresStore) Subscribers(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT user_id FROM subscribers`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *PostgresStore) IsReminded(ctx context.Context, contestID int64) (bool, error) {
	row := s.db.QueryRowContext(ctx, `
        SELECT 1 FROM reminded_contests WHERE contest_id=$1 AND expires_at > now()
    `, contestID)
	var one int
	if err := row.Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *PostgresStore) MarkReminded(ctx context.Context, contestID int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM reminded_contests WHERE expires_at <= now()`); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO reminded_contests (contest_id, expires_at) VALUES ($1, $2)
        ON CONFLICT (contest_id) DO UPDATE SET expires_at=EXCLUDED.expires_at
    `, contestID, time.Now().Add(RemindedTTL))
	return err
}

func (s *PostgresStore) SaveCredential(ctx context.Context, userID int64, cred *model.Credential) error {
	raw, err := json.Marshal(cred)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
        INSERT INTO user_tokens (user_id, credential) VALUES ($1, $2)
        ON CONFLICT (user_id) DO UPDATE SET credential=EXCLUDED.credential
    `, userID, string(raw))
	return err
}

func (s *PostgresStore) Credential(ctx context.Context, userID int64) (*model.Credential, error) {
	row := s.db.QueryRowContext(ctx, `SELECT credential FROM user_tokens WHERE user_id=$1`, userID)
	var raw []byte
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var cred model.Credential
	if err := json.Unmarshal(raw, &cred); err != nil {
		return nil, err
	}
	return &cred, nil
}

func (s *PostgresStore) PutPendingAuth(ctx context.Context, token string, userID int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM pending_auth WHERE expires_at <= now()`); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO pending_auth (token, user_id, expires_at) VALUES ($1, $2, $3)
        ON CONFLICT (token) DO UPDATE SET user_id=EXCLUDED.user_id, expires_at=EXCLUDED.expires_at
    `, token, userID, time.Now().Add(PendingAuthTTL))
	return err
}

func (s *PostgresStore) ClaimPendingAuth(ctx context.Context, token string) (int64, error) {
	// The DELETE ... RETURNING makes the claim atomic: of two racing
	// callbacks only one gets the row back.
	row := s.db.QueryRowContext(ctx, `
        DELETE FROM pending_auth WHERE token=$1 AND expires_at > now() RETURNING user_id
    `, token)
	var userID int64
	if err := row.Scan(&userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	return userID, nil
}

var _ Store = (*PostgresStore)(nil)
