// Package store persists reconciliation sessions in Postgres. The session
// is a long-lived, multi-step workspace, so writes use an optimistic version
// stamp: a stale writer gets session.ErrVersionConflict instead of silently
// winning with last-write-wins.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/clearledger/reconcile/internal/session"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) CreateSession(ctx context.Context, sess *session.Session) error {
	payload, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}

	query := `
		INSERT INTO reconciliation_sessions (id, account_id, status, payload, version, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
	`

	if _, err := s.db.ExecContext(ctx, query,
		sess.ID,
		sess.AccountID,
		sess.Status,
		payload,
		sess.Version,
	); err != nil {
		return fmt.Errorf("creating session: %w", err)
	}

	return nil
}

func (s *Store) GetSession(ctx context.Context, id uuid.UUID) (*session.Session, error) {
	query := `
		SELECT payload, version
		FROM reconciliation_sessions
		WHERE id = $1
	`

	var (
		payload []byte
		version int
	)

	err := s.db.QueryRowContext(ctx, query, id).Scan(&payload, &version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &session.NotFoundError{Resource: "session", ID: id.String()}
		}

		return nil, fmt.Errorf("getting session: %w", err)
	}

	var sess session.Session
	if err := json.Unmarshal(payload, &sess); err != nil {
		return nil, fmt.Errorf("decoding session %s: %w", id, err)
	}

	sess.Version = version

	return &sess, nil
}

// UpdateSession writes the session only if nobody else bumped the version
// since it was loaded, then advances the version on the returned value.
func (s *Store) UpdateSession(ctx context.Context, sess *session.Session) error {
	next := *sess
	next.Version = sess.Version + 1

	payload, err := json.Marshal(&next)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}

	query := `
		UPDATE reconciliation_sessions
		SET status = $1, payload = $2, version = $3, updated_at = NOW()
		WHERE id = $4 AND version = $5
	`

	result, err := s.db.ExecContext(ctx, query,
		next.Status,
		payload,
		next.Version,
		next.ID,
		sess.Version,
	)
	if err != nil {
		return fmt.Errorf("updating session: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating session: %w", err)
	}

	if affected == 0 {
		return session.ErrVersionConflict
	}

	sess.Version = next.Version

	return nil
}
