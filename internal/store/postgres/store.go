// Package postgres is the pgx-backed referral store.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"refgrow/internal/referral"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const foreignKeyViolation = "23503"

var schema = []string{
	`CREATE SCHEMA IF NOT EXISTS referral`,
	`CREATE TABLE IF NOT EXISTS referral.participants (
		id           BIGINT PRIMARY KEY,
		handle       TEXT,
		display_name TEXT,
		ref_count    BIGINT NOT NULL DEFAULT 0 CHECK (ref_count >= 0),
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS referral.joins (
		invitee_id BIGINT PRIMARY KEY,
		inviter_id BIGINT NOT NULL REFERENCES referral.participants (id),
		joined_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS participants_rank_idx ON referral.participants (ref_count DESC, id ASC)`,
	`CREATE INDEX IF NOT EXISTS joins_inviter_idx ON referral.joins (inviter_id)`,
}

type Store struct {
	db *pgxpool.Pool
}

var _ referral.Store = (*Store)(nil)

func New(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// Migrate creates the referral schema if it does not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (s *Store) EnsureParticipant(ctx context.Context, id int64, handle string, now time.Time) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO referral.participants (id, handle, created_at)
		VALUES ($1, NULLIF($2, ''), $3)
		ON CONFLICT (id) DO UPDATE
		SET handle = COALESCE(EXCLUDED.handle, referral.participants.handle)
	`, id, handle, now)
	return err
}

// SetDisplayName writes the name only while none is on file.
func (s *Store) SetDisplayName(ctx context.Context, id int64, name string) error {
	cmd, err := s.db.Exec(ctx, `
		UPDATE referral.participants
		SET display_name = $2
		WHERE id = $1 AND (display_name IS NULL OR display_name = '')
	`, id, name)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() > 0 {
		return nil
	}
	exists, err := s.ParticipantExists(ctx, id)
	if err != nil {
		return err
	}
	if !exists {
		return referral.ErrNotFound
	}
	return referral.ErrNameAlreadySet
}

func (s *Store) DisplayName(ctx context.Context, id int64) (string, bool, error) {
	var name *string
	err := s.db.QueryRow(ctx, `SELECT display_name FROM referral.participants WHERE id = $1`, id).Scan(&name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	if name == nil || *name == "" {
		return "", false, nil
	}
	return *name, true, nil
}

func (s *Store) RefCount(ctx context.Context, id int64) (int64, error) {
	var n int64
	err := s.db.QueryRow(ctx, `SELECT ref_count FROM referral.participants WHERE id = $1`, id).Scan(&n)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return n, nil
}

func (s *Store) ParticipantExists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM referral.participants WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}

func (s *Store) Participant(ctx context.Context, id int64) (referral.Participant, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, COALESCE(handle, ''), COALESCE(display_name, ''), ref_count, created_at
		FROM referral.participants
		WHERE id = $1
	`, id)
	p, err := scanParticipant(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return referral.Participant{}, referral.ErrNotFound
		}
		return referral.Participant{}, err
	}
	return p, nil
}

// RecordJoin inserts the join and bumps the inviter inside one transaction.
// The invitee primary key serializes concurrent callers: a second insert for
// the same invitee waits for the first transaction and then hits the conflict.
func (s *Store) RecordJoin(ctx context.Context, join referral.JoinRecord) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	cmd, err := tx.Exec(ctx, `
		INSERT INTO referral.joins (invitee_id, inviter_id, joined_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (invitee_id) DO NOTHING
	`, join.InviteeID, join.InviterID, join.JoinedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return referral.ErrNotFound
		}
		return err
	}
	if cmd.RowsAffected() == 0 {
		return referral.ErrAlreadyAttributed
	}

	cmd, err = tx.Exec(ctx, `
		UPDATE referral.participants
		SET ref_count = ref_count + 1
		WHERE id = $1
	`, join.InviterID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return referral.ErrNotFound
	}
	return tx.Commit(ctx)
}

func (s *Store) Join(ctx context.Context, inviteeID int64) (referral.JoinRecord, error) {
	var j referral.JoinRecord
	err := s.db.QueryRow(ctx, `
		SELECT invitee_id, inviter_id, joined_at
		FROM referral.joins
		WHERE invitee_id = $1
	`, inviteeID).Scan(&j.InviteeID, &j.InviterID, &j.JoinedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return j, referral.ErrNotFound
		}
		return j, err
	}
	return j, nil
}

func (s *Store) Ranked(ctx context.Context, limit int) ([]referral.Participant, error) {
	query := `
		SELECT id, COALESCE(handle, ''), COALESCE(display_name, ''), ref_count, created_at
		FROM referral.participants
		ORDER BY ref_count DESC, id ASC
	`
	var args []any
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []referral.Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanParticipant(row pgx.Row) (referral.Participant, error) {
	var p referral.Participant
	err := row.Scan(&p.ID, &p.Handle, &p.DisplayName, &p.RefCount, &p.CreatedAt)
	return p, err
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation
}
