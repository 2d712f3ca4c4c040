// Package sqlite provides a SQLite-backed referral store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"refgrow/internal/referral"

	_ "modernc.org/sqlite"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS participants (
		id           INTEGER PRIMARY KEY,
		handle       TEXT,
		display_name TEXT,
		ref_count    INTEGER NOT NULL DEFAULT 0 CHECK (ref_count >= 0),
		created_at   INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS joins (
		invitee_id INTEGER PRIMARY KEY,
		inviter_id INTEGER NOT NULL REFERENCES participants (id),
		joined_at  INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS participants_rank_idx ON participants (ref_count DESC, id ASC)`,
	`CREATE INDEX IF NOT EXISTS joins_inviter_idx ON joins (inviter_id)`,
}

// Store persists referral state in SQLite. All access goes through a single
// connection, so SQLite's own locking serializes writers.
type Store struct {
	sqlDB *sql.DB
}

var _ referral.Store = (*Store)(nil)

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens the database at path (":memory:" for a private in-memory
// database) and applies the schema.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	if path != ":memory:" {
		dsn += "&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	}
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(0)
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	for _, stmt := range schema {
		if _, err := sqlDB.Exec(stmt); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}
	return &Store{sqlDB: sqlDB}, nil
}

func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) EnsureParticipant(ctx context.Context, id int64, handle string, now time.Time) error {
	_, err := s.sqlDB.ExecContext(ctx, `
		INSERT INTO participants (id, handle, created_at)
		VALUES (?, NULLIF(?, ''), ?)
		ON CONFLICT (id) DO UPDATE
		SET handle = COALESCE(excluded.handle, participants.handle)
	`, id, handle, toMillis(now))
	return err
}

// SetDisplayName writes the name only while none is on file.
func (s *Store) SetDisplayName(ctx context.Context, id int64, name string) error {
	res, err := s.sqlDB.ExecContext(ctx, `
		UPDATE participants
		SET display_name = ?
		WHERE id = ? AND (display_name IS NULL OR display_name = '')
	`, name, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
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
	var name sql.NullString
	err := s.sqlDB.QueryRowContext(ctx, `SELECT display_name FROM participants WHERE id = ?`, id).Scan(&name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	if !name.Valid || name.String == "" {
		return "", false, nil
	}
	return name.String, true, nil
}

func (s *Store) RefCount(ctx context.Context, id int64) (int64, error) {
	var n int64
	err := s.sqlDB.QueryRowContext(ctx, `SELECT ref_count FROM participants WHERE id = ?`, id).Scan(&n)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return n, nil
}

func (s *Store) ParticipantExists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := s.sqlDB.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM participants WHERE id = ?)`, id).Scan(&exists)
	return exists, err
}

func (s *Store) Participant(ctx context.Context, id int64) (referral.Participant, error) {
	row := s.sqlDB.QueryRowContext(ctx, `
		SELECT id, COALESCE(handle, ''), COALESCE(display_name, ''), ref_count, created_at
		FROM participants
		WHERE id = ?
	`, id)
	p, err := scanParticipant(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return referral.Participant{}, referral.ErrNotFound
		}
		return referral.Participant{}, err
	}
	return p, nil
}

func (s *Store) RecordJoin(ctx context.Context, join referral.JoinRecord) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO joins (invitee_id, inviter_id, joined_at)
		VALUES (?, ?, ?)
		ON CONFLICT (invitee_id) DO NOTHING
	`, join.InviteeID, join.InviterID, toMillis(join.JoinedAt))
	if err != nil {
		if isForeignKeyError(err) {
			return referral.ErrNotFound
		}
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return referral.ErrAlreadyAttributed
	}

	res, err = tx.ExecContext(ctx, `UPDATE participants SET ref_count = ref_count + 1 WHERE id = ?`, join.InviterID)
	if err != nil {
		return err
	}
	if n, err = res.RowsAffected(); err != nil {
		return err
	}
	if n == 0 {
		return referral.ErrNotFound
	}
	return tx.Commit()
}

func (s *Store) Join(ctx context.Context, inviteeID int64) (referral.JoinRecord, error) {
	var (
		j        referral.JoinRecord
		joinedAt int64
	)
	err := s.sqlDB.QueryRowContext(ctx, `
		SELECT invitee_id, inviter_id, joined_at
		FROM joins
		WHERE invitee_id = ?
	`, inviteeID).Scan(&j.InviteeID, &j.InviterID, &joinedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return j, referral.ErrNotFound
		}
		return j, err
	}
	j.JoinedAt = fromMillis(joinedAt)
	return j, nil
}

func (s *Store) Ranked(ctx context.Context, limit int) ([]referral.Participant, error) {
	query := `
		SELECT id, COALESCE(handle, ''), COALESCE(display_name, ''), ref_count, created_at
		FROM participants
		ORDER BY ref_count DESC, id ASC
	`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
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

type rowScanner interface {
	Scan(dest ...any) error
}

func scanParticipant(row rowScanner) (referral.Participant, error) {
	var (
		p         referral.Participant
		createdAt int64
	)
	if err := row.Scan(&p.ID, &p.Handle, &p.DisplayName, &p.RefCount, &createdAt); err != nil {
		return p, err
	}
	p.CreatedAt = fromMillis(createdAt)
	return p, nil
}

func isForeignKeyError(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "foreign key constraint failed")
}
