package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sakif/onelink-portfolio/internal/auth"
)

// StateDB is an auth.StateStore shared by every instance using the same
// database file.
type StateDB struct {
	conn *sql.DB
	now  func() time.Time
}

var _ auth.StateStore = (*StateDB)(nil)

func (db *DB) OAuthStates() *StateDB {
	return &StateDB{conn: db.conn, now: time.Now}
}

// Save also purges expired rows so the table stays small.
func (s *StateDB) Save(ctx context.Context, state string, expiresAt time.Time) error {
	now := s.now().Unix()
	if expiresAt.Unix() <= now {
		return fmt.Errorf("sqlite: oauth state already expired")
	}

	if _, err := s.conn.ExecContext(ctx,
		`DELETE FROM oauth_states WHERE expires_at <= ?`, now); err != nil {
		return fmt.Errorf("sqlite: purging oauth states: %w", err)
	}

	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO oauth_states (state, expires_at) VALUES (?, ?)`,
		state, expiresAt.Unix())
	if err != nil {
		return fmt.Errorf("sqlite: saving oauth state: %w", err)
	}
	return nil
}

// Consume deletes the state and reports whether a live one was removed. The
// single DELETE makes concurrent consumers race safely.
func (s *StateDB) Consume(ctx context.Context, state string) (bool, error) {
	if state == "" {
		return false, nil
	}
	res, err := s.conn.ExecContext(ctx,
		`DELETE FROM oauth_states WHERE state = ? AND expires_at > ?`,
		state, s.now().Unix())
	if err != nil {
		return false, fmt.Errorf("sqlite: consuming oauth state: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: consuming oauth state: %w", err)
	}
	return n == 1, nil
}
