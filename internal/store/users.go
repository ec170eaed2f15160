package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/mailmirror/mailmirror/internal/mail"
)

// UserStore resolves mailbox owners by address.
type UserStore struct {
	db *sql.DB
}

// Ensure returns the user for the given address, creating it on first
// sight.
func (s *UserStore) Ensure(ctx context.Context, address string) (mail.User, error) {
	u, ok, err := s.FindByAddress(ctx, address)
	if err != nil {
		return mail.User{}, err
	}
	if ok {
		return u, nil
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO users (address, created_at) VALUES (?, ?)
		ON CONFLICT(address) DO NOTHING
	`, address, time.Now().Unix())
	if err != nil {
		return mail.User{}, &PersistenceError{Op: "ensure user", Key: address, Err: err}
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		// Lost a creation race; the row exists now.
		u, _, err := s.FindByAddress(ctx, address)
		return u, err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return mail.User{}, &PersistenceError{Op: "ensure user", Key: address, Err: err}
	}
	return mail.User{ID: id, Address: address}, nil
}

// FindByAddress looks up a user by mailbox address.
func (s *UserStore) FindByAddress(ctx context.Context, address string) (mail.User, bool, error) {
	var u mail.User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, address FROM users WHERE address = ?
	`, address).Scan(&u.ID, &u.Address)
	if err == sql.ErrNoRows {
		return mail.User{}, false, nil
	}
	if err != nil {
		return mail.User{}, false, &PersistenceError{Op: "find user", Key: address, Err: err}
	}
	return u, true, nil
}
