package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("user not found")

type SQLRepo struct {
	DB *sql.DB
}

// NewSQLRepo works with both the MySQL and the SQLite driver; the queries
// use only portable placeholders.
func NewSQLRepo(db *sql.DB) *SQLRepo {
	return &SQLRepo{DB: db}
}

func (r *SQLRepo) Create(ctx context.Context, user *User) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (id, username, password) VALUES (?, ?, ?)",
		user.ID, user.Username, user.Password,
	)
	if err != nil {
		return fmt.Errorf("insert user %s: %w", user.Username, err)
	}
	return nil
}

func (r *SQLRepo) FindByUsername(ctx context.Context, username string) (*User, error) {
	var u User
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, username, password FROM users WHERE username = ?",
		username,
	).Scan(&u.ID, &u.Username, &u.Password)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &u, nil
}
