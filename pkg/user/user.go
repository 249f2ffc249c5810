package user

import "context"

type User struct {
	Username string `json:"username"`
	ID       string `json:"id"`
	Password string `json:"-" bson:"-"`
}

type Repository interface {
	Create(ctx context.Context, user *User) error
	FindByUsername(ctx context.Context, username string) (*User, error)
}

// Login is the result of a successful register or login: the account and
// the id of the session opened for it.
type Login struct {
	User      *User
	SessionID string
}
